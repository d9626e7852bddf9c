package order

import (
	"context"
	"fmt"

	"linepay-gateway/internal/logger"

	"go.uber.org/zap"
)

// Service is the settlement side of the order subsystem: it records
// payments against an order and keeps the order status in sync with
// its transactions. Downstream fulfillment hangs off these updates.
type Service interface {
	MarkOrderPaid(ctx context.Context, o *Order, amount int64) error
	SyncStatusFromTransaction(ctx context.Context, tx *Transaction) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) MarkOrderPaid(ctx context.Context, o *Order, amount int64) error {
	if err := s.repo.UpdateOrderPaid(ctx, o.ID, amount); err != nil {
		return fmt.Errorf("mark order %d paid: %w", o.ID, err)
	}
	o.TotalPaid = amount

	logger.FromCtx(ctx).Info("Order marked as paid",
		zap.Uint("order_id", o.ID),
		zap.Int64("amount", amount),
	)
	return nil
}

func (s *service) SyncStatusFromTransaction(ctx context.Context, tx *Transaction) error {
	var status OrderStatus
	switch tx.Status {
	case TransactionSucceeded:
		status = StatusPaid
	case TransactionFailed:
		status = StatusFailed
	case TransactionRefunded:
		status = StatusRefunded
	default:
		return nil
	}

	if err := s.repo.UpdateOrderStatus(ctx, tx.OrderID, status); err != nil {
		return fmt.Errorf("sync order %d status: %w", tx.OrderID, err)
	}

	logger.FromCtx(ctx).Info("Order status synced from transaction",
		zap.Uint("order_id", tx.OrderID),
		zap.String("transaction_uuid", tx.UUID),
		zap.String("status", string(status)),
	)
	return nil
}
