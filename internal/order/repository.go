package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Repository interface {
	GetOrder(ctx context.Context, orderID uint) (*Order, error)
	GetTransactionByUUID(ctx context.Context, txUUID string) (*Transaction, error)
	CreateTransaction(ctx context.Context, tx *Transaction) error
	SetVendorChargeID(ctx context.Context, txID uint, vendorChargeID string) error

	// MarkTransactionSucceeded performs the pending -> succeeded
	// transition as a single conditional update. It reports whether
	// this call performed the transition; false means another request
	// already did, which the caller must treat as an idempotent success.
	MarkTransactionSucceeded(ctx context.Context, txUUID, vendorChargeID string, meta map[string]interface{}) (bool, error)

	MarkTransactionFailed(ctx context.Context, txUUID, reason string) error
	MarkTransactionRefunded(ctx context.Context, txID uint) error

	UpdateOrderPaid(ctx context.Context, orderID uint, amount int64) error
	UpdateOrderStatus(ctx context.Context, orderID uint, status OrderStatus) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetOrder(ctx context.Context, orderID uint) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, invoice_id, total, total_paid, currency, status, created_at, updated_at
		FROM orders WHERE id = $1
	`, orderID)

	var o Order
	err := row.Scan(&o.ID, &o.InvoiceID, &o.Total, &o.TotalPaid, &o.Currency, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, title, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Title, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *repository) GetTransactionByUUID(ctx context.Context, txUUID string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, uuid, order_id, status, vendor_charge_id, meta, created_at, updated_at
		FROM order_transactions WHERE uuid = $1
	`, txUUID)

	var t Transaction
	var meta []byte
	err := row.Scan(&t.ID, &t.UUID, &t.OrderID, &t.Status, &t.VendorChargeID, &meta, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Meta); err != nil {
			return nil, fmt.Errorf("decode transaction meta: %w", err)
		}
	}

	return &t, nil
}

func (r *repository) CreateTransaction(ctx context.Context, tx *Transaction) error {
	if tx.UUID == "" {
		tx.UUID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = TransactionPending
	}

	meta, err := json.Marshal(tx.Meta)
	if err != nil {
		return fmt.Errorf("encode transaction meta: %w", err)
	}

	return r.db.QueryRowContext(ctx, `
		INSERT INTO order_transactions (uuid, order_id, status, vendor_charge_id, meta)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, tx.UUID, tx.OrderID, tx.Status, tx.VendorChargeID, meta).Scan(&tx.ID)
}

func (r *repository) SetVendorChargeID(ctx context.Context, txID uint, vendorChargeID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE order_transactions SET vendor_charge_id = $1, updated_at = now() WHERE id = $2
	`, vendorChargeID, txID)
	return err
}

func (r *repository) MarkTransactionSucceeded(ctx context.Context, txUUID, vendorChargeID string, meta map[string]interface{}) (bool, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return false, fmt.Errorf("encode transaction meta: %w", err)
	}

	// The status predicate makes the transition exactly-once under
	// concurrent confirmation callbacks.
	res, err := r.db.ExecContext(ctx, `
		UPDATE order_transactions
		SET status = $2,
		    vendor_charge_id = CASE WHEN vendor_charge_id = '' THEN $3 ELSE vendor_charge_id END,
		    meta = $4,
		    updated_at = now()
		WHERE uuid = $1 AND status = $5
	`, txUUID, TransactionSucceeded, vendorChargeID, metaJSON, TransactionPending)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *repository) MarkTransactionFailed(ctx context.Context, txUUID, reason string) error {
	meta, err := json.Marshal(map[string]interface{}{"failure_reason": reason})
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE order_transactions
		SET status = $2, meta = $3, updated_at = now()
		WHERE uuid = $1 AND status = $4
	`, txUUID, TransactionFailed, meta, TransactionPending)
	return err
}

func (r *repository) MarkTransactionRefunded(ctx context.Context, txID uint) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE order_transactions SET status = $1, updated_at = now() WHERE id = $2
	`, TransactionRefunded, txID)
	return err
}

func (r *repository) UpdateOrderPaid(ctx context.Context, orderID uint, amount int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders SET total_paid = $1, updated_at = now() WHERE id = $2
	`, amount, orderID)
	return err
}

func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uint, status OrderStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = now() WHERE id = $2
	`, status, orderID)
	return err
}
