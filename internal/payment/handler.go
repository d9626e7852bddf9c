package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"linepay-gateway/internal/logger"
	"linepay-gateway/internal/order"
	"linepay-gateway/internal/utils"

	"go.uber.org/zap"
)

type Handler struct {
	gateway Gateway
	orders  order.Repository
}

func NewHandler(gateway Gateway, orders order.Repository) *Handler {
	return &Handler{gateway: gateway, orders: orders}
}

type payRequest struct {
	OrderID uint `json:"order_id"`
}

type refundRequest struct {
	TransactionUUID string `json:"transaction_uuid"`
	Amount          *int64 `json:"amount,omitempty"`
}

// HandlePay creates a pending transaction for the order and asks the
// gateway for a redirect target. The body always carries an
// InitiationResult so the storefront can render the outcome either way.
func (h *Handler) HandlePay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx)

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == 0 {
		utils.WriteJSONError(w, "order_id is required", http.StatusBadRequest)
		return
	}

	o, err := h.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			utils.WriteJSONError(w, "order not found", http.StatusNotFound)
			return
		}
		log.Error("Failed loading order", zap.Uint("order_id", req.OrderID), zap.Error(err))
		utils.WriteJSONError(w, "could not load order", http.StatusInternalServerError)
		return
	}

	tx := &order.Transaction{OrderID: o.ID}
	if err := h.orders.CreateTransaction(ctx, tx); err != nil {
		log.Error("Failed creating transaction", zap.Uint("order_id", o.ID), zap.Error(err))
		utils.WriteJSONError(w, "could not start payment", http.StatusInternalServerError)
		return
	}

	result := h.gateway.InitiatePayment(ctx, &Instance{Order: o, Transaction: tx})

	status := http.StatusOK
	if result.Status == StatusFailed {
		status = http.StatusUnprocessableEntity
		// The attempt is over for this transaction; a retry goes
		// through a fresh one.
		if err := h.orders.MarkTransactionFailed(ctx, tx.UUID, result.Message); err != nil {
			log.Error("Failed marking transaction failed",
				zap.String("transaction_uuid", tx.UUID), zap.Error(err))
		}
	}
	utils.WriteJSON(w, result, status)
}

// HandleRefund is reached through the admin JWT middleware; a missing
// amount refunds the full charge.
func (h *Handler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx)

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionUUID == "" {
		utils.WriteJSONError(w, "transaction_uuid is required", http.StatusBadRequest)
		return
	}

	tx, err := h.orders.GetTransactionByUUID(ctx, req.TransactionUUID)
	if err != nil {
		if errors.Is(err, order.ErrTransactionNotFound) {
			utils.WriteJSONError(w, "transaction not found", http.StatusNotFound)
			return
		}
		log.Error("Failed loading transaction", zap.String("uuid", req.TransactionUUID), zap.Error(err))
		utils.WriteJSONError(w, "could not load transaction", http.StatusInternalServerError)
		return
	}

	if err := h.gateway.Refund(ctx, tx, req.Amount); err != nil {
		if errors.Is(err, ErrMissingChargeReference) {
			utils.WriteJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		utils.WriteJSONError(w, err.Error(), http.StatusBadGateway)
		return
	}

	if err := h.orders.MarkTransactionRefunded(ctx, tx.ID); err != nil {
		// Money already moved; the local status lagging behind is a
		// reconciliation problem, not a refund failure.
		log.Error("Refund succeeded but status update failed",
			zap.Uint("transaction_id", tx.ID), zap.Error(err))
	}

	utils.WriteJSON(w, map[string]string{"status": "refunded"}, http.StatusOK)
}
