// Package confirm handles the browser legs of the LINE Pay flow: the
// return callback after the buyer approves the charge, and the cancel
// callback when they back out. The return leg is where the money
// actually moves, so it carries the idempotency guarantees.
package confirm

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"linepay-gateway/internal/auditlog"
	"linepay-gateway/internal/linepay"
	"linepay-gateway/internal/logger"
	"linepay-gateway/internal/metrics"
	"linepay-gateway/internal/order"

	"go.uber.org/zap"
)

// TransactionStore is the slice of order persistence the callback
// handler needs.
type TransactionStore interface {
	GetTransactionByUUID(ctx context.Context, txUUID string) (*order.Transaction, error)
	GetOrder(ctx context.Context, orderID uint) (*order.Order, error)
	MarkTransactionSucceeded(ctx context.Context, txUUID, vendorChargeID string, meta map[string]interface{}) (bool, error)
}

type confirmAPI interface {
	ConfirmPayment(ctx context.Context, transactionID string, amount int64, currency string) (*linepay.Response, error)
}

type Handler struct {
	store      TransactionStore
	orders     order.Service
	api        confirmAPI
	audit      auditlog.Sink
	successURL string
	errorURL   string
}

func NewHandler(
	store TransactionStore,
	orders order.Service,
	api *linepay.Client,
	audit auditlog.Sink,
	successURL, errorURL string,
) *Handler {
	if audit == nil {
		audit = auditlog.Nop{}
	}
	return &Handler{
		store:      store,
		orders:     orders,
		api:        api,
		audit:      audit,
		successURL: successURL,
		errorURL:   errorURL,
	}
}

// HandleReturn is the confirm URL LINE Pay redirects the buyer back to.
// It loads the transaction by the local uuid embedded at request time,
// confirms the charge with the provider, and settles the order exactly
// once no matter how many times the buyer's browser replays the URL.
func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx)

	// The callback must carry both the local uuid embedded at request
	// time and LINE Pay's own transactionId. Absence of either marks
	// the callback invalid before anything else happens.
	txUUID := r.URL.Query().Get("transaction_id")
	providerID := r.URL.Query().Get("transactionId")
	if txUUID == "" || providerID == "" {
		log.Warn("Confirm callback with missing parameters",
			zap.Bool("has_transaction_uuid", txUUID != ""),
			zap.Bool("has_provider_id", providerID != ""),
		)
		h.redirectError(w, r, "missing transaction parameters")
		return
	}
	log = log.With(zap.String("transaction_uuid", txUUID))

	tx, err := h.store.GetTransactionByUUID(ctx, txUUID)
	if err != nil {
		log.Warn("Confirm callback for unknown transaction", zap.Error(err))
		h.audit.Record(ctx, "LINE Pay Confirm Unknown Transaction", map[string]interface{}{
			"transaction_uuid": txUUID,
		}, auditlog.LevelError, nil)
		h.redirectError(w, r, "payment session not found")
		return
	}

	// Replayed callback after a completed settlement. The provider was
	// already charged once; just send the buyer to their receipt.
	if tx.Status == order.TransactionSucceeded {
		log.Info("Confirm callback replayed for settled transaction")
		h.redirectSuccess(w, r, tx.OrderID)
		return
	}

	if tx.VendorChargeID == "" {
		log.Error("Transaction has no vendor charge id")
		h.redirectError(w, r, "payment reference missing")
		return
	}

	// The provider-sent transactionId is attacker-writable, so it is
	// only ever checked against the id we recorded at request time,
	// never used for the lookup.
	if providerID != tx.VendorChargeID {
		log.Warn("Callback transactionId does not match recorded charge",
			zap.String("callback_id", providerID))
		h.audit.Record(ctx, "LINE Pay Confirm ID Mismatch", map[string]interface{}{
			"transaction_uuid": txUUID,
			"vendor_charge_id": tx.VendorChargeID,
			"callback_id":      providerID,
		}, auditlog.LevelError, nil)
		h.redirectError(w, r, "payment reference mismatch")
		return
	}

	o, err := h.store.GetOrder(ctx, tx.OrderID)
	if err != nil {
		log.Error("Failed loading order for confirmation", zap.Uint("order_id", tx.OrderID), zap.Error(err))
		h.redirectError(w, r, "order not found")
		return
	}

	amount, err := linepay.ToProviderUnits(o.Total)
	if err != nil {
		log.Error("Invalid order total at confirmation", zap.Int64("total", o.Total), zap.Error(err))
		h.redirectError(w, r, "invalid order amount")
		return
	}

	resp, err := h.api.ConfirmPayment(ctx, tx.VendorChargeID, amount, linepay.SupportedCurrency)
	if err != nil {
		// The transaction stays pending; the buyer can retry from the
		// provider's side and a later callback may still succeed.
		log.Error("LINE Pay confirm failed", zap.Error(err))
		h.audit.Record(ctx, "LINE Pay Confirm Failed", map[string]interface{}{
			"transaction_uuid": txUUID,
			"vendor_charge_id": tx.VendorChargeID,
			"error":            err.Error(),
		}, auditlog.LevelError, nil)
		h.redirectError(w, r, failureMessage(err))
		return
	}

	meta := map[string]interface{}{}
	for k, v := range tx.Meta {
		meta[k] = v
	}
	meta["linepay_confirm_response"] = string(resp.Raw)

	transitioned, err := h.store.MarkTransactionSucceeded(ctx, txUUID, tx.VendorChargeID, meta)
	if err != nil {
		// The provider captured the payment but the local record did
		// not move; surface it loudly for reconciliation.
		log.Error("Provider confirmed but status transition failed", zap.Error(err))
		h.audit.Record(ctx, "LINE Pay Settlement Mismatch", map[string]interface{}{
			"transaction_uuid": txUUID,
			"vendor_charge_id": tx.VendorChargeID,
		}, auditlog.LevelError, nil)
		h.redirectError(w, r, "payment recorded but not settled, contact support")
		return
	}
	if !transitioned {
		// A concurrent callback won the transition and already settled.
		log.Info("Concurrent confirm already settled transaction")
		h.redirectSuccess(w, r, tx.OrderID)
		return
	}

	tx.Status = order.TransactionSucceeded

	// The transaction is succeeded and stays that way; a failed order
	// update is surfaced to the buyer as an error page while the next
	// replay of this URL short-circuits to the receipt.
	settleErr := h.orders.MarkOrderPaid(ctx, o, o.Total)
	if settleErr == nil {
		settleErr = h.orders.SyncStatusFromTransaction(ctx, tx)
	}
	if settleErr != nil {
		log.Error("Settlement update failed after confirmed payment", zap.Error(settleErr))
		h.audit.Record(ctx, "LINE Pay Settlement Mismatch", map[string]interface{}{
			"transaction_uuid": txUUID,
			"vendor_charge_id": tx.VendorChargeID,
			"order_id":         o.ID,
			"error":            settleErr.Error(),
		}, auditlog.LevelError, nil)
		h.redirectError(w, r, "payment confirmed but order update failed, contact support")
		return
	}

	metrics.PaymentsConfirmed.Inc()
	log.Info("LINE Pay payment settled",
		zap.Uint("order_id", o.ID),
		zap.String("vendor_charge_id", tx.VendorChargeID),
	)
	h.audit.Record(ctx, "LINE Pay Payment Success", map[string]interface{}{
		"order_id":         o.ID,
		"transaction_uuid": txUUID,
		"vendor_charge_id": tx.VendorChargeID,
		"amount":           o.Total,
	}, auditlog.LevelInfo, nil)

	h.redirectSuccess(w, r, o.ID)
}

// HandleCancel is where LINE Pay sends the buyer when they abandon the
// payment screen. Nothing was charged; the pending transaction is left
// as-is and the buyer lands back on checkout.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txUUID := r.URL.Query().Get("transaction_id")

	logger.FromCtx(ctx).Info("LINE Pay payment cancelled by buyer",
		zap.String("transaction_uuid", txUUID))
	h.audit.Record(ctx, "LINE Pay Payment Cancelled", map[string]interface{}{
		"transaction_uuid": txUUID,
	}, auditlog.LevelInfo, nil)

	h.redirectError(w, r, "payment cancelled")
}

func (h *Handler) redirectSuccess(w http.ResponseWriter, r *http.Request, orderID uint) {
	u, err := url.Parse(h.successURL)
	if err != nil {
		http.Redirect(w, r, h.successURL, http.StatusFound)
		return
	}
	q := u.Query()
	q.Set("order_id", strconv.FormatUint(uint64(orderID), 10))
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, message string) {
	u, err := url.Parse(h.errorURL)
	if err != nil {
		http.Redirect(w, r, h.errorURL, http.StatusFound)
		return
	}
	q := u.Query()
	q.Set("linepay_error", message)
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// failureMessage keeps the provider's own wording when there is one.
func failureMessage(err error) string {
	if provErr, ok := err.(*linepay.ProviderError); ok && provErr.Message != "" {
		return provErr.Message
	}
	return err.Error()
}
