package payment

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"linepay-gateway/internal/auditlog"
	"linepay-gateway/internal/linepay"
	"linepay-gateway/internal/logger"
	"linepay-gateway/internal/metrics"
	"linepay-gateway/internal/order"
	"linepay-gateway/internal/settings"
	"linepay-gateway/internal/utils"

	"go.uber.org/zap"
)

const maxProductNameRunes = 4000

// providerAPI is the slice of the LINE Pay client the gateway needs.
type providerAPI interface {
	RequestPayment(ctx context.Context, p linepay.RequestPaymentParams) (*linepay.RequestResult, error)
	RefundPayment(ctx context.Context, transactionID string, refundAmount *int64) (*linepay.Response, error)
}

// TransactionStore is the persistence the gateway touches during
// initiation.
type TransactionStore interface {
	SetVendorChargeID(ctx context.Context, txID uint, vendorChargeID string) error
}

type linePayGateway struct {
	api          providerAPI
	settings     *settings.Service
	transactions TransactionStore
	audit        auditlog.Sink
	siteURL      string
	checkoutURL  string
}

func NewLinePayGateway(
	api *linepay.Client,
	st *settings.Service,
	transactions TransactionStore,
	audit auditlog.Sink,
	siteURL, checkoutURL string,
) Gateway {
	if audit == nil {
		audit = auditlog.Nop{}
	}
	return &linePayGateway{
		api:          api,
		settings:     st,
		transactions: transactions,
		audit:        audit,
		siteURL:      strings.TrimRight(siteURL, "/"),
		checkoutURL:  checkoutURL,
	}
}

func (g *linePayGateway) Meta(ctx context.Context) Meta {
	return Meta{
		Title:       "LINE Pay",
		Slug:        "linepay",
		Description: "Pay securely with LINE Pay",
		BrandColor:  "#00C300",
		Active:      g.settings.IsActive(ctx),
	}
}

func (g *linePayGateway) IsCurrencySupported(currency string) bool {
	return strings.EqualFold(currency, linepay.SupportedCurrency)
}

func (g *linePayGateway) InitiatePayment(ctx context.Context, inst *Instance) *InitiationResult {
	o := inst.Order
	tx := inst.Transaction

	log := logger.FromCtx(ctx).With(
		zap.Uint("order_id", o.ID),
		zap.String("transaction_uuid", tx.UUID),
	)

	g.audit.Record(ctx, "LINE Pay Payment Started", map[string]interface{}{
		"order_id":   o.ID,
		"invoice_id": o.InvoiceID,
		"amount":     o.Total,
		"currency":   o.Currency,
	}, auditlog.LevelInfo, nil)

	// Currency guard runs before anything touches the network.
	if !g.IsCurrencySupported(o.Currency) {
		err := &UnsupportedCurrencyError{Currency: o.Currency}
		log.Error("Unsupported order currency", zap.String("currency", o.Currency))
		g.audit.Record(ctx, "LINE Pay Currency Error", map[string]interface{}{
			"order_id": o.ID,
			"currency": o.Currency,
		}, auditlog.LevelError, nil)
		return &InitiationResult{Status: StatusFailed, Message: err.Error()}
	}

	amount, err := linepay.ToProviderUnits(o.Total)
	if err != nil {
		log.Error("Invalid order total", zap.Int64("total", o.Total), zap.Error(err))
		return &InitiationResult{Status: StatusFailed, Message: err.Error()}
	}

	res, err := g.api.RequestPayment(ctx, linepay.RequestPaymentParams{
		Amount:      amount,
		Currency:    linepay.SupportedCurrency,
		OrderID:     strconv.FormatUint(uint64(o.ID), 10),
		Products:    formatProducts(o.Items),
		ConfirmURL:  g.confirmURL(tx),
		CancelURL:   g.cancelURL(),
		AutoCapture: g.settings.AutoCapture(ctx),
		Language:    g.settings.PaymentLanguage(ctx),
	})
	if err != nil {
		log.Error("LINE Pay payment request failed", zap.Error(err))
		g.audit.Record(ctx, "LINE Pay Payment Request Failed", map[string]interface{}{
			"order_id": o.ID,
			"error":    err.Error(),
		}, auditlog.LevelError, nil)
		return &InitiationResult{Status: StatusFailed, Message: failureMessage(err)}
	}

	if err := g.transactions.SetVendorChargeID(ctx, tx.ID, res.TransactionID); err != nil {
		// The charge is only authorized at this point; without the
		// vendor id on record the confirm leg cannot proceed, so the
		// attempt is reported as failed and the buyer re-initiates.
		log.Error("Failed persisting vendor charge id",
			zap.String("vendor_charge_id", res.TransactionID), zap.Error(err))
		return &InitiationResult{Status: StatusFailed, Message: "could not record payment attempt"}
	}
	tx.VendorChargeID = res.TransactionID

	metrics.PaymentsInitiated.Inc()
	log.Info("LINE Pay payment request accepted",
		zap.String("vendor_charge_id", res.TransactionID),
		zap.String("payment_url", res.RedirectURL),
	)
	g.audit.Record(ctx, "LINE Pay Payment Request Success", map[string]interface{}{
		"order_id":       o.ID,
		"transaction_id": res.TransactionID,
		"payment_url":    res.RedirectURL,
	}, auditlog.LevelInfo, nil)

	return &InitiationResult{
		Status:     StatusSuccess,
		RedirectTo: res.RedirectURL,
		Message:    "Redirecting to LINE Pay...",
	}
}

func (g *linePayGateway) Refund(ctx context.Context, tx *order.Transaction, amountMinorUnits *int64) error {
	log := logger.FromCtx(ctx).With(
		zap.Uint("transaction_id", tx.ID),
		zap.String("vendor_charge_id", tx.VendorChargeID),
	)

	g.audit.Record(ctx, "LINE Pay Refund Started", map[string]interface{}{
		"transaction_id":   tx.ID,
		"vendor_charge_id": tx.VendorChargeID,
		"amount":           amountMinorUnits,
		"order_id":         tx.OrderID,
	}, auditlog.LevelInfo, map[string]string{"log_type": "refund"})

	if tx.VendorChargeID == "" {
		log.Error("Refund without vendor charge id")
		g.audit.Record(ctx, "LINE Pay Refund Failed", map[string]interface{}{
			"transaction_id": tx.ID,
			"error":          ErrMissingChargeReference.Error(),
		}, auditlog.LevelError, map[string]string{"log_type": "refund"})
		return ErrMissingChargeReference
	}

	// nil keeps the refundAmount field out of the payload, which LINE
	// Pay reads as "refund everything".
	var refundAmount *int64
	if amountMinorUnits != nil {
		v, err := linepay.ToProviderUnits(*amountMinorUnits)
		if err != nil {
			return err
		}
		refundAmount = &v
	}

	resp, err := g.api.RefundPayment(ctx, tx.VendorChargeID, refundAmount)
	if err != nil {
		log.Error("LINE Pay refund failed", zap.Error(err))
		g.audit.Record(ctx, "LINE Pay Refund Failed", map[string]interface{}{
			"transaction_id": tx.ID,
			"error":          err.Error(),
		}, auditlog.LevelError, map[string]string{"log_type": "refund"})
		return err
	}

	metrics.Refunds.Inc()
	log.Info("LINE Pay refund succeeded")
	g.audit.Record(ctx, "LINE Pay Refund Success", map[string]interface{}{
		"transaction_id":   tx.ID,
		"vendor_charge_id": tx.VendorChargeID,
		"refund_amount":    refundAmount,
		"response":         resp.Raw,
	}, auditlog.LevelInfo, map[string]string{"log_type": "refund"})

	return nil
}

// formatProducts maps order line items into LINE Pay product entries.
// The provider requires at least one product, so a data-quality problem
// upstream (an order with no items) degrades to a synthetic placeholder
// instead of hard-failing checkout.
func formatProducts(items []order.LineItem) []linepay.Product {
	if len(items) == 0 {
		return []linepay.Product{placeholderProduct()}
	}

	products := make([]linepay.Product, 0, len(items))
	for _, item := range items {
		price, err := linepay.ToProviderUnits(item.UnitPrice)
		if err != nil {
			price = 0
		}

		name := item.Title
		if name == "" {
			name = "Item"
		}

		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}

		products = append(products, linepay.Product{
			ID:       strconv.FormatUint(uint64(item.ID), 10),
			Name:     utils.TruncateRunes(name, maxProductNameRunes),
			Quantity: quantity,
			Price:    price,
		})
	}

	return products
}

func placeholderProduct() linepay.Product {
	return linepay.Product{ID: "1", Name: "Item", Quantity: 1, Price: 1}
}

// confirmURL embeds the transaction's local uuid, never the provider's
// id, so the callback route cannot be steered by provider-controlled
// values.
func (g *linePayGateway) confirmURL(tx *order.Transaction) string {
	q := url.Values{}
	q.Set("transaction_id", tx.UUID)
	return g.siteURL + "/payments/linepay/confirm?" + q.Encode()
}

func (g *linePayGateway) cancelURL() string {
	u, err := url.Parse(g.checkoutURL)
	if err != nil {
		return g.checkoutURL
	}
	q := u.Query()
	q.Set("linepay", "cancel")
	u.RawQuery = q.Encode()
	return u.String()
}

// failureMessage keeps the provider's own message when there is one;
// transport and config failures get their error text as-is.
func failureMessage(err error) string {
	if provErr, ok := err.(*linepay.ProviderError); ok && provErr.Message != "" {
		return provErr.Message
	}
	return err.Error()
}
