package payment

import (
	"context"

	"linepay-gateway/internal/order"
)

// Gateway is what the host commerce engine programs against. A gateway
// never lets an error escape InitiatePayment; the result status field
// carries the outcome.
type Gateway interface {
	Meta(ctx context.Context) Meta
	IsCurrencySupported(currency string) bool
	InitiatePayment(ctx context.Context, inst *Instance) *InitiationResult
	Refund(ctx context.Context, tx *order.Transaction, amountMinorUnits *int64) error
}

// Meta describes the gateway to the host's checkout UI.
type Meta struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	BrandColor  string `json:"brand_color"`
	Active      bool   `json:"active"`
}

// Instance is one checkout attempt: the order being paid and the
// pending transaction the host created for it.
type Instance struct {
	Order       *order.Order
	Transaction *order.Transaction
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// InitiationResult is returned to the host checkout flow. On success
// RedirectTo carries the provider's hosted payment page URL.
type InitiationResult struct {
	Status     string `json:"status"`
	RedirectTo string `json:"redirect_to,omitempty"`
	Message    string `json:"message"`
}
