package linepay

import "encoding/json"

// ReturnCodeSuccess is LINE Pay's own success signal. Anything else in
// returnCode is a provider-side failure even on HTTP 200.
const ReturnCodeSuccess = "0000"

// Response is the envelope every LINE Pay v3 call answers with.
type Response struct {
	ReturnCode    string          `json:"returnCode"`
	ReturnMessage string          `json:"returnMessage"`
	Info          json.RawMessage `json:"info,omitempty"`

	// Raw is the verbatim response body, kept for the audit trail and
	// transaction metadata.
	Raw json.RawMessage `json:"-"`
}

func (r *Response) OK() bool {
	return r.ReturnCode == ReturnCodeSuccess
}

// RequestResult is the parsed outcome of a successful payment request.
type RequestResult struct {
	TransactionID string
	RedirectURL   string
}

// RequestPaymentParams carries everything needed for a
// /v3/payments/request call. Amount and product prices are already in
// provider units.
type RequestPaymentParams struct {
	Amount      int64
	Currency    string
	OrderID     string
	Products    []Product
	ConfirmURL  string
	CancelURL   string
	AutoCapture bool
	// Language is the locale of the hosted payment page, e.g. "zh-TW".
	// Empty leaves the provider default.
	Language string
}

type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type requestPayload struct {
	Amount       int64        `json:"amount"`
	Currency     string       `json:"currency"`
	OrderID      string       `json:"orderId"`
	Packages     []pkg        `json:"packages"`
	RedirectURLs redirectURLs `json:"redirectUrls"`
	Options      *options     `json:"options,omitempty"`
}

type pkg struct {
	ID       string    `json:"id"`
	Amount   int64     `json:"amount"`
	Products []Product `json:"products"`
}

type redirectURLs struct {
	ConfirmURL string `json:"confirmUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type options struct {
	Payment *paymentOptions `json:"payment,omitempty"`
	Display *displayOptions `json:"display,omitempty"`
}

type paymentOptions struct {
	Capture bool `json:"capture"`
}

type displayOptions struct {
	Locale string `json:"locale,omitempty"`
}

type confirmPayload struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type refundPayload struct {
	// nil means full refund, the field is omitted entirely per LINE Pay
	// convention. A zero value is a valid partial amount and is sent.
	RefundAmount *int64 `json:"refundAmount,omitempty"`
}

// requestInfo is the info block of a request-payment response.
// TransactionID is a 19-digit number that overflows float64, hence
// json.Number.
type requestInfo struct {
	TransactionID json.Number `json:"transactionId"`
	PaymentURL    struct {
		Web string `json:"web"`
		App string `json:"app"`
	} `json:"paymentUrl"`
}
