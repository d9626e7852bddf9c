package linepay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"linepay-gateway/internal/auditlog"
	"linepay-gateway/internal/logger"
	"linepay-gateway/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Settings supplies the merchant credentials and environment for a
// call. The implementation resolves test vs live mode on its own.
type Settings interface {
	ChannelID(ctx context.Context) string
	ChannelSecret(ctx context.Context) (string, error)
	APIBaseURL(ctx context.Context) string
}

// Client talks to the LINE Pay v3 API. Every call generates a fresh
// nonce, signs the serialized body, and classifies the outcome into a
// ConfigError, TransportError, ProviderError, or a parsed Response.
type Client struct {
	settings   Settings
	httpClient *http.Client
	audit      auditlog.Sink
}

func NewClient(settings Settings, audit auditlog.Sink) *Client {
	if audit == nil {
		audit = auditlog.Nop{}
	}
	return &Client{
		settings: settings,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		audit: audit,
	}
}

// RequestPayment starts a payment and returns the provider transaction
// id together with the hosted payment page URL the buyer is sent to.
func (c *Client) RequestPayment(ctx context.Context, p RequestPaymentParams) (*RequestResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_id", p.OrderID),
		zap.Int64("amount", p.Amount),
		zap.String("currency", p.Currency),
	)

	payload := requestPayload{
		Amount:   p.Amount,
		Currency: p.Currency,
		OrderID:  p.OrderID,
		Packages: []pkg{
			{
				ID:       "pkg_" + p.OrderID,
				Amount:   p.Amount,
				Products: p.Products,
			},
		},
		RedirectURLs: redirectURLs{
			ConfirmURL: p.ConfirmURL,
			CancelURL:  p.CancelURL,
		},
	}

	// Omission, not false, is the "off" signal for both capture mode
	// and the page locale.
	if p.AutoCapture || p.Language != "" {
		payload.Options = &options{}
		if p.AutoCapture {
			payload.Options.Payment = &paymentOptions{Capture: true}
		}
		if p.Language != "" {
			payload.Options.Display = &displayOptions{Locale: p.Language}
		}
	}

	log.Info("Sending payment request to LINE Pay")

	resp, err := c.post(ctx, "/v3/payments/request", payload)
	if err != nil {
		return nil, err
	}

	var info requestInfo
	if err := json.Unmarshal(resp.Info, &info); err != nil {
		log.Error("Failed decoding payment request info", zap.Error(err))
		return nil, &ProviderError{
			Code:    resp.ReturnCode,
			Message: "malformed payment request info",
			Raw:     resp.Raw,
		}
	}

	log.Info("LINE Pay payment request accepted",
		zap.String("transaction_id", info.TransactionID.String()),
		zap.String("payment_url", info.PaymentURL.Web),
	)

	return &RequestResult{
		TransactionID: info.TransactionID.String(),
		RedirectURL:   info.PaymentURL.Web,
	}, nil
}

// ConfirmPayment captures an authorized payment after the buyer is
// redirected back from LINE Pay.
func (c *Client) ConfirmPayment(ctx context.Context, transactionID string, amount int64, currency string) (*Response, error) {
	logger.FromCtx(ctx).Info("Sending payment confirmation to LINE Pay",
		zap.String("transaction_id", transactionID),
		zap.Int64("amount", amount),
		zap.String("currency", currency),
	)

	endpoint := fmt.Sprintf("/v3/payments/%s/confirm", transactionID)
	return c.post(ctx, endpoint, confirmPayload{Amount: amount, Currency: currency})
}

// RefundPayment refunds a captured payment. A nil refundAmount means a
// full refund and omits the amount field from the payload.
func (c *Client) RefundPayment(ctx context.Context, transactionID string, refundAmount *int64) (*Response, error) {
	logger.FromCtx(ctx).Info("Sending refund request to LINE Pay",
		zap.String("transaction_id", transactionID),
		zap.Any("refund_amount", refundAmount),
	)

	endpoint := fmt.Sprintf("/v3/payments/%s/refund", transactionID)
	return c.post(ctx, endpoint, refundPayload{RefundAmount: refundAmount})
}

func (c *Client) post(ctx context.Context, endpoint string, payload interface{}) (*Response, error) {
	log := logger.FromCtx(ctx).With(zap.String("endpoint", endpoint))

	channelID := c.settings.ChannelID(ctx)
	channelSecret, err := c.settings.ChannelSecret(ctx)
	if err != nil {
		log.Error("Failed to load channel secret", zap.Error(err))
		return nil, &ConfigError{Reason: "channel secret unavailable"}
	}
	if channelID == "" || channelSecret == "" {
		log.Error("LINE Pay channel credentials are missing")
		c.audit.Record(ctx, "LINE Pay API Error", map[string]interface{}{
			"endpoint": endpoint,
			"error":    "channel id or secret is missing",
		}, auditlog.LevelError, nil)
		return nil, &ConfigError{Reason: "channel id or secret is missing"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal linepay payload: %w", err)
	}

	nonce := uuid.NewString()
	signature := Sign(channelSecret, endpoint, body, nonce)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.APIBaseURL(ctx)+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build linepay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-LINE-ChannelId", channelID)
	req.Header.Set("X-LINE-Authorization-Nonce", nonce)
	req.Header.Set("X-LINE-Authorization", signature)

	metrics.ProviderRequests.Inc()
	timer := metrics.StartTimer()

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ProviderFailures.Inc()
		log.Error("LINE Pay request failed",
			zap.Duration("duration", timer.Duration()),
			zap.Error(err),
		)
		c.audit.Record(ctx, "LINE Pay API Error", map[string]interface{}{
			"endpoint":    endpoint,
			"duration_ms": timer.Duration().Milliseconds(),
			"error":       err.Error(),
		}, auditlog.LevelError, nil)
		return nil, &TransportError{Op: "POST " + endpoint, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		metrics.ProviderFailures.Inc()
		log.Error("Failed to read LINE Pay response", zap.Error(err))
		return nil, &TransportError{Op: "read response " + endpoint, Err: err}
	}

	var resp Response
	decodeErr := json.Unmarshal(respBody, &resp)
	resp.Raw = respBody

	// Verbatim response goes to the audit trail no matter the outcome.
	// The sink swallows its own failures.
	level := auditlog.LevelInfo
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 || !resp.OK() {
		level = auditlog.LevelError
	}
	c.audit.Record(ctx, "LINE Pay API Response", map[string]interface{}{
		"endpoint":       endpoint,
		"status_code":    httpResp.StatusCode,
		"duration_ms":    timer.Duration().Milliseconds(),
		"return_code":    resp.ReturnCode,
		"return_message": resp.ReturnMessage,
		"full_response":  json.RawMessage(respBody),
	}, level, nil)

	if decodeErr != nil {
		metrics.ProviderFailures.Inc()
		log.Error("Failed decoding LINE Pay response",
			zap.Int("status", httpResp.StatusCode),
			zap.ByteString("response", respBody),
			zap.Error(decodeErr),
		)
		return nil, &ProviderError{Message: "malformed provider response", Raw: respBody}
	}

	if !resp.OK() {
		metrics.ProviderFailures.Inc()
		log.Error("LINE Pay returned non-success code",
			zap.Int("status", httpResp.StatusCode),
			zap.String("return_code", resp.ReturnCode),
			zap.String("return_message", resp.ReturnMessage),
		)
		return nil, &ProviderError{Code: resp.ReturnCode, Message: resp.ReturnMessage, Raw: respBody}
	}

	return &resp, nil
}
