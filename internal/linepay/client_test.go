package linepay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRoundTripper allows us to mock the HTTP response
type MockRoundTripper func(req *http.Request) *http.Response

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type MockRoundTripperWithError func(req *http.Request) (*http.Response, error)

func (f MockRoundTripperWithError) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type fakeSettings struct {
	channelID string
	secret    string
	secretErr error
	baseURL   string
}

func (f *fakeSettings) ChannelID(ctx context.Context) string { return f.channelID }
func (f *fakeSettings) ChannelSecret(ctx context.Context) (string, error) {
	return f.secret, f.secretErr
}
func (f *fakeSettings) APIBaseURL(ctx context.Context) string { return f.baseURL }

func newTestClient(transport http.RoundTripper) (*Client, *fakeSettings) {
	s := &fakeSettings{
		channelID: "1234567890",
		secret:    "test-channel-secret",
		baseURL:   "https://sandbox-api-pay.line.me",
	}
	c := NewClient(s, nil)
	c.httpClient.Transport = transport
	return c, s
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func TestClient_RequestPayment(t *testing.T) {
	ctx := context.Background()

	params := RequestPaymentParams{
		Amount:   8,
		Currency: "TWD",
		OrderID:  "42",
		Products: []Product{
			{ID: "7", Name: "Oolong Tea", Quantity: 2, Price: 4},
		},
		ConfirmURL: "https://shop.example.com/payments/linepay/confirm?transaction_id=uuid-1",
		CancelURL:  "https://shop.example.com/checkout?linepay=cancel",
	}

	t.Run("Success", func(t *testing.T) {
		respBody := `{
			"returnCode": "0000",
			"returnMessage": "Success.",
			"info": {
				"transactionId": 2021121600123456789,
				"paymentUrl": {
					"web": "https://sandbox-web-pay.line.me/web/payment/wait?transactionReserveId=abc",
					"app": "line://pay/payment/abc"
				}
			}
		}`

		c, _ := newTestClient(MockRoundTripper(func(req *http.Request) *http.Response {
			assert.Equal(t, "POST", req.Method)
			assert.Equal(t, "https://sandbox-api-pay.line.me/v3/payments/request", req.URL.String())
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			assert.Equal(t, "1234567890", req.Header.Get("X-LINE-ChannelId"))

			// signature must verify against the exact bytes on the wire
			nonce := req.Header.Get("X-LINE-Authorization-Nonce")
			assert.NotEmpty(t, nonce)
			body, _ := io.ReadAll(req.Body)
			expected := Sign("test-channel-secret", "/v3/payments/request", body, nonce)
			assert.Equal(t, expected, req.Header.Get("X-LINE-Authorization"))

			var payload map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &payload))
			assert.Equal(t, float64(8), payload["amount"])
			assert.Equal(t, "TWD", payload["currency"])
			assert.Equal(t, "42", payload["orderId"])
			_, hasOptions := payload["options"]
			assert.False(t, hasOptions, "capture option must be omitted when auto-capture is off")

			pkgs := payload["packages"].([]interface{})
			require.Len(t, pkgs, 1)
			p := pkgs[0].(map[string]interface{})
			assert.Equal(t, "pkg_42", p["id"])
			assert.Equal(t, float64(8), p["amount"])

			return jsonResponse(http.StatusOK, respBody)
		}))

		res, err := c.RequestPayment(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, "2021121600123456789", res.TransactionID)
		assert.Contains(t, res.RedirectURL, "sandbox-web-pay.line.me")
	})

	t.Run("AutoCaptureFlagIncluded", func(t *testing.T) {
		captured := params
		captured.AutoCapture = true

		c, _ := newTestClient(MockRoundTripper(func(req *http.Request) *http.Response {
			body, _ := io.ReadAll(req.Body)
			var payload map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &payload))
			opts := payload["options"].(map[string]interface{})
			pay := opts["payment"].(map[string]interface{})
			assert.Equal(t, true, pay["capture"])

			return jsonResponse(http.StatusOK, `{
				"returnCode": "0000",
				"info": {"transactionId": 1, "paymentUrl": {"web": "https://pay"}}
			}`)
		}))

		_, err := c.RequestPayment(ctx, captured)
		assert.NoError(t, err)
	})

	t.Run("LocaleIncludedWhenConfigured", func(t *testing.T) {
		localized := params
		localized.Language = "zh-TW"

		c, _ := newTestClient(MockRoundTripper(func(req *http.Request) *http.Response {
			body, _ := io.ReadAll(req.Body)
			var payload map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &payload))
			opts := payload["options"].(map[string]interface{})
			display := opts["display"].(map[string]interface{})
			assert.Equal(t, "zh-TW", display["locale"])
			_, hasPayment := opts["payment"]
			assert.False(t, hasPayment, "payment option must be omitted when auto-capture is off")

			return jsonResponse(http.StatusOK, `{
				"returnCode": "0000",
				"info": {"transactionId": 1, "paymentUrl": {"web": "https://pay"}}
			}`)
		}))

		_, err := c.RequestPayment(ctx, localized)
		assert.NoError(t, err)
	})

	t.Run("ProviderError", func(t *testing.T) {
		c, _ := newTestClient(MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"returnCode":"1199","returnMessage":"Internal request error."}`)
		}))

		_, err := c.RequestPayment(ctx, params)
		require.Error(t, err)

		var provErr *ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, "1199", provErr.Code)
		assert.Equal(t, "Internal request error.", provErr.Message)
		assert.NotEmpty(t, provErr.Raw)
	})

	t.Run("TransportError", func(t *testing.T) {
		c, _ := newTestClient(MockRoundTripperWithError(func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}))

		_, err := c.RequestPayment(ctx, params)
		require.Error(t, err)

		var trErr *TransportError
		assert.ErrorAs(t, err, &trErr)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		c, s := newTestClient(MockRoundTripperWithError(func(req *http.Request) (*http.Response, error) {
			t.Fatal("no HTTP call expected without credentials")
			return nil, nil
		}))
		s.channelID = ""

		_, err := c.RequestPayment(ctx, params)
		require.Error(t, err)

		var cfgErr *ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("SecretDecryptionFailure", func(t *testing.T) {
		c, s := newTestClient(nil)
		s.secretErr = errors.New("bad key")

		_, err := c.RequestPayment(ctx, params)
		var cfgErr *ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("MalformedResponse", func(t *testing.T) {
		c, _ := newTestClient(MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{not json`)
		}))

		_, err := c.RequestPayment(ctx, params)
		var provErr *ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, "malformed provider response", provErr.Message)
	})
}

func TestClient_ConfirmPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		c, _ := newTestClient(MockRoundTripper(func(req *http.Request) *http.Response {
			assert.Equal(t, "https://sandbox-api-pay.line.me/v3/payments/2021121600123456789/confirm", req.URL.String())

			nonce := req.Header.Get("X-LINE-Authorization-Nonce")
			body, _ := io.ReadAll(req.Body)
			expected := Sign("test-channel-secret", "/v3/payments/2021121600123456789/confirm", body, nonce)
			assert.Equal(t, expected, req.Header.Get("X-LINE-Authorization"))

			assert.JSONEq(t, `{"amount":8,"currency":"TWD"}`, string(body))

			return jsonResponse(http.StatusOK, `{"returnCode":"0000","returnMessage":"Success.","info":{"orderId":"42"}}`)
		}))

		resp, err := c.ConfirmPayment(ctx, "2021121600123456789", 8, "TWD")
		require.NoError(t, err)
		assert.True(t, resp.OK())
		assert.NotEmpty(t, resp.Raw)
	})

	t.Run("ProviderError", func(t *testing.T) {
		c, _ := newTestClient(MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"returnCode":"1165","returnMessage":"Transaction has expired."}`)
		}))

		_, err := c.ConfirmPayment(ctx, "123", 8, "TWD")
		var provErr *ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, "1165", provErr.Code)
	})
}

func TestClient_RefundPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("FullRefundOmitsAmount", func(t *testing.T) {
		c, _ := newTestClient(MockRoundTripper(func(req *http.Request) *http.Response {
			assert.Contains(t, req.URL.Path, "/v3/payments/555/refund")
			body, _ := io.ReadAll(req.Body)
			assert.JSONEq(t, `{}`, string(body), "full refund must omit the refundAmount field entirely")

			return jsonResponse(http.StatusOK, `{"returnCode":"0000","info":{"refundTransactionId":987}}`)
		}))

		resp, err := c.RefundPayment(ctx, "555", nil)
		require.NoError(t, err)
		assert.True(t, resp.OK())
	})

	t.Run("PartialRefundCarriesAmount", func(t *testing.T) {
		amount := int64(3)
		c, _ := newTestClient(MockRoundTripper(func(req *http.Request) *http.Response {
			body, _ := io.ReadAll(req.Body)
			assert.JSONEq(t, `{"refundAmount":3}`, string(body))
			return jsonResponse(http.StatusOK, `{"returnCode":"0000"}`)
		}))

		_, err := c.RefundPayment(ctx, "555", &amount)
		assert.NoError(t, err)
	})

	t.Run("ZeroAmountIsStillSent", func(t *testing.T) {
		amount := int64(0)
		c, _ := newTestClient(MockRoundTripper(func(req *http.Request) *http.Response {
			body, _ := io.ReadAll(req.Body)
			assert.JSONEq(t, `{"refundAmount":0}`, string(body))
			return jsonResponse(http.StatusOK, `{"returnCode":"0000"}`)
		}))

		_, err := c.RefundPayment(ctx, "555", &amount)
		assert.NoError(t, err)
	})

	t.Run("ProviderError", func(t *testing.T) {
		c, _ := newTestClient(MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"returnCode":"1155","returnMessage":"Wrong transaction number."}`)
		}))

		_, err := c.RefundPayment(ctx, "555", nil)
		var provErr *ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, "1155", provErr.Code)
	})
}

func TestClient_NonceIsFreshPerCall(t *testing.T) {
	ctx := context.Background()
	seen := map[string]bool{}

	c, _ := newTestClient(MockRoundTripper(func(req *http.Request) *http.Response {
		nonce := req.Header.Get("X-LINE-Authorization-Nonce")
		assert.False(t, seen[nonce], "nonce reused across calls")
		seen[nonce] = true
		return jsonResponse(http.StatusOK, `{"returnCode":"0000"}`)
	}))

	for i := 0; i < 5; i++ {
		_, err := c.ConfirmPayment(ctx, "123", 8, "TWD")
		require.NoError(t, err)
	}
	assert.Len(t, seen, 5)
}
