package linepay

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNegativeAmount = errors.New("amount must not be negative")

// ConfigError means the merchant credentials are missing or unusable.
// Not retryable, an admin has to fix the channel settings.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "linepay: configuration error: " + e.Reason
}

// TransportError means the HTTP call itself did not complete.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("linepay: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProviderError means the call completed but LINE Pay answered with a
// non-success business code. Raw carries the verbatim response body.
type ProviderError struct {
	Code    string
	Message string
	Raw     json.RawMessage
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("linepay: provider returned code %s", e.Code)
	}
	return fmt.Sprintf("linepay: provider returned code %s: %s", e.Code, e.Message)
}
