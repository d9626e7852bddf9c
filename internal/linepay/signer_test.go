package linepay

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_Deterministic(t *testing.T) {
	secret := "channel-secret"
	uri := "/v3/payments/request"
	body := []byte(`{"amount":8,"currency":"TWD"}`)
	nonce := "7c9a4f0e-1111-2222-3333-444455556666"

	first := Sign(secret, uri, body, nonce)
	second := Sign(secret, uri, body, nonce)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestSign_OutputIsBase64SHA256(t *testing.T) {
	sig := Sign("s", "/v3/payments/request", []byte("{}"), "n")

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestSign_SensitiveToEveryInput(t *testing.T) {
	secret := "channel-secret"
	uri := "/v3/payments/request"
	body := []byte(`{"amount":8}`)
	nonce := "nonce-1"

	base := Sign(secret, uri, body, nonce)

	t.Run("BodyChange", func(t *testing.T) {
		changed := []byte(`{"amount":9}`)
		assert.NotEqual(t, base, Sign(secret, uri, changed, nonce))
	})

	t.Run("SingleByteBodyChange", func(t *testing.T) {
		changed := make([]byte, len(body))
		copy(changed, body)
		changed[len(changed)-2]++
		assert.NotEqual(t, base, Sign(secret, uri, changed, nonce))
	})

	t.Run("NonceChange", func(t *testing.T) {
		assert.NotEqual(t, base, Sign(secret, uri, body, "nonce-2"))
	})

	t.Run("URIChange", func(t *testing.T) {
		assert.NotEqual(t, base, Sign(secret, "/v3/payments/123/confirm", body, nonce))
	})

	t.Run("SecretChange", func(t *testing.T) {
		assert.NotEqual(t, base, Sign("other-secret", uri, body, nonce))
	})
}
