package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "shop")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("SITE_URL", "https://shop.example.com")
	t.Setenv("CHECKOUT_URL", "")
	t.Setenv("RECEIPT_URL", "")

	cfg := LoadConfig()

	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "https://shop.example.com/checkout", cfg.CheckoutURL)
	assert.Equal(t, "https://shop.example.com/receipt", cfg.ReceiptURL)
}

func TestLoadConfigExplicitURLs(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("SITE_URL", "https://shop.example.com")
	t.Setenv("CHECKOUT_URL", "https://shop.example.com/cart/checkout")
	t.Setenv("RECEIPT_URL", "https://shop.example.com/orders/receipt")

	cfg := LoadConfig()

	assert.Equal(t, "https://shop.example.com/cart/checkout", cfg.CheckoutURL)
	assert.Equal(t, "https://shop.example.com/orders/receipt", cfg.ReceiptURL)
}
