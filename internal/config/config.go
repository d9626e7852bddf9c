package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	AppPort       string
	AppEnv        string
	SiteURL       string
	CheckoutURL   string
	ReceiptURL    string
	EncryptionKey string
	JWTSecret     string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:        os.Getenv("DB_HOST"),
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        os.Getenv("DB_NAME"),
		DBPort:        os.Getenv("DB_PORT"),
		AppPort:       os.Getenv("APP_PORT"),
		AppEnv:        os.Getenv("APP_ENV"),
		SiteURL:       os.Getenv("SITE_URL"),
		CheckoutURL:   os.Getenv("CHECKOUT_URL"),
		ReceiptURL:    os.Getenv("RECEIPT_URL"),
		EncryptionKey: os.Getenv("LINEPAY_ENCRYPTION_KEY"),
		JWTSecret:     os.Getenv("SECRET_KEY"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	if cfg.CheckoutURL == "" {
		cfg.CheckoutURL = cfg.SiteURL + "/checkout"
	}
	if cfg.ReceiptURL == "" {
		cfg.ReceiptURL = cfg.SiteURL + "/receipt"
	}

	return cfg
}
