package settings

import (
	"context"
	"errors"

	"linepay-gateway/internal/logger"

	"go.uber.org/zap"
)

type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

const (
	sandboxBaseURL    = "https://sandbox-api-pay.line.me"
	productionBaseURL = "https://api-pay.line.me"
)

var ErrIncompleteCredentials = errors.New("settings: channel id and channel secret are required")

// defaults mirror a freshly installed gateway: inactive, sandbox mode,
// auto-capture on.
var defaults = map[string]string{
	"is_active":           "no",
	"payment_mode":        string(ModeTest),
	"test_channel_id":     "",
	"test_channel_secret": "",
	"live_channel_id":     "",
	"live_channel_secret": "",
	"test_is_encrypted":   "no",
	"live_is_encrypted":   "no",
	"payment_language":    "zh-TW",
	"auto_capture":        "yes",
}

// Service resolves LINE Pay merchant settings against the option store,
// decrypting the channel secret for the active mode on read.
type Service struct {
	repo Repository
	key  *[32]byte
}

func NewService(repo Repository, encryptionKey string) (*Service, error) {
	key, err := ParseKey(encryptionKey)
	if err != nil {
		return nil, err
	}
	return &Service{repo: repo, key: key}, nil
}

// Get returns a raw option value, falling back to the default.
func (s *Service) Get(ctx context.Context, key string) string {
	v, err := s.repo.GetOption(ctx, optionKey(key))
	if err != nil {
		logger.FromCtx(ctx).Warn("failed reading option, using default",
			zap.String("key", key), zap.Error(err))
		return defaults[key]
	}
	if v == "" {
		return defaults[key]
	}
	return v
}

func (s *Service) IsActive(ctx context.Context) bool {
	return s.Get(ctx, "is_active") == "yes"
}

func (s *Service) Mode(ctx context.Context) Mode {
	if Mode(s.Get(ctx, "payment_mode")) == ModeLive {
		return ModeLive
	}
	return ModeTest
}

func (s *Service) AutoCapture(ctx context.Context) bool {
	return s.Get(ctx, "auto_capture") == "yes"
}

func (s *Service) PaymentLanguage(ctx context.Context) string {
	return s.Get(ctx, "payment_language")
}

func (s *Service) ChannelID(ctx context.Context) string {
	return s.Get(ctx, string(s.Mode(ctx))+"_channel_id")
}

// ChannelSecret returns the decrypted channel secret for the active
// mode. Plaintext values are passed through so a half-migrated store
// keeps working.
func (s *Service) ChannelSecret(ctx context.Context) (string, error) {
	mode := string(s.Mode(ctx))
	secret := s.Get(ctx, mode+"_channel_secret")
	if secret == "" {
		return "", nil
	}
	if s.Get(ctx, mode+"_is_encrypted") != "yes" {
		return secret, nil
	}
	return OpenSecret(s.key, secret)
}

func (s *Service) APIBaseURL(ctx context.Context) string {
	if s.Mode(ctx) == ModeLive {
		return productionBaseURL
	}
	return sandboxBaseURL
}

// SaveChannelSecret seals and stores the secret for the given mode.
func (s *Service) SaveChannelSecret(ctx context.Context, mode Mode, secret string) error {
	sealed, err := SealSecret(s.key, secret)
	if err != nil {
		return err
	}
	if err := s.repo.SetOption(ctx, optionKey(string(mode)+"_channel_secret"), sealed); err != nil {
		return err
	}
	return s.repo.SetOption(ctx, optionKey(string(mode)+"_is_encrypted"), "yes")
}

// Validate checks that the active mode has a usable credential pair.
func (s *Service) Validate(ctx context.Context) error {
	id := s.ChannelID(ctx)
	secret, err := s.ChannelSecret(ctx)
	if err != nil {
		return err
	}
	if id == "" || secret == "" {
		return ErrIncompleteCredentials
	}
	return nil
}

// optionKey namespaces gateway options in the shared store_options table.
func optionKey(key string) string {
	return "linepay_" + key
}
