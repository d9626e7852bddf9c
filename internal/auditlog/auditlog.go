package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"

	"linepay-gateway/internal/logger"

	"go.uber.org/zap"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Sink records payment audit events. Recording is fire-and-forget: a
// failing sink must never change the outcome of a payment operation.
type Sink interface {
	Record(ctx context.Context, event string, payload interface{}, level Level, tags map[string]string)
}

type dbSink struct {
	db *sql.DB
}

func NewSink(db *sql.DB) Sink {
	return &dbSink{db: db}
}

func (s *dbSink) Record(ctx context.Context, event string, payload interface{}, level Level, tags map[string]string) {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{}`)
	}

	logType := tags["log_type"]
	if logType == "" {
		logType = "payment"
	}

	log := logger.FromCtx(ctx).With(
		zap.String("event", event),
		zap.String("log_type", logType),
		zap.ByteString("payload", body),
	)
	if level == LevelError {
		log.Error("audit event")
	} else {
		log.Info("audit event")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payment_logs (event, level, log_type, payload)
		VALUES ($1, $2, $3, $4)
	`, event, string(level), logType, body)
	if err != nil {
		// swallowed on purpose, the payment flow must not depend on the trail
		logger.FromCtx(ctx).Warn("failed to persist audit event",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// Nop discards events. Used in tests and when no database is wired.
type Nop struct{}

func (Nop) Record(context.Context, string, interface{}, Level, map[string]string) {}
