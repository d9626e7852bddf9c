package auditlog

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sink := NewSink(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO payment_logs`).
			WithArgs("Payment Started", "info", "payment", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		sink.Record(ctx, "Payment Started", map[string]interface{}{"order_id": 1}, LevelInfo, nil)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CustomLogType", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO payment_logs`).
			WithArgs("Refund Started", "info", "refund", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		sink.Record(ctx, "Refund Started", nil, LevelInfo, map[string]string{"log_type": "refund"})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsertErrorIsSwallowed", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO payment_logs`).
			WillReturnError(errors.New("db down"))

		// must not panic or surface the failure
		sink.Record(ctx, "Payment Failed", map[string]interface{}{"order_id": 2}, LevelError, nil)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnmarshalablePayload", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO payment_logs`).
			WithArgs("Weird Payload", "info", "payment", []byte(`{}`)).
			WillReturnResult(sqlmock.NewResult(1, 1))

		sink.Record(ctx, "Weird Payload", make(chan int), LevelInfo, nil)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	s.Record(context.Background(), "anything", nil, LevelInfo, nil)
}
