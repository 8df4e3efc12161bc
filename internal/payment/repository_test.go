package payment

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paymentRowColumns = []string{
	"id", "payment_id", "user_id", "amount", "currency", "status",
	"payment_method", "description", "idempotency_key", "created_at", "updated_at",
}

func newPaymentRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(paymentRowColumns).
		AddRow("uuid-1", "order_abc123", "user-1", "500.00", "INR", "pending", "upi", "Electricity bill", nil, now, now)
}

func TestRepository_CreatePayment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	now := time.Now()
	key := "idem-1"

	newPayment := func() *Payment {
		return &Payment{
			PaymentID:      "order_abc123",
			UserID:         "user-1",
			Amount:         decimal.NewFromInt(500),
			Currency:       "INR",
			Status:         StatusPending,
			PaymentMethod:  "upi",
			Description:    strPtr("Electricity bill"),
			IdempotencyKey: &key,
		}
	}

	t.Run("Success", func(t *testing.T) {
		p := newPayment()
		mock.ExpectQuery(`INSERT INTO payments`).
			WithArgs(p.PaymentID, p.UserID, p.Amount, p.Currency, p.Status, p.PaymentMethod, "Electricity bill", key).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("uuid-1", now, now))

		err := repo.CreatePayment(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, "uuid-1", p.ID)
		assert.Equal(t, now, p.CreatedAt)
		assert.Equal(t, now, p.UpdatedAt)
	})

	t.Run("NilOptionalFields", func(t *testing.T) {
		p := newPayment()
		p.Description = nil
		p.IdempotencyKey = nil
		mock.ExpectQuery(`INSERT INTO payments`).
			WithArgs(p.PaymentID, p.UserID, p.Amount, p.Currency, p.Status, p.PaymentMethod, nil, nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("uuid-2", now, now))

		assert.NoError(t, repo.CreatePayment(context.Background(), p))
	})

	t.Run("DuplicateIdempotencyKey", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payments`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "payments_user_idempotency_key_uniq"})

		err := repo.CreatePayment(context.Background(), newPayment())
		assert.ErrorIs(t, err, ErrDuplicateIdempotency)
	})

	t.Run("OtherUniqueViolation", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payments`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "payments_payment_id_key"})

		err := repo.CreatePayment(context.Background(), newPayment())
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicateIdempotency)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payments`).
			WillReturnError(errors.New("database error"))

		err := repo.CreatePayment(context.Background(), newPayment())
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByPaymentID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	now := time.Now()

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE payment_id = \$1`).
			WithArgs("order_abc123").
			WillReturnRows(newPaymentRows(now))

		p, err := repo.GetByPaymentID(context.Background(), "order_abc123")
		require.NoError(t, err)
		assert.Equal(t, "uuid-1", p.ID)
		assert.Equal(t, StatusPending, p.Status)
		assert.True(t, decimal.NewFromInt(500).Equal(p.Amount))
		require.NotNil(t, p.Description)
		assert.Equal(t, "Electricity bill", *p.Description)
		assert.Nil(t, p.IdempotencyKey)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE payment_id = \$1`).
			WithArgs("order_missing").
			WillReturnError(sql.ErrNoRows)

		p, err := repo.GetByPaymentID(context.Background(), "order_missing")
		assert.ErrorIs(t, err, ErrPaymentNotFound)
		assert.Nil(t, p)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE payment_id = \$1`).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.GetByPaymentID(context.Background(), "order_abc123")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrPaymentNotFound)
	})
}

func TestRepository_GetByIdempotencyKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE user_id = \$1 AND idempotency_key = \$2`).
			WithArgs("user-1", "idem-1").
			WillReturnRows(newPaymentRows(time.Now()))

		p, err := repo.GetByIdempotencyKey(context.Background(), "user-1", "idem-1")
		require.NoError(t, err)
		assert.Equal(t, "order_abc123", p.PaymentID)
	})

	t.Run("Absent", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE user_id = \$1 AND idempotency_key = \$2`).
			WithArgs("user-1", "idem-2").
			WillReturnError(sql.ErrNoRows)

		p, err := repo.GetByIdempotencyKey(context.Background(), "user-1", "idem-2")
		assert.NoError(t, err)
		assert.Nil(t, p)
	})
}

func TestRepository_GetForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE user_id = \$1 AND payment_id = \$2`).
		WithArgs("user-2", "order_abc123").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetForUser(context.Background(), "user-2", "order_abc123")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE user_id = \$1 AND payment_id = \$2`).
		WithArgs("user-1", "order_abc123").
		WillReturnRows(newPaymentRows(time.Now()))

	p, err := repo.GetForUser(context.Background(), "user-1", "order_abc123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
}

func TestRepository_ListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(paymentRowColumns).
			AddRow("uuid-2", "order_2", "user-1", "99.50", "INR", "completed", "card", nil, nil, now, now).
			AddRow("uuid-1", "order_1", "user-1", "500.00", "INR", "pending", "upi", "Rent", "idem-1", now.Add(-time.Hour), now.Add(-time.Hour))

		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE user_id = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
			WithArgs("user-1", 50, 0).
			WillReturnRows(rows)

		list, err := repo.ListByUser(context.Background(), "user-1", 50, 0)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "order_2", list[0].PaymentID)
		assert.Equal(t, StatusCompleted, list[0].Status)
		assert.Nil(t, list[0].Description)
		require.NotNil(t, list[1].IdempotencyKey)
		assert.Equal(t, "idem-1", *list[1].IdempotencyKey)
	})

	t.Run("Empty", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs("user-9", 10, 20).
			WillReturnRows(sqlmock.NewRows(paymentRowColumns))

		list, err := repo.ListByUser(context.Background(), "user-9", 10, 20)
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	t.Run("ScanError", func(t *testing.T) {
		rows := sqlmock.NewRows(paymentRowColumns).
			AddRow("uuid-1", "order_1", "user-1", "not-a-number", "INR", "pending", "upi", nil, nil, now, now)
		mock.ExpectQuery(`SELECT (.+) FROM payments`).WillReturnRows(rows)

		_, err := repo.ListByUser(context.Background(), "user-1", 50, 0)
		assert.Error(t, err)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM payments`).WillReturnError(errors.New("db down"))

		_, err := repo.ListByUser(context.Background(), "user-1", 50, 0)
		assert.Error(t, err)
	})
}

func TestRepository_UpdateStatusIfPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	query := `UPDATE payments SET status = \$1, updated_at = now\(\) WHERE payment_id = \$2 AND status = 'pending'`

	t.Run("Updated", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(StatusCompleted, "order_abc123").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.UpdateStatusIfPending(context.Background(), "order_abc123", StatusCompleted)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("NoPendingRow", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(StatusFailed, "order_abc123").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.UpdateStatusIfPending(context.Background(), "order_abc123", StatusFailed)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectExec(query).WillReturnError(errors.New("db error"))

		_, err := repo.UpdateStatusIfPending(context.Background(), "order_abc123", StatusCompleted)
		assert.Error(t, err)
	})

	t.Run("RowsAffectedError", func(t *testing.T) {
		mock.ExpectExec(query).WillReturnResult(sqlmock.NewErrorResult(errors.New("no rows info")))

		_, err := repo.UpdateStatusIfPending(context.Background(), "order_abc123", StatusCompleted)
		assert.Error(t, err)
	})
}

func TestRepository_SavePaymentWebhook(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	provider := ProviderRazorpay
	eventID := "evt-1"
	eventType := "payment.captured"
	extID := "order_abc123"
	payload := []byte(`{}`)
	valid := true

	t.Run("FirstDelivery", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_webhooks`).
			WithArgs(provider, eventType, eventID, extID, valid, payload).
			WillReturnRows(sqlmock.NewRows([]string{"id", "processed"}).AddRow(10, false))

		id, processed, err := repo.SavePaymentWebhook(ctx, provider, eventID, eventType, extID, payload, valid)
		assert.NoError(t, err)
		assert.False(t, processed)
		assert.Equal(t, int64(10), id)
	})

	t.Run("AlreadyProcessed", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_webhooks (.+) ON CONFLICT \(provider, event_id\) DO UPDATE`).
			WithArgs(provider, eventType, eventID, extID, valid, payload).
			WillReturnRows(sqlmock.NewRows([]string{"id", "processed"}).AddRow(10, true))

		id, processed, err := repo.SavePaymentWebhook(ctx, provider, eventID, eventType, extID, payload, valid)
		assert.NoError(t, err)
		assert.True(t, processed)
		assert.Equal(t, int64(10), id)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_webhooks`).
			WillReturnError(errors.New("insert failed"))

		_, _, err := repo.SavePaymentWebhook(ctx, provider, eventID, eventType, extID, payload, valid)
		assert.Error(t, err)
	})
}

func TestRepository_MarkWebhook(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE payment_webhooks SET processed_at = now\(\), outcome = \$2`).
		WithArgs(int64(10), "updated").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.MarkWebhookProcessed(ctx, 10, OutcomeUpdated))

	mock.ExpectExec(`UPDATE payment_webhooks SET process_error = \$2`).
		WithArgs(int64(11), "payment not found").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.MarkWebhookFailed(ctx, 11, "payment not found"))

	mock.ExpectExec(`UPDATE payment_webhooks`).WillReturnError(errors.New("db error"))
	assert.Error(t, repo.MarkWebhookProcessed(ctx, 12, OutcomeUnchanged))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
