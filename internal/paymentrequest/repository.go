package paymentrequest

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation       = "23505"
	requestIDConstraintName = "payment_requests_request_id_uniq"
	requestColumns          = `id, request_id, user_id, amount, description, requester_email, requester_phone, status, expires_at, created_at`
)

var ErrDuplicateRequestID = errors.New("request id already exists")

type Repository interface {
	Create(ctx context.Context, pr *PaymentRequest) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]PaymentRequest, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Create inserts pr and fills in the generated id and created_at.
func (r *repository) Create(ctx context.Context, pr *PaymentRequest) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payment_requests (
			request_id,
			user_id,
			amount,
			description,
			requester_email,
			requester_phone,
			status,
			expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`,
		pr.RequestID, pr.UserID, pr.Amount, pr.Description, pr.RequesterEmail, pr.RequesterPhone, pr.Status, pr.ExpiresAt,
	).Scan(&pr.ID, &pr.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation && pqErr.Constraint == requestIDConstraintName {
		return ErrDuplicateRequestID
	}
	return err
}

func (r *repository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]PaymentRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM payment_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []PaymentRequest{}
	for rows.Next() {
		var pr PaymentRequest
		if err := rows.Scan(
			&pr.ID, &pr.RequestID, &pr.UserID, &pr.Amount, &pr.Description,
			&pr.RequesterEmail, &pr.RequesterPhone, &pr.Status, &pr.ExpiresAt, &pr.CreatedAt,
		); err != nil {
			return nil, err
		}
		requests = append(requests, pr)
	}
	return requests, rows.Err()
}
