package receipt

import (
	"context"
	"database/sql"
	"errors"
)

type Repository interface {
	GetByPaymentID(ctx context.Context, paymentID string) (*Receipt, error)
	Create(ctx context.Context, rc *Receipt) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByPaymentID(ctx context.Context, paymentID string) (*Receipt, error) {
	var rc Receipt
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, payment_id, receipt_number, amount, tax_amount, total_amount, created_at
		FROM receipts WHERE payment_id = $1
	`, paymentID).Scan(
		&rc.ID, &rc.UserID, &rc.PaymentID, &rc.ReceiptNumber,
		&rc.Amount, &rc.TaxAmount, &rc.TotalAmount, &rc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// Create inserts rc, or returns ErrReceiptExists when the payment already
// has a receipt.
func (r *repository) Create(ctx context.Context, rc *Receipt) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO receipts (
			user_id,
			payment_id,
			receipt_number,
			amount,
			tax_amount,
			total_amount
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (payment_id) DO NOTHING
		RETURNING id, created_at
	`,
		rc.UserID, rc.PaymentID, rc.ReceiptNumber, rc.Amount, rc.TaxAmount, rc.TotalAmount,
	).Scan(&rc.ID, &rc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrReceiptExists
	}
	return err
}
