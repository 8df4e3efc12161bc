package receipt

import (
	"context"
	"errors"
	"fmt"

	"billpay-be/internal/logger"
	"billpay-be/internal/payment"
	"billpay-be/internal/utils"

	"go.uber.org/zap"
)

// PaymentReader resolves a gateway order id to the caller's payment.
type PaymentReader interface {
	GetPayment(ctx context.Context, userID, paymentID string) (*payment.Payment, error)
}

type Service interface {
	// Generate returns the payment's receipt, issuing it first when needed.
	// created reports whether this call issued it.
	Generate(ctx context.Context, userID, paymentID string) (rc *Receipt, created bool, err error)
	Get(ctx context.Context, userID, paymentID string) (*Receipt, error)
}

type service struct {
	repo     Repository
	payments PaymentReader

	newNumber func() string
}

func NewService(repo Repository, payments PaymentReader) Service {
	return &service{
		repo:      repo,
		payments:  payments,
		newNumber: utils.GenerateReceiptNumber,
	}
}

func (s *service) Generate(ctx context.Context, userID, paymentID string) (*Receipt, bool, error) {
	p, err := s.payments.GetPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.repo.GetByPaymentID(ctx, p.ID)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, ErrReceiptNotFound):
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if p.Status != payment.StatusCompleted {
		return nil, false, ErrPaymentNotCompleted
	}

	tax, total := Totals(p.Amount)
	rc := &Receipt{
		UserID:        userID,
		PaymentID:     p.ID,
		ReceiptNumber: s.newNumber(),
		Amount:        p.Amount,
		TaxAmount:     tax,
		TotalAmount:   total,
	}

	err = s.repo.Create(ctx, rc)
	if errors.Is(err, ErrReceiptExists) {
		// Lost a race with a concurrent request for the same payment.
		existing, err := s.repo.GetByPaymentID(ctx, p.ID)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return existing, false, nil
	}
	if err != nil {
		logger.FromCtx(ctx).Error("Failed to save receipt",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	logger.FromCtx(ctx).Info("Receipt issued",
		zap.String("payment_id", paymentID),
		zap.String("receipt_number", rc.ReceiptNumber),
	)
	return rc, true, nil
}

func (s *service) Get(ctx context.Context, userID, paymentID string) (*Receipt, error) {
	p, err := s.payments.GetPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}

	rc, err := s.repo.GetByPaymentID(ctx, p.ID)
	if err != nil && !errors.Is(err, ErrReceiptNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return rc, err
}
