package paymentrequest

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending = "pending"

	DefaultDescription = "Payment Request"
	ExpiryWindow       = 7 * 24 * time.Hour
)

// PaymentRequest is a collection request a user shares as a link or UPI
// payload.
type PaymentRequest struct {
	ID             string          `json:"id"`
	RequestID      string          `json:"request_id"`
	UserID         string          `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	RequesterEmail *string         `json:"requester_email"`
	RequesterPhone *string         `json:"requester_phone"`
	Status         string          `json:"status"`
	ExpiresAt      time.Time       `json:"expires_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

type CreateInput struct {
	Amount         *decimal.Decimal `json:"amount"`
	Description    string           `json:"description" validate:"omitempty,max=500"`
	RequesterEmail string           `json:"requesterEmail" validate:"omitempty,email,max=255"`
	RequesterPhone string           `json:"requesterPhone" validate:"omitempty,phone"`
}

// View is a stored request plus the links derived from it.
type View struct {
	*PaymentRequest
	PaymentLink string `json:"paymentLink"`
	UPILink     string `json:"upiLink"`
}
