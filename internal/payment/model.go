package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const (
	DefaultCurrency      = "INR"
	DefaultPaymentMethod = "unknown"
	ProviderRazorpay     = "RAZORPAY"
)

// Payment is one gateway order owned by a user. Amount never changes after
// insert; Status only moves from pending to a terminal value.
type Payment struct {
	ID             string          `json:"id"`
	PaymentID      string          `json:"payment_id"`
	UserID         string          `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Status         Status          `json:"status"`
	PaymentMethod  string          `json:"payment_method"`
	Description    *string         `json:"description"`
	IdempotencyKey *string         `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type CreateOrderInput struct {
	Amount         *decimal.Decimal
	Currency       *string
	Description    *string
	PaymentMethod  *string
	IdempotencyKey string
}

type CreateOrderResult struct {
	OrderID string
	Payment *Payment
	KeyID   string
	Replay  bool
}

// WebhookEvent is the gateway-neutral view of a status callback.
type WebhookEvent struct {
	Event string
	// PaymentID is the gateway order id the payment was stored under.
	PaymentID string
	// AmountMinor and Currency are zero when the callback omits them.
	AmountMinor int64
	Currency    string
}

type Outcome string

const (
	OutcomeUpdated           Outcome = "updated"
	OutcomeUnchanged         Outcome = "unchanged"
	OutcomeIgnored           Outcome = "ignored"
	OutcomeDuplicate         Outcome = "duplicate"
	OutcomeNotFound          Outcome = "not_found"
	OutcomeInvalidTransition Outcome = "invalid_transition"
	OutcomeRejected          Outcome = "rejected"
)

// StatusForEvent maps a gateway event name to the terminal status it implies.
func StatusForEvent(event string) (Status, bool) {
	switch event {
	case "payment.captured", "order.paid":
		return StatusCompleted, true
	case "payment.failed":
		return StatusFailed, true
	default:
		return "", false
	}
}
