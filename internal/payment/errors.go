package payment

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidSignature = errors.New("invalid webhook signature")

	ErrInvalidAmount      = errors.New("invalid amount")
	ErrAmountTooLarge     = errors.New("amount exceeds maximum limit")
	ErrInvalidCurrency    = errors.New("invalid currency")
	ErrDescriptionTooLong = errors.New("description must be less than 500 characters")
	ErrInvalidRequest     = errors.New("invalid request body")

	ErrInvalidPayload   = errors.New("invalid payload")
	ErrAmountMismatch   = errors.New("amount mismatch")
	ErrCurrencyMismatch = errors.New("currency mismatch")

	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
	ErrGatewayFailure       = errors.New("failed to create payment order")
	ErrWebhookNotConfigured = errors.New("webhook verification not configured")

	ErrPersistence          = errors.New("failed to save payment")
	ErrDuplicateIdempotency = errors.New("idempotency key already used")
)

// HTTPStatus maps service errors to HTTP status codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized

	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrAmountTooLarge),
		errors.Is(err, ErrInvalidCurrency),
		errors.Is(err, ErrDescriptionTooLong),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidPayload),
		errors.Is(err, ErrAmountMismatch),
		errors.Is(err, ErrCurrencyMismatch):
		return http.StatusBadRequest

	case errors.Is(err, ErrPaymentNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrDuplicateIdempotency):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message shown to API clients for err.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrGatewayNotConfigured):
		return "Payment gateway not configured. Please contact support."
	case errors.Is(err, ErrGatewayFailure):
		return "Failed to create payment order"
	case errors.Is(err, ErrPersistence):
		return "Failed to save payment"
	case HTTPStatus(err) == http.StatusInternalServerError:
		return "Internal server error"
	default:
		return err.Error()
	}
}
