package payment

import (
	"context"
	"fmt"
)

// Gateway creates orders with the external payment provider. Implementations
// own the provider's wire format.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// Configured reports whether credentials are present.
	Configured() bool
	// KeyID is the public key handed to the client-side checkout SDK.
	KeyID() string
}

type OrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

type Order struct {
	ID          string
	AmountMinor int64
	Currency    string
	Receipt     string
	Status      string
}

// GatewayError is a non-2xx answer from the provider.
type GatewayError struct {
	StatusCode int
	Body       []byte
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("razorpay error: status %d: %s", e.StatusCode, string(e.Body))
}

func (e *GatewayError) Unwrap() error {
	return ErrGatewayFailure
}
