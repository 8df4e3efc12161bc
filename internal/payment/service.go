package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"billpay-be/internal/events"
	"billpay-be/internal/logger"

	"go.uber.org/zap"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

type EventPublisher interface {
	Publish(ctx context.Context, evt events.PaymentEvent) error
}

type Service interface {
	CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (*CreateOrderResult, error)
	ApplyWebhookEvent(ctx context.Context, evt WebhookEvent) (Outcome, error)
	ListPayments(ctx context.Context, userID string, limit, offset int) ([]Payment, error)
	GetPayment(ctx context.Context, userID, paymentID string) (*Payment, error)
}

type service struct {
	repo      Repository
	gateway   Gateway
	publisher EventPublisher
}

func NewService(repo Repository, gateway Gateway, publisher EventPublisher) Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &service{
		repo:      repo,
		gateway:   gateway,
		publisher: publisher,
	}
}

// CreateOrder validates the request, opens an order with the gateway and
// stores it as a pending payment. A key the user already used returns the
// stored payment without calling the gateway again.
func (s *service) CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (*CreateOrderResult, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	log := logger.FromCtx(ctx).With(zap.String("user_id", userID))

	if err := ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	currency, err := NormalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	description, err := NormalizeDescription(in.Description)
	if err != nil {
		return nil, err
	}

	var idemKey *string
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		idemKey = &key

		existing, err := s.repo.GetByIdempotencyKey(ctx, userID, key)
		if err != nil {
			log.Error("Failed to look up idempotency key", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if existing != nil {
			log.Info("Replaying payment order for idempotency key",
				zap.String("payment_id", existing.PaymentID),
			)
			return s.replay(existing), nil
		}
	}

	if !s.gateway.Configured() {
		log.Error("Payment gateway not configured")
		return nil, ErrGatewayNotConfigured
	}

	amount := in.Amount.Round(2)
	notes := map[string]string{"user_id": userID}
	if description != nil {
		notes["description"] = *description
	}

	receipt := ""
	if idemKey != nil {
		receipt = *idemKey
	}

	order, err := s.gateway.CreateOrder(ctx, OrderRequest{
		AmountMinor: ToMinorUnits(*in.Amount),
		Currency:    currency,
		Receipt:     receipt,
		Notes:       notes,
	})
	if err != nil {
		log.Error("Gateway order creation failed", zap.Error(err))
		return nil, err
	}

	method := DefaultPaymentMethod
	if in.PaymentMethod != nil && strings.TrimSpace(*in.PaymentMethod) != "" {
		method = strings.TrimSpace(*in.PaymentMethod)
	}

	p := &Payment{
		PaymentID:      order.ID,
		UserID:         userID,
		Amount:         amount,
		Currency:       currency,
		Status:         StatusPending,
		PaymentMethod:  method,
		Description:    description,
		IdempotencyKey: idemKey,
	}

	if err := s.repo.CreatePayment(ctx, p); err != nil {
		// The gateway order exists without a local row from here on.
		log.Error("Failed to save payment; gateway order orphaned",
			zap.String("orphaned_order_id", order.ID),
			zap.Error(err),
		)

		if errors.Is(err, ErrDuplicateIdempotency) {
			existing, lookupErr := s.repo.GetByIdempotencyKey(ctx, userID, *idemKey)
			if lookupErr == nil && existing != nil {
				return s.replay(existing), nil
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	log.Info("Payment order created",
		zap.String("payment_id", p.PaymentID),
		zap.String("amount", p.Amount.StringFixed(2)),
		zap.String("currency", p.Currency),
	)

	s.publish(ctx, events.TypePaymentPending, p)

	return &CreateOrderResult{
		OrderID: p.PaymentID,
		Payment: p,
		KeyID:   s.gateway.KeyID(),
	}, nil
}

func (s *service) replay(p *Payment) *CreateOrderResult {
	return &CreateOrderResult{
		OrderID: p.PaymentID,
		Payment: p,
		KeyID:   s.gateway.KeyID(),
		Replay:  true,
	}
}

// ApplyWebhookEvent moves the payment evt refers to into the status the
// event implies. Terminal payments never change; a repeat of the event that
// set the current status reports OutcomeUnchanged.
func (s *service) ApplyWebhookEvent(ctx context.Context, evt WebhookEvent) (Outcome, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("event", evt.Event),
		zap.String("payment_id", evt.PaymentID),
	)

	target, ok := StatusForEvent(evt.Event)
	if !ok {
		log.Info("Ignoring unmapped webhook event")
		return OutcomeIgnored, nil
	}

	p, err := s.repo.GetByPaymentID(ctx, evt.PaymentID)
	if errors.Is(err, ErrPaymentNotFound) {
		log.Warn("Webhook for unknown payment")
		return OutcomeNotFound, err
	}
	if err != nil {
		log.Error("Failed to load payment", zap.Error(err))
		return OutcomeRejected, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if evt.AmountMinor != 0 && evt.AmountMinor != ToMinorUnits(p.Amount) {
		log.Warn("Webhook amount does not match stored payment",
			zap.Int64("webhook_amount_minor", evt.AmountMinor),
			zap.Int64("stored_amount_minor", ToMinorUnits(p.Amount)),
		)
		return OutcomeRejected, fmt.Errorf("%w: webhook %s, stored %s", ErrAmountMismatch,
			FromMinorUnits(evt.AmountMinor).StringFixed(2), p.Amount.StringFixed(2))
	}
	if evt.Currency != "" && !strings.EqualFold(evt.Currency, p.Currency) {
		log.Warn("Webhook currency does not match stored payment",
			zap.String("webhook_currency", evt.Currency),
			zap.String("stored_currency", p.Currency),
		)
		return OutcomeRejected, ErrCurrencyMismatch
	}

	if outcome, err := checkTransition(p.Status, target); outcome != "" {
		log.Info("Webhook left payment as is",
			zap.String("status", string(p.Status)),
			zap.String("outcome", string(outcome)),
		)
		return outcome, err
	}

	updated, err := s.repo.UpdateStatusIfPending(ctx, evt.PaymentID, target)
	if err != nil {
		log.Error("Failed to update payment status", zap.Error(err))
		return OutcomeRejected, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if !updated {
		// Another delivery moved it first.
		current, err := s.repo.GetByPaymentID(ctx, evt.PaymentID)
		if err != nil {
			return OutcomeRejected, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		outcome, err := checkTransition(current.Status, target)
		if outcome == "" {
			outcome, err = OutcomeInvalidTransition, fmt.Errorf("%w: %s is still pending", ErrInvalidTransition, evt.PaymentID)
		}
		return outcome, err
	}

	log.Info("Payment status updated",
		zap.String("from", string(p.Status)),
		zap.String("to", string(target)),
	)

	p.Status = target
	p.UpdatedAt = time.Now().UTC()

	eventType := events.TypePaymentCompleted
	if target == StatusFailed {
		eventType = events.TypePaymentFailed
	}
	s.publish(ctx, eventType, p)

	return OutcomeUpdated, nil
}

// checkTransition returns an empty outcome when current may move to target.
func checkTransition(current, target Status) (Outcome, error) {
	switch {
	case current == target:
		return OutcomeUnchanged, nil
	case current.IsTerminal():
		return OutcomeInvalidTransition, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, target)
	default:
		return "", nil
	}
}

func (s *service) ListPayments(ctx context.Context, userID string, limit, offset int) ([]Payment, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	payments, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		logger.FromCtx(ctx).Error("Failed to list payments", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return payments, nil
}

func (s *service) GetPayment(ctx context.Context, userID, paymentID string) (*Payment, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.GetForUser(ctx, userID, paymentID)
}

func (s *service) publish(ctx context.Context, eventType string, p *Payment) {
	err := s.publisher.Publish(ctx, events.PaymentEvent{
		Type:       eventType,
		PaymentID:  p.PaymentID,
		UserID:     p.UserID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     string(p.Status),
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		logger.FromCtx(ctx).Warn("Payment event not published",
			zap.String("event_type", eventType),
			zap.String("payment_id", p.PaymentID),
			zap.Error(err),
		)
	}
}
