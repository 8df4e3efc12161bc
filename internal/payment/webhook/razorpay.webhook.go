package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"billpay-be/internal/logger"
	"billpay-be/internal/payment"
	"billpay-be/internal/utils"

	"go.uber.org/zap"
)

const (
	SignatureHeader = "X-Razorpay-Signature"
	EventIDHeader   = "X-Razorpay-Event-Id"

	maxBodyBytes = 1 << 20
)

// WebhookPayload is the part of a Razorpay callback the handler reads.
type WebhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *entityEnvelope `json:"payment"`
		Order   *entityEnvelope `json:"order"`
	} `json:"payload"`
}

type entityEnvelope struct {
	Entity *Entity `json:"entity"`
}

// Entity is a payment or order entity. OrderID is empty on order entities.
type Entity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// EventLog is the delivery log used to drop redeliveries.
type EventLog interface {
	SavePaymentWebhook(
		ctx context.Context,
		provider string,
		eventID string,
		eventType string,
		externalID string,
		payload json.RawMessage,
		signatureValid bool,
	) (webhookID int64, alreadyProcessed bool, err error)
	MarkWebhookProcessed(ctx context.Context, webhookID int64, outcome payment.Outcome) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error
}

type StatusApplier interface {
	ApplyWebhookEvent(ctx context.Context, evt payment.WebhookEvent) (payment.Outcome, error)
}

type Handler struct {
	PaymentSvc StatusApplier
	EventLog   EventLog
	secret     string
}

func NewWebhookHandler(paymentSvc StatusApplier, eventLog EventLog, secret string) *Handler {
	if secret == "" {
		logger.L().Warn("RAZORPAY_WEBHOOK_SECRET not set; webhooks will be rejected")
	}
	return &Handler{
		PaymentSvc: paymentSvc,
		EventLog:   eventLog,
		secret:     secret,
	}
}

type webhookResponse struct {
	Success bool            `json:"success"`
	Outcome payment.Outcome `json:"outcome"`
}

type webhookErrorResponse struct {
	Error   string          `json:"error"`
	Outcome payment.Outcome `json:"outcome,omitempty"`
}

// PaymentWebhookHandler verifies and applies a Razorpay status callback.
func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(zap.String("provider", payment.ProviderRazorpay))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn("Failed to read webhook body", zap.Error(err))
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Nothing in the body is trusted before this check.
	if err := payment.VerifySignature(body, r.Header.Get(SignatureHeader), h.secret); err != nil {
		if errors.Is(err, payment.ErrWebhookNotConfigured) {
			log.Error("Webhook rejected: secret not configured")
			utils.WriteJSONError(w, "Webhook verification not configured", http.StatusInternalServerError)
			return
		}
		log.Warn("Webhook rejected: invalid signature")
		utils.WriteJSONError(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("Invalid webhook JSON", zap.Error(err))
		utils.WriteJSONError(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	evt, ok := toWebhookEvent(payload)
	if !ok {
		log.Warn("Webhook without payment or order entity", zap.String("event", payload.Event))
		utils.WriteJSONError(w, "No payment or order entity in payload", http.StatusBadRequest)
		return
	}

	log = log.With(
		zap.String("event", evt.Event),
		zap.String("payment_id", evt.PaymentID),
	)

	eventID := r.Header.Get(EventIDHeader)
	if eventID == "" {
		sum := sha256.Sum256(body)
		eventID = hex.EncodeToString(sum[:])
	}

	webhookID, processed, err := h.EventLog.SavePaymentWebhook(
		ctx,
		payment.ProviderRazorpay,
		eventID,
		evt.Event,
		evt.PaymentID,
		body,
		true,
	)
	if err != nil {
		log.Error("Failed to record webhook", zap.Error(err))
		utils.WriteJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if processed {
		log.Info("Duplicate webhook ignored", zap.String("event_id", eventID))
		utils.WriteJSON(w, http.StatusOK, webhookResponse{Success: true, Outcome: payment.OutcomeDuplicate})
		return
	}

	outcome, err := h.PaymentSvc.ApplyWebhookEvent(ctx, evt)
	if err != nil {
		if markErr := h.EventLog.MarkWebhookFailed(ctx, webhookID, err.Error()); markErr != nil {
			log.Error("Failed to mark webhook failed", zap.Int64("webhook_id", webhookID), zap.Error(markErr))
		}

		status := payment.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error("Webhook processing failed", zap.Error(err))
		} else {
			log.Warn("Webhook not applied", zap.String("outcome", string(outcome)), zap.Error(err))
		}
		utils.WriteJSON(w, status, webhookErrorResponse{Error: payment.PublicMessage(err), Outcome: outcome})
		return
	}

	if err := h.EventLog.MarkWebhookProcessed(ctx, webhookID, outcome); err != nil {
		log.Error("Failed to mark webhook processed", zap.Int64("webhook_id", webhookID), zap.Error(err))
	}

	log.Info("Webhook processed", zap.String("outcome", string(outcome)))
	utils.WriteJSON(w, http.StatusOK, webhookResponse{Success: true, Outcome: outcome})
}

// toWebhookEvent picks the payment entity over the order entity. A payment
// entity is correlated by its order id, the id stored at order creation.
func toWebhookEvent(p WebhookPayload) (payment.WebhookEvent, bool) {
	evt := payment.WebhookEvent{Event: p.Event}

	switch {
	case p.Payload.Payment != nil && p.Payload.Payment.Entity != nil:
		e := p.Payload.Payment.Entity
		evt.PaymentID = e.OrderID
		if evt.PaymentID == "" {
			evt.PaymentID = e.ID
		}
		evt.AmountMinor = e.Amount
		evt.Currency = e.Currency
	case p.Payload.Order != nil && p.Payload.Order.Entity != nil:
		e := p.Payload.Order.Entity
		evt.PaymentID = e.ID
		evt.AmountMinor = e.Amount
		evt.Currency = e.Currency
	default:
		return evt, false
	}

	return evt, evt.PaymentID != ""
}
