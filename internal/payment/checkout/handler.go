package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"billpay-be/internal/logger"
	"billpay-be/internal/payment"
	"billpay-be/internal/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayHeader         = "Idempotent-Replayed"

	maxBodyBytes = 64 << 10
)

type Handler struct {
	PaymentSvc payment.Service
}

func NewHandler(paymentSvc payment.Service) *Handler {
	return &Handler{PaymentSvc: paymentSvc}
}

type createOrderRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	Currency      *string          `json:"currency"`
	Description   *string          `json:"description"`
	PaymentMethod *string          `json:"paymentMethod"`
}

type createOrderResponse struct {
	Success bool             `json:"success"`
	OrderID string           `json:"orderId"`
	Payment *payment.Payment `json:"payment"`
	KeyID   string           `json:"keyId"`
}

type listResponse struct {
	Payments []payment.Payment `json:"payments"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// CreateOrder handles POST /api/payments/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		logger.FromCtx(r.Context()).Warn("Invalid create order body", zap.Error(err))
		utils.WriteJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.PaymentSvc.CreateOrder(r.Context(), userID, payment.CreateOrderInput{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if res.Replay {
		w.Header().Set(ReplayHeader, "true")
	}
	utils.WriteJSON(w, http.StatusOK, createOrderResponse{
		Success: true,
		OrderID: res.OrderID,
		Payment: res.Payment,
		KeyID:   res.KeyID,
	})
}

// ListPayments handles GET /api/payments, newest first.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := utils.QueryInt(r, "limit", payment.DefaultListLimit, payment.MaxListLimit)
	if limit == 0 {
		limit = payment.DefaultListLimit
	}
	offset := utils.QueryInt(r, "offset", 0, 0)

	payments, err := h.PaymentSvc.ListPayments(r.Context(), userID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, listResponse{Payments: payments, Limit: limit, Offset: offset})
}

// GetPayment handles GET /api/payments/{paymentId}.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	p, err := h.PaymentSvc.GetPayment(r.Context(), userID, r.PathValue("paymentId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, p)
}

// writeServiceError is the single place service errors become responses.
// Gateway failures carry the provider's answer in details.
func writeServiceError(w http.ResponseWriter, err error) {
	status := payment.HTTPStatus(err)
	msg := payment.PublicMessage(err)

	var gwErr *payment.GatewayError
	switch {
	case errors.As(err, &gwErr):
		utils.WriteJSONErrorDetails(w, msg, status, gwErr.Body)
	case errors.Is(err, payment.ErrGatewayFailure):
		utils.WriteJSONErrorDetails(w, msg, status, []byte(err.Error()))
	default:
		utils.WriteJSONError(w, msg, status)
	}
}
