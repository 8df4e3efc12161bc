package paymentrequest

import (
	"encoding/json"
	"errors"
	"net/http"

	"billpay-be/internal/logger"
	"billpay-be/internal/payment"
	"billpay-be/internal/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

type Handler struct {
	Svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{Svc: svc}
}

type listResponse struct {
	Requests []View `json:"requests"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}

// Create handles POST /api/payment-requests.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var in CreateInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		logger.FromCtx(r.Context()).Warn("Invalid payment request body", zap.Error(err))
		utils.WriteJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	view, err := h.Svc.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, view)
}

// List handles GET /api/payment-requests, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := utils.QueryInt(r, "limit", DefaultListLimit, MaxListLimit)
	if limit == 0 {
		limit = DefaultListLimit
	}
	offset := utils.QueryInt(r, "offset", 0, 0)

	views, err := h.Svc.List(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, listResponse{Requests: views, Limit: limit, Offset: offset})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPersistence):
		utils.WriteJSONError(w, "Failed to create payment request", http.StatusInternalServerError)
	case errors.Is(err, ErrLoad):
		utils.WriteJSONError(w, "Failed to fetch payment requests", http.StatusInternalServerError)
	default:
		utils.WriteJSONError(w, payment.PublicMessage(err), payment.HTTPStatus(err))
	}
}
