package receipt

import (
	"errors"
	"net/http"

	"billpay-be/internal/payment"
	"billpay-be/internal/utils"
)

type Handler struct {
	Svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{Svc: svc}
}

// Generate handles POST /api/payments/{paymentId}/receipt.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rc, created, err := h.Svc.Generate(r.Context(), userID, r.PathValue("paymentId"))
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.WriteJSON(w, status, rc)
}

// Get handles GET /api/payments/{paymentId}/receipt. ?format=text returns
// the downloadable plain-text rendering.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rc, err := h.Svc.Get(r.Context(), userID, r.PathValue("paymentId"))
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="receipt-`+rc.ReceiptNumber+`.txt"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(rc.Text()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, rc)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrReceiptNotFound):
		utils.WriteJSONError(w, "Receipt not found", http.StatusNotFound)
	case errors.Is(err, ErrPaymentNotCompleted):
		utils.WriteJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrPersistence):
		utils.WriteJSONError(w, "Failed to generate receipt", http.StatusInternalServerError)
	default:
		utils.WriteJSONError(w, payment.PublicMessage(err), payment.HTTPStatus(err))
	}
}
