package utils

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type ErrorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteJSONError(w http.ResponseWriter, message string, code int) {
	WriteJSON(w, code, ErrorBody{Error: message})
}

// WriteJSONErrorDetails writes an error body carrying upstream details. Raw
// JSON details are embedded as-is, anything else is encoded normally.
func WriteJSONErrorDetails(w http.ResponseWriter, message string, code int, details []byte) {
	body := ErrorBody{Error: message}
	if len(details) > 0 {
		if json.Valid(details) {
			body.Details = json.RawMessage(details)
		} else {
			body.Details = string(details)
		}
	}
	WriteJSON(w, code, body)
}

// StrPtr returns nil for an empty string so optional columns store NULL.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// QueryInt parses a positive integer query parameter, falling back to def
// when absent or invalid, and clamps it to max when max > 0.
func QueryInt(r *http.Request, key string, def, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
