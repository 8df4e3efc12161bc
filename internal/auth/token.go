package auth

import (
	"net/http"
	"strings"
)

// ExtractAccessToken returns the bearer token from the Authorization header,
// or "" when the header is missing or uses another scheme.
func ExtractAccessToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
