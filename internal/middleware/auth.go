package middleware

import (
	"net/http"

	"billpay-be/internal/auth"
	"billpay-be/internal/logger"
	"billpay-be/internal/utils"

	"go.uber.org/zap"
)

type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// RequireAuth rejects requests without a valid bearer token and puts the
// caller's identity into the request context.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := verifier.Verify(auth.ExtractAccessToken(r))
			if err != nil {
				logger.FromCtx(r.Context()).Debug("Rejected unauthenticated request",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				utils.WriteJSONError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			setAccessUser(r, identity.UserID)
			ctx := utils.SetUserContext(r.Context(), identity.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
