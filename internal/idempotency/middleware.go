package idempotency

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"billpay-be/internal/logger"
	"billpay-be/internal/utils"

	"go.uber.org/zap"
)

const (
	Header       = "Idempotency-Key"
	ReplayHeader = "Idempotent-Replayed"

	ResponseTTL = 24 * time.Hour
	LockTTL     = 30 * time.Second

	maxKeyLength = 255
)

// responseWriter captures the response so it can be cached.
type responseWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Middleware replays the first completed response for a caller's
// Idempotency-Key and rejects a second request while the first is running.
// It must run after authentication: keys are scoped per user. A nil store
// disables it, and store errors fail open.
func Middleware(store Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(Header)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLength {
				utils.WriteJSONError(w, "Idempotency-Key is too long", http.StatusBadRequest)
				return
			}

			ctx := r.Context()
			userID, _ := utils.GetUserIDFromContext(ctx)
			scoped := userID + ":" + r.URL.Path + ":" + key
			log := logger.FromCtx(ctx).With(zap.String("idempotency_key", key))

			cached, err := store.Get(ctx, scoped)
			if err != nil {
				log.Warn("Idempotency lookup failed; continuing without replay", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if cached != nil {
				log.Info("Replaying cached response", zap.Int("status", cached.StatusCode))
				for k, v := range cached.Headers {
					for _, val := range v {
						w.Header().Add(k, val)
					}
				}
				w.Header().Set(ReplayHeader, "true")
				w.WriteHeader(cached.StatusCode)
				_, _ = w.Write(cached.Body)
				return
			}

			acquired, err := store.Acquire(ctx, scoped, LockTTL)
			if err != nil {
				log.Warn("Idempotency lock failed; continuing without lock", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				utils.WriteJSONError(w, "A request with this Idempotency-Key is already in progress", http.StatusConflict)
				return
			}
			// The lock and the cached response must outlive a client disconnect.
			bg := context.WithoutCancel(ctx)
			defer func() {
				if err := store.Release(bg, scoped); err != nil {
					log.Warn("Failed to release idempotency lock", zap.Error(err))
				}
			}()

			rw := &responseWriter{ResponseWriter: w}
			next.ServeHTTP(rw, r)

			// Server errors are not cached so the client can retry.
			if rw.status >= 200 && rw.status < 500 {
				resp := &CachedResponse{
					StatusCode: rw.status,
					Body:       rw.body.Bytes(),
					Headers:    cacheableHeaders(rw.Header()),
				}
				if err := store.Save(bg, scoped, resp, ResponseTTL); err != nil {
					log.Warn("Failed to cache idempotent response", zap.Error(err))
				}
			}
		})
	}
}

func cacheableHeaders(h http.Header) http.Header {
	out := make(http.Header)
	if ct := h.Get("Content-Type"); ct != "" {
		out.Set("Content-Type", ct)
	}
	return out
}
