package middleware

import (
	"context"
	"net/http"
	"time"

	"billpay-be/internal/logger"
	"billpay-be/internal/utils"

	"go.uber.org/zap"
)

// responseRecorder lets us capture HTTP status codes
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// accessInfo is filled in by inner middleware that learns more about the
// request than the access logger can see from its own request copy.
type accessInfo struct {
	userID   string
	internal bool
}

type accessInfoKey struct{}

func setAccessUser(r *http.Request, userID string) {
	if info, ok := r.Context().Value(accessInfoKey{}).(*accessInfo); ok {
		info.userID = userID
	}
}

func setAccessInternal(r *http.Request) {
	if info, ok := r.Context().Value(accessInfoKey{}).(*accessInfo); ok {
		info.internal = true
	}
}

// LoggingMiddleware writes one structured access log line per request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		info := &accessInfo{}
		r = r.WithContext(context.WithValue(r.Context(), accessInfoKey{}, info))

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		userID := info.userID
		if userID == "" {
			userID, _ = utils.GetUserIDFromContext(r.Context())
		}

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.statusCode),
			zap.Int("bytes", rec.bytes),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_ip", clientIP(r)),
		}
		if userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		if info.internal {
			fields = append(fields, zap.Bool("internal", true))
		}

		log := logger.FromCtx(r.Context())
		switch {
		case rec.statusCode >= http.StatusInternalServerError:
			log.Error("HTTP Request", fields...)
		case rec.statusCode >= http.StatusBadRequest:
			log.Warn("HTTP Request", fields...)
		default:
			log.Info("HTTP Request", fields...)
		}
	})
}
