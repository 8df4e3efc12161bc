package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"billpay-be/internal/utils"

	"golang.org/x/time/rate"
)

// Rate Limit Tiers
const (
	// Order creation (Strict)
	limitStrict = rate.Limit(2)
	burstStrict = 5

	// Gateway webhooks
	limitWebhook = rate.Limit(50)
	burstWebhook = 200

	// General (Default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	// Internal / trusted services
	limitInternal = rate.Limit(100)
	burstInternal = 200
)

const InternalAuthHeader = "X-Service-Auth"

var strictPaths = map[string]bool{
	"/api/payments/orders": true,
}

var webhookPaths = map[string]bool{
	"/api/webhooks/razorpay": true,
}

// visitor holds the rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	visitors = make(map[string]*visitor)
	mu       sync.Mutex
)

// init starts the background cleanup routine.
func init() {
	go cleanupVisitors()
}

// getVisitor retrieves or creates a rate limiter for the given key.
func getVisitor(key string, r rate.Limit, b int) *rate.Limiter {
	mu.Lock()
	defer mu.Unlock()

	v, exists := visitors[key]
	if !exists {
		limiter := rate.NewLimiter(r, b)
		visitors[key] = &visitor{limiter, time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupVisitors removes old entries from the visitors map to prevent memory leaks.
func cleanupVisitors() {
	for {
		time.Sleep(time.Minute)
		evictIdle(3 * time.Minute)
	}
}

func evictIdle(maxIdle time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	for key, v := range visitors {
		if time.Since(v.lastSeen) > maxIdle {
			delete(visitors, key)
		}
	}
}

// RateLimit buckets requests per caller and tier. Callers presenting
// internalKey in X-Service-Auth get the internal tier.
func RateLimit(internalKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit, burst, tier := resolveRateTier(r, internalKey)
			if tier == "internal" {
				setAccessInternal(r)
			}

			// "user:<id>:strict" keeps separate quotas per tier.
			key := fmt.Sprintf("%s:%s", identityKey(r), tier)

			limiter := getVisitor(key, limit, burst)
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				utils.WriteJSONError(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func identityKey(r *http.Request) string {
	// Prefer User ID if authenticated
	if userID, ok := utils.GetUserIDFromContext(r.Context()); ok {
		return "user:" + userID
	}
	if deviceID := r.Header.Get("X-Device-ID"); deviceID != "" {
		return "device:" + deviceID
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// resolveRateTier determines which rate limit policy applies to the request.
func resolveRateTier(r *http.Request, internalKey string) (rate.Limit, int, string) {
	if internalKey != "" && r.Header.Get(InternalAuthHeader) == internalKey {
		return limitInternal, burstInternal, "internal"
	}

	if r.Method == http.MethodPost && webhookPaths[r.URL.Path] {
		return limitWebhook, burstWebhook, "webhook"
	}

	if r.Method == http.MethodPost && strictPaths[r.URL.Path] {
		return limitStrict, burstStrict, "strict"
	}

	return limitGeneral, burstGeneral, "general"
}
