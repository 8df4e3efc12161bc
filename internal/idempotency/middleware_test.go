package idempotency

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"billpay-be/internal/utils"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu        sync.Mutex
	responses map[string]*CachedResponse
	locks     map[string]bool

	getErr     error
	acquireErr error
	released   []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{responses: map[string]*CachedResponse{}, locks: map[string]bool{}}
}

func (m *memoryStore) Get(ctx context.Context, key string) (*CachedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.responses[key], nil
}

func (m *memoryStore) Save(ctx context.Context, key string, resp *CachedResponse, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[key] = resp
	return nil
}

func (m *memoryStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acquireErr != nil {
		return false, m.acquireErr
	}
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *memoryStore) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	m.released = append(m.released, key)
	return nil
}

func newRequest(key, userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/payments/orders", strings.NewReader(`{"amount":500}`))
	if key != "" {
		req.Header.Set(Header, key)
	}
	return req.WithContext(utils.SetUserContext(req.Context(), userID))
}

func countingHandler(calls *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		utils.WriteJSON(w, status, map[string]int{"call": *calls})
	})
}

func TestMiddleware_ReplaysFirstResponse(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := Middleware(store)(countingHandler(&calls, http.StatusOK))

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, newRequest("key-1", "user-1"))
	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Empty(t, w1.Header().Get(ReplayHeader))

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, newRequest("key-1", "user-1"))
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, "true", w2.Header().Get(ReplayHeader))
	assert.Equal(t, "application/json", w2.Header().Get("Content-Type"))
	assert.JSONEq(t, w1.Body.String(), w2.Body.String())

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"user-1:/api/payments/orders:key-1"}, store.released)
}

func TestMiddleware_ClientDisconnectStillCommits(t *testing.T) {
	store := newMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		cancel()
		utils.WriteJSON(w, http.StatusOK, map[string]string{"order_id": "order_1"})
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newRequest("key-1", "user-1").WithContext(
		utils.SetUserContext(ctx, "user-1")))

	scoped := "user-1:/api/payments/orders:key-1"
	assert.Equal(t, []string{scoped}, store.released)
	assert.False(t, store.locks[scoped])
	require.NotNil(t, store.responses[scoped])
	assert.Equal(t, http.StatusOK, store.responses[scoped].StatusCode)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequest("key-1", "user-1"))
	assert.Equal(t, "true", w.Header().Get(ReplayHeader))
	assert.JSONEq(t, `{"order_id":"order_1"}`, w.Body.String())
	assert.Equal(t, 1, calls)
}

func TestMiddleware_KeysAreScopedPerUser(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := Middleware(store)(countingHandler(&calls, http.StatusOK))

	handler.ServeHTTP(httptest.NewRecorder(), newRequest("shared", "user-1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequest("shared", "user-2"))

	assert.Equal(t, 2, calls)
	assert.Empty(t, w.Header().Get(ReplayHeader))
}

func TestMiddleware_InFlightConflict(t *testing.T) {
	store := newMemoryStore()
	store.locks["user-1:/api/payments/orders:busy"] = true
	calls := 0

	w := httptest.NewRecorder()
	Middleware(store)(countingHandler(&calls, http.StatusOK)).ServeHTTP(w, newRequest("busy", "user-1"))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 0, calls)
}

func TestMiddleware_ServerErrorsNotCached(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := Middleware(store)(countingHandler(&calls, http.StatusInternalServerError))

	handler.ServeHTTP(httptest.NewRecorder(), newRequest("k", "user-1"))
	handler.ServeHTTP(httptest.NewRecorder(), newRequest("k", "user-1"))

	assert.Equal(t, 2, calls)
	assert.Empty(t, store.responses)
}

func TestMiddleware_ClientErrorsCached(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := Middleware(store)(countingHandler(&calls, http.StatusBadRequest))

	handler.ServeHTTP(httptest.NewRecorder(), newRequest("k", "user-1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequest("k", "user-1"))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMiddleware_Passthrough(t *testing.T) {
	t.Run("No key", func(t *testing.T) {
		store := newMemoryStore()
		calls := 0
		handler := Middleware(store)(countingHandler(&calls, http.StatusOK))

		handler.ServeHTTP(httptest.NewRecorder(), newRequest("", "user-1"))
		handler.ServeHTTP(httptest.NewRecorder(), newRequest("", "user-1"))
		assert.Equal(t, 2, calls)
		assert.Empty(t, store.responses)
	})

	t.Run("GET ignored", func(t *testing.T) {
		store := newMemoryStore()
		calls := 0
		req := httptest.NewRequest(http.MethodGet, "/api/payments", nil)
		req.Header.Set(Header, "k")

		Middleware(store)(countingHandler(&calls, http.StatusOK)).ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, 1, calls)
		assert.Empty(t, store.responses)
	})

	t.Run("Nil store", func(t *testing.T) {
		calls := 0
		next := countingHandler(&calls, http.StatusOK)
		handler := Middleware(nil)(next)

		handler.ServeHTTP(httptest.NewRecorder(), newRequest("k", "user-1"))
		handler.ServeHTTP(httptest.NewRecorder(), newRequest("k", "user-1"))
		assert.Equal(t, 2, calls)
	})

	t.Run("Store errors fail open", func(t *testing.T) {
		store := newMemoryStore()
		store.getErr = errors.New("redis down")
		calls := 0

		w := httptest.NewRecorder()
		Middleware(store)(countingHandler(&calls, http.StatusOK)).ServeHTTP(w, newRequest("k", "user-1"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, calls)

		store.getErr = nil
		store.acquireErr = errors.New("redis down")
		Middleware(store)(countingHandler(&calls, http.StatusOK)).ServeHTTP(httptest.NewRecorder(), newRequest("k", "user-1"))
		assert.Equal(t, 2, calls)
	})

	t.Run("Key too long", func(t *testing.T) {
		calls := 0
		w := httptest.NewRecorder()
		Middleware(newMemoryStore())(countingHandler(&calls, http.StatusOK)).ServeHTTP(w, newRequest(strings.Repeat("k", 256), "user-1"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, calls)
	})
}

func TestRedisStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	store := NewRedisStore(client)
	ctx := context.Background()

	_, err := store.Get(ctx, "k")
	assert.Error(t, err)

	_, err = store.Acquire(ctx, "k", time.Second)
	assert.Error(t, err)

	calls := 0
	w := httptest.NewRecorder()
	Middleware(store)(countingHandler(&calls, http.StatusOK)).ServeHTTP(w, newRequest("k", "user-1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, calls)
}

func TestNewRedisClient_PingFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	client, err := NewRedisClient(ctx, "127.0.0.1:1", "", 0, nil)
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to ping redis")
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "idempotency:u:/p:k", responseKey("u:/p:k"))
	assert.Equal(t, "lock:idempotency:u:/p:k", lockKey("u:/p:k"))
}
