package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/password-reset/request", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another address has its own bucket.
	req := httptest.NewRequest(http.MethodPost, "/password-reset/request", nil)
	req.RemoteAddr = "10.0.0.2:4000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterSweepsStaleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	clock := time.Now()
	rl.now = func() time.Time { return clock }

	require.True(t, rl.allow("10.0.0.1"))
	rl.mu.Lock()
	require.Len(t, rl.clients, 1)
	rl.mu.Unlock()

	clock = clock.Add(5 * time.Minute)
	require.True(t, rl.allow("10.0.0.2"))

	rl.mu.Lock()
	_, kept := rl.clients["10.0.0.1"]
	rl.mu.Unlock()
	require.False(t, kept, "entries idle past the stale window are dropped")
}
