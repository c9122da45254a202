package appMiddleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiterMiddleware(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 2, slog.Default())
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1111"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:2222"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:3333"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1111"))
}

func TestIPRateLimiterSweep(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1, slog.Default())
	start := time.Now()
	limiter.now = func() time.Time { return start }
	limiter.Allow("10.0.0.1")

	limiter.now = func() time.Time { return start.Add(visitorIdleTTL + time.Second) }
	limiter.Allow("10.0.0.2")

	assert.Equal(t, 1, limiter.Sweep())
	assert.Len(t, limiter.visitors, 1)
}
