package rateLimit

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vidstream/internal/ratelimit"

	"github.com/stretchr/testify/require"
)

func newHandler(limiter *ratelimit.Limiter) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return ByIP(log, limiter)(next)
}

func TestByIP_ThrottlesAfterLimit(t *testing.T) {
	limiter := ratelimit.New(time.Minute, 2)
	defer limiter.Stop()

	handler := newHandler(limiter)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:1234"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "error", body.Status)
	require.GreaterOrEqual(t, body.RetryAfter, 1)
}

func TestByIP_KeysByForwardedForFirstHop(t *testing.T) {
	limiter := ratelimit.New(time.Minute, 1)
	defer limiter.Stop()

	handler := newHandler(limiter)

	// Two requests from the same proxy but different original clients.
	for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", client+", 10.0.0.1")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// A repeat from the first client is over its own limit.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestByIP_SeparateAddressesSeparateBudgets(t *testing.T) {
	limiter := ratelimit.New(time.Minute, 1)
	defer limiter.Stop()

	handler := newHandler(limiter)

	for _, addr := range []string{"203.0.113.7:1000", "203.0.113.8:1000"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
