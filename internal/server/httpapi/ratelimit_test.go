package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimit_BurstExhaustion(t *testing.T) {
	handler := rateLimit(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	get := func() int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, get())
	require.Equal(t, http.StatusOK, get())
	assert.Equal(t, http.StatusTooManyRequests, get())
}

func TestRateLimit_PerIP(t *testing.T) {
	handler := rateLimit(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	get := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, get("10.0.0.1:1234"))
	require.Equal(t, http.StatusTooManyRequests, get("10.0.0.1:1234"))

	// an exhausted neighbour does not affect other clients
	assert.Equal(t, http.StatusOK, get("10.0.0.2:1234"))
}
