package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func limitedStatus(h http.Handler, remote, forwarded string) int {
	req := httptest.NewRequest("GET", "/v1/rooms/ABCD", nil)
	req.RemoteAddr = remote
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
}

func TestRateLimiterIgnoresForwardedForByDefault(t *testing.T) {
	h := NewRateLimiter(0.001, 2, false).Middleware(okHandler())

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, limitedStatus(h, "203.0.113.7:5000", fmt.Sprintf("10.0.0.%d", i)))
	}
	assert.Equal(t, http.StatusTooManyRequests, limitedStatus(h, "203.0.113.7:5001", "10.0.0.99"),
		"a rotating header does not buy a fresh bucket")
	assert.Equal(t, http.StatusOK, limitedStatus(h, "198.51.100.1:5000", ""))
}

func TestRateLimiterTrustsProxyWhenConfigured(t *testing.T) {
	h := NewRateLimiter(0.001, 1, true).Middleware(okHandler())

	assert.Equal(t, http.StatusOK, limitedStatus(h, "10.1.1.1:80", "203.0.113.7, 10.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, limitedStatus(h, "10.1.1.1:80", "203.0.113.7"))
	assert.Equal(t, http.StatusOK, limitedStatus(h, "10.1.1.1:80", "198.51.100.1"))
	assert.Equal(t, http.StatusOK, limitedStatus(h, "192.0.2.5:80", ""), "falls back to the remote address")
}
