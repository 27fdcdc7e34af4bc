package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_DisabledByDefault(t *testing.T) {
	t.Parallel()

	mw := NewRateLimitMiddleware(0)
	assert.False(t, mw.Enabled())

	handler := mw.Handler(okHandler())
	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimitMiddleware_LimitsPerClient(t *testing.T) {
	t.Parallel()

	mw := NewRateLimitMiddleware(1)
	fixed := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	mw.now = func() time.Time { return fixed }
	handler := mw.Handler(okHandler())

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":40000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1").Code)

	limited := send("198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), `"RATE_LIMITED"`)

	assert.Equal(t, http.StatusOK, send("198.51.100.2").Code)

	fixed = fixed.Add(time.Minute)
	assert.Equal(t, http.StatusOK, send("198.51.100.1").Code)
}

func TestRateLimitMiddleware_IgnoresRotatedForwardedFor(t *testing.T) {
	t.Parallel()

	mw := NewRateLimitMiddleware(1)
	fixed := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	mw.now = func() time.Time { return fixed }
	handler := mw.Handler(okHandler())

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/verify-code", nil)
		req.RemoteAddr = "198.51.100.7:40000"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.3"))
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded header ignored", headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, remote: "10.0.0.2:5000", want: "10.0.0.2"},
		{name: "real ip header ignored", headers: map[string]string{"X-Real-IP": "203.0.113.10"}, remote: "10.0.0.2:5000", want: "10.0.0.2"},
		{name: "remote addr", remote: "192.0.2.4:1234", want: "192.0.2.4"},
		{name: "remote without port", remote: "192.0.2.5", want: "192.0.2.5"},
		{name: "nothing", remote: "", want: "unknown"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
