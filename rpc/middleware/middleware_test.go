package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RequestsPerMinute: 60, Burst: 1}, nil, nil)
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }
	handler := limiter.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusTooManyRequests, res.Code)

	other := httptest.NewRequest(http.MethodPost, "/", nil)
	other.RemoteAddr = "10.0.0.2:4000"
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, other)
	require.Equal(t, http.StatusOK, res.Code)

	now = now.Add(time.Second)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestRateLimiterForwardedHeadersNeedTrustedProxy(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RequestsPerMinute: 60, Burst: 1}, []string{"192.168.1.1"}, nil)

	direct := httptest.NewRequest(http.MethodPost, "/", nil)
	direct.RemoteAddr = "10.0.0.9:1234"
	direct.Header.Set("X-Forwarded-For", "203.0.113.7")
	require.Equal(t, "10.0.0.9", limiter.clientID(direct))

	proxied := httptest.NewRequest(http.MethodPost, "/", nil)
	proxied.RemoteAddr = "192.168.1.1:1234"
	proxied.Header.Set("X-Forwarded-For", "203.0.113.7, 192.168.1.1")
	require.Equal(t, "203.0.113.7", limiter.clientID(proxied))
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.Equal(t, seen, res.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, "abc-123", seen)
}

func TestObservabilityRecordsRequests(t *testing.T) {
	obs := NewObservability(ObservabilityConfig{MetricsPrefix: "test_rpc"}, nil)
	handler := obs.Middleware("rpc")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))

	res := httptest.NewRecorder()
	obs.MetricsHandler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `test_rpc_requests_total{method="POST",route="rpc",status="418"} 1`))
}
