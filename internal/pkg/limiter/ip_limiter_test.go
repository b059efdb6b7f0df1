package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func Test_IP_Rate_Limiter_Per_IP_Buckets(t *testing.T) {
	req := require.New(t)
	l := NewIPRateLimiter(rate.Limit(0.001), 2)
	defer l.Stop()

	a := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	a.RemoteAddr = "10.0.0.1:1234"
	b := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	b.RemoteAddr = "10.0.0.2:1234"

	req.True(l.Allow(a))
	req.True(l.Allow(a))
	req.False(l.Allow(a))

	req.True(l.Allow(b))
	req.Same(l.GetLimiter("10.0.0.1"), l.GetLimiter("10.0.0.1"))
}

func Test_IP_Rate_Limiter_Middleware(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(0.001), 1)
	defer l.Stop()

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}

func Test_Client_IP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	r.RemoteAddr = "192.0.2.4:9999"
	require.Equal(t, "192.0.2.4", ClientIP(r))

	r.RemoteAddr = "192.0.2.5"
	require.Equal(t, "192.0.2.5", ClientIP(r))

	r.RemoteAddr = ""
	require.Equal(t, "unknown_ip", ClientIP(r))
}
