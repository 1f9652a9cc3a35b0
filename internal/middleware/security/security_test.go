package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"untrusted peer ignores xff", "203.0.113.7:5000", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy uses first xff", "10.1.2.3:80", "198.51.100.1, 10.0.0.1", "", "198.51.100.1"},
		{"trusted proxy falls back to x-real-ip", "127.0.0.1:80", "garbage", "198.51.100.9", "198.51.100.9"},
		{"no port", "198.51.100.4", "", "", "198.51.100.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/goals", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, d.ExtractClientIP(r))
		})
	}
	assert.Equal(t, int64(1), d.GetMetrics().InvalidIPAttempts)
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector()

	clean := httptest.NewRequest(http.MethodGet, "/api/transaction?period=thisMonth", nil)
	clean.Header.Set("User-Agent", "curl/8.5.0")
	assert.False(t, d.DetectSuspiciousRequest(clean))

	assert.True(t, d.DetectSuspiciousRequest(httptest.NewRequest(http.MethodGet, "/.env", nil)))
	assert.True(t, d.DetectSuspiciousRequest(httptest.NewRequest(http.MethodGet, "/api/cat?file=../../etc/passwd", nil)))

	scanner := httptest.NewRequest(http.MethodGet, "/", nil)
	scanner.Header.Set("User-Agent", "sqlmap/1.7")
	assert.True(t, d.DetectSuspiciousRequest(scanner))

	assert.Equal(t, int64(3), d.GetMetrics().SuspiciousRequests)
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector()
	require.Error(t, d.AddTrustedProxy("nope"))
	require.NoError(t, d.AddTrustedProxy("203.0.113.0/24"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.2:1"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, "198.51.100.1", d.ExtractClientIP(r))
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/goals", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/api/goals", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}
