package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNegotiator_IsAllowed(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name   string
		cfg    CORSConfig
		origin string
		want   bool
	}{
		{"production default", CORSConfig{}, "https://msc.edu.vn", true},
		{"production default www", CORSConfig{}, "https://www.msc.edu.vn", true},
		{"case-insensitive host", CORSConfig{}, "https://MSC.edu.vn", true},
		{"unknown origin", CORSConfig{}, "https://evil.example.com", false},
		{"suffix attack", CORSConfig{}, "https://msc.edu.vn.evil.com", false},
		{"substring attack", CORSConfig{}, "https://evilmsc.edu.vn", false},
		{"scheme mismatch", CORSConfig{}, "http://msc.edu.vn", false},
		{"empty origin", CORSConfig{}, "", false},
		{"localhost in production", CORSConfig{}, "http://localhost:3000", false},
		{"localhost in development", CORSConfig{Development: true}, "http://localhost:5173", true},
		{"loopback ip in development", CORSConfig{Development: true}, "http://127.0.0.1:3001", true},
		{"ipv6 loopback in development", CORSConfig{Development: true}, "http://[::1]:3000", true},
		{"development keeps defaults", CORSConfig{Development: true}, "https://msc.edu.vn", true},
		{"development still rejects others", CORSConfig{Development: true}, "https://evil.example.com", false},
		{
			name:   "configured list replaces defaults",
			cfg:    CORSConfig{AllowedOrigins: []string{"https://admin.msc.edu.vn"}},
			origin: "https://msc.edu.vn",
			want:   false,
		},
		{
			name:   "development adds configured origins to defaults",
			cfg:    CORSConfig{AllowedOrigins: []string{"https://staging.msc.edu.vn"}, Development: true},
			origin: "https://msc.edu.vn",
			want:   true,
		},
		{
			name:   "development allows configured origin",
			cfg:    CORSConfig{AllowedOrigins: []string{"https://staging.msc.edu.vn"}, Development: true},
			origin: "https://staging.msc.edu.vn",
			want:   true,
		},
		{
			name:   "configured exact entry with trailing slash",
			cfg:    CORSConfig{AllowedOrigins: []string{"https://admin.msc.edu.vn/"}},
			origin: "https://admin.msc.edu.vn",
			want:   true,
		},
		{
			name:   "wildcard subdomain",
			cfg:    CORSConfig{AllowedOrigins: []string{"https://*.msc.edu.vn"}},
			origin: "https://cms.msc.edu.vn",
			want:   true,
		},
		{
			name:   "wildcard does not match apex",
			cfg:    CORSConfig{AllowedOrigins: []string{"https://*.msc.edu.vn"}},
			origin: "https://msc.edu.vn",
			want:   false,
		},
		{
			name:   "wildcard does not match lookalike",
			cfg:    CORSConfig{AllowedOrigins: []string{"https://*.msc.edu.vn"}},
			origin: "https://evilmsc.edu.vn",
			want:   false,
		},
		{
			name:   "wildcard port must match",
			cfg:    CORSConfig{AllowedOrigins: []string{"https://*.msc.edu.vn:8443"}},
			origin: "https://cms.msc.edu.vn",
			want:   false,
		},
		{
			name:   "wildcard with port",
			cfg:    CORSConfig{AllowedOrigins: []string{"https://*.msc.edu.vn:8443"}},
			origin: "https://cms.msc.edu.vn:8443",
			want:   true,
		},
		{
			name:   "star honored in development",
			cfg:    CORSConfig{AllowedOrigins: []string{"*"}, Development: true},
			origin: "https://anything.example",
			want:   true,
		},
		{
			name:   "star ignored in production",
			cfg:    CORSConfig{AllowedOrigins: []string{"*"}},
			origin: "https://anything.example",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNegotiator(tt.cfg, logger)
			assert.Equal(t, tt.want, n.IsAllowed(tt.origin))
		})
	}
}

func TestParseWildcard(t *testing.T) {
	w, ok := parseWildcard("https://*.Example.com:8080")
	assert.True(t, ok)
	assert.Equal(t, wildcardOrigin{scheme: "https", suffix: ".example.com", port: "8080"}, w)

	for _, bad := range []string{"https://*.", "://*.x.com", "https://*.x.com:port", "https://*.*.x.com"} {
		_, ok := parseWildcard(bad)
		assert.False(t, ok, bad)
	}
}

func TestNegotiator_ComputeHeaders(t *testing.T) {
	n := NewNegotiator(CORSConfig{}, zap.NewNop())

	t.Run("allowed origin is echoed", func(t *testing.T) {
		h := n.ComputeHeaders("https://msc.edu.vn")

		assert.Equal(t, "https://msc.edu.vn", h.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, AllowMethods, h.Get("Access-Control-Allow-Methods"))
		assert.Equal(t, AllowHeaders, h.Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "true", h.Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "86400", h.Get("Access-Control-Max-Age"))
		assert.Equal(t, "Origin", h.Get("Vary"))
	})

	t.Run("disallowed origin gets no allow-origin", func(t *testing.T) {
		h := n.ComputeHeaders("https://evil.example.com")

		assert.Empty(t, h.Values("Access-Control-Allow-Origin"))
		assert.Equal(t, AllowMethods, h.Get("Access-Control-Allow-Methods"))
	})

	t.Run("never wildcard with credentials", func(t *testing.T) {
		dev := NewNegotiator(CORSConfig{AllowedOrigins: []string{"*"}, Development: true}, zap.NewNop())
		h := dev.ComputeHeaders("https://a.example")
		assert.Equal(t, "https://a.example", h.Get("Access-Control-Allow-Origin"))
		assert.NotEqual(t, "*", h.Get("Access-Control-Allow-Origin"))
	})

	t.Run("custom max age", func(t *testing.T) {
		h := NewNegotiator(CORSConfig{MaxAge: 600}, zap.NewNop()).ComputeHeaders("")
		assert.Equal(t, "600", h.Get("Access-Control-Max-Age"))
	})
}

func TestNegotiator_Handler(t *testing.T) {
	n := NewNegotiator(CORSConfig{}, zap.NewNop())

	t.Run("preflight short-circuits", func(t *testing.T) {
		called := false
		handler := n.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		req := httptest.NewRequest(http.MethodOptions, "/api/images/upload", nil)
		req.Header.Set("Origin", "https://msc.edu.vn")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
		assert.Equal(t, "https://msc.edu.vn", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("bare OPTIONS without origin still answered", func(t *testing.T) {
		handler := n.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/nowhere", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, AllowMethods, w.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("headers present on error responses", func(t *testing.T) {
		handler := n.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		req.Header.Set("Origin", "https://www.msc.edu.vn")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "https://www.msc.edu.vn", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed origin passes through without allow-origin", func(t *testing.T) {
		handler := n.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}
