package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tappo/tappo/internal/config"
	"github.com/tappo/tappo/internal/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zap.DebugLevel},
		{"info", zap.InfoLevel},
		{"warn", zap.WarnLevel},
		{"error", zap.ErrorLevel},
		{"verbose", zap.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := NewLogger(tt.level, "json")
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zap.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := NewRecoveryMiddleware(zap.NewNop()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analytics", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "internal server error", body["error"])
}

func TestRecoveryMiddleware_AfterHeadersWritten(t *testing.T) {
	h := NewRecoveryMiddleware(zap.NewNop()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analytics", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestRecoveryMiddleware_AbortHandlerPropagates(t *testing.T) {
	h := NewRecoveryMiddleware(zap.NewNop()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestQuietPath(t *testing.T) {
	assert.True(t, quietPath("/health"))
	assert.True(t, quietPath("/metrics"))
	assert.True(t, quietPath("/api/events"))
	assert.True(t, quietPath("/n/door"))
	assert.False(t, quietPath("/api/analytics"))
	assert.False(t, quietPath("/api/reviews/sync"))
}

func TestLoggingMiddleware_RecordsRoutePattern(t *testing.T) {
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(zap.NewNop(), m).Handler)
	r.Get("/n/{code}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	})

	for _, code := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/n/"+code, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/n/{code}", "302")))
}

func TestAuthMiddleware(t *testing.T) {
	cfg := config.AuthConfig{
		Enabled:   true,
		MasterKey: "secret",
		SkipPaths: []string{"/health", "/api/events", "/n/"},
	}
	h := NewAuthMiddleware(cfg, zap.NewNop()).Handler(okHandler)

	tests := []struct {
		name   string
		path   string
		header string
		bearer string
		want   int
	}{
		{"public ingestion", "/api/events", "", "", http.StatusOK},
		{"redirect", "/n/door", "", "", http.StatusOK},
		{"missing key", "/api/analytics", "", "", http.StatusUnauthorized},
		{"wrong key", "/api/analytics", "nope", "", http.StatusUnauthorized},
		{"wrong bearer", "/api/analytics", "", "nope", http.StatusUnauthorized},
		{"valid header", "/api/analytics", "secret", "", http.StatusOK},
		{"valid bearer", "/api/analytics", "", "secret", http.StatusOK},
		{"valid query", "/api/analytics?api_key=secret", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderName, tt.header)
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, false, decodeEnvelope(t, rec)["ok"])
				assert.Equal(t, "ApiKey", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}

}

func TestAuthMiddleware_Disabled(t *testing.T) {
	h := NewAuthMiddleware(config.AuthConfig{Enabled: false}, zap.NewNop()).Handler(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analytics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware_SeparateBuckets(t *testing.T) {
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	cfg := config.RateLimitConfig{
		Enabled:     true,
		PublicRPS:   0.0001,
		PublicBurst: 100,
		MgmtRPS:     0.0001,
		MgmtBurst:   2,
	}
	h := NewRateLimitMiddleware(cfg, zap.NewNop(), m).Handler(okHandler)

	do := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("/api/analytics"))
	assert.Equal(t, http.StatusOK, do("/api/analytics"))
	assert.Equal(t, http.StatusTooManyRequests, do("/api/analytics"))

	// the public bucket is untouched by management traffic
	assert.Equal(t, http.StatusOK, do("/api/events"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitHits.WithLabelValues(BucketMgmt)))
}

func TestRateLimitMiddleware_PerIP(t *testing.T) {
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	cfg := config.RateLimitConfig{
		Enabled:     true,
		PublicRPS:   0.0001,
		PublicBurst: 100,
		MgmtRPS:     1,
		MgmtBurst:   1,
	}
	rl := NewRateLimitMiddleware(cfg, zap.NewNop(), m)
	h := rl.Handler(okHandler)

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/events", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, do("203.0.113.7").Code)
	}
	rec := do("203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", decodeEnvelope(t, rec)["error"])

	// another visitor still gets through
	assert.Equal(t, http.StatusOK, do("198.51.100.1").Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitHits.WithLabelValues(BucketIP)))

	rl.CleanupIPLimiters()
	assert.Equal(t, http.StatusOK, do("203.0.113.7").Code)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	h := NewRateLimitMiddleware(config.RateLimitConfig{}, zap.NewNop(), nil).Handler(okHandler)
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analytics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestIsPublicPath(t *testing.T) {
	assert.True(t, IsPublicPath("/api/events"))
	assert.True(t, IsPublicPath("/n/door"))
	assert.False(t, IsPublicPath("/api/reviews/sync"))
}
