package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/tappo/tappo/internal/config"
	"go.uber.org/zap"
)

const (
	AuthHeaderName = "X-API-Key"
	AuthQueryParam = "api_key"
)

// AuthMiddleware guards the management API (sync trigger, analytics,
// snapshots) with a shared key. Paths under cfg.SkipPaths stay public.
type AuthMiddleware struct {
	cfg    config.AuthConfig
	key    []byte
	logger *zap.Logger
}

func NewAuthMiddleware(cfg config.AuthConfig, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		cfg:    cfg,
		key:    []byte(cfg.MasterKey),
		logger: logger,
	}
}

func (a *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled || a.public(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		presented := presentedKey(r)
		if presented == "" {
			a.unauthorized(w, "missing API key")
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), a.key) != 1 {
			a.logger.Warn("rejected API key",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			a.unauthorized(w, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// presentedKey reads the key from X-API-Key, a bearer token or the api_key
// query parameter, in that order.
func presentedKey(r *http.Request) string {
	if k := r.Header.Get(AuthHeaderName); k != "" {
		return k
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return r.URL.Query().Get(AuthQueryParam)
}

func (a *AuthMiddleware) public(path string) bool {
	for _, p := range a.cfg.SkipPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (a *AuthMiddleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "ApiKey")
	writeError(w, http.StatusUnauthorized, message)
}
