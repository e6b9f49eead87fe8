package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/tappo/tappo/internal/config"
	"github.com/tappo/tappo/internal/geo"
	"github.com/tappo/tappo/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Rate limit buckets, also used as metric labels.
const (
	BucketPublic = "public"
	BucketMgmt   = "mgmt"
	BucketIP     = "ip"
)

// publicPrefixes are reached by anonymous visitors: event ingestion and tag
// redirects.
var publicPrefixes = []string{"/api/events", "/n/"}

// RateLimitMiddleware implements token bucket rate limiting with one global
// bucket for public endpoints and one for the management API. Public
// endpoints are additionally limited per client IP.
type RateLimitMiddleware struct {
	cfg           config.RateLimitConfig
	logger        *zap.Logger
	metrics       *metrics.Metrics
	publicLimiter *rate.Limiter
	mgmtLimiter   *rate.Limiter

	mu         sync.RWMutex
	ipLimiters map[string]*rate.Limiter
}

func NewRateLimitMiddleware(cfg config.RateLimitConfig, logger *zap.Logger, m *metrics.Metrics) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		cfg:           cfg,
		logger:        logger,
		metrics:       m,
		publicLimiter: rate.NewLimiter(rate.Limit(cfg.PublicRPS), cfg.PublicBurst),
		mgmtLimiter:   rate.NewLimiter(rate.Limit(cfg.MgmtRPS), cfg.MgmtBurst),
		ipLimiters:    make(map[string]*rate.Limiter),
	}
}

func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		bucket := BucketMgmt
		limiter := rl.mgmtLimiter
		if IsPublicPath(r.URL.Path) {
			bucket = BucketPublic
			limiter = rl.publicLimiter
		}

		if !limiter.Allow() {
			rl.reject(w, r, bucket)
			return
		}

		if bucket == BucketPublic && !rl.ipLimiter(geo.ClientIP(r)).Allow() {
			rl.reject(w, r, BucketIP)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// IsPublicPath reports whether path is served to anonymous visitors.
func IsPublicPath(path string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (rl *RateLimitMiddleware) reject(w http.ResponseWriter, r *http.Request, bucket string) {
	rl.logger.Warn("rate limit exceeded",
		zap.String("bucket", bucket),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	)
	rl.metrics.RecordRateLimitHit(bucket)
	w.Header().Set("Retry-After", "1")
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// ipLimiter returns or creates the limiter for ip, at a tenth of the public
// budget.
func (rl *RateLimitMiddleware) ipLimiter(ip string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.ipLimiters[ip]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists = rl.ipLimiters[ip]; exists {
		return limiter
	}

	burst := rl.cfg.PublicBurst / 10
	if burst < 1 {
		burst = 1
	}
	limiter = rate.NewLimiter(rate.Limit(rl.cfg.PublicRPS/10), burst)
	rl.ipLimiters[ip] = limiter

	return limiter
}

// CleanupIPLimiters drops all per-IP limiters. The server calls it
// periodically.
func (rl *RateLimitMiddleware) CleanupIPLimiters() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.ipLimiters = make(map[string]*rate.Limiter)
	rl.logger.Debug("cleaned up IP rate limiters")
}
