// Package geo resolves client IPs to ISO country codes for event enrichment.
package geo

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oschwald/maxminddb-golang"
	"github.com/tappo/tappo/internal/metrics"
)

// Locator maps an IP to an ISO 3166-1 alpha-2 country code. An unknown IP
// yields "" and no error.
type Locator interface {
	Country(ip string) (string, error)
	Close() error
}

// NopLocator never resolves anything.
type NopLocator struct{}

func (NopLocator) Country(string) (string, error) { return "", nil }
func (NopLocator) Close() error                   { return nil }

// MaxMindLocator reads a GeoLite2/GeoIP2 Country or City database.
type MaxMindLocator struct {
	reader *maxminddb.Reader
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// NewMaxMindLocator opens the database at dbPath.
func NewMaxMindLocator(dbPath string) (*MaxMindLocator, error) {
	reader, err := maxminddb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &MaxMindLocator{reader: reader}, nil
}

func (m *MaxMindLocator) Country(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("invalid IP address: %s", ip)
	}

	var rec countryRecord
	if err := m.reader.Lookup(parsed, &rec); err != nil {
		return "", fmt.Errorf("geo lookup failed: %w", err)
	}
	return rec.Country.ISOCode, nil
}

// Close closes the GeoIP database.
func (m *MaxMindLocator) Close() error {
	if m.reader != nil {
		return m.reader.Close()
	}
	return nil
}

// CachedLocator memoizes lookups of another Locator.
type CachedLocator struct {
	next    Locator
	metrics *metrics.Metrics

	mu      sync.RWMutex
	data    map[string]cacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	country   string
	expiresAt time.Time
}

func NewCachedLocator(next Locator, maxSize int, ttl time.Duration, m *metrics.Metrics) *CachedLocator {
	return &CachedLocator{
		next:    next,
		metrics: m,
		data:    make(map[string]cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *CachedLocator) Country(ip string) (string, error) {
	start := time.Now()

	c.mu.RLock()
	entry, ok := c.data[ip]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		return entry.country, nil
	}

	country, err := c.next.Country(ip)
	if err != nil {
		return "", err
	}
	c.metrics.RecordGeoLookup(country != "", time.Since(start))

	c.mu.Lock()
	defer c.mu.Unlock()
	// Evict if at capacity (simple FIFO)
	if len(c.data) >= c.maxSize {
		for k := range c.data {
			delete(c.data, k)
			break
		}
	}
	c.data[ip] = cacheEntry{country: country, expiresAt: c.now().Add(c.ttl)}

	return country, nil
}

func (c *CachedLocator) Close() error {
	return c.next.Close()
}

// ClientIP extracts the client IP from the request, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
