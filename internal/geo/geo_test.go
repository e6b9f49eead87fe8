package geo

import (
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLocator struct {
	calls   int
	answers map[string]string
	err     error
}

func (c *countingLocator) Country(ip string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.answers[ip], nil
}

func (c *countingLocator) Close() error { return nil }

func TestCachedLocator(t *testing.T) {
	inner := &countingLocator{answers: map[string]string{"1.2.3.4": "RU", "5.6.7.8": "DE"}}
	cached := NewCachedLocator(inner, 10, time.Minute, nil)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	cached.now = func() time.Time { return now }

	c, err := cached.Country("1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "RU", c)

	c, _ = cached.Country("1.2.3.4")
	assert.Equal(t, "RU", c)
	assert.Equal(t, 1, inner.calls)

	now = now.Add(2 * time.Minute)
	_, _ = cached.Country("1.2.3.4")
	assert.Equal(t, 2, inner.calls)
}

func TestCachedLocator_EvictsAtCapacity(t *testing.T) {
	inner := &countingLocator{answers: map[string]string{}}
	cached := NewCachedLocator(inner, 2, time.Minute, nil)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		_, err := cached.Country(ip)
		require.NoError(t, err)
	}
	assert.Len(t, cached.data, 2)
}

func TestCachedLocator_ErrorsAreNotCached(t *testing.T) {
	inner := &countingLocator{err: errors.New("corrupt db")}
	cached := NewCachedLocator(inner, 10, time.Minute, nil)

	_, err := cached.Country("1.2.3.4")
	assert.Error(t, err)
	_, err = cached.Country("1.2.3.4")
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestNewMaxMindLocator_MissingFile(t *testing.T) {
	_, err := NewMaxMindLocator(filepath.Join(t.TempDir(), "missing.mmdb"))
	assert.Error(t, err)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:5000", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1:5000", "198.51.100.2"},
		{"remote addr", nil, "192.0.2.1:443", "192.0.2.1"},
		{"ipv6 remote", nil, "[2001:db8::1]:443", "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestNopLocator(t *testing.T) {
	c, err := NopLocator{}.Country("1.2.3.4")
	assert.NoError(t, err)
	assert.Empty(t, c)
}
