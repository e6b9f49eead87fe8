package reviews

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tappo/tappo/internal/config"
	"go.uber.org/zap"
)

func TestHTTPFetcher(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(placeHTML))
	}))
	defer srv.Close()

	cfg := config.Default().Reviews
	cfg.UserAgent = "tappo-test"
	f := NewHTTPFetcher(cfg)

	html, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, placeHTML, html)
	assert.Equal(t, "tappo-test", gotUA)
	assert.Equal(t, config.FetcherHTTP, f.Name())
}

func TestHTTPFetcher_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(config.Default().Reviews).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := config.Default().Reviews
	cfg.NavigateTimeout = 50 * time.Millisecond

	_, err := NewHTTPFetcher(cfg).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestNewFetcher(t *testing.T) {
	cfg := config.Default().Reviews

	cfg.Fetcher = config.FetcherChrome
	f, err := NewFetcher(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &ChromeFetcher{}, f)

	cfg.Fetcher = config.FetcherHTTP
	f, err = NewFetcher(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, f)

	cfg.Fetcher = "lynx"
	_, err = NewFetcher(cfg, zap.NewNop())
	assert.Error(t, err)
}
