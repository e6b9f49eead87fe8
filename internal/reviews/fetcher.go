package reviews

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/tappo/tappo/internal/config"
	"go.uber.org/zap"
)

// maxPageBytes bounds how much of a review page the http fetcher reads.
const maxPageBytes = 8 << 20

// Fetcher renders a review page and returns its HTML.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, url string) (string, error)
}

// NewFetcher builds the fetcher named by cfg.Fetcher.
func NewFetcher(cfg config.ReviewsConfig, logger *zap.Logger) (Fetcher, error) {
	switch cfg.Fetcher {
	case config.FetcherChrome:
		return NewChromeFetcher(cfg, logger), nil
	case config.FetcherHTTP:
		return NewHTTPFetcher(cfg), nil
	default:
		return nil, fmt.Errorf("unknown fetcher %q", cfg.Fetcher)
	}
}

// ===========================================
// HEADLESS CHROME
// ===========================================

// ChromeFetcher renders pages in a fresh headless Chrome per fetch so the
// provider's client-side data lands in the DOM.
type ChromeFetcher struct {
	execPath        string
	userAgent       string
	navigateTimeout time.Duration
	settleDelay     time.Duration
	logger          *zap.Logger
}

func NewChromeFetcher(cfg config.ReviewsConfig, logger *zap.Logger) *ChromeFetcher {
	return &ChromeFetcher{
		execPath:        cfg.ChromePath,
		userAgent:       cfg.UserAgent,
		navigateTimeout: cfg.NavigateTimeout,
		settleDelay:     cfg.SettleDelay,
		logger:          logger,
	}
}

func (f *ChromeFetcher) Name() string { return config.FetcherChrome }

// Fetch navigates to url, waits for the settle delay and returns the
// document's outer HTML. The browser is torn down on every return path.
func (f *ChromeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1280, 720),
		chromedp.DisableGPU,
	)
	if f.execPath != "" {
		opts = append(opts, chromedp.ExecPath(f.execPath))
	}
	if f.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.userAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(f.logger.Sugar().Debugf),
	)
	defer cancelBrowser()

	navCtx, cancelNav := context.WithTimeout(browserCtx, f.navigateTimeout+f.settleDelay)
	defer cancelNav()

	var html string
	err := chromedp.Run(navCtx,
		chromedp.EmulateViewport(1280, 720),
		chromedp.Navigate(url),
		chromedp.Sleep(f.settleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", url, err)
	}
	return html, nil
}

// ===========================================
// PLAIN HTTP
// ===========================================

// HTTPFetcher issues a plain GET. It sees only server-rendered markup, which
// is enough when the provider embeds JSON-LD.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

func NewHTTPFetcher(cfg config.ReviewsConfig) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: cfg.NavigateTimeout,
		},
		userAgent: cfg.UserAgent,
	}
}

func (f *HTTPFetcher) Name() string { return config.FetcherHTTP }

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", url, err)
	}
	return string(body), nil
}
