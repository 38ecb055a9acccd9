// Package covers downloads remote images and names local cover files.
package covers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/listenupapp/bookreviews-server/internal/ratelimit"
)

const (
	// maxImageSize limits download size to prevent memory exhaustion.
	maxImageSize = 10 * 1024 * 1024 // 10MB

	// downloadTimeout is the maximum time for one download.
	downloadTimeout = 30 * time.Second
)

// ErrTooLarge is returned when a response body exceeds the size limit.
var ErrTooLarge = errors.New("image exceeds size limit")

// Downloader fetches images over HTTP with a per-host rate limit.
type Downloader struct {
	httpClient *http.Client
	limiter    *ratelimit.KeyedRateLimiter
	logger     *slog.Logger
}

// NewDownloader creates a downloader. limiter may be nil to disable rate limiting.
func NewDownloader(limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) *Downloader {
	return &Downloader{
		httpClient: &http.Client{Timeout: downloadTimeout},
		limiter:    limiter,
		logger:     logger,
	}
}

// Fetch downloads rawURL and returns the body. Non-200 responses, bodies larger than
// the size limit and bodies that are not images are errors.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, errors.New("empty image URL")
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid image URL %q", rawURL)
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, u.Host); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, errors.New("empty image body")
	}
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("unexpected content type %s", ct)
	}

	d.logger.Debug("downloaded image",
		"host", u.Host,
		"size", len(data),
	)

	return data, nil
}
