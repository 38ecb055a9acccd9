// Package booklookup resolves a user-entered title and author to catalog details
// through the Google Books volumes API.
package booklookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/listenupapp/bookreviews-server/internal/domain"
)

// DefaultBaseURL is the public volumes search endpoint.
const DefaultBaseURL = "https://www.googleapis.com/books/v1/volumes"

// ErrNoResults is returned by Search when the catalog has no matching volume.
var ErrNoResults = errors.New("no matching volume")

// Config configures a Client.
type Config struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Client queries the book catalog. It holds no state besides its rate limiter.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a catalog client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)

	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(limit, burst),
		logger:      logger,
	}
}

// Lookup returns the first catalog match for title and author. Every failure
// (transport, status, decoding, no results) yields empty BookDetails; the cause is logged.
func (c *Client) Lookup(ctx context.Context, title, author string) domain.BookDetails {
	details, err := c.Search(ctx, title, author)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrNoResults) {
			level = slog.LevelDebug
		}
		c.logger.Log(ctx, level, "book lookup failed",
			"title", title,
			"author", author,
			"error", err,
		)
		return domain.BookDetails{}
	}
	return details
}

// Search is Lookup with the failure reported to the caller.
func (c *Client) Search(ctx context.Context, title, author string) (domain.BookDetails, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return domain.BookDetails{}, fmt.Errorf("rate limit: %w", err)
	}

	searchURL := c.searchURL(title, author)
	c.logger.Debug("searching book catalog",
		"title", title,
		"author", author,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return domain.BookDetails{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.BookDetails{}, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.BookDetails{}, fmt.Errorf("search failed: status %d", resp.StatusCode)
	}

	var result volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.BookDetails{}, fmt.Errorf("parse response: %w", err)
	}
	if len(result.Items) == 0 {
		return domain.BookDetails{}, ErrNoResults
	}

	return result.Items[0].VolumeInfo.toDetails(), nil
}

func (c *Client) searchURL(title, author string) string {
	params := url.Values{}
	params.Set("q", "intitle:"+title+" inauthor:"+author)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	return c.baseURL + "?" + params.Encode()
}
