// Package client provides the page fetcher for the remote user listing:
// one bounded, cancellable GET per page with typed failures.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/user-feed-client/pkg/logging"
	"github.com/Sternrassler/user-feed-client/pkg/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for page fetches.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userfeed_requests_total",
		Help: "Total page requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "userfeed_request_duration_seconds",
		Help:    "Page request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userfeed_errors_total",
		Help: "Total page fetch errors by class",
	}, []string{"class"})
)

// maxDrainBytes bounds how much of an error body is read before closing.
const maxDrainBytes = 4 << 10

// Client fetches pages of users from the remote listing endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the listing endpoint.
	BaseURL string

	// Seed makes the source return the same dataset across calls.
	Seed string

	// MaxPages is the number of pages the source is treated as having.
	// Pages below it report HasMore.
	MaxPages int

	// Timeout bounds every single page request.
	Timeout time.Duration

	// UserAgent header sent with every request.
	UserAgent string
}

// DefaultConfig returns the configuration of the public demo source.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://randomuser.me/api/",
		Seed:      "userapp",
		MaxPages:  5,
		Timeout:   10 * time.Second,
		UserAgent: "user-feed-client/0.1.0",
	}
}

// New creates a new page client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.MaxPages < 1 {
		return nil, fmt.Errorf("max_pages must be >= 1 (got %d)", cfg.MaxPages)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	return &Client{
		// Deadlines come from the per-request context.
		httpClient: &http.Client{},
		baseURL:    baseURL,
		config:     cfg,
		logger:     logging.NewLogger(logging.ComponentClient),
	}, nil
}

// FetchPage fetches one page. It issues exactly one request, bounded by the
// configured timeout and by ctx, whichever fires first.
func (c *Client) FetchPage(ctx context.Context, pageNumber, pageSize int) (*users.Page, error) {
	if pageNumber < 1 {
		return nil, fmt.Errorf("page number must be >= 1 (got %d)", pageNumber)
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("page size must be >= 1 (got %d)", pageSize)
	}

	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, c.pageURL(pageNumber, pageSize), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Int("page", pageNumber).
		Int("page_size", pageSize).
		Msg("Fetching page")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(c.transportError(ctx, fetchCtx, pageNumber, err), "transport")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		return nil, c.fail(&HTTPStatusError{
			Page:       pageNumber,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}, strconv.Itoa(resp.StatusCode))
	}

	var body users.Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if fetchCtx.Err() != nil {
			return nil, c.fail(c.transportError(ctx, fetchCtx, pageNumber, err), "transport")
		}
		return nil, c.fail(&ParseError{Page: pageNumber, Err: err}, "parse")
	}
	if body.Error != "" {
		return nil, c.fail(&ParseError{Page: pageNumber, Err: errors.New(body.Error)}, "parse")
	}
	if body.Results == nil {
		c.logger.Warn().Int("page", pageNumber).Msg("Response without results, treating page as empty")
	}

	page := users.MapPage(body.Results, pageNumber, pageNumber < c.config.MaxPages)

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Debug().
		Int("page", pageNumber).
		Int("users", page.Len()).
		Bool("has_more", page.HasMore).
		Dur("duration", time.Since(startTime)).
		Msg("Fetched page")

	return page, nil
}

// pageURL builds the listing URL for one page.
func (c *Client) pageURL(pageNumber, pageSize int) string {
	u := *c.baseURL
	q := u.Query()
	q.Set("results", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(pageNumber))
	if c.config.Seed != "" {
		q.Set("seed", c.config.Seed)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// transportError classifies a failure that produced no usable response.
// ctx is the caller's context, fetchCtx the derived one carrying the timeout.
func (c *Client) transportError(ctx, fetchCtx context.Context, pageNumber int, err error) error {
	switch {
	case errors.Is(fetchCtx.Err(), context.DeadlineExceeded):
		return &TimeoutError{Page: pageNumber, Timeout: c.config.Timeout, Err: err}
	case ctx.Err() != nil:
		return fmt.Errorf("fetch page %d: %w", pageNumber, ctx.Err())
	default:
		return &NetworkError{Page: pageNumber, Err: err}
	}
}

// fail records metrics and logs a classified failure.
func (c *Client) fail(err error, status string) error {
	errorClass := ClassOf(err)
	errorsTotal.WithLabelValues(string(errorClass)).Inc()
	requestsTotal.WithLabelValues(status).Inc()

	event := c.logger.Warn()
	if errorClass == ErrorClassCanceled {
		event = c.logger.Debug()
	}
	event.Err(err).Str("error_class", string(errorClass)).Msg("Page fetch failed")

	return err
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
