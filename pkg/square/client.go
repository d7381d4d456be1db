// Package square provides the HTTP client for the Square catalog and
// online-checkout APIs. It performs no automatic retries: a failed call is
// reported to the caller as a *ProviderError.
package square

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/square-catalog-cache/pkg/pagination"
	"github.com/Sternrassler/square-catalog-cache/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Endpoint labels, relative to the base URL.
const (
	EndpointCatalogList   = "catalog/list"
	EndpointBatchRetrieve = "catalog/batch-retrieve"
	EndpointPaymentLinks  = "online-checkout/payment-links"
)

// DefaultBaseURL points at the Square sandbox.
const DefaultBaseURL = "https://connect.squareupsandbox.com/v2/"

// DefaultVersion is the Square-Version header sent with every request.
const DefaultVersion = "2024-10-17"

// Prometheus metrics for provider requests.
var (
	squareRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "square_requests_total",
		Help: "Total Square requests by endpoint and status",
	}, []string{"endpoint", "status"})

	squareRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "square_request_duration_seconds",
		Help:    "Square request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	squareErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "square_errors_total",
		Help: "Total Square errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Square API, e.g. "https://connect.squareup.com/v2/"
	BaseURL string

	// AccessToken is sent as a bearer credential (REQUIRED)
	AccessToken string

	// Version is the Square-Version header value
	Version string

	// Timeout applies to each HTTP request
	Timeout time.Duration

	// Pagination bounds catalog/list cursor walking
	Pagination pagination.Config

	// RateLimiter gates requests during a 429 cool-down (optional)
	RateLimiter *ratelimit.Tracker
}

// DefaultConfig returns a sandbox configuration.
func DefaultConfig(accessToken string) Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		AccessToken: accessToken,
		Version:     DefaultVersion,
		Timeout:     30 * time.Second,
		Pagination:  pagination.DefaultConfig(),
	}
}

// Client is the Square API client.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	config      Config
	rateLimiter *ratelimit.Tracker
	logger      zerolog.Logger
}

// New creates a new Square client.
func New(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/") + "/",
		config:      cfg,
		rateLimiter: cfg.RateLimiter,
		logger:      log.With().Str("component", "square-client").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// ListCatalogPage fetches one page of catalog/list for the given types.
func (c *Client) ListCatalogPage(ctx context.Context, cursor string, types ...string) ([]CatalogObject, string, error) {
	query := "types=" + strings.Join(types, ",")
	if cursor != "" {
		query += "&cursor=" + url.QueryEscape(cursor)
	}

	var resp ListCatalogResponse
	if err := c.do(ctx, http.MethodGet, EndpointCatalogList, query, nil, &resp); err != nil {
		return nil, "", err
	}
	return resp.Objects, resp.Cursor, nil
}

// ListCatalog fetches every catalog object of the given types, following cursors.
func (c *Client) ListCatalog(ctx context.Context, types ...string) ([]CatalogObject, error) {
	return pagination.Walk(ctx, c.config.Pagination, func(ctx context.Context, cursor string) ([]CatalogObject, string, error) {
		return c.ListCatalogPage(ctx, cursor, types...)
	})
}

// BatchRetrieve fetches objects by id together with their related objects.
func (c *Client) BatchRetrieve(ctx context.Context, objectIDs []string) (*BatchRetrieveResponse, error) {
	body := BatchRetrieveRequest{
		ObjectIDs:             objectIDs,
		IncludeRelatedObjects: true,
	}

	var resp BatchRetrieveResponse
	if err := c.do(ctx, http.MethodPost, EndpointBatchRetrieve, "", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreatePaymentLink creates a hosted checkout link.
// A response without a link is reported as a ProviderError with class client.
func (c *Client) CreatePaymentLink(ctx context.Context, req CreatePaymentLinkRequest) (*PaymentLink, error) {
	var resp CreatePaymentLinkResponse
	if err := c.do(ctx, http.MethodPost, EndpointPaymentLinks, "", req, &resp); err != nil {
		return nil, err
	}
	if resp.PaymentLink == nil || resp.PaymentLink.URL == "" {
		return nil, &ProviderError{
			Endpoint:   EndpointPaymentLinks,
			StatusCode: http.StatusOK,
			Class:      ErrorClassClient,
			Message:    "response carried no payment link url",
		}
	}
	return resp.PaymentLink, nil
}

// do performs one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, endpoint, query string, body, out any) error {
	startTime := time.Now()
	defer func() {
		squareRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			return fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			squareRequestsTotal.WithLabelValues(endpoint, "blocked").Inc()
			squareErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
			return &ProviderError{
				Endpoint:   endpoint,
				StatusCode: http.StatusTooManyRequests,
				Class:      ErrorClassRateLimit,
				Message:    "cool-down active",
				Err:        ErrRequestBlocked,
			}
		}
	}

	target := c.baseURL + endpoint
	if query != "" {
		target += "?" + query
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	req.Header.Set("Square-Version", c.config.Version)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Msg("Executing Square request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		squareErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		squareRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return &ProviderError{
			Endpoint: endpoint,
			Class:    ErrorClassNetwork,
			Message:  "request failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	squareRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if c.rateLimiter != nil {
		if err := c.rateLimiter.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record rate limit state")
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		squareErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return &ProviderError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		class := classifyStatus(resp.StatusCode)
		squareErrorsTotal.WithLabelValues(string(class)).Inc()

		message := resp.Status
		var envelope struct {
			Errors []APIError `json:"errors"`
		}
		if json.Unmarshal(raw, &envelope) == nil && len(envelope.Errors) > 0 {
			message = describeErrors(envelope.Errors)
		}

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Square request error")

		return &ProviderError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    message,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		squareErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return &ProviderError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Message:    "decode response body",
			Err:        err,
		}
	}
	return nil
}
