// Package asf is a client for the ASF search API.
package asf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultBaseURL is the public ASF search endpoint.
const DefaultBaseURL = "https://api.daac.asf.alaska.edu"

const userAgent = "ifg-pair-selector/1.0"

// ErrGranuleNotFound is returned by GetGranule when nothing matches.
var ErrGranuleNotFound = errors.New("granule not found")

// Client handles communication with the ASF search API. Requests are retried
// on connection errors and 5xx responses.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new ASF API client.
func NewClient(baseURL string, timeout time.Duration, retries int) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = timeout
	rc.HTTPClient.Transport = &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: rc.StandardClient(),
		logger:     slog.Default(),
	}
}

// WithLogger sets a custom logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// Search performs a search against the ASF API.
func (c *Client) Search(ctx context.Context, params SearchParams) (*GeoJSONResponse, error) {
	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("failed to build search URL: %w", err)
	}

	c.logger.DebugContext(ctx, "executing ASF search", slog.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "ASF API request failed",
			slog.String("error", err.Error()),
			slog.String("url", searchURL),
		)
		return nil, fmt.Errorf("ASF API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "ASF API returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		return nil, fmt.Errorf("ASF API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result GeoJSONResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode ASF response: %w", err)
	}

	c.logger.DebugContext(ctx, "ASF search completed", slog.Int("feature_count", len(result.Features)))
	return &result, nil
}

// GetGranule looks up one granule by scene name or file id. When several
// products share a scene name, the one whose fileID equals id wins, then the
// SLC product, then the first result.
func (c *Client) GetGranule(ctx context.Context, id string) (*Feature, error) {
	result, err := c.Search(ctx, SearchParams{GranuleList: []string{id}})
	if err != nil {
		return nil, fmt.Errorf("failed to search for granule: %w", err)
	}
	if len(result.Features) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGranuleNotFound, id)
	}

	for i := range result.Features {
		if result.Features[i].Properties.FileID == id {
			return &result.Features[i], nil
		}
	}
	for i := range result.Features {
		if result.Features[i].Properties.ProcessingLevel == "SLC" {
			return &result.Features[i], nil
		}
	}
	return &result.Features[0], nil
}

func (c *Client) buildSearchURL(params SearchParams) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	base.Path = "/services/search/param"
	base.RawQuery = params.ToQueryString()
	return base.String(), nil
}
