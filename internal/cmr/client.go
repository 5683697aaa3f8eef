// Package cmr is a client for NASA's Common Metadata Repository granule
// search.
package cmr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	// DefaultBaseURL is the default CMR API base URL.
	DefaultBaseURL = "https://cmr.earthdata.nasa.gov/search"

	// DefaultProvider is the CMR provider holding ASF data.
	DefaultProvider = "ASF"

	// DefaultPageSize is the number of granules requested per page.
	DefaultPageSize = 250

	// MaxPageSize is the largest page CMR serves.
	MaxPageSize = 2000

	// SearchAfterHeader carries the pagination cursor.
	SearchAfterHeader = "CMR-Search-After"
)

// Client handles communication with the CMR API.
type Client struct {
	baseURL    string
	provider   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new CMR API client. Requests are retried on connection
// errors and 5xx responses.
func NewClient(baseURL, provider string, timeout time.Duration, retries int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if provider == "" {
		provider = DefaultProvider
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = timeout

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		provider:   provider,
		httpClient: rc.StandardClient(),
		logger:     slog.Default(),
	}
}

// WithLogger sets a custom logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// SearchResult is one page of a granule search.
type SearchResult struct {
	Granules    []UMMGranule
	Hits        int
	SearchAfter string
}

// Search fetches one page of granules.
func (c *Client) Search(ctx context.Context, params *SearchParams) (*SearchResult, error) {
	query := params.ToURLValues()
	query.Set("provider", c.provider)
	searchURL := c.baseURL + "/granules.umm_json?" + query.Encode()

	c.logger.DebugContext(ctx, "executing CMR search", slog.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.nasa.cmr.umm_results+json")
	req.Header.Set("User-Agent", "ifg-pair-selector/1.0")
	if params.SearchAfter != "" {
		req.Header.Set(SearchAfterHeader, params.SearchAfter)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "CMR API request failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("CMR API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "CMR API returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		return nil, fmt.Errorf("CMR API returned status %d: %s", resp.StatusCode, string(body))
	}

	var out UMMSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode CMR response: %w", err)
	}

	granules := make([]UMMGranule, 0, len(out.Items))
	for _, item := range out.Items {
		granules = append(granules, item.UMM)
	}

	searchAfter := resp.Header.Get(SearchAfterHeader)
	c.logger.DebugContext(ctx, "CMR search completed",
		slog.Int("hits", out.Hits),
		slog.Int("returned", len(granules)),
		slog.Bool("has_next", searchAfter != ""),
	)

	return &SearchResult{Granules: granules, Hits: out.Hits, SearchAfter: searchAfter}, nil
}

// SearchAll follows the search-after cursor until the result set is
// exhausted or limit granules were collected. A limit of 0 means no limit.
func (c *Client) SearchAll(ctx context.Context, params SearchParams, limit int) ([]UMMGranule, error) {
	var all []UMMGranule
	for {
		page, err := c.Search(ctx, &params)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Granules...)
		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
		if page.SearchAfter == "" || len(page.Granules) == 0 {
			return all, nil
		}
		params.SearchAfter = page.SearchAfter
	}
}

// SearchParams are the CMR granule query parameters this service uses.
type SearchParams struct {
	ShortName []string
	GranuleUR []string

	// Polygon is a counter-clockwise "lon1,lat1,lon2,lat2,..." ring.
	Polygon string

	// Temporal is "start,end" in ISO 8601.
	Temporal string

	BeamMode      []string
	RelativeOrbit []int

	PageSize    int
	SearchAfter string
}

// ToURLValues converts SearchParams to URL query parameters.
func (p *SearchParams) ToURLValues() url.Values {
	values := url.Values{}

	for _, sn := range p.ShortName {
		values.Add("short_name", sn)
	}
	for _, gur := range p.GranuleUR {
		values.Add("granule_ur", gur)
	}
	if p.Polygon != "" {
		values.Set("polygon", p.Polygon)
	}
	if p.Temporal != "" {
		values.Set("temporal", p.Temporal)
	}
	for _, bm := range p.BeamMode {
		values.Add("attribute[]", "string,BEAM_MODE,"+bm)
	}
	for _, ro := range p.RelativeOrbit {
		values.Add("attribute[]", "int,PATH_NUMBER,"+strconv.Itoa(ro))
	}

	size := p.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	values.Set("page_size", strconv.Itoa(size))
	values.Set("sort_key", "start_date")
	return values
}

// PolygonParam renders a closed lon/lat ring as a CMR polygon parameter.
func PolygonParam(ring [][]float64) string {
	parts := make([]string, 0, len(ring)*2)
	for _, pt := range ring {
		parts = append(parts,
			strconv.FormatFloat(pt[0], 'f', -1, 64),
			strconv.FormatFloat(pt[1], 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}

// TemporalParam renders a time range as a CMR temporal parameter.
func TemporalParam(start, end time.Time) string {
	return start.UTC().Format(time.RFC3339) + "," + end.UTC().Format(time.RFC3339)
}
