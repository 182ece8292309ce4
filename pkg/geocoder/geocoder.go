// Package geocoder provides a thin client for a public geocoding service.
// It is a fallback used to turn a free-text query into a search area, not
// a full geocoding layer.
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// BoundingBox is a geographic rectangle.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Geocoder resolves a free-text query to a bounding box. A nil box with a
// nil error means the query did not match anything.
type Geocoder interface {
	BoundingBox(ctx context.Context, query string) (*BoundingBox, error)
}

// Client queries a Nominatim-compatible search endpoint.
// GET /search?q={query}&format=json&limit=1
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Config holds geocoder client configuration.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// New creates a geocoder client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "lavkamarket-delivery/1.0"
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type searchResult struct {
	BoundingBox []string `json:"boundingbox"`
}

// BoundingBox resolves the query to the bounding box of its best match.
func (c *Client) BoundingBox(ctx context.Context, query string) (*BoundingBox, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating geocoder request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder: HTTP %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding geocoder response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return parseBoundingBox(results[0].BoundingBox)
}

// parseBoundingBox reads the [minlat, maxlat, minlon, maxlon] string array
// the search endpoint returns.
func parseBoundingBox(values []string) (*BoundingBox, error) {
	if len(values) != 4 {
		return nil, fmt.Errorf("geocoder: unexpected bounding box shape %v", values)
	}
	parsed := make([]float64, 4)
	for i, value := range values {
		number, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("geocoder: parsing bounding box value %q: %w", value, err)
		}
		parsed[i] = number
	}
	return &BoundingBox{
		MinLat: parsed[0],
		MaxLat: parsed[1],
		MinLon: parsed[2],
		MaxLon: parsed[3],
	}, nil
}

// Static is a fixed-response Geocoder for tests.
type Static struct {
	Box *BoundingBox
	Err error
}

// BoundingBox returns the configured box and error.
func (s *Static) BoundingBox(context.Context, string) (*BoundingBox, error) {
	return s.Box, s.Err
}

var _ Geocoder = (*Client)(nil)
var _ Geocoder = (*Static)(nil)
