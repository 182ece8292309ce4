package ruspost

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
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	tariffURL  string
	officesURL string
	apiKey     string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	TariffURL  string
	OfficesURL string
	APIKey     string
	Timeout    time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPAPIClient{
		tariffURL:  strings.TrimRight(cfg.TariffURL, "/"),
		officesURL: strings.TrimRight(cfg.OfficesURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CalculateTariff queries the tariff-by-index endpoint.
// GET {tariffURL}?object=...&weight=...&from=...&to=...&pack=...&format=json&errorcode=1
//
// errorcode=1 makes the carrier return structured {code, msg} entries in
// the errors array instead of bare text.
func (c *HTTPAPIClient) CalculateTariff(ctx context.Context, params TariffParams) (*TariffResponse, error) {
	query := url.Values{}
	query.Set("object", strconv.Itoa(params.Object))
	query.Set("weight", strconv.Itoa(params.WeightGrams))
	query.Set("from", params.FromIndex)
	query.Set("to", params.ToIndex)
	if params.Pack != 0 {
		query.Set("pack", strconv.Itoa(params.Pack))
	}
	query.Set("format", "json")
	query.Set("errorcode", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.tariffURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating tariff request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "AccessToken "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Logical failures arrive with HTTP 200 and an errors array; the
	// caller inspects it. Only transport-level failures are errors here.
	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var result TariffResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding tariff response: %w", err)
	}
	return &result, nil
}

// SearchOffices lists post offices inside a bounding rectangle.
// POST {officesURL} with the rectangle and filter flags as JSON.
func (c *HTTPAPIClient) SearchOffices(ctx context.Context, searchReq *OfficeSearchRequest) ([]Office, error) {
	body, err := json.Marshal(searchReq)
	if err != nil {
		return nil, fmt.Errorf("encoding office search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.officesURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating office search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "AccessToken "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var offices []Office
	if err := json.NewDecoder(resp.Body).Decode(&offices); err != nil {
		return nil, fmt.Errorf("decoding office search response: %w", err)
	}
	return offices, nil
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
