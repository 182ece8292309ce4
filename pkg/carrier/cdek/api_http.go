package cdek

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
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPAPIClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// RequestToken performs the OAuth client-credentials exchange.
// POST /oauth/token
func (c *HTTPAPIClient) RequestToken(ctx context.Context) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var result TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	return &result, nil
}

// SearchCities queries the city-search endpoint.
// GET /location/cities
func (c *HTTPAPIClient) SearchCities(ctx context.Context, token string, params CitySearchParams) ([]City, error) {
	query := url.Values{}
	setNonEmpty(query, "city", params.City)
	setNonEmpty(query, "region", params.Region)
	setNonEmpty(query, "postal_code", params.PostalCode)
	setNonEmpty(query, "post_code", params.PostCode)
	size := params.Size
	if size == 0 {
		size = 5
	}
	query.Set("size", strconv.Itoa(size))

	resp, err := c.doGet(ctx, token, "/location/cities", query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var cities []City
	if err := json.NewDecoder(resp.Body).Decode(&cities); err != nil {
		return nil, fmt.Errorf("decoding city search response: %w", err)
	}
	return cities, nil
}

// ListDeliveryPoints lists pickup points for a city and location type.
// GET /deliverypoints
func (c *HTTPAPIClient) ListDeliveryPoints(ctx context.Context, token string, params DeliveryPointParams) ([]DeliveryPoint, error) {
	query := url.Values{}
	query.Set("city_code", params.CityCode)
	setNonEmpty(query, "type", params.Type)
	if params.Lat != 0 && params.Lon != 0 {
		query.Set("latitude", strconv.FormatFloat(params.Lat, 'f', -1, 64))
		query.Set("longitude", strconv.FormatFloat(params.Lon, 'f', -1, 64))
	}

	resp, err := c.doGet(ctx, token, "/deliverypoints", query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var points []DeliveryPoint
	if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
		return nil, fmt.Errorf("decoding delivery point response: %w", err)
	}
	return points, nil
}

// ListTariffs calls the multi-tariff calculator endpoint.
// POST /calculator/tarifflist
func (c *HTTPAPIClient) ListTariffs(ctx context.Context, token string, tariffReq *TariffListRequest) (*TariffListResponse, error) {
	body, err := json.Marshal(tariffReq)
	if err != nil {
		return nil, fmt.Errorf("encoding tariff request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/calculator/tarifflist", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating tariff request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var result TariffListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding tariff response: %w", err)
	}
	return &result, nil
}

func (c *HTTPAPIClient) doGet(ctx context.Context, token, path string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

func setNonEmpty(query url.Values, key, value string) {
	if value != "" {
		query.Set(key, value)
	}
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
