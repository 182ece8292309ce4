// Package ruspost provides integration with the Russian Post delivery APIs.
package ruspost

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/lavkamarket/delivery/pkg/carrier"
	"github.com/lavkamarket/delivery/pkg/geocoder"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const providerName = "ruspost"

// defaultObjectCode is the tariff object for an ordinary online parcel.
const defaultObjectCode = 27030

// searchRadiusDegrees is the half-size of the bounding rectangle built
// around a raw coordinate.
const searchRadiusDegrees = 0.25

var postalIndexPattern = regexp.MustCompile(`^\d{5,6}$`)

// Config holds Russian Post configuration.
type Config struct {
	APIKey string
	// AcceptanceIndex is the postal index authorized as the shipment
	// origin. Distinct from OfficeIndex, the operator's own office.
	AcceptanceIndex string
	OfficeIndex     string
	ObjectCode      int
	TariffURL       string
	OfficesURL      string
	UseMock         bool // When true, uses mock API client
}

// Client is the Russian Post delivery provider. It implements the
// carrier.Provider interface and delegates API calls to the underlying
// APIClient (mock or HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	geo       geocoder.Geocoder
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new Russian Post client. Environment-level configuration is
// validated here, not per-call; mock mode skips the credential check.
func New(cfg Config, geo geocoder.Geocoder, logger *otelzap.Logger, tracer trace.Tracer) (*Client, error) {
	if !cfg.UseMock {
		if cfg.APIKey == "" {
			return nil, carrier.NewError(providerName, carrier.KindConfigMissing,
				"api key is not configured")
		}
		if !postalIndexPattern.MatchString(cfg.AcceptanceIndex) {
			return nil, carrier.NewError(providerName, carrier.KindConfigMissing,
				"acceptance index must be a 5-6 digit postal index")
		}
	}

	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			TariffURL:  cfg.TariffURL,
			OfficesURL: cfg.OfficesURL,
			APIKey:     cfg.APIKey,
			Timeout:    30 * time.Second,
		})
	}
	return NewWithAPIClient(cfg, apiClient, geo, logger, tracer), nil
}

// NewWithAPIClient creates a new Russian Post client with a custom API
// client. This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, geo geocoder.Geocoder, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if cfg.ObjectCode == 0 {
		cfg.ObjectCode = defaultObjectCode
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		geo:       geo,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return providerName
}

// Calculate prices a single route via the tariff-by-index endpoint.
func (c *Client) Calculate(ctx context.Context, req *carrier.CalculateRequest) (*carrier.TariffQuote, error) {
	if !(req.WeightKg > 0) || math.IsInf(req.WeightKg, 0) {
		return nil, carrier.NewError(providerName, carrier.KindInvalidInput,
			"total weight must be a positive number")
	}

	destination, err := resolveDestinationIndex(req)
	if err != nil {
		return nil, err
	}

	if !postalIndexPattern.MatchString(c.config.AcceptanceIndex) {
		return nil, carrier.NewError(providerName, carrier.KindConfigMissing,
			"acceptance index is not configured")
	}

	params := TariffParams{
		Object:      c.config.ObjectCode,
		WeightGrams: weightGrams(req.WeightKg),
		FromIndex:   c.config.AcceptanceIndex,
		ToIndex:     destination,
	}

	c.logger.Info("Calculating Russian Post tariff",
		zap.String("from_index", params.FromIndex),
		zap.String("to_index", params.ToIndex),
		zap.Int("weight_grams", params.WeightGrams),
	)

	resp, err := c.apiClient.CalculateTariff(ctx, params)
	if err != nil {
		return nil, c.apiError("could not calculate tariff", err)
	}

	if len(resp.Errors) > 0 {
		return nil, mapLogicalErrors(resp.Errors)
	}

	kopecks := resp.PriceKopecks()
	if kopecks == nil {
		return nil, carrier.NewError(providerName, carrier.KindCarrierRejected,
			"tariff response contains no price").WithDetail(resp.Raw)
	}

	return &carrier.TariffQuote{
		Price:            kopecksToRubles(*kopecks),
		Currency:         "RUB",
		ETA:              formatETA(resp.Delivery),
		ProviderMetadata: resp.Raw,
	}, nil
}

// ListTariffs wraps the single priced-route quote in a one-element list.
// A logical carrier rejection degrades to an empty list; Calculate keeps
// the error.
func (c *Client) ListTariffs(ctx context.Context, req *carrier.CalculateRequest) ([]carrier.TariffQuote, error) {
	quote, err := c.Calculate(ctx, req)
	if err != nil {
		if carrier.IsKind(err, carrier.KindCarrierRejected) {
			c.logger.Warn("Russian Post tariff listing degraded to empty", zap.Error(err))
			return []carrier.TariffQuote{}, nil
		}
		return nil, err
	}
	return []carrier.TariffQuote{*quote}, nil
}

// SearchPickupPoints lists post offices inside a search area resolved from
// a free-text query (via the geocoder) or raw coordinates.
func (c *Client) SearchPickupPoints(ctx context.Context, req *carrier.SearchRequest) ([]carrier.PickupPoint, error) {
	box, err := c.resolveSearchArea(ctx, req)
	if err != nil {
		return nil, err
	}
	if box == nil {
		return nil, carrier.NewError(providerName, carrier.KindDestinationUnresolved,
			"could not determine a search area for pickup offices")
	}

	c.logger.Info("Searching Russian Post offices",
		zap.Float64("min_lat", box.MinLat),
		zap.Float64("max_lat", box.MaxLat),
	)

	offices, err := c.apiClient.SearchOffices(ctx, &OfficeSearchRequest{
		TopLatitude:    box.MaxLat,
		LeftLongitude:  box.MinLon,
		BottomLatitude: box.MinLat,
		RightLongitude: box.MaxLon,
		Filters: OfficeFilters{
			HideClosed:    true,
			HidePrivate:   true,
			HideTemporary: true,
		},
	})
	if err != nil {
		return nil, c.apiError("could not load pickup offices", err)
	}

	points := make([]carrier.PickupPoint, 0, len(offices))
	for _, office := range offices {
		if !office.Usable() {
			continue
		}
		// The operator's own dispatch office is not a customer pickup
		// location.
		if c.config.OfficeIndex != "" && office.PostalCode == c.config.OfficeIndex {
			continue
		}
		points = append(points, normalizeOffice(office))
	}

	return filterByQuery(points, req.Query, req.City), nil
}

// resolveSearchArea prefers the geocoder for a free-text query and falls
// back to a fixed rectangle around raw coordinates.
func (c *Client) resolveSearchArea(ctx context.Context, req *carrier.SearchRequest) (*geocoder.BoundingBox, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = strings.TrimSpace(req.City)
	}

	if query != "" && c.geo != nil {
		box, err := c.geo.BoundingBox(ctx, query)
		if err != nil {
			return nil, carrier.FromTransport(providerName, "geocoder lookup failed", err)
		}
		if box != nil {
			return box, nil
		}
	}

	if req.Lat != 0 && req.Lon != 0 {
		return &geocoder.BoundingBox{
			MinLat: req.Lat - searchRadiusDegrees,
			MaxLat: req.Lat + searchRadiusDegrees,
			MinLon: req.Lon - searchRadiusDegrees,
			MaxLon: req.Lon + searchRadiusDegrees,
		}, nil
	}

	return nil, nil
}

// apiError maps an APIClient failure to a tagged provider error.
func (c *Client) apiError(message string, err error) error {
	var provErr *carrier.Error
	if errors.As(err, &provErr) {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return carrier.NewError(providerName, carrier.KindCarrierRejected, message).
			WithDetail(apiErr.Body).
			WithCause(err)
	}
	return carrier.FromTransport(providerName, message, err)
}

// ============================================================================
// Helpers
// ============================================================================

// resolveDestinationIndex maps the request to a destination postal index.
// The pickup point id is the index itself; for door delivery it comes from
// the address.
func resolveDestinationIndex(req *carrier.CalculateRequest) (string, error) {
	if req.Type == carrier.TypePVZ {
		index := strings.TrimSpace(req.PickupPointID)
		if !postalIndexPattern.MatchString(index) {
			return "", carrier.NewError(providerName, carrier.KindInvalidInput,
				"pickup_point_id must be a 5-6 digit postal index")
		}
		return index, nil
	}

	if req.Address == nil {
		return "", carrier.NewError(providerName, carrier.KindInvalidInput,
			"delivery address is required for door delivery")
	}
	index := strings.TrimSpace(req.Address.PostalCode)
	if !postalIndexPattern.MatchString(index) {
		return "", carrier.NewError(providerName, carrier.KindInvalidInput,
			"address postal code must be a 5-6 digit postal index")
	}
	return index, nil
}

// mapLogicalErrors turns the carrier errors array into a tagged error.
// Code 2004 is distinguished: the operator's acceptance index is not
// authorized for pickup, which the site operator must fix.
func mapLogicalErrors(logical []LogicalError) error {
	for _, entry := range logical {
		if entry.Code == CodeAcceptanceIndexRejected {
			message := "acceptance index is not authorized for pickup"
			if entry.Msg != "" {
				message = fmt.Sprintf("%s: %s", message, entry.Msg)
			}
			return carrier.NewError(providerName, carrier.KindCarrierRejected, message).
				WithCode(entry.Code).
				WithDetail(logical)
		}
	}

	joined := (&TariffResponse{Errors: logical}).JoinedErrors()
	err := carrier.NewError(providerName, carrier.KindCarrierRejected, joined).
		WithDetail(logical)
	if len(logical) > 0 {
		err = err.WithCode(logical[0].Code)
	}
	return err
}

func weightGrams(weightKg float64) int {
	grams := int(math.Round(weightKg * 1000))
	if grams < 1 {
		grams = 1
	}
	return grams
}

// kopecksToRubles converts minor currency units to major with 2-decimal
// rounding.
func kopecksToRubles(kopecks int64) float64 {
	return math.Round(float64(kopecks)) / 100
}

// formatETA renders the delivery period as the storefront shows it:
// "3-5 дн. до 2025-01-15", degrading gracefully when parts are missing.
func formatETA(terms *DeliveryTerms) string {
	if terms == nil {
		return ""
	}

	var rangeLabel string
	if terms.Min != nil && terms.Max != nil {
		rangeLabel = fmt.Sprintf("%d-%d дн.", *terms.Min, *terms.Max)
	}

	deadline := formatDeadline(terms.Deadline)
	switch {
	case rangeLabel != "" && deadline != "":
		return fmt.Sprintf("%s до %s", rangeLabel, deadline)
	case rangeLabel != "":
		return rangeLabel
	case deadline != "":
		return "до " + deadline
	default:
		return ""
	}
}

// formatDeadline converts the compact YYYYMMDD deadline (possibly carrying
// a time suffix) to YYYY-MM-DD. Unparseable input degrades to empty.
func formatDeadline(raw string) string {
	if len(raw) < 8 {
		return ""
	}
	parsed, err := time.Parse("20060102", raw[:8])
	if err != nil {
		return ""
	}
	return parsed.Format("2006-01-02")
}

func normalizeOffice(office Office) carrier.PickupPoint {
	name := "Почта России " + office.PostalCode
	address := office.AddressSource
	if address != "" && office.Settlement != "" && !strings.Contains(strings.ToLower(address), strings.ToLower(office.Settlement)) {
		address = office.Settlement + ", " + address
	}
	return carrier.PickupPoint{
		ID:      office.PostalCode,
		Name:    name,
		Address: address,
		Lat:     office.Latitude,
		Lon:     office.Longitude,
	}
}

// filterByQuery applies a case-insensitive substring filter against the
// original query and, when distinct, the city, preferring city-filtered
// results when non-empty.
func filterByQuery(points []carrier.PickupPoint, query, city string) []carrier.PickupPoint {
	query = strings.TrimSpace(query)
	city = strings.TrimSpace(city)

	result := points
	if query != "" {
		result = matchSubstring(points, query)
	}
	if city != "" && !strings.EqualFold(city, query) {
		if cityMatched := matchSubstring(points, city); len(cityMatched) > 0 {
			result = cityMatched
		}
	}
	return result
}

func matchSubstring(points []carrier.PickupPoint, needle string) []carrier.PickupPoint {
	lowered := strings.ToLower(needle)
	matched := make([]carrier.PickupPoint, 0, len(points))
	for _, point := range points {
		haystack := strings.ToLower(point.Name + " " + point.Address)
		if strings.Contains(haystack, lowered) {
			matched = append(matched, point)
		}
	}
	return matched
}

// Ensure Client implements the provider interface
var _ carrier.Provider = (*Client)(nil)
