// Package cdek provides integration with the CDEK courier network API.
package cdek

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lavkamarket/delivery/internal/tokencache"
	"github.com/lavkamarket/delivery/pkg/carrier"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const providerName = "cdek"

// tokenExpiryMargin: a token within this window of expiry is treated as
// already expired and refreshed proactively.
const tokenExpiryMargin = 60 * time.Second

const lockerNameSuffix = " (постамат)"

// Config holds CDEK configuration.
type Config struct {
	ClientID       string
	ClientSecret   string
	OriginCityCode int // Dispatch origin, required for tariff calculation
	BaseURL        string
	UseMock        bool // When true, uses mock API client
}

// Client is the CDEK delivery provider. It implements the carrier.Provider
// interface and delegates API calls to the underlying APIClient (mock or
// HTTP).
type Client struct {
	config     Config
	apiClient  APIClient
	tokens     tokencache.Store
	refresh    singleflight.Group
	vocabulary Vocabulary
	logger     *otelzap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// New creates a new CDEK client. A nil token store falls back to an
// in-memory store owned by this instance.
func New(cfg Config, tokens tokencache.Store, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:      cfg.BaseURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Timeout:      30 * time.Second,
		})
	}
	return NewWithAPIClient(cfg, apiClient, tokens, logger, tracer)
}

// NewWithAPIClient creates a new CDEK client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, tokens tokencache.Store, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tokens == nil {
		tokens = tokencache.NewMemory()
	}
	return &Client{
		config:     cfg,
		apiClient:  apiClient,
		tokens:     tokens,
		vocabulary: DefaultVocabulary,
		logger:     logger,
		tracer:     tracer,
		now:        time.Now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return providerName
}

// SearchPickupPoints lists CDEK pickup points and lockers for a city.
func (c *Client) SearchPickupPoints(ctx context.Context, req *carrier.SearchRequest) ([]carrier.PickupPoint, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = strings.TrimSpace(req.City)
	}
	if query == "" {
		return nil, carrier.NewError(providerName, carrier.KindInvalidInput,
			"city or query is required for pickup point search")
	}

	cityCode, err := c.resolveCityCode(ctx, query)
	if err != nil {
		return nil, err
	}
	if cityCode == "" {
		return nil, carrier.NewError(providerName, carrier.KindDestinationUnresolved,
			fmt.Sprintf("could not resolve a city for %q", query))
	}

	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Searching CDEK pickup points",
		zap.String("city_code", cityCode),
		zap.String("mode", string(req.Mode)),
	)

	merged := make([]DeliveryPoint, 0, 64)
	seen := make(map[string]bool)
	for _, pointType := range []string{PointTypePVZ, PointTypePostamat} {
		points, err := c.apiClient.ListDeliveryPoints(ctx, token, DeliveryPointParams{
			CityCode: cityCode,
			Type:     pointType,
			Lat:      req.Lat,
			Lon:      req.Lon,
		})
		if err != nil {
			return nil, c.apiError("could not load pickup points", err)
		}
		for _, point := range points {
			id := pointID(point)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			merged = append(merged, point)
		}
	}

	filtered := make([]DeliveryPoint, 0, len(merged))
	for _, point := range merged {
		caps := c.vocabulary.Infer(point.Raw)
		if req.Mode == carrier.ModeSend {
			if caps.CanDropoff {
				filtered = append(filtered, point)
			}
			continue
		}
		if caps.CanPickup {
			filtered = append(filtered, point)
		}
	}

	// Pickup points before lockers, stable otherwise.
	sort.SliceStable(filtered, func(i, j int) bool {
		return !isLocker(filtered[i]) && isLocker(filtered[j])
	})

	result := make([]carrier.PickupPoint, 0, len(filtered))
	for _, point := range filtered {
		result = append(result, normalizePoint(point))
	}
	return result, nil
}

// ListTariffs lists tariff candidates for a shipment. A logical carrier
// rejection of the tariff endpoint degrades to an empty list so that "no
// tariffs available" does not break a comparison view; Calculate keeps the
// error.
func (c *Client) ListTariffs(ctx context.Context, req *carrier.CalculateRequest) ([]carrier.TariffQuote, error) {
	quotes, err := c.fetchTariffs(ctx, req)
	if err != nil && carrier.IsKind(err, carrier.KindCarrierRejected) {
		c.logger.Warn("CDEK tariff listing degraded to empty", zap.Error(err))
		return []carrier.TariffQuote{}, nil
	}
	return quotes, err
}

// Calculate selects a single tariff: the forced tariff code when it matches
// a candidate, the cheapest candidate otherwise.
func (c *Client) Calculate(ctx context.Context, req *carrier.CalculateRequest) (*carrier.TariffQuote, error) {
	quotes, err := c.fetchTariffs(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, carrier.NewError(providerName, carrier.KindCarrierRejected,
			"no tariffs available for the requested route")
	}

	if req.TariffCode != "" {
		for i := range quotes {
			if quotes[i].TariffCode == req.TariffCode {
				return &quotes[i], nil
			}
		}
	}

	cheapest := &quotes[0]
	for i := range quotes[1:] {
		if quotes[i+1].Price < cheapest.Price {
			cheapest = &quotes[i+1]
		}
	}
	return cheapest, nil
}

func (c *Client) fetchTariffs(ctx context.Context, req *carrier.CalculateRequest) ([]carrier.TariffQuote, error) {
	if !(req.WeightKg > 0) || math.IsInf(req.WeightKg, 0) {
		return nil, carrier.NewError(providerName, carrier.KindInvalidInput,
			"total weight must be a positive number")
	}
	if c.config.OriginCityCode <= 0 {
		return nil, carrier.NewError(providerName, carrier.KindConfigMissing,
			"origin city code is not configured")
	}

	destination, err := c.resolveDestination(ctx, req)
	if err != nil {
		return nil, err
	}

	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	apiReq := &TariffListRequest{
		FromLocation: LocationRef{CityCode: c.config.OriginCityCode, Code: c.config.OriginCityCode},
		ToLocation:   LocationRef{CityCode: destination, Code: destination},
		Packages:     []PackageRef{{Weight: weightGrams(req.WeightKg)}},
	}
	if req.Type == carrier.TypePVZ {
		apiReq.DeliveryPoint = req.PickupPointID
	}

	c.logger.Info("Listing CDEK tariffs",
		zap.Int("from_city_code", c.config.OriginCityCode),
		zap.Int("to_city_code", destination),
		zap.Int("weight_grams", apiReq.Packages[0].Weight),
	)

	resp, err := c.apiClient.ListTariffs(ctx, token, apiReq)
	if err != nil {
		return nil, c.apiError("could not list tariffs", err)
	}

	quotes := make([]carrier.TariffQuote, 0, len(resp.Tariffs))
	for _, entry := range resp.Tariffs {
		price := entry.PriceValue()
		code := entry.CodeValue()
		if price == nil || code == 0 {
			continue
		}
		currency := entry.Currency
		if currency == "" {
			currency = "RUB"
		}
		quotes = append(quotes, carrier.TariffQuote{
			Price:            math.Max(0, *price),
			Currency:         currency,
			ETA:              etaLabel(entry),
			TariffCode:       strconv.Itoa(code),
			TariffName:       entry.NameValue(),
			ProviderMetadata: entry.Raw,
		})
	}
	return quotes, nil
}

// resolveDestination maps the request to a destination city code. For
// pickup delivery the caller must supply the point's city code as
// provider_metadata.to_city_code; this subsystem does not re-derive it.
func (c *Client) resolveDestination(ctx context.Context, req *carrier.CalculateRequest) (int, error) {
	if req.Type == carrier.TypePVZ {
		if req.PickupPointID == "" {
			return 0, carrier.NewError(providerName, carrier.KindInvalidInput,
				"pickup_point_id is required for pvz delivery")
		}
		raw, ok := metadataCityCode(req.ProviderMetadata)
		if !ok {
			return 0, carrier.NewError(providerName, carrier.KindDestinationUnresolved,
				"to_city_code is required for pvz calculation (re-select the pickup point)")
		}
		return parseCityCode(raw, "to_city_code")
	}

	if raw, ok := metadataCityCode(req.ProviderMetadata); ok {
		return parseCityCode(raw, "to_city_code")
	}

	if req.Address == nil || req.Address.City == "" {
		return 0, carrier.NewError(providerName, carrier.KindInvalidInput,
			"delivery address with a city is required for door delivery")
	}

	code, err := c.resolveCityCodeByAddress(ctx, req.Address)
	if err != nil {
		return 0, err
	}
	if code == "" {
		return 0, carrier.NewError(providerName, carrier.KindDestinationUnresolved,
			"could not resolve the destination city")
	}
	return parseCityCode(code, "to_city_code")
}

// resolveCityCode maps a free-text city or an already-numeric code to a
// CDEK city code. Returns empty when nothing matched.
func (c *Client) resolveCityCode(ctx context.Context, query string) (string, error) {
	if allDigits(query) {
		return query, nil
	}

	token, err := c.getToken(ctx)
	if err != nil {
		return "", err
	}

	cities, err := c.apiClient.SearchCities(ctx, token, CitySearchParams{City: query})
	if err != nil {
		return "", c.apiError("could not search cities", err)
	}
	if len(cities) == 0 {
		return "", nil
	}
	return strconv.Itoa(cities[0].Code), nil
}

// resolveCityCodeByAddress tries an ordered chain of city-search parameter
// combinations. The endpoint is inconsistent about which combination
// matches a given address, so first non-empty result wins.
func (c *Client) resolveCityCodeByAddress(ctx context.Context, addr *carrier.Address) (string, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return "", err
	}

	search := func(params CitySearchParams) carrier.Resolver[*carrier.Address] {
		return func(ctx context.Context, _ *carrier.Address) (string, error) {
			cities, err := c.apiClient.SearchCities(ctx, token, params)
			if err != nil {
				return "", err
			}
			if len(cities) == 0 {
				return "", nil
			}
			return strconv.Itoa(cities[0].Code), nil
		}
	}

	var strategies []carrier.Resolver[*carrier.Address]
	if addr.PostalCode != "" {
		strategies = append(strategies,
			search(CitySearchParams{PostalCode: addr.PostalCode}),
			search(CitySearchParams{PostCode: addr.PostalCode}),
		)
	}
	if addr.City != "" {
		strategies = append(strategies,
			search(CitySearchParams{City: addr.City, Region: addr.Region}),
			search(CitySearchParams{City: addr.City}),
		)
	}

	code, err := carrier.FirstSuccess(ctx, addr, strategies...)
	if err != nil && code == "" {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", carrier.FromTransport(providerName, "city resolution aborted", ctxErr)
		}
	}
	return code, nil
}

// getToken returns a cached access token, refreshing it when it is within
// the expiry margin. Concurrent refreshes collapse into one exchange.
func (c *Client) getToken(ctx context.Context) (string, error) {
	if token, ok, err := c.tokens.Get(ctx); err == nil && ok && token.ValidFor(c.now(), tokenExpiryMargin) {
		return token.AccessToken, nil
	}

	if c.config.ClientID == "" || c.config.ClientSecret == "" {
		return "", carrier.NewError(providerName, carrier.KindConfigMissing,
			"client id and client secret are not configured")
	}

	value, err, _ := c.refresh.Do("token", func() (any, error) {
		resp, err := c.apiClient.RequestToken(ctx)
		if err != nil {
			return nil, c.apiError("could not obtain access token", err)
		}
		token := tokencache.Token{
			AccessToken: resp.AccessToken,
			ExpiresAt:   c.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		}
		if err := c.tokens.Set(ctx, token); err != nil {
			c.logger.Warn("Failed to cache CDEK token", zap.Error(err))
		}
		return token.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// apiError maps an APIClient failure to a tagged provider error: a carrier
// HTTP response becomes a logical rejection, everything else is transport.
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

func weightGrams(weightKg float64) int {
	grams := int(math.Ceil(weightKg * 1000))
	if grams < 1 {
		grams = 1
	}
	return grams
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func metadataCityCode(metadata map[string]any) (any, bool) {
	if metadata == nil {
		return nil, false
	}
	value, ok := metadata["to_city_code"]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

func parseCityCode(value any, field string) (int, error) {
	var numeric float64
	switch typed := value.(type) {
	case int:
		numeric = float64(typed)
	case float64:
		numeric = typed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, invalidCityCode(field)
		}
		numeric = parsed
	default:
		return 0, invalidCityCode(field)
	}
	if math.IsNaN(numeric) || numeric <= 0 || numeric != math.Trunc(numeric) {
		return 0, invalidCityCode(field)
	}
	return int(numeric), nil
}

func invalidCityCode(field string) error {
	return carrier.NewError(providerName, carrier.KindInvalidInput,
		fmt.Sprintf("%s must be a positive numeric city code", field))
}

func pointID(point DeliveryPoint) string {
	if point.Code != "" {
		return point.Code
	}
	return point.UUID
}

func isLocker(point DeliveryPoint) bool {
	return strings.EqualFold(point.Type, PointTypePostamat)
}

func normalizePoint(point DeliveryPoint) carrier.PickupPoint {
	name := point.Name
	address := ""
	cityCode := ""
	var lat, lon *float64
	if point.Location != nil {
		address = point.Location.AddressFull
		if address == "" {
			address = point.Location.Address
		}
		if name == "" {
			name = point.Location.Address
		}
		if point.Location.CityCode != 0 {
			cityCode = strconv.Itoa(point.Location.CityCode)
		}
		lat = point.Location.Latitude
		lon = point.Location.Longitude
	}
	if name == "" {
		name = "ПВЗ СДЭК"
	}
	if isLocker(point) {
		name += lockerNameSuffix
	}
	return carrier.PickupPoint{
		ID:       pointID(point),
		Name:     name,
		Address:  address,
		CityCode: cityCode,
		Lat:      lat,
		Lon:      lon,
	}
}

func etaLabel(entry TariffEntry) string {
	min, max, ok := entry.ETARange()
	if !ok {
		return ""
	}
	return fmt.Sprintf("%d-%d дн.", min, max)
}

// Ensure Client implements the provider interface
var _ carrier.Provider = (*Client)(nil)
