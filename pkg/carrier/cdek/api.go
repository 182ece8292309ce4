package cdek

import (
	"context"
	"encoding/json"
	"fmt"
)

// APIClient defines the interface for CDEK API operations. This abstraction
// allows for mock implementations during testing and real implementations
// in production.
type APIClient interface {
	// RequestToken performs the OAuth client-credentials exchange.
	RequestToken(ctx context.Context) (*TokenResponse, error)

	// SearchCities queries the city-search endpoint.
	SearchCities(ctx context.Context, token string, params CitySearchParams) ([]City, error)

	// ListDeliveryPoints lists pickup points for a city and location type.
	ListDeliveryPoints(ctx context.Context, token string, params DeliveryPointParams) ([]DeliveryPoint, error)

	// ListTariffs calls the multi-tariff calculator endpoint.
	ListTariffs(ctx context.Context, token string, req *TariffListRequest) (*TariffListResponse, error)
}

// Location type codes accepted by the delivery-point endpoint.
const (
	PointTypePVZ      = "PVZ"
	PointTypePostamat = "POSTAMAT"
)

// ============================================================================
// API Request/Response Types (match CDEK REST API v2 structure)
// ============================================================================

// TokenResponse is the OAuth token endpoint response.
// POST /oauth/token
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in"`
}

// CitySearchParams are the query parameters for the city-search endpoint.
// The endpoint is inconsistent about which parameter combination yields a
// match, hence both PostalCode and PostCode spellings.
type CitySearchParams struct {
	City       string
	Region     string
	PostalCode string
	PostCode   string
	Size       int
}

// City is a single city-search result.
// GET /location/cities
type City struct {
	Code       int    `json:"code"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// DeliveryPointParams are the query parameters for the point-listing
// endpoint.
type DeliveryPointParams struct {
	CityCode string
	Type     string
	Lat      float64
	Lon      float64
}

// PointLocation is the nested location block of a delivery point.
type PointLocation struct {
	CityCode    int      `json:"city_code,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Address     string   `json:"address,omitempty"`
	AddressFull string   `json:"address_full,omitempty"`
}

// DeliveryPoint is a single entry from the point-listing endpoint.
// GET /deliverypoints
//
// Raw keeps the complete payload: the carrier does not document a stable
// capability schema, so capability inference scans the raw object.
type DeliveryPoint struct {
	Code     string         `json:"code"`
	UUID     string         `json:"uuid,omitempty"`
	Name     string         `json:"name,omitempty"`
	Type     string         `json:"type,omitempty"`
	Location *PointLocation `json:"location,omitempty"`

	Raw map[string]any `json:"-"`
}

// UnmarshalJSON decodes the typed fields and keeps the raw payload.
func (p *DeliveryPoint) UnmarshalJSON(data []byte) error {
	type alias DeliveryPoint
	var typed alias
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = DeliveryPoint(typed)
	p.Raw = raw
	return nil
}

// LocationRef identifies a route endpoint. The calculator accepts the city
// code under both field names depending on API version, so both are sent.
type LocationRef struct {
	CityCode int `json:"city_code"`
	Code     int `json:"code"`
}

// PackageRef is a parcel in a tariff request. Weight is in grams.
type PackageRef struct {
	Weight int `json:"weight"`
}

// TariffListRequest is the multi-tariff calculator request.
// POST /calculator/tarifflist
type TariffListRequest struct {
	FromLocation  LocationRef  `json:"from_location"`
	ToLocation    LocationRef  `json:"to_location"`
	DeliveryPoint string       `json:"delivery_point,omitempty"`
	Packages      []PackageRef `json:"packages"`
}

// TariffPeriod is the nested delivery-period shape some API versions use.
type TariffPeriod struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// TariffEntry is a single tariff candidate. The mapping between the
// calculator's numeric fields and price/ETA is not fixed across API
// versions, so several candidate field names are read defensively.
type TariffEntry struct {
	TariffCode int    `json:"tariff_code,omitempty"`
	Code       int    `json:"code,omitempty"`
	TariffName string `json:"tariff_name,omitempty"`
	Title      string `json:"title,omitempty"`

	TotalSum    *float64 `json:"total_sum,omitempty"`
	DeliverySum *float64 `json:"delivery_sum,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Currency    string   `json:"currency,omitempty"`

	PeriodMin *int          `json:"period_min,omitempty"`
	PeriodMax *int          `json:"period_max,omitempty"`
	Period    *TariffPeriod `json:"period,omitempty"`

	Raw map[string]any `json:"-"`
}

// UnmarshalJSON decodes the typed fields and keeps the raw payload for
// provider metadata.
func (t *TariffEntry) UnmarshalJSON(data []byte) error {
	type alias TariffEntry
	var typed alias
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = TariffEntry(typed)
	t.Raw = raw
	return nil
}

// PriceValue returns the first usable price candidate, nil when none.
func (t *TariffEntry) PriceValue() *float64 {
	for _, candidate := range []*float64{t.TotalSum, t.DeliverySum, t.Price} {
		if candidate != nil {
			return candidate
		}
	}
	return nil
}

// CodeValue returns the tariff code under either field name, 0 when absent.
func (t *TariffEntry) CodeValue() int {
	if t.TariffCode != 0 {
		return t.TariffCode
	}
	return t.Code
}

// NameValue returns the tariff display name under either field name.
func (t *TariffEntry) NameValue() string {
	if t.TariffName != "" {
		return t.TariffName
	}
	return t.Title
}

// ETARange returns the delivery period bounds, reading the flat and nested
// shapes. ok is false unless both bounds are present.
func (t *TariffEntry) ETARange() (min, max int, ok bool) {
	lo, hi := t.PeriodMin, t.PeriodMax
	if lo == nil && t.Period != nil {
		lo = t.Period.Min
	}
	if hi == nil && t.Period != nil {
		hi = t.Period.Max
	}
	if lo == nil || hi == nil {
		return 0, 0, false
	}
	return *lo, *hi, true
}

// TariffListResponse is the multi-tariff calculator response. Depending on
// API version the body is either a bare array or {"tariffs": [...]}.
type TariffListResponse struct {
	Tariffs []TariffEntry
}

// UnmarshalJSON accepts both response shapes.
func (r *TariffListResponse) UnmarshalJSON(data []byte) error {
	var bare []TariffEntry
	if err := json.Unmarshal(data, &bare); err == nil {
		r.Tariffs = bare
		return nil
	}
	var wrapped struct {
		Tariffs []TariffEntry `json:"tariffs"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	r.Tariffs = wrapped.Tariffs
	return nil
}

// APIError represents a non-2xx response from the CDEK API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cdek api: HTTP %d: %s", e.StatusCode, e.Body)
}
