package cdek

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	TokenRequests int

	OnRequestToken       func(ctx context.Context) (*TokenResponse, error)
	OnSearchCities       func(ctx context.Context, token string, params CitySearchParams) ([]City, error)
	OnListDeliveryPoints func(ctx context.Context, token string, params DeliveryPointParams) ([]DeliveryPoint, error)
	OnListTariffs        func(ctx context.Context, token string, req *TariffListRequest) (*TariffListResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// RequestToken returns a mock OAuth token.
func (m *MockAPIClient) RequestToken(ctx context.Context) (*TokenResponse, error) {
	if err := m.before(); err != nil {
		return nil, err
	}
	m.TokenRequests++
	if m.OnRequestToken != nil {
		return m.OnRequestToken(ctx)
	}
	return &TokenResponse{
		AccessToken: "mock-token-" + uuid.New().String()[:8],
		TokenType:   "bearer",
		ExpiresIn:   3600,
	}, nil
}

// SearchCities returns a single mock city match.
func (m *MockAPIClient) SearchCities(ctx context.Context, token string, params CitySearchParams) ([]City, error) {
	if err := m.before(); err != nil {
		return nil, err
	}
	if m.OnSearchCities != nil {
		return m.OnSearchCities(ctx, token, params)
	}
	return []City{
		{Code: 44, City: "Москва", Region: "Москва"},
	}, nil
}

// ListDeliveryPoints returns mock pickup points for the requested type.
func (m *MockAPIClient) ListDeliveryPoints(ctx context.Context, token string, params DeliveryPointParams) ([]DeliveryPoint, error) {
	if err := m.before(); err != nil {
		return nil, err
	}
	if m.OnListDeliveryPoints != nil {
		return m.OnListDeliveryPoints(ctx, token, params)
	}

	if params.Type == PointTypePostamat {
		return []DeliveryPoint{
			MockPoint("MSK144", "Постамат на Тверской", PointTypePostamat, map[string]any{
				"is_handout": true,
			}),
		}, nil
	}
	return []DeliveryPoint{
		MockPoint("MSK67", "На Ленинском", PointTypePVZ, map[string]any{
			"have_cash":          true,
			"is_handout":         true,
			"is_reception":       true,
			"allowed_operations": []any{"выдача заказов", "приём отправлений"},
		}),
		MockPoint("MSK12", "На Арбате", PointTypePVZ, map[string]any{
			"is_handout": true,
		}),
	}, nil
}

// ListTariffs returns two mock tariff candidates.
func (m *MockAPIClient) ListTariffs(ctx context.Context, token string, req *TariffListRequest) (*TariffListResponse, error) {
	if err := m.before(); err != nil {
		return nil, err
	}
	if m.OnListTariffs != nil {
		return m.OnListTariffs(ctx, token, req)
	}

	return &TariffListResponse{
		Tariffs: []TariffEntry{
			MockTariff(137, "Посылка склад-склад", 300, 2, 4),
			MockTariff(136, "Посылка дверь-склад", 250, 3, 5),
		},
	}, nil
}

func (m *MockAPIClient) before() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return &APIError{StatusCode: 500, Body: `{"errors":[{"code":"mock","message":"Simulated API error"}]}`}
	}
	return nil
}

// MockPoint builds a delivery point whose Raw payload includes both the
// typed fields and the extra capability flags, the way a decoded live
// response would.
func MockPoint(code, name, pointType string, extra map[string]any) DeliveryPoint {
	lat, lon := 55.75, 37.61
	raw := map[string]any{
		"code": code,
		"name": name,
		"type": pointType,
		"location": map[string]any{
			"city_code":    44,
			"latitude":     lat,
			"longitude":    lon,
			"address":      "ул. Примерная, 1",
			"address_full": "г. Москва, ул. Примерная, 1",
		},
	}
	for key, value := range extra {
		raw[key] = value
	}
	return DeliveryPoint{
		Code: code,
		Name: name,
		Type: pointType,
		Location: &PointLocation{
			CityCode:    44,
			Latitude:    &lat,
			Longitude:   &lon,
			Address:     "ул. Примерная, 1",
			AddressFull: "г. Москва, ул. Примерная, 1",
		},
		Raw: raw,
	}
}

// MockTariff builds a tariff entry with a populated Raw payload.
func MockTariff(code int, name string, price float64, periodMin, periodMax int) TariffEntry {
	return TariffEntry{
		TariffCode: code,
		TariffName: name,
		TotalSum:   &price,
		Currency:   "RUB",
		PeriodMin:  &periodMin,
		PeriodMax:  &periodMax,
		Raw: map[string]any{
			"tariff_code": code,
			"tariff_name": name,
			"total_sum":   price,
			"currency":    "RUB",
			"period_min":  periodMin,
			"period_max":  periodMax,
		},
	}
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
