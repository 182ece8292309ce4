package ruspost

import (
	"context"
	"time"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	TariffRequests int
	OfficeRequests int

	OnCalculateTariff func(ctx context.Context, params TariffParams) (*TariffResponse, error)
	OnSearchOffices   func(ctx context.Context, req *OfficeSearchRequest) ([]Office, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// CalculateTariff returns a mock tariff response priced in kopecks.
func (m *MockAPIClient) CalculateTariff(ctx context.Context, params TariffParams) (*TariffResponse, error) {
	if err := m.before(); err != nil {
		return nil, err
	}
	m.TariffRequests++
	if m.OnCalculateTariff != nil {
		return m.OnCalculateTariff(ctx, params)
	}
	return MockTariffResponse(35990, 3, 5, "20250115"), nil
}

// SearchOffices returns mock offices, including unusable ones the caller
// is expected to filter out.
func (m *MockAPIClient) SearchOffices(ctx context.Context, req *OfficeSearchRequest) ([]Office, error) {
	if err := m.before(); err != nil {
		return nil, err
	}
	m.OfficeRequests++
	if m.OnSearchOffices != nil {
		return m.OnSearchOffices(ctx, req)
	}
	return []Office{
		MockOffice("101000", "ул. Мясницкая, 26", "Москва"),
		MockOffice("101100", "ул. Маросейка, 11", "Москва"),
		func() Office {
			office := MockOffice("102200", "ул. Закрытая, 1", "Москва")
			office.IsTemporaryClosed = true
			return office
		}(),
	}, nil
}

func (m *MockAPIClient) before() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return &APIError{StatusCode: 500, Body: `{"error":"Simulated API error"}`}
	}
	return nil
}

// MockTariffResponse builds a tariff response with a populated Raw payload.
func MockTariffResponse(kopecks int64, daysMin, daysMax int, deadline string) *TariffResponse {
	return &TariffResponse{
		PayNds: &kopecks,
		Delivery: &DeliveryTerms{
			Min:      &daysMin,
			Max:      &daysMax,
			Deadline: deadline,
		},
		Raw: map[string]any{
			"paynds": kopecks,
			"delivery": map[string]any{
				"min":      daysMin,
				"max":      daysMax,
				"deadline": deadline,
			},
		},
	}
}

// MockOffice builds a usable office-finder entry.
func MockOffice(index, address, settlement string) Office {
	lat, lon := 55.76, 37.63
	return Office{
		PostalCode:    index,
		AddressSource: address,
		Settlement:    settlement,
		Latitude:      &lat,
		Longitude:     &lon,
		TypeCode:      "ГОПС",
	}
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
