package cdek_test

import (
	"context"
	"strings"
	"testing"

	"github.com/lavkamarket/delivery/pkg/carrier"
	"github.com/lavkamarket/delivery/pkg/carrier/cdek"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(mockClient *cdek.MockAPIClient) *cdek.Client {
	logger := otelzap.New(zap.NewNop())
	return cdek.NewWithAPIClient(
		cdek.Config{
			ClientID:       "test-client",
			ClientSecret:   "test-secret",
			OriginCityCode: 270,
		},
		mockClient,
		nil,
		logger,
		nil,
	)
}

func pvzRequest() *carrier.CalculateRequest {
	return &carrier.CalculateRequest{
		Type:             carrier.TypePVZ,
		WeightKg:         1.5,
		PickupPointID:    "MSK67",
		ProviderMetadata: map[string]any{"to_city_code": 44},
	}
}

func TestClient_Name(t *testing.T) {
	client := newTestClient(cdek.NewMockAPIClient())
	assert.Equal(t, "cdek", client.Name())
}

func TestSearchPickupPoints_Success(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	client := newTestClient(mockAPI)

	points, err := client.SearchPickupPoints(context.Background(), &carrier.SearchRequest{
		Query: "Москва",
	})

	require.NoError(t, err)
	require.Len(t, points, 3) // Mock returns 2 PVZ + 1 locker

	// Pickup points come before lockers.
	assert.Equal(t, "MSK67", points[0].ID)
	assert.Equal(t, "MSK12", points[1].ID)
	assert.Equal(t, "MSK144", points[2].ID)
	assert.True(t, strings.HasSuffix(points[2].Name, " (постамат)"))
	assert.Equal(t, "44", points[0].CityCode)
	assert.NotNil(t, points[0].Lat)
}

func TestSearchPickupPoints_SendMode(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	client := newTestClient(mockAPI)

	points, err := client.SearchPickupPoints(context.Background(), &carrier.SearchRequest{
		Query: "Москва",
		Mode:  carrier.ModeSend,
	})

	require.NoError(t, err)
	// Only MSK67 advertises reception capability in the mock data.
	require.Len(t, points, 1)
	assert.Equal(t, "MSK67", points[0].ID)
}

func TestSearchPickupPoints_MissingQuery(t *testing.T) {
	client := newTestClient(cdek.NewMockAPIClient())

	_, err := client.SearchPickupPoints(context.Background(), &carrier.SearchRequest{})

	assert.True(t, carrier.IsKind(err, carrier.KindInvalidInput))
}

func TestSearchPickupPoints_CityNotFound(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	mockAPI.OnSearchCities = func(ctx context.Context, token string, params cdek.CitySearchParams) ([]cdek.City, error) {
		return []cdek.City{}, nil
	}
	client := newTestClient(mockAPI)

	_, err := client.SearchPickupPoints(context.Background(), &carrier.SearchRequest{
		Query: "Несуществующий город",
	})

	assert.True(t, carrier.IsKind(err, carrier.KindDestinationUnresolved))
}

func TestSearchPickupPoints_NumericQuerySkipsCitySearch(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	mockAPI.OnSearchCities = func(ctx context.Context, token string, params cdek.CitySearchParams) ([]cdek.City, error) {
		t.Fatal("city search must not run for a numeric city code")
		return nil, nil
	}
	var gotCityCode string
	mockAPI.OnListDeliveryPoints = func(ctx context.Context, token string, params cdek.DeliveryPointParams) ([]cdek.DeliveryPoint, error) {
		gotCityCode = params.CityCode
		return nil, nil
	}
	client := newTestClient(mockAPI)

	_, err := client.SearchPickupPoints(context.Background(), &carrier.SearchRequest{
		Query: "44",
	})

	require.NoError(t, err)
	assert.Equal(t, "44", gotCityCode)
}

func TestSearchPickupPoints_TokenReused(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	client := newTestClient(mockAPI)

	_, err := client.SearchPickupPoints(context.Background(), &carrier.SearchRequest{Query: "44"})
	require.NoError(t, err)
	_, err = client.SearchPickupPoints(context.Background(), &carrier.SearchRequest{Query: "44"})
	require.NoError(t, err)

	assert.Equal(t, 1, mockAPI.TokenRequests, "second call must reuse the cached token")
}

func TestCalculate_CheapestSelected(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	client := newTestClient(mockAPI)

	quote, err := client.Calculate(context.Background(), pvzRequest())

	require.NoError(t, err)
	// Mock offers 300 (code 137) and 250 (code 136).
	assert.Equal(t, 250.0, quote.Price)
	assert.Equal(t, "136", quote.TariffCode)
	assert.Equal(t, "RUB", quote.Currency)
	assert.Equal(t, "3-5 дн.", quote.ETA)
}

func TestCalculate_ForcedTariffCode(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	client := newTestClient(mockAPI)

	req := pvzRequest()
	req.TariffCode = "137"
	quote, err := client.Calculate(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 300.0, quote.Price)
	assert.Equal(t, "137", quote.TariffCode)
}

func TestCalculate_ForcedTariffCodeNoMatch(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	client := newTestClient(mockAPI)

	req := pvzRequest()
	req.TariffCode = "999"
	quote, err := client.Calculate(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "136", quote.TariffCode, "unmatched forced code falls back to cheapest")
}

func TestCalculate_InvalidWeight(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	client := newTestClient(mockAPI)

	req := pvzRequest()
	req.WeightKg = 0
	_, err := client.Calculate(context.Background(), req)

	assert.True(t, carrier.IsKind(err, carrier.KindInvalidInput))
	assert.Equal(t, 0, mockAPI.TokenRequests, "validation must fail before any network call")
}

func TestCalculate_WeightConvertedToGrams(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	var gotWeight int
	var gotPoint string
	mockAPI.OnListTariffs = func(ctx context.Context, token string, req *cdek.TariffListRequest) (*cdek.TariffListResponse, error) {
		gotWeight = req.Packages[0].Weight
		gotPoint = req.DeliveryPoint
		return &cdek.TariffListResponse{Tariffs: []cdek.TariffEntry{
			cdek.MockTariff(137, "Посылка склад-склад", 300, 2, 4),
		}}, nil
	}
	client := newTestClient(mockAPI)

	req := pvzRequest()
	req.WeightKg = 1.5
	_, err := client.Calculate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1500, gotWeight)
	assert.Equal(t, "MSK67", gotPoint, "the selected point id travels to the carrier verbatim")

	req.WeightKg = 0.0004
	_, err = client.Calculate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, gotWeight, "tiny weights round up to one gram")
}

func TestCalculate_MissingToCityCode(t *testing.T) {
	client := newTestClient(cdek.NewMockAPIClient())

	req := pvzRequest()
	req.ProviderMetadata = nil
	_, err := client.Calculate(context.Background(), req)

	assert.True(t, carrier.IsKind(err, carrier.KindDestinationUnresolved))
}

func TestCalculate_MalformedToCityCode(t *testing.T) {
	client := newTestClient(cdek.NewMockAPIClient())

	req := pvzRequest()
	req.ProviderMetadata = map[string]any{"to_city_code": "not-a-number"}
	_, err := client.Calculate(context.Background(), req)

	assert.True(t, carrier.IsKind(err, carrier.KindInvalidInput))
}

func TestCalculate_OriginNotConfigured(t *testing.T) {
	logger := otelzap.New(zap.NewNop())
	client := cdek.NewWithAPIClient(cdek.Config{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
	}, cdek.NewMockAPIClient(), nil, logger, nil)

	_, err := client.Calculate(context.Background(), pvzRequest())

	assert.True(t, carrier.IsKind(err, carrier.KindConfigMissing))
}

func TestCalculate_MissingCredentials(t *testing.T) {
	logger := otelzap.New(zap.NewNop())
	client := cdek.NewWithAPIClient(cdek.Config{
		OriginCityCode: 270,
	}, cdek.NewMockAPIClient(), nil, logger, nil)

	_, err := client.Calculate(context.Background(), pvzRequest())

	assert.True(t, carrier.IsKind(err, carrier.KindConfigMissing))
}

func TestCalculate_NoTariffs(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	mockAPI.OnListTariffs = func(ctx context.Context, token string, req *cdek.TariffListRequest) (*cdek.TariffListResponse, error) {
		return &cdek.TariffListResponse{}, nil
	}
	client := newTestClient(mockAPI)

	_, err := client.Calculate(context.Background(), pvzRequest())

	assert.True(t, carrier.IsKind(err, carrier.KindCarrierRejected))
}

func TestCalculate_DoorUsesAddressChain(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	var searches []cdek.CitySearchParams
	mockAPI.OnSearchCities = func(ctx context.Context, token string, params cdek.CitySearchParams) ([]cdek.City, error) {
		searches = append(searches, params)
		// Postal-code lookups miss, the city+region one matches.
		if params.City != "" {
			return []cdek.City{{Code: 44, City: "Москва"}}, nil
		}
		return nil, nil
	}
	client := newTestClient(mockAPI)

	quote, err := client.Calculate(context.Background(), &carrier.CalculateRequest{
		Type:     carrier.TypeDoor,
		WeightKg: 2,
		Address: &carrier.Address{
			Region:     "Москва",
			City:       "Москва",
			PostalCode: "101000",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 250.0, quote.Price)
	require.GreaterOrEqual(t, len(searches), 3)
	assert.Equal(t, "101000", searches[0].PostalCode)
	assert.Equal(t, "101000", searches[1].PostCode)
	assert.Equal(t, "Москва", searches[2].City)
}

func TestCalculate_DoorWithoutCity(t *testing.T) {
	client := newTestClient(cdek.NewMockAPIClient())

	_, err := client.Calculate(context.Background(), &carrier.CalculateRequest{
		Type:     carrier.TypeDoor,
		WeightKg: 2,
		Address:  &carrier.Address{Street: "Ленина"},
	})

	assert.True(t, carrier.IsKind(err, carrier.KindInvalidInput))
}

func TestListTariffs_Success(t *testing.T) {
	client := newTestClient(cdek.NewMockAPIClient())

	tariffs, err := client.ListTariffs(context.Background(), pvzRequest())

	require.NoError(t, err)
	require.Len(t, tariffs, 2)
	assert.Equal(t, "137", tariffs[0].TariffCode)
	assert.Equal(t, "136", tariffs[1].TariffCode)
	assert.NotNil(t, tariffs[0].ProviderMetadata)
}

func TestListTariffs_DegradesOnCarrierRejection(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	mockAPI.OnListTariffs = func(ctx context.Context, token string, req *cdek.TariffListRequest) (*cdek.TariffListResponse, error) {
		return nil, &cdek.APIError{StatusCode: 400, Body: `{"errors":[{"message":"no routes"}]}`}
	}
	client := newTestClient(mockAPI)

	tariffs, err := client.ListTariffs(context.Background(), pvzRequest())

	require.NoError(t, err, "carrier rejection degrades to an empty listing")
	assert.Empty(t, tariffs)
}

func TestListTariffs_KeepsInputErrors(t *testing.T) {
	client := newTestClient(cdek.NewMockAPIClient())

	req := pvzRequest()
	req.WeightKg = -1
	_, err := client.ListTariffs(context.Background(), req)

	assert.True(t, carrier.IsKind(err, carrier.KindInvalidInput))
}

func TestCalculate_KeepsCarrierRejection(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	mockAPI.OnListTariffs = func(ctx context.Context, token string, req *cdek.TariffListRequest) (*cdek.TariffListResponse, error) {
		return nil, &cdek.APIError{StatusCode: 400, Body: `{"errors":[{"message":"no routes"}]}`}
	}
	client := newTestClient(mockAPI)

	_, err := client.Calculate(context.Background(), pvzRequest())

	assert.True(t, carrier.IsKind(err, carrier.KindCarrierRejected))
}

func TestCalculate_APIErrorSimulated(t *testing.T) {
	mockAPI := cdek.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	client := newTestClient(mockAPI)

	_, err := client.Calculate(context.Background(), pvzRequest())

	assert.Error(t, err)
	assert.True(t, carrier.IsKind(err, carrier.KindCarrierRejected))
}
