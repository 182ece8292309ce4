package carrier_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lavkamarket/delivery/pkg/carrier"
	"github.com/lavkamarket/delivery/pkg/carrier/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	registry := carrier.NewRegistry()

	registry.Register(mock.New("cdek"))

	got, err := registry.Get("cdek")
	require.NoError(t, err, "provider should be registered")
	assert.Equal(t, "cdek", got.Name())
}

func TestRegistry_Register_Override(t *testing.T) {
	registry := carrier.NewRegistry()

	registry.Register(mock.New("cdek"))
	assert.Equal(t, 1, registry.Count())

	// Register again with same name should override
	registry.Register(mock.New("cdek"))
	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_Get_UnknownProvider(t *testing.T) {
	registry := carrier.NewRegistry()
	registry.Register(mock.New("cdek"))

	_, err := registry.Get("dhl")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, carrier.ErrInvalidProvider))
	assert.Equal(t, carrier.KindInvalidInput, carrier.KindOf(err))
}

func TestRegistry_Get_KnownButNotRegistered(t *testing.T) {
	registry := carrier.NewRegistry()

	// "ruspost" is a valid provider name, just not enabled here.
	_, err := registry.Get("ruspost")
	assert.True(t, errors.Is(err, carrier.ErrInvalidProvider))
}

func TestRegistry_Get_CaseInsensitive(t *testing.T) {
	registry := carrier.NewRegistry()
	registry.Register(mock.New("cdek"))

	got, err := registry.Get("CDEK")
	require.NoError(t, err)
	assert.Equal(t, "cdek", got.Name())
}

func TestRegistry_Names(t *testing.T) {
	registry := carrier.NewRegistry()

	registry.Register(mock.New("cdek"))
	registry.Register(mock.New("ruspost"))

	names := registry.Names()
	assert.Len(t, names, 2)
	assert.Contains(t, names, "cdek")
	assert.Contains(t, names, "ruspost")
}

func TestRegistry_Calculate_RoutesToProvider(t *testing.T) {
	registry := carrier.NewRegistry()
	registry.Register(mock.New("cdek"))

	quote, err := registry.Calculate(context.Background(), "cdek", &carrier.CalculateRequest{
		Type:          carrier.TypePVZ,
		WeightKg:      1.5,
		PickupPointID: "MSK67",
	})
	require.NoError(t, err)
	assert.Equal(t, "RUB", quote.Currency)
	assert.Greater(t, quote.Price, 0.0)
}

func TestRegistry_Calculate_UnknownProvider(t *testing.T) {
	registry := carrier.NewRegistry()
	registry.Register(mock.New("cdek"))

	_, err := registry.Calculate(context.Background(), "dhl", &carrier.CalculateRequest{
		Type:     carrier.TypePVZ,
		WeightKg: 1,
	})
	assert.True(t, errors.Is(err, carrier.ErrInvalidProvider))
}

func TestRegistry_Calculate_TypeNotAllowed(t *testing.T) {
	registry := carrier.NewRegistry()
	registry.Register(mock.New("cdek"))

	_, err := registry.Calculate(context.Background(), "cdek", &carrier.CalculateRequest{
		Type:     carrier.DeliveryType("drone"),
		WeightKg: 1,
	})
	assert.True(t, errors.Is(err, carrier.ErrInvalidDeliveryType))
	assert.Equal(t, carrier.KindInvalidInput, carrier.KindOf(err))
}

func TestRegistry_ListTariffsAll(t *testing.T) {
	registry := carrier.NewRegistry()
	registry.Register(mock.New("cdek"))
	registry.Register(mock.New("ruspost"))

	results, errs := registry.ListTariffsAll(context.Background(), &carrier.CalculateRequest{
		Type:          carrier.TypePVZ,
		WeightKg:      2,
		PickupPointID: "MSK67",
	})
	assert.Empty(t, errs)
	assert.Len(t, results, 2)
	assert.Len(t, results["cdek"], 2)
	assert.Len(t, results["ruspost"], 2)
}

func TestRegistry_ListTariffsAll_PartialFailure(t *testing.T) {
	registry := carrier.NewRegistry()
	registry.Register(mock.New("cdek"))
	registry.Register(failingProvider{name: "ruspost"})

	results, errs := registry.ListTariffsAll(context.Background(), &carrier.CalculateRequest{
		Type:          carrier.TypePVZ,
		WeightKg:      2,
		PickupPointID: "MSK67",
	})
	assert.Len(t, errs, 1)
	assert.Len(t, results, 1)
	assert.Contains(t, results, "cdek")
}

func TestProviderAllowed(t *testing.T) {
	assert.True(t, carrier.ProviderAllowed("cdek"))
	assert.True(t, carrier.ProviderAllowed("ruspost"))
	assert.True(t, carrier.ProviderAllowed("CDEK"))
	assert.False(t, carrier.ProviderAllowed("dhl"))
	assert.False(t, carrier.ProviderAllowed(""))
}

func TestTypeAllowed(t *testing.T) {
	assert.True(t, carrier.TypeAllowed("cdek", carrier.TypePVZ))
	assert.True(t, carrier.TypeAllowed("cdek", carrier.TypeDoor))
	assert.True(t, carrier.TypeAllowed("ruspost", carrier.TypePVZ))
	assert.False(t, carrier.TypeAllowed("cdek", carrier.DeliveryType("drone")))
	assert.False(t, carrier.TypeAllowed("dhl", carrier.TypePVZ))
}

// failingProvider always errors, used to exercise partial aggregation.
type failingProvider struct {
	name string
}

func (f failingProvider) Name() string { return f.name }

func (f failingProvider) SearchPickupPoints(context.Context, *carrier.SearchRequest) ([]carrier.PickupPoint, error) {
	return nil, carrier.NewError(f.name, carrier.KindCarrierUnavailable, "down")
}

func (f failingProvider) Calculate(context.Context, *carrier.CalculateRequest) (*carrier.TariffQuote, error) {
	return nil, carrier.NewError(f.name, carrier.KindCarrierUnavailable, "down")
}

func (f failingProvider) ListTariffs(context.Context, *carrier.CalculateRequest) ([]carrier.TariffQuote, error) {
	return nil, carrier.NewError(f.name, carrier.KindCarrierUnavailable, "down")
}
