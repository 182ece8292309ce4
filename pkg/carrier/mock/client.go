// Package mock provides a mock delivery provider for testing.
package mock

import (
	"context"
	"fmt"

	"github.com/lavkamarket/delivery/pkg/carrier"
)

// Client is a mock delivery provider for testing.
type Client struct {
	name string
}

// New creates a new mock provider.
func New(name string) *Client {
	return &Client{name: name}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// SearchPickupPoints returns mock pickup points.
func (c *Client) SearchPickupPoints(ctx context.Context, req *carrier.SearchRequest) ([]carrier.PickupPoint, error) {
	lat, lon := 55.75, 37.62
	city := req.City
	if city == "" {
		city = req.Query
	}
	return []carrier.PickupPoint{
		{
			ID:      fmt.Sprintf("%s-point-1", c.name),
			Name:    fmt.Sprintf("%s пункт выдачи 1", c.name),
			Address: fmt.Sprintf("%s, ул. Первая, 1", city),
			Lat:     &lat,
			Lon:     &lon,
		},
		{
			ID:      fmt.Sprintf("%s-point-2", c.name),
			Name:    fmt.Sprintf("%s пункт выдачи 2", c.name),
			Address: fmt.Sprintf("%s, ул. Вторая, 2", city),
			Lat:     &lat,
			Lon:     &lon,
		},
	}, nil
}

// Calculate returns a fixed mock quote.
func (c *Client) Calculate(ctx context.Context, req *carrier.CalculateRequest) (*carrier.TariffQuote, error) {
	if !(req.WeightKg > 0) {
		return nil, carrier.NewError(c.name, carrier.KindInvalidInput,
			"total weight must be a positive number")
	}
	return &carrier.TariffQuote{
		Price:      199,
		Currency:   "RUB",
		ETA:        "2-4 дн.",
		TariffCode: "MOCK",
		TariffName: fmt.Sprintf("%s стандарт", c.name),
	}, nil
}

// ListTariffs returns two mock quote candidates.
func (c *Client) ListTariffs(ctx context.Context, req *carrier.CalculateRequest) ([]carrier.TariffQuote, error) {
	if !(req.WeightKg > 0) {
		return nil, carrier.NewError(c.name, carrier.KindInvalidInput,
			"total weight must be a positive number")
	}
	return []carrier.TariffQuote{
		{
			Price:      199,
			Currency:   "RUB",
			ETA:        "2-4 дн.",
			TariffCode: "MOCK",
			TariffName: fmt.Sprintf("%s стандарт", c.name),
		},
		{
			Price:      349,
			Currency:   "RUB",
			ETA:        "1-2 дн.",
			TariffCode: "MOCK-EXPRESS",
			TariffName: fmt.Sprintf("%s экспресс", c.name),
		},
	}, nil
}

var _ carrier.Provider = (*Client)(nil)
