// Package carrier provides an abstraction layer for delivery providers.
package carrier

import (
	"context"
)

// Provider defines the interface that all delivery providers must implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "cdek", "ruspost").
	Name() string

	// SearchPickupPoints lists pickup points matching a city or free-text query.
	SearchPickupPoints(ctx context.Context, req *SearchRequest) ([]PickupPoint, error)

	// Calculate returns a single selected tariff quote for a shipment.
	Calculate(ctx context.Context, req *CalculateRequest) (*TariffQuote, error)

	// ListTariffs returns every tariff the provider offers for a shipment.
	ListTariffs(ctx context.Context, req *CalculateRequest) ([]TariffQuote, error)
}
