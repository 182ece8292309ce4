package carrier

// DeliveryType represents how the parcel reaches the customer.
type DeliveryType string

const (
	// TypePVZ delivers to a pickup point or parcel locker.
	TypePVZ DeliveryType = "pvz"
	// TypeDoor delivers to the customer's address.
	TypeDoor DeliveryType = "door"
)

// SearchMode selects which capability a pickup-point search filters on.
type SearchMode string

const (
	// ModeReceive keeps points a customer can collect a parcel from.
	ModeReceive SearchMode = "receive"
	// ModeSend keeps points a parcel can be dropped off at.
	ModeSend SearchMode = "send"
)

// Address is a normalized mailing address. All fields are optional
// individually; door-delivery calculation needs them jointly.
type Address struct {
	Region     string `json:"region,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Street     string `json:"street,omitempty"`
	House      string `json:"house,omitempty"`
	Flat       string `json:"flat,omitempty"`
}

// PickupPoint is a physical location where a customer collects or drops
// off a parcel. ID is carrier-assigned and must be passed back unchanged
// as pickup_point_id in later calculate calls. For the courier network the
// caller must also keep CityCode as routing metadata for the session.
type PickupPoint struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	CityCode string   `json:"city_code,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
}

// TariffQuote is a priced shipping option. Produced fresh per call and
// never persisted by this subsystem.
type TariffQuote struct {
	// Price is the delivery price in major currency units, always >= 0.
	Price float64 `json:"delivery_price"`
	// Currency is an ISO 4217 code, e.g. "RUB".
	Currency string `json:"delivery_currency"`
	// ETA is a carrier-formatted human string ("3-5 дн."), empty when unknown.
	ETA string `json:"delivery_eta,omitempty"`
	// TariffCode identifies the carrier tariff, empty when the carrier
	// returned none.
	TariffCode string `json:"tariff_code,omitempty"`
	// TariffName is the carrier's display name for the tariff.
	TariffName string `json:"tariff_name,omitempty"`
	// ProviderMetadata carries the raw carrier payload for diagnostics.
	ProviderMetadata map[string]any `json:"provider_metadata,omitempty"`
}

// SearchRequest is the input for SearchPickupPoints. Query or City must
// resolve to a carrier location; Lat/Lon are optional hints (zero means
// unset).
type SearchRequest struct {
	Query string     `json:"query,omitempty"`
	City  string     `json:"city,omitempty"`
	Lat   float64    `json:"lat,omitempty"`
	Lon   float64    `json:"lon,omitempty"`
	Mode  SearchMode `json:"mode,omitempty"`
}

// CalculateRequest is the input for Calculate and ListTariffs.
// ListTariffs ignores TariffCode.
type CalculateRequest struct {
	Type DeliveryType `json:"type"`
	// WeightKg is the total parcel weight in kilograms. Must be a positive
	// finite number.
	WeightKg float64 `json:"total_weight"`
	// PickupPointID is required for TypePVZ, taken verbatim from a prior
	// pickup-point search.
	PickupPointID string `json:"pickup_point_id,omitempty"`
	// Address is required for TypeDoor.
	Address *Address `json:"address,omitempty"`
	// ProviderMetadata carries provider-specific routing hints, e.g. the
	// courier network's to_city_code for the selected pickup point.
	ProviderMetadata map[string]any `json:"provider_metadata,omitempty"`
	// TariffCode forces the selection of a specific tariff in Calculate.
	TariffCode string `json:"tariff_code,omitempty"`
}
