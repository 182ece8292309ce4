package ruspost

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// APIClient defines the interface for Russian Post API operations. This
// abstraction allows for mock implementations during testing and real
// implementations in production.
type APIClient interface {
	// CalculateTariff queries the tariff-by-index endpoint for a single
	// priced route.
	CalculateTariff(ctx context.Context, params TariffParams) (*TariffResponse, error)

	// SearchOffices lists post offices inside a bounding rectangle.
	SearchOffices(ctx context.Context, req *OfficeSearchRequest) ([]Office, error)
}

// ============================================================================
// Tariff endpoint (GET, query-string parameters)
// ============================================================================

// TariffParams are the query parameters of the tariff calculator.
// GET /v2/calculate/tariff?object=...&weight=...&from=...&to=...&pack=...&format=json&errorcode=1
type TariffParams struct {
	Object      int    // Mail object/service code
	WeightGrams int    // Parcel weight in grams
	FromIndex   string // Acceptance-point postal index
	ToIndex     string // Destination postal index
	Pack        int    // Packaging code, 0 to omit
}

// DeliveryTerms is the estimated delivery period.
type DeliveryTerms struct {
	Min      *int   `json:"min,omitempty"`
	Max      *int   `json:"max,omitempty"`
	Deadline string `json:"deadline,omitempty"` // Compact YYYYMMDD, optionally with a time suffix
}

// LogicalError is one entry of the errors array the carrier returns on
// logical failure, possibly alongside HTTP 200.
type LogicalError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Error code meaning "origin index not authorized for pickup". An operator
// configuration problem, not a user input error.
const CodeAcceptanceIndexRejected = 2004

// TariffResponse is the tariff calculator response. Prices are expressed
// in kopecks (minor currency units).
type TariffResponse struct {
	PayNds   *int64         `json:"paynds,omitempty"` // Total including VAT
	Pay      *int64         `json:"pay,omitempty"`    // Total excluding VAT
	Delivery *DeliveryTerms `json:"delivery,omitempty"`
	Errors   []LogicalError `json:"errors,omitempty"`

	Raw map[string]any `json:"-"`
}

// UnmarshalJSON decodes the typed fields and keeps the raw payload for
// provider metadata.
func (r *TariffResponse) UnmarshalJSON(data []byte) error {
	type alias TariffResponse
	var typed alias
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = TariffResponse(typed)
	r.Raw = raw
	return nil
}

// PriceKopecks returns the first usable price candidate, nil when none.
func (r *TariffResponse) PriceKopecks() *int64 {
	if r.PayNds != nil {
		return r.PayNds
	}
	return r.Pay
}

// JoinedErrors renders the errors array as one human message.
func (r *TariffResponse) JoinedErrors() string {
	messages := make([]string, 0, len(r.Errors))
	for _, logical := range r.Errors {
		if logical.Msg != "" {
			messages = append(messages, logical.Msg)
		} else {
			messages = append(messages, fmt.Sprintf("code %d", logical.Code))
		}
	}
	return strings.Join(messages, "; ")
}

// ============================================================================
// Office finder (POST JSON, bounding rectangle + filter flags)
// ============================================================================

// OfficeSearchRequest is the rectangle office-finder request body.
type OfficeSearchRequest struct {
	TopLatitude    float64       `json:"top-latitude"`
	LeftLongitude  float64       `json:"left-longitude"`
	BottomLatitude float64       `json:"bottom-latitude"`
	RightLongitude float64       `json:"right-longitude"`
	Filters        OfficeFilters `json:"filters"`
}

// OfficeFilters asks the finder to hide unusable offices.
type OfficeFilters struct {
	HideClosed    bool `json:"hide-closed"`
	HidePrivate   bool `json:"hide-private"`
	HideTemporary bool `json:"hide-temporary"`
}

// Office is a single office-finder result. The postal index doubles as the
// pickup point id.
type Office struct {
	PostalCode        string   `json:"postal-code"`
	AddressSource     string   `json:"address-source,omitempty"`
	Settlement        string   `json:"settlement,omitempty"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	IsClosed          bool     `json:"is-closed,omitempty"`
	IsPrivateCategory bool     `json:"is-private-category,omitempty"`
	IsTemporaryClosed bool     `json:"is-temporary-closed,omitempty"`
	TypeCode          string   `json:"type-code,omitempty"`
}

// Usable reports whether the office can serve as a pickup point.
func (o Office) Usable() bool {
	return o.PostalCode != "" && !o.IsClosed && !o.IsPrivateCategory && !o.IsTemporaryClosed
}

// APIError represents a non-2xx response from the Russian Post API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ruspost api: HTTP %d: %s", e.StatusCode, e.Body)
}
