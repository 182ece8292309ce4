package carrier

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a provider failure. It is set at the point of failure so
// that the aggregation surface can pick an HTTP status without inspecting
// error messages.
type Kind string

const (
	// KindInvalidInput means a caller-supplied field is malformed or missing.
	KindInvalidInput Kind = "invalid_input"
	// KindDestinationUnresolved means an address or point could not be
	// mapped to a carrier location.
	KindDestinationUnresolved Kind = "destination_unresolved"
	// KindCarrierRejected means the carrier returned a logical error.
	KindCarrierRejected Kind = "carrier_rejected"
	// KindConfigMissing means an operator-level credential or environment
	// setting is absent or invalid.
	KindConfigMissing Kind = "config_missing"
	// KindCarrierUnavailable means the carrier could not be reached.
	KindCarrierUnavailable Kind = "carrier_unavailable"
	// KindCancelled means the caller aborted the operation.
	KindCancelled Kind = "cancelled"
)

// Error represents a failure from a delivery provider.
type Error struct {
	Provider string
	Kind     Kind
	Message  string
	// Code is the carrier-native numeric error code, 0 when absent.
	Code int
	// Detail is an optional structured payload for diagnostics.
	Detail any
	Cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := e.Message
	if e.Provider != "" {
		prefix = e.Provider + ": " + e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Cause)
	}
	return prefix
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new provider Error.
func NewError(provider string, kind Kind, message string) *Error {
	return &Error{
		Provider: provider,
		Kind:     kind,
		Message:  message,
	}
}

// WithCode attaches a carrier-native numeric error code.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// WithDetail attaches a structured diagnostic payload.
func (e *Error) WithDetail(detail any) *Error {
	e.Detail = detail
	return e
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// Sentinel errors for dispatch failures. They are carried as causes inside
// a tagged *Error so that errors.Is keeps working across the boundary.
var (
	// ErrInvalidProvider indicates the requested provider is not in the
	// capability table.
	ErrInvalidProvider = errors.New("invalid delivery provider")

	// ErrInvalidDeliveryType indicates the delivery type is not allowed
	// for the requested provider.
	ErrInvalidDeliveryType = errors.New("delivery type not allowed for provider")
)

// KindOf classifies any error. Tagged errors report their own kind,
// context cancellation maps to KindCancelled, anything else is treated as
// unexpected carrier unavailability.
func KindOf(err error) Kind {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindCarrierUnavailable
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// CodeOf extracts the carrier-native error code, 0 when absent.
func CodeOf(err error) int {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Code
	}
	return 0
}

// FromTransport classifies a failed outbound carrier call: caller
// cancellation becomes KindCancelled, everything else KindCarrierUnavailable.
func FromTransport(provider string, message string, err error) *Error {
	kind := KindCarrierUnavailable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindCancelled
	}
	return NewError(provider, kind, message).WithCause(err)
}
