package cdek

import (
	"strings"
)

// Confidence tags how a capability was determined.
type Confidence string

const (
	// ConfidenceExplicit means a boolean flag in the point payload said so.
	ConfidenceExplicit Confidence = "explicit"
	// ConfidenceInferred means only free-text signals were found.
	ConfidenceInferred Confidence = "inferred"
	// ConfidenceDefault means no signal was found and the fallback applied.
	ConfidenceDefault Confidence = "default"
)

// Capabilities is the inferred pickup/dropoff profile of a delivery point.
type Capabilities struct {
	CanPickup         bool
	CanDropoff        bool
	PickupConfidence  Confidence
	DropoffConfidence Confidence
}

// Vocabulary lists lowercase key/phrase fragments that signal pickup or
// dropoff capability in point payloads. The carrier does not document a
// stable capability schema, so the vocabulary lives as data and can be
// extended without code changes.
type Vocabulary struct {
	Pickup  []string
	Dropoff []string
}

// DefaultVocabulary covers the field names and operation descriptions seen
// in live payloads, in English and Russian.
var DefaultVocabulary = Vocabulary{
	Pickup:  []string{"pickup", "pick_up", "handout", "issuance", "выдач", "получ"},
	Dropoff: []string{"dropoff", "drop_off", "reception", "приём", "прием", "сдач", "отправ"},
}

// Infer scans a raw point payload for capability signals. Boolean fields
// whose keys match the vocabulary are explicit; matches inside free-text
// values (operation and service lists) are advisory. An explicit true is
// never overridden. With no signal at all, pickup points and lockers can
// always be picked up from and dropoff defaults to false.
//
// Best-effort by design: the scan is advisory, not authoritative.
func (v Vocabulary) Infer(raw map[string]any) Capabilities {
	var pickup, dropoff signal
	walkPayload(raw, "", func(key string, value any) {
		lowerKey := strings.ToLower(key)
		switch typed := value.(type) {
		case bool:
			if matchesAny(lowerKey, v.Pickup) {
				pickup.explicit(typed)
			}
			if matchesAny(lowerKey, v.Dropoff) {
				dropoff.explicit(typed)
			}
		case string:
			lowerValue := strings.ToLower(typed)
			if matchesAny(lowerValue, v.Pickup) {
				pickup.advisory()
			}
			if matchesAny(lowerValue, v.Dropoff) {
				dropoff.advisory()
			}
		}
	})

	canPickup, pickupConf := pickup.resolve(true)
	canDropoff, dropoffConf := dropoff.resolve(false)
	return Capabilities{
		CanPickup:         canPickup,
		CanDropoff:        canDropoff,
		PickupConfidence:  pickupConf,
		DropoffConfidence: dropoffConf,
	}
}

// signal accumulates evidence for one capability.
type signal struct {
	explicitTrue  bool
	explicitFalse bool
	advisoryTrue  bool
}

func (s *signal) explicit(value bool) {
	if value {
		s.explicitTrue = true
	} else {
		s.explicitFalse = true
	}
}

func (s *signal) advisory() {
	s.advisoryTrue = true
}

// resolve picks the final value. Explicit flags win over free text, an
// explicit true wins over a conflicting explicit false.
func (s *signal) resolve(fallback bool) (bool, Confidence) {
	switch {
	case s.explicitTrue:
		return true, ConfidenceExplicit
	case s.explicitFalse:
		return false, ConfidenceExplicit
	case s.advisoryTrue:
		return true, ConfidenceInferred
	default:
		return fallback, ConfidenceDefault
	}
}

func matchesAny(haystack string, fragments []string) bool {
	for _, fragment := range fragments {
		if strings.Contains(haystack, fragment) {
			return true
		}
	}
	return false
}

// walkPayload visits every leaf of a decoded JSON object, descending into
// nested objects and arrays.
func walkPayload(value any, key string, visit func(key string, value any)) {
	switch typed := value.(type) {
	case map[string]any:
		for nestedKey, nested := range typed {
			walkPayload(nested, nestedKey, visit)
		}
	case []any:
		for _, item := range typed {
			walkPayload(item, key, visit)
		}
	default:
		visit(key, typed)
	}
}
