package planstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/voyago/travelcore/internal/models"
	"gorm.io/datatypes"
)

// Plan content field names accepted in FieldUpdates.
const (
	FieldDestination     = "destination"
	FieldFlights         = "flights"
	FieldAccommodation   = "accommodation"
	FieldTransportation  = "transportation"
	FieldActivities      = "activities"
	FieldBudget          = "budget"
	FieldOverview        = "overview"
	FieldRecommendations = "recommendations"
	FieldAlerts          = "alerts"
	FieldMetadata        = "metadata"
)

// FieldUpdates is a shallow merge-patch over the named plan content fields.
//
// A present key whole-replaces the corresponding field, an absent key is
// carried over unchanged, and an explicit JSON null clears the field.
type FieldUpdates map[string]json.RawMessage

var knownFields = map[string]bool{
	FieldDestination:     true,
	FieldFlights:         true,
	FieldAccommodation:   true,
	FieldTransportation:  true,
	FieldActivities:      true,
	FieldBudget:          true,
	FieldOverview:        true,
	FieldRecommendations: true,
	FieldAlerts:          true,
	FieldMetadata:        true,
}

// isJSONNull reports whether raw is the JSON null literal.
func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// validateUpdates rejects unknown field keys and malformed JSON values.
func validateUpdates(updates FieldUpdates) error {
	for key, raw := range updates {
		if !knownFields[key] {
			return fmt.Errorf("%w: unknown field %q", ErrValidation, key)
		}
		if isJSONNull(raw) {
			continue
		}
		if !json.Valid(raw) {
			return fmt.Errorf("%w: field %q is not valid JSON", ErrValidation, key)
		}
		if key == FieldOverview {
			var text string
			if errUnmarshal := json.Unmarshal(raw, &text); errUnmarshal != nil {
				return fmt.Errorf("%w: field %q must be a JSON string", ErrValidation, key)
			}
		}
	}
	return nil
}

// applyUpdates patches the content fields of dst in place.
func applyUpdates(dst *models.PlanVersion, updates FieldUpdates) {
	patchJSON := func(field *datatypes.JSON, key string) {
		raw, ok := updates[key]
		if !ok {
			return
		}
		if isJSONNull(raw) {
			*field = nil
			return
		}
		*field = datatypes.JSON(append([]byte(nil), raw...))
	}

	patchJSON(&dst.Destination, FieldDestination)
	patchJSON(&dst.Flights, FieldFlights)
	patchJSON(&dst.Accommodation, FieldAccommodation)
	patchJSON(&dst.Transportation, FieldTransportation)
	patchJSON(&dst.Activities, FieldActivities)
	patchJSON(&dst.Budget, FieldBudget)
	patchJSON(&dst.Recommendations, FieldRecommendations)
	patchJSON(&dst.Alerts, FieldAlerts)
	patchJSON(&dst.Metadata, FieldMetadata)

	if raw, ok := updates[FieldOverview]; ok {
		if isJSONNull(raw) {
			dst.Overview = ""
		} else {
			var text string
			_ = json.Unmarshal(raw, &text)
			dst.Overview = text
		}
	}
}
