package model

import "time"

// Property type constants for the physical properties the service knows about.
const (
	PropertyDensity                = "Density"
	PropertyDielectricConstant     = "DielectricConstant"
	PropertyEnthalpyOfMixing       = "EnthalpyOfMixing"
	PropertyEnthalpyOfVaporization = "EnthalpyOfVaporization"
	PropertyExcessMolarVolume      = "ExcessMolarVolume"
)

// Substance identifies a (possibly multi-component) chemical system.
// Identifier is the key cached data is stored under.
type Substance struct {
	Identifier string   `json:"identifier"`
	Components []string `json:"components,omitempty"`
}

// PhysicalProperty is a single measured or estimated property of a substance.
type PhysicalProperty struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Substance   Substance `json:"substance"`
	Value       float64   `json:"value"`
	Uncertainty float64   `json:"uncertainty,omitempty"`
	Source      string    `json:"source,omitempty"`
}

// StoredData is reusable intermediate data produced while computing a
// property. Once handed to a storage backend, the backend owns it.
type StoredData struct {
	ID           string             `json:"id"`
	Substance    Substance          `json:"substance"`
	ForceFieldID string             `json:"force_field_id,omitempty"`
	PropertyType string             `json:"property_type,omitempty"`
	Observables  map[string]float64 `json:"observables,omitempty"`
	Payload      []byte             `json:"payload,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Observable returns the cached value for the given property type, if any.
func (d *StoredData) Observable(propertyType string) (float64, bool) {
	if d == nil || d.Observables == nil {
		return 0, false
	}
	v, ok := d.Observables[propertyType]
	return v, ok
}
