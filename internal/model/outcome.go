package model

// Outcome is the result of one submitted unit of work for one property.
// It is one of Computed, Failed or NotApplicable.
type Outcome interface {
	outcome()
}

// Computed carries a successfully estimated property and any data worth
// caching that was produced along the way.
type Computed struct {
	PropertyID string
	Property   PhysicalProperty
	Artifacts  []*StoredData
}

// Failed carries the error recorded for a property that could not be estimated.
type Failed struct {
	PropertyID string
	Err        *EstimatorError
}

// NotApplicable means the layer declined the property; a later layer may
// still handle it.
type NotApplicable struct{}

func (Computed) outcome()      {}
func (Failed) outcome()        {}
func (NotApplicable) outcome() {}

// Normalize dereferences pointer variants and maps a nil outcome to
// NotApplicable, so callers only need to switch on value variants.
func Normalize(o Outcome) Outcome {
	switch v := o.(type) {
	case nil:
		return NotApplicable{}
	case *Computed:
		if v == nil {
			return NotApplicable{}
		}
		return *v
	case *Failed:
		if v == nil {
			return NotApplicable{}
		}
		return *v
	case *NotApplicable:
		return NotApplicable{}
	default:
		return o
	}
}

// OutcomeName returns a short label for the outcome variant.
func OutcomeName(o Outcome) string {
	switch Normalize(o).(type) {
	case Computed:
		return "computed"
	case Failed:
		return "failed"
	case NotApplicable:
		return "not_applicable"
	default:
		return "unknown"
	}
}
