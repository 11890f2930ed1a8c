package model

import (
	"fmt"
	"maps"
	"slices"
)

// Ledger is the mutable, request-scoped state shared by every layer that
// works on a request. A property id is in Queued until it is resolved, and
// then in exactly one of Estimated or Unsuccessful.
type Ledger struct {
	ID           string                      `json:"id"`
	ForceFieldID string                      `json:"force_field_id"`
	Layers       []string                    `json:"layers,omitempty"`
	Queued       []PhysicalProperty          `json:"queued"`
	Estimated    map[string]PhysicalProperty `json:"estimated"`
	Unsuccessful map[string]*EstimatorError  `json:"unsuccessful"`
}

// NewLedger creates a ledger with the given properties queued. Properties
// without an id are assigned one. Duplicate ids are rejected.
func NewLedger(id, forceFieldID string, layers []string, props []PhysicalProperty) (*Ledger, error) {
	l := &Ledger{
		ID:           id,
		ForceFieldID: forceFieldID,
		Layers:       slices.Clone(layers),
		Queued:       make([]PhysicalProperty, 0, len(props)),
		Estimated:    make(map[string]PhysicalProperty),
		Unsuccessful: make(map[string]*EstimatorError),
	}
	for _, p := range props {
		if p.ID == "" {
			p.ID = NewID()
		}
		if l.IsQueued(p.ID) {
			return nil, fmt.Errorf("queue property %q: %w", p.ID, ErrDuplicateProperty)
		}
		l.Queued = append(l.Queued, p)
	}
	return l, nil
}

// QueuedIDs returns the ids still awaiting an outcome, in queue order.
func (l *Ledger) QueuedIDs() []string {
	ids := make([]string, len(l.Queued))
	for i, p := range l.Queued {
		ids[i] = p.ID
	}
	return ids
}

// IsQueued reports whether id is still awaiting an outcome.
func (l *Ledger) IsQueued(id string) bool {
	return slices.ContainsFunc(l.Queued, func(p PhysicalProperty) bool { return p.ID == id })
}

// Dequeue removes the queued property with the given id and returns it along
// with the number of queued entries that matched.
func (l *Ledger) Dequeue(id string) (PhysicalProperty, int) {
	var (
		found   PhysicalProperty
		matches int
	)
	l.Queued = slices.DeleteFunc(l.Queued, func(p PhysicalProperty) bool {
		if p.ID != id {
			return false
		}
		if matches == 0 {
			found = p
		}
		matches++
		return true
	})
	return found, matches
}

// Resolved reports whether id has been recorded as estimated or unsuccessful.
func (l *Ledger) Resolved(id string) bool {
	if _, ok := l.Estimated[id]; ok {
		return true
	}
	_, ok := l.Unsuccessful[id]
	return ok
}

// Validate checks the ledger invariants: no duplicate queued ids, and no id
// in more than one of Queued, Estimated and Unsuccessful.
func (l *Ledger) Validate() error {
	seen := make(map[string]bool, len(l.Queued))
	for _, p := range l.Queued {
		if seen[p.ID] {
			return fmt.Errorf("property %q: %w", p.ID, ErrDuplicateProperty)
		}
		seen[p.ID] = true
		if l.Resolved(p.ID) {
			return fmt.Errorf("property %q is both queued and resolved", p.ID)
		}
	}
	for id := range l.Estimated {
		if _, ok := l.Unsuccessful[id]; ok {
			return fmt.Errorf("property %q is both estimated and unsuccessful", id)
		}
	}
	return nil
}

// EnsureMaps allocates Estimated and Unsuccessful if they are nil, so a
// ledger built as a struct literal can be merged into.
func (l *Ledger) EnsureMaps() {
	if l.Estimated == nil {
		l.Estimated = make(map[string]PhysicalProperty)
	}
	if l.Unsuccessful == nil {
		l.Unsuccessful = make(map[string]*EstimatorError)
	}
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	c := &Ledger{
		ID:           l.ID,
		ForceFieldID: l.ForceFieldID,
		Layers:       slices.Clone(l.Layers),
		Queued:       slices.Clone(l.Queued),
		Estimated:    maps.Clone(l.Estimated),
		Unsuccessful: make(map[string]*EstimatorError, len(l.Unsuccessful)),
	}
	if c.Estimated == nil {
		c.Estimated = make(map[string]PhysicalProperty)
	}
	for id, e := range l.Unsuccessful {
		if e != nil {
			cp := *e
			e = &cp
		}
		c.Unsuccessful[id] = e
	}
	return c
}
