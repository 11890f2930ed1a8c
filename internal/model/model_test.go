package model

import (
	"errors"
	"regexp"
	"testing"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusFailed, true},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusCompleted, StatusRunning, false},
		{StatusFailed, StatusRunning, false},
	}
	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNewLedgerAssignsIDs(t *testing.T) {
	l, err := NewLedger("r1", "ff", nil, []PhysicalProperty{
		{Type: PropertyDensity},
		{ID: "p2", Type: PropertyDensity},
	})
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	if len(l.Queued) != 2 {
		t.Fatalf("queued = %d, want 2", len(l.Queued))
	}
	if l.Queued[0].ID == "" {
		t.Error("expected generated id for first property")
	}
	if l.Queued[1].ID != "p2" {
		t.Errorf("queued[1].ID = %q, want p2", l.Queued[1].ID)
	}
	if l.Estimated == nil || l.Unsuccessful == nil {
		t.Error("result maps must be initialised")
	}
}

func TestNewLedgerRejectsDuplicates(t *testing.T) {
	_, err := NewLedger("r1", "ff", nil, []PhysicalProperty{{ID: "p1"}, {ID: "p1"}})
	if !errors.Is(err, ErrDuplicateProperty) {
		t.Errorf("err = %v, want ErrDuplicateProperty", err)
	}
}

func TestLedgerDequeue(t *testing.T) {
	l, _ := NewLedger("r1", "ff", nil, []PhysicalProperty{{ID: "p1"}, {ID: "p2"}})

	p, n := l.Dequeue("p1")
	if n != 1 || p.ID != "p1" {
		t.Fatalf("Dequeue(p1) = %+v, %d", p, n)
	}
	if l.IsQueued("p1") {
		t.Error("p1 still queued")
	}

	if _, n := l.Dequeue("p1"); n != 0 {
		t.Errorf("second Dequeue(p1) matched %d entries, want 0", n)
	}
	if got := l.QueuedIDs(); len(got) != 1 || got[0] != "p2" {
		t.Errorf("QueuedIDs() = %v, want [p2]", got)
	}
}

func TestLedgerValidate(t *testing.T) {
	l, _ := NewLedger("r1", "ff", nil, []PhysicalProperty{{ID: "p1"}})
	if err := l.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	l.Estimated["p1"] = PhysicalProperty{ID: "p1"}
	if err := l.Validate(); err == nil {
		t.Error("expected error for queued and estimated property")
	}

	l.Dequeue("p1")
	l.Unsuccessful["p1"] = &EstimatorError{Kind: ErrorKindCalculation}
	if err := l.Validate(); err == nil {
		t.Error("expected error for estimated and unsuccessful property")
	}
}

func TestLedgerCloneIsDeep(t *testing.T) {
	l, _ := NewLedger("r1", "ff", []string{"a"}, []PhysicalProperty{{ID: "p1"}, {ID: "p2"}})
	l.Unsuccessful["p0"] = &EstimatorError{Kind: ErrorKindTimeout, Message: "slow"}

	c := l.Clone()
	c.Dequeue("p1")
	c.Estimated["p1"] = PhysicalProperty{ID: "p1"}
	c.Unsuccessful["p0"].Message = "changed"
	c.Layers[0] = "b"

	if !l.IsQueued("p1") {
		t.Error("clone dequeue leaked into original")
	}
	if _, ok := l.Estimated["p1"]; ok {
		t.Error("clone estimate leaked into original")
	}
	if l.Unsuccessful["p0"].Message != "slow" {
		t.Error("clone error mutation leaked into original")
	}
	if l.Layers[0] != "a" {
		t.Error("clone layers mutation leaked into original")
	}
}

func TestNormalizeOutcome(t *testing.T) {
	tests := []struct {
		in   Outcome
		want string
	}{
		{nil, "not_applicable"},
		{NotApplicable{}, "not_applicable"},
		{&NotApplicable{}, "not_applicable"},
		{Computed{PropertyID: "p1"}, "computed"},
		{&Computed{PropertyID: "p1"}, "computed"},
		{(*Computed)(nil), "not_applicable"},
		{Failed{PropertyID: "p1"}, "failed"},
		{&Failed{PropertyID: "p1"}, "failed"},
	}
	for _, tt := range tests {
		if got := OutcomeName(tt.in); got != tt.want {
			t.Errorf("OutcomeName(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEstimatorErrorMessage(t *testing.T) {
	e := NewEstimatorError(ErrorKindTimeout, "/tmp/work", "ran for %ds", 30)
	if got, want := e.Error(), "timeout: ran for 30s (directory /tmp/work)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	e = NewEstimatorError(ErrorKindCalculation, "", "diverged")
	if got, want := e.Error(), "calculation: diverged"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestStoredDataObservable(t *testing.T) {
	d := &StoredData{Observables: map[string]float64{PropertyDensity: 0.99}}
	if v, ok := d.Observable(PropertyDensity); !ok || v != 0.99 {
		t.Errorf("Observable(Density) = %v, %v", v, ok)
	}
	if _, ok := d.Observable(PropertyDielectricConstant); ok {
		t.Error("unexpected observable for DielectricConstant")
	}
	var nilData *StoredData
	if _, ok := nilData.Observable(PropertyDensity); ok {
		t.Error("nil data must not report observables")
	}
}

func TestLedgerEnsureMaps(t *testing.T) {
	l := &Ledger{Estimated: map[string]PhysicalProperty{"p1": {ID: "p1"}}}
	l.EnsureMaps()

	if l.Unsuccessful == nil {
		t.Fatal("Unsuccessful still nil")
	}
	if _, ok := l.Estimated["p1"]; !ok {
		t.Error("EnsureMaps must keep existing entries")
	}
}
