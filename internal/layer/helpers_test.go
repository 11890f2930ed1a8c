package layer_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/seantiz/estimator/internal/backend"
	"github.com/seantiz/estimator/internal/layer"
	"github.com/seantiz/estimator/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestBackend(t *testing.T) *backend.LocalBackend {
	t.Helper()
	b := backend.NewLocalBackend(4, 64, discardLogger())
	t.Cleanup(func() { b.Close() })
	return b
}

func newTestLedger(t *testing.T, forceFieldID string, ids ...string) *model.Ledger {
	t.Helper()
	props := make([]model.PhysicalProperty, len(ids))
	for i, id := range ids {
		props[i] = model.PhysicalProperty{
			ID:        id,
			Type:      model.PropertyDensity,
			Substance: model.Substance{Identifier: "CCO"},
		}
	}
	l, err := model.NewLedger(model.NewID(), forceFieldID, nil, props)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	return l
}

// memoryStorage is a DataStore that records every StoreData call.
type memoryStorage struct {
	mu     sync.Mutex
	stored map[string][]*model.StoredData
	calls  int
	err    error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{stored: make(map[string][]*model.StoredData)}
}

func (m *memoryStorage) StoreData(_ context.Context, substanceID string, d *model.StoredData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.stored[substanceID] = append(m.stored[substanceID], d)
	return nil
}

func (m *memoryStorage) RetrieveData(_ context.Context, substanceID, forceFieldID string) ([]*model.StoredData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*model.StoredData
	for _, d := range m.stored[substanceID] {
		if forceFieldID == "" || d.ForceFieldID == forceFieldID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryStorage) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// completion records OnComplete invocations.
type completion struct {
	mu     sync.Mutex
	calls  int
	ledger *model.Ledger
	done   chan struct{}
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{}, 16)}
}

func (c *completion) callback(l *model.Ledger) {
	c.mu.Lock()
	c.calls++
	c.ledger = l
	c.mu.Unlock()
	c.done <- struct{}{}
}

func (c *completion) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// wait blocks until OnComplete has been called once.
func (c *completion) wait(t *testing.T) *model.Ledger {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("OnComplete was not called")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger
}

// outcomeTable returns an Estimator that answers from a fixed table keyed by
// property id. Missing ids are not applicable.
func outcomeTable(outcomes map[string]model.Outcome) layer.Estimator {
	return func(_ context.Context, in layer.TaskInput) model.Outcome {
		return outcomes[in.Property.ID]
	}
}
