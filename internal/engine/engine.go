package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/seantiz/estimator/internal/backend"
	"github.com/seantiz/estimator/internal/layer"
	"github.com/seantiz/estimator/internal/model"
	"github.com/seantiz/estimator/internal/store"
)

// ErrNoLedger is returned when a request is submitted without a ledger.
var ErrNoLedger = errors.New("request has no ledger")

// Options configures an Engine.
type Options struct {
	// WorkingDirectory is the root under which each layer invocation gets
	// its own directory, <root>/<request>/<layer>.
	WorkingDirectory string
	// DefaultLayers are used for ledgers that name no layers.
	DefaultLayers []string
	// Synchronous schedules every layer in synchronous mode.
	Synchronous bool
}

// Engine orchestrates estimation requests.
type Engine struct {
	requests store.RequestStore
	data     store.DataStore
	registry *layer.Registry
	backend  backend.Backend
	opts     Options
	logger   *slog.Logger
	wg       sync.WaitGroup
	broker   *ProgressBroker
}

// NewEngine creates a new estimation engine. data may be nil, in which case
// layers run without persistent storage.
func NewEngine(requests store.RequestStore, data store.DataStore, reg *layer.Registry, b backend.Backend, opts Options, logger *slog.Logger) *Engine {
	return &Engine{
		requests: requests,
		data:     data,
		registry: reg,
		backend:  b,
		opts:     opts,
		logger:   logger,
		broker:   NewProgressBroker(),
	}
}

// Broker returns the engine's progress broker for SSE subscription.
func (e *Engine) Broker() *ProgressBroker {
	return e.broker
}

// Submit stores the request with status "pending" and runs its layers on a
// goroutine. The goroutine works on a copy of the ledger, so the caller may
// keep using r.
func (e *Engine) Submit(ctx context.Context, r *model.Request) error {
	if r.Ledger == nil {
		return ErrNoLedger
	}
	if r.ID == "" {
		r.ID = model.NewID()
	}
	r.Ledger.ID = r.ID
	if len(r.Ledger.Layers) == 0 {
		r.Ledger.Layers = append([]string(nil), e.opts.DefaultLayers...)
	}
	if err := r.Ledger.Validate(); err != nil {
		return fmt.Errorf("validate ledger: %w", err)
	}
	r.Status = model.StatusPending
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	if err := e.requests.CreateRequest(ctx, r); err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	ledger := r.Ledger.Clone()
	e.wg.Go(func() {
		e.execute(ledger)
	})

	return nil
}

// Wait blocks until all in-flight requests have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Run passes ledger through its layers in order and returns the final
// ledger. Layers the registry does not know are logged and skipped. Once
// every layer has had its turn, properties still queued are recorded as
// unsuccessful with kind no_layer.
//
// If a layer fails to schedule, Run stops and returns the ledger as it was
// before that layer along with the *layer.SchedulingError. If ctx ends while
// a layer is in flight, Run returns a nil ledger, since the layer may still
// be merging into it.
func (e *Engine) Run(ctx context.Context, ledger *model.Ledger) (*model.Ledger, error) {
	names := ledger.Layers
	if len(names) == 0 {
		names = e.opts.DefaultLayers
	}
	logger := e.logger.With("request_id", ledger.ID)

	for _, name := range names {
		if len(ledger.Queued) == 0 {
			break
		}

		l, err := e.registry.Lookup(name)
		if err != nil {
			logger.Warn("skipping layer", "layer", name, "error", err)
			e.broker.Publish(ledger.ID, progress(EventLayerSkipped, name, ledger))
			continue
		}

		done := make(chan *model.Ledger, 1)
		req := layer.ScheduleRequest{
			Backend:          e.backend,
			Storage:          e.data,
			WorkingDirectory: filepath.Join(e.opts.WorkingDirectory, ledger.ID, name),
			Ledger:           ledger,
			OnComplete:       func(l *model.Ledger) { done <- l },
			Synchronous:      e.opts.Synchronous,
			Logger:           logger,
		}

		e.broker.Publish(ledger.ID, progress(EventLayerScheduled, name, ledger))
		if err := l.Schedule(ctx, req); err != nil {
			return ledger, err
		}

		select {
		case ledger = <-done:
		case <-ctx.Done():
			return nil, fmt.Errorf("layer %s: %w", name, ctx.Err())
		}

		e.broker.Publish(ledger.ID, progress(EventLayerFinished, name, ledger))
	}

	ledger.EnsureMaps()
	for _, p := range ledger.Queued {
		ledger.Unsuccessful[p.ID] = model.NewEstimatorError(model.ErrorKindNoLayer, "",
			"no layer could estimate property %s", p.ID)
	}
	if n := len(ledger.Queued); n > 0 {
		logger.Info("properties left unestimated", "count", n)
		e.broker.Publish(ledger.ID, Event{Kind: EventUnestimated, Unsuccessful: n})
	}
	ledger.Queued = ledger.Queued[:0]

	return ledger, nil
}

// progress snapshots the ledger counts for a layer event.
func progress(kind, layerName string, ledger *model.Ledger) Event {
	return Event{
		Kind:         kind,
		Layer:        layerName,
		Estimated:    len(ledger.Estimated),
		Unsuccessful: len(ledger.Unsuccessful),
		Queued:       len(ledger.Queued),
	}
}

// execute runs the request lifecycle: pending→running→completed/failed.
func (e *Engine) execute(ledger *model.Ledger) {
	id := ledger.ID
	// Close the progress stream when execution finishes, regardless of outcome.
	defer e.broker.Close(id)

	if err := e.requests.UpdateRequestStatus(context.Background(), id, model.StatusRunning); err != nil {
		e.logger.Error("failed to transition to running", "request_id", id, "error", err)
		e.finish(id, nil, ledger, fmt.Sprintf("failed to start: %v", err))
		return
	}
	start := time.Now().UTC()

	result, err := e.Run(context.Background(), ledger)
	if err != nil {
		e.logger.Error("request failed", "request_id", id, "error", err)
		e.broker.Publish(id, Event{Kind: EventFailed, Message: err.Error()})
		e.finish(id, &start, result, err.Error())
		return
	}

	e.logger.Info("request completed",
		"request_id", id,
		"estimated", len(result.Estimated),
		"unsuccessful", len(result.Unsuccessful),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	e.finish(id, &start, result, "")
}

// finish records the final state of a request. An empty errMsg marks it
// completed. ledger may be nil if the final state is unknown.
func (e *Engine) finish(id string, startedAt *time.Time, ledger *model.Ledger, errMsg string) {
	now := time.Now().UTC()
	r := &model.Request{
		ID:         id,
		Status:     model.StatusCompleted,
		Ledger:     ledger,
		StartedAt:  startedAt,
		FinishedAt: &now,
	}
	if errMsg != "" {
		r.Status = model.StatusFailed
		r.Error = errMsg
	}
	if r.Ledger == nil {
		stored, err := e.requests.GetRequest(context.Background(), id)
		if err != nil {
			e.logger.Error("failed to load request", "request_id", id, "error", err)
			return
		}
		r.Ledger = stored.Ledger
	}

	if err := e.requests.UpdateRequest(context.Background(), r); err != nil {
		e.logger.Error("failed to update finished request", "request_id", id, "error", err)
	}
}
