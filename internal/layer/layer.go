package layer

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/seantiz/estimator/internal/backend"
	"github.com/seantiz/estimator/internal/model"
	"github.com/seantiz/estimator/internal/store"
)

// Layer is the interface that every calculation layer implements.
//
// Schedule submits one unit of work per queued property in req.Ledger and
// arranges for req.OnComplete to be called exactly once, after every outcome
// has been merged into the ledger. If any submission fails, Schedule returns a
// *SchedulingError, leaves the ledger untouched and never calls OnComplete.
type Layer interface {
	Schedule(ctx context.Context, req ScheduleRequest) error
}

// ScheduleRequest carries everything a layer needs to work on one batch.
type ScheduleRequest struct {
	// Backend runs the layer's units of work.
	Backend backend.Backend
	// Storage receives reusable data produced by successful computations.
	// It may be nil, in which case nothing is persisted.
	Storage store.DataStore
	// WorkingDirectory is private to this invocation.
	WorkingDirectory string
	// Ledger is the request state. It is only mutated by the merge step.
	Ledger *model.Ledger
	// OnComplete receives the merged ledger.
	OnComplete func(*model.Ledger)
	// Synchronous makes Schedule block until OnComplete has run.
	// Intended for debugging and tests.
	Synchronous bool
	// Logger defaults to a discarding logger when nil.
	Logger *slog.Logger
}

func (r ScheduleRequest) validate() error {
	switch {
	case r.Backend == nil:
		return errors.New("schedule request has no backend")
	case r.Ledger == nil:
		return errors.New("schedule request has no ledger")
	case r.OnComplete == nil:
		return errors.New("schedule request has no completion callback")
	case len(r.Ledger.Queued) == 0:
		return ErrEmptyBatch
	}
	return nil
}

func (r ScheduleRequest) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return discardLogger
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
