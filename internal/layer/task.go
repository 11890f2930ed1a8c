package layer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/seantiz/estimator/internal/model"
	"github.com/seantiz/estimator/internal/store"
)

// TaskInput is what an Estimator receives for one property.
type TaskInput struct {
	Property         model.PhysicalProperty
	ForceFieldID     string
	WorkingDirectory string
	Storage          store.DataStore
}

// Estimator computes the outcome for a single property. It runs on a backend
// worker. Returning nil is the same as returning model.NotApplicable{}.
type Estimator func(ctx context.Context, in TaskInput) model.Outcome

// Compile-time interface satisfaction check.
var _ Layer = (*TaskLayer)(nil)

// TaskLayer submits one backend task per queued property, each running the
// layer's Estimator in its own working directory.
type TaskLayer struct {
	name     string
	estimate Estimator
}

// NewTaskLayer creates a layer that estimates each property with fn.
func NewTaskLayer(name string, fn Estimator) *TaskLayer {
	return &TaskLayer{name: name, estimate: fn}
}

// Name returns the layer's name as used in logs and metrics.
func (l *TaskLayer) Name() string {
	return l.name
}

// Schedule submits the batch and hands the submissions to AwaitResults.
func (l *TaskLayer) Schedule(ctx context.Context, req ScheduleRequest) error {
	if err := req.validate(); err != nil {
		return &SchedulingError{Layer: l.name, Err: err}
	}
	if err := os.MkdirAll(req.WorkingDirectory, 0o755); err != nil {
		return &SchedulingError{Layer: l.name, Err: fmt.Errorf("create working directory: %w", err)}
	}

	subs := make([]Submission, 0, len(req.Ledger.Queued))
	for _, prop := range req.Ledger.Queued {
		in := TaskInput{
			Property:         prop,
			ForceFieldID:     req.Ledger.ForceFieldID,
			WorkingDirectory: filepath.Join(req.WorkingDirectory, prop.ID),
			Storage:          req.Storage,
		}

		f, err := req.Backend.Submit(ctx, func(ctx context.Context) (any, error) {
			if err := os.MkdirAll(in.WorkingDirectory, 0o755); err != nil {
				return nil, fmt.Errorf("create property directory: %w", err)
			}
			return l.estimate(ctx, in), nil
		})
		if err != nil {
			return &SchedulingError{Layer: l.name, Err: fmt.Errorf("submit property %s: %w", prop.ID, err)}
		}
		subs = append(subs, Submission{PropertyID: prop.ID, Future: f})
	}

	return AwaitResults(ctx, l.name, req, subs)
}
