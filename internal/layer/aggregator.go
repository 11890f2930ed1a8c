package layer

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seantiz/estimator/internal/backend"
	"github.com/seantiz/estimator/internal/model"
	"github.com/seantiz/estimator/internal/store"
)

// Submission pairs a submitted unit of work with the property it was
// submitted for.
type Submission struct {
	PropertyID string
	Future     *backend.Future
}

// MergeSummary counts what a merge did to a ledger.
type MergeSummary struct {
	Estimated    int
	Unsuccessful int
	Skipped      int
	Anomalies    int
}

// AwaitResults joins the submitted futures behind a single barrier and, once
// it resolves, merges every outcome into req.Ledger and calls req.OnComplete.
//
// In asynchronous mode it returns immediately and the merge runs on a
// goroutine owned by the barrier. In synchronous mode it blocks until
// OnComplete has returned; if ctx ends first the batch is abandoned and
// OnComplete is not called.
func AwaitResults(ctx context.Context, name string, req ScheduleRequest, subs []Submission) error {
	logger := req.logger().With("layer", name)
	start := time.Now()

	futures := make([]*backend.Future, len(subs))
	for i, s := range subs {
		futures[i] = s.Future
	}
	barrier := backend.Join(req.Ledger, futures...)

	// Persistence may outlive the caller's context in asynchronous mode.
	storeCtx := context.WithoutCancel(ctx)

	complete := func(f *backend.Future) {
		v, _ := f.Result()
		joined := v.(backend.JoinResult)
		ledger := joined.Passthrough.(*model.Ledger)

		outcomes := make([]model.Outcome, len(joined.Results))
		for i, r := range joined.Results {
			outcomes[i] = toOutcome(subs[i].PropertyID, r, req.WorkingDirectory)
		}

		summary := MergeOutcomes(storeCtx, name, ledger, outcomes, req.Storage, logger)
		batchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		logger.Info("batch merged",
			"estimated", summary.Estimated,
			"unsuccessful", summary.Unsuccessful,
			"skipped", summary.Skipped,
			"anomalies", summary.Anomalies,
			"still_queued", len(ledger.Queued),
		)

		req.OnComplete(ledger)
	}

	if req.Synchronous {
		if _, err := barrier.Wait(ctx); err != nil {
			return fmt.Errorf("layer %s: await batch: %w", name, err)
		}
		complete(barrier)
		return nil
	}

	barrier.OnDone(complete)
	return nil
}

// toOutcome converts a resolved unit of work into an outcome. Errors raised by
// the unit itself are attributed to the property it was submitted for.
func toOutcome(propertyID string, r backend.Result, dir string) model.Outcome {
	if r.Err != nil {
		return model.Failed{
			PropertyID: propertyID,
			Err:        model.NewEstimatorError(model.ErrorKindInternal, dir, "%v", r.Err),
		}
	}
	if r.Value == nil {
		return model.NotApplicable{}
	}

	o, ok := r.Value.(model.Outcome)
	if !ok {
		return model.Failed{
			PropertyID: propertyID,
			Err:        model.NewEstimatorError(model.ErrorKindInternal, dir, "unexpected task result %T", r.Value),
		}
	}

	switch o := model.Normalize(o).(type) {
	case model.Computed:
		o.PropertyID = cmp.Or(o.PropertyID, propertyID)
		return o
	case model.Failed:
		o.PropertyID = cmp.Or(o.PropertyID, propertyID)
		return o
	}
	return model.NotApplicable{}
}

// MergeOutcomes applies outcomes to ledger. Not-applicable outcomes are
// skipped and their properties stay queued. Every other outcome removes its
// property from the queue and records it as estimated or unsuccessful.
// Data attached to computed outcomes is persisted to storage, tagged with the
// ledger's force field when it carries none.
//
// An outcome whose id does not match exactly one queued property is logged as
// an id consistency anomaly. With no match it is discarded; with several, all
// matching entries are dequeued and the outcome is recorded once.
//
// MergeOutcomes must not run concurrently against the same ledger.
func MergeOutcomes(ctx context.Context, name string, ledger *model.Ledger, outcomes []model.Outcome, storage store.DataStore, logger *slog.Logger) MergeSummary {
	var summary MergeSummary
	if logger == nil {
		logger = discardLogger
	}
	ledger.EnsureMaps()

	for _, o := range outcomes {
		o = model.Normalize(o)
		outcomesTotal.WithLabelValues(name, model.OutcomeName(o)).Inc()

		var id string
		switch v := o.(type) {
		case model.NotApplicable:
			summary.Skipped++
			continue
		case model.Computed:
			id = v.PropertyID
		case model.Failed:
			id = v.PropertyID
		default:
			logger.Warn("unknown outcome type", "type", fmt.Sprintf("%T", o))
			summary.Anomalies++
			continue
		}

		queued, matches := ledger.Dequeue(id)
		if matches != 1 {
			idAnomalies.WithLabelValues(name).Inc()
			summary.Anomalies++
			logger.Warn("id consistency anomaly", "property_id", id, "matches", matches)
			if matches == 0 {
				continue
			}
		}

		switch v := o.(type) {
		case model.Computed:
			persistArtifacts(ctx, ledger.ForceFieldID, queued, v.Artifacts, storage, logger)

			prop := v.Property
			prop.ID = id
			if prop.Type == "" {
				prop.Type = queued.Type
			}
			if prop.Substance.Identifier == "" {
				prop.Substance = queued.Substance
			}
			ledger.Estimated[id] = prop
			summary.Estimated++
		case model.Failed:
			err := v.Err
			if err == nil {
				err = model.NewEstimatorError(model.ErrorKindCalculation, "", "property %s failed without an error", id)
			}
			ledger.Unsuccessful[id] = err
			summary.Unsuccessful++
		}
	}

	return summary
}

func persistArtifacts(ctx context.Context, forceFieldID string, prop model.PhysicalProperty, artifacts []*model.StoredData, storage store.DataStore, logger *slog.Logger) {
	if len(artifacts) == 0 {
		return
	}
	if storage == nil {
		logger.Warn("no storage backend, dropping data", "property_id", prop.ID, "count", len(artifacts))
		return
	}

	for _, d := range artifacts {
		if d == nil {
			continue
		}
		if d.ForceFieldID == "" {
			d.ForceFieldID = forceFieldID
		}
		if d.Substance.Identifier == "" {
			d.Substance = prop.Substance
		}
		if err := storage.StoreData(ctx, d.Substance.Identifier, d); err != nil {
			logger.Error("failed to store data", "property_id", prop.ID, "substance", d.Substance.Identifier, "error", err)
		}
	}
}
