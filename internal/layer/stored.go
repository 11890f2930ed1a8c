package layer

import (
	"context"
	"log/slog"
	"slices"

	"github.com/seantiz/estimator/internal/model"
)

// StoredDataLayerName is the name the stored data layer registers under.
const StoredDataLayerName = "StoredDataLayer"

// NewStoredDataLayer returns a layer that answers properties from previously
// stored data for the same substance and force field. Properties with no
// matching observable are left for later layers.
func NewStoredDataLayer(logger *slog.Logger) *TaskLayer {
	if logger == nil {
		logger = discardLogger
	}
	return NewTaskLayer(StoredDataLayerName, func(ctx context.Context, in TaskInput) model.Outcome {
		return estimateFromStoredData(ctx, in, logger)
	})
}

func estimateFromStoredData(ctx context.Context, in TaskInput, logger *slog.Logger) model.Outcome {
	if in.Storage == nil {
		return model.NotApplicable{}
	}

	prop := in.Property
	data, err := in.Storage.RetrieveData(ctx, prop.Substance.Identifier, in.ForceFieldID)
	if err != nil {
		logger.Warn("retrieve stored data", "property_id", prop.ID, "substance", prop.Substance.Identifier, "error", err)
		return model.NotApplicable{}
	}

	// Newest data wins.
	for _, d := range slices.Backward(data) {
		v, ok := d.Observable(prop.Type)
		if !ok {
			continue
		}
		prop.Value = v
		prop.Source = "stored:" + d.ID
		return model.Computed{PropertyID: prop.ID, Property: prop}
	}
	return model.NotApplicable{}
}
