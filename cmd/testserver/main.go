// testserver starts an estimator API server with stub layers for E2E testing.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/seantiz/estimator/internal/api"
	"github.com/seantiz/estimator/internal/backend"
	"github.com/seantiz/estimator/internal/engine"
	"github.com/seantiz/estimator/internal/layer"
	"github.com/seantiz/estimator/internal/model"
	"github.com/seantiz/estimator/internal/store"
)

// simulate pretends to run a simulation. Densities are computed and cached;
// anything else fails so that both outcomes show up in the ledger.
func simulate(delay time.Duration) layer.Estimator {
	return func(ctx context.Context, in layer.TaskInput) model.Outcome {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.Failed{PropertyID: in.Property.ID, Err: model.NewEstimatorError(model.ErrorKindTimeout, in.WorkingDirectory, "%v", ctx.Err())}
		}

		if in.Property.Type != model.PropertyDensity {
			return model.Failed{
				PropertyID: in.Property.ID,
				Err:        model.NewEstimatorError(model.ErrorKindUnsupported, in.WorkingDirectory, "stub cannot simulate %s", in.Property.Type),
			}
		}

		p := in.Property
		p.Value, p.Uncertainty, p.Source = 0.789, 0.002, "simulation"
		return model.Computed{
			PropertyID: p.ID,
			Property:   p,
			Artifacts: []*model.StoredData{{
				PropertyType: p.Type,
				Observables:  map[string]float64{p.Type: p.Value},
			}},
		}
	}
}

func main() {
	addr := ":8080"
	if v := os.Getenv("ESTIMATOR_LISTEN_ADDR"); v != "" {
		addr = v
	}

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	workDir, err := os.MkdirTemp("", "estimator-testserver-*")
	if err != nil {
		log.Fatalf("failed to create working directory: %v", err)
	}
	defer os.RemoveAll(workDir)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	b := backend.NewLocalBackend(backend.DefaultWorkers, backend.DefaultQueueSize, logger)
	defer b.Close()

	reg := layer.NewRegistry()
	reg.MustRegister(layer.StoredDataLayerName, layer.NewStoredDataLayer(logger))
	reg.MustRegister("SimulationLayer", layer.NewTaskLayer("SimulationLayer", simulate(500*time.Millisecond)))

	eng := engine.NewEngine(db, db, reg, b, engine.Options{
		WorkingDirectory: workDir,
		DefaultLayers:    []string{layer.StoredDataLayerName, "SimulationLayer"},
	}, logger)
	srv := api.NewServer(addr, db, reg, eng, logger)

	logger.Info("testserver: starting", "addr", addr, "working_dir", workDir)
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	eng.Wait()
}
