package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/seantiz/estimator/internal/api"
	"github.com/seantiz/estimator/internal/backend"
	"github.com/seantiz/estimator/internal/config"
	"github.com/seantiz/estimator/internal/engine"
	"github.com/seantiz/estimator/internal/layer"
	"github.com/seantiz/estimator/internal/store"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP API and estimation engine",
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := config.LoadFile(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("estimator: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"working_dir", cfg.WorkingDir,
		"workers", cfg.Workers,
		"synchronous", cfg.Synchronous,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	data, closeData, err := openDataStore(c.Context, cfg, db, logger)
	if err != nil {
		return err
	}
	defer closeData()

	b := backend.NewLocalBackend(cfg.Workers, cfg.QueueSize, logger)
	defer b.Close()

	reg := newRegistry(logger)
	eng := engine.NewEngine(db, data, reg, b, engine.Options{
		WorkingDirectory: cfg.WorkingDir,
		DefaultLayers:    cfg.DefaultLayers,
		Synchronous:      cfg.Synchronous,
	}, logger)

	srv := api.NewServer(cfg.ListenAddr, db, reg, eng, logger)
	if err := srv.Run(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	logger.Info("waiting for in-flight requests")
	eng.Wait()
	return nil
}

// openDataStore returns the Redis data store when one is configured, and
// the SQLite store otherwise.
func openDataStore(ctx context.Context, cfg config.Config, db *store.SQLiteStore, logger *slog.Logger) (store.DataStore, func(), error) {
	if cfg.RedisURL == "" {
		return db, func() {}, nil
	}

	rs, err := store.NewRedisDataStore(cfg.RedisURL, "")
	if err != nil {
		return nil, nil, fmt.Errorf("open redis data store: %w", err)
	}
	if err := rs.Ping(ctx); err != nil {
		rs.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("using redis data store")
	return rs, func() { rs.Close() }, nil
}

// newRegistry binds every layer the service ships with.
func newRegistry(logger *slog.Logger) *layer.Registry {
	reg := layer.NewRegistry()
	reg.MustRegister(layer.StoredDataLayerName, layer.NewStoredDataLayer(logger))
	return reg
}
