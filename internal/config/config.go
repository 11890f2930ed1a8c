package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	defaultListenAddr = ":8080"
	defaultDBPath     = "estimator.db"
	defaultWorkingDir = "working-data"
	defaultWorkers    = 4
	defaultQueueSize  = 256

	envListenAddr    = "ESTIMATOR_LISTEN_ADDR"
	envDBPath        = "ESTIMATOR_DB_PATH"
	envLogLevel      = "ESTIMATOR_LOG_LEVEL"
	envWorkingDir    = "ESTIMATOR_WORKING_DIR"
	envWorkers       = "ESTIMATOR_WORKERS"
	envQueueSize     = "ESTIMATOR_QUEUE_SIZE"
	envRedisURL      = "ESTIMATOR_REDIS_URL"
	envDefaultLayers = "ESTIMATOR_DEFAULT_LAYERS"
	envSynchronous   = "ESTIMATOR_SYNCHRONOUS"

	// EnvConfigFile names the optional YAML config file.
	EnvConfigFile = "ESTIMATOR_CONFIG"
)

// Config holds application configuration.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level
	// WorkingDir is the root of every layer's working directory.
	WorkingDir string
	Workers    int
	QueueSize  int
	// RedisURL selects the Redis data store when set. Otherwise stored data
	// lives in the SQLite database.
	RedisURL      string
	DefaultLayers []string
	Synchronous   bool
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		ListenAddr: defaultListenAddr,
		DBPath:     defaultDBPath,
		LogLevel:   slog.LevelInfo,
		WorkingDir: defaultWorkingDir,
		Workers:    defaultWorkers,
		QueueSize:  defaultQueueSize,
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envWorkingDir); v != "" {
		cfg.WorkingDir = v
	}
	if v := os.Getenv(envWorkers); v != "" {
		cfg.Workers = parsePositive(v, cfg.Workers)
	}
	if v := os.Getenv(envQueueSize); v != "" {
		cfg.QueueSize = parsePositive(v, cfg.QueueSize)
	}
	if v := os.Getenv(envRedisURL); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv(envDefaultLayers); v != "" {
		cfg.DefaultLayers = parseList(v)
	}
	if v := os.Getenv(envSynchronous); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Synchronous = b
		}
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parsePositive returns s as an int, or fallback if s is not a positive integer.
func parsePositive(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// parseList splits a comma-separated list, dropping empty entries.
func parseList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
