package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		envListenAddr, envDBPath, envLogLevel, envWorkingDir, envWorkers,
		envQueueSize, envRedisURL, envDefaultLayers, envSynchronous,
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "estimator.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.Workers != defaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, defaultWorkers)
	}
	if cfg.Synchronous {
		t.Error("Synchronous should default to false")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envListenAddr, ":9090")
	t.Setenv(envDBPath, "/tmp/test.db")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envWorkers, "8")
	t.Setenv(envRedisURL, "redis://localhost:6379/0")
	t.Setenv(envDefaultLayers, "StoredDataLayer, SimulationLayer,,")
	t.Setenv(envSynchronous, "true")

	cfg := Load()

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if diff := cmp.Diff([]string{"StoredDataLayer", "SimulationLayer"}, cfg.DefaultLayers); diff != "" {
		t.Errorf("DefaultLayers mismatch (-want +got):\n%s", diff)
	}
	if !cfg.Synchronous {
		t.Error("Synchronous = false, want true")
	}
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(envWorkers, "-3")
	t.Setenv(envQueueSize, "lots")
	t.Setenv(envSynchronous, "maybe")

	cfg := Load()

	if cfg.Workers != defaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, defaultWorkers)
	}
	if cfg.QueueSize != defaultQueueSize {
		t.Errorf("QueueSize = %d, want %d", cfg.QueueSize, defaultQueueSize)
	}
	if cfg.Synchronous {
		t.Error("Synchronous should stay false for an unparsable value")
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_REDIS_HOST", "cache.internal")
	path := writeConfig(t, `
listen_addr: ":7070"
working_dir: /var/lib/estimator
workers: 16
redis_url: redis://${TEST_REDIS_HOST}:6379/${TEST_REDIS_DB:-2}
default_layers: [StoredDataLayer]
synchronous: true
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	want := Defaults()
	want.ListenAddr = ":7070"
	want.WorkingDir = "/var/lib/estimator"
	want.Workers = 16
	want.RedisURL = "redis://cache.internal:6379/2"
	want.DefaultLayers = []string{"StoredDataLayer"}
	want.Synchronous = true
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(envListenAddr, ":9999")
	path := writeConfig(t, "listen_addr: \":7070\"\ndb_path: file.db\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q, want the environment value", cfg.ListenAddr)
	}
	if cfg.DBPath != "file.db" {
		t.Errorf("DBPath = %q, want the file value", cfg.DBPath)
	}
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
	if _, err := LoadFile(writeConfig(t, "workers: [not, a, number]\n")); err == nil {
		t.Error("expected error for invalid YAML")
	}
	if _, err := LoadFile(""); err != nil {
		t.Errorf("empty path should skip the file: %v", err)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("EXPAND_SET", "value")
	t.Setenv("EXPAND_EMPTY", "")

	tests := []struct {
		input string
		want  string
	}{
		{"${EXPAND_SET}", "value"},
		{"${EXPAND_UNSET_VAR}", ""},
		{"${EXPAND_UNSET_VAR:-fallback}", "fallback"},
		{"${EXPAND_EMPTY:-fallback}", "fallback"},
		{"prefix-${EXPAND_SET}-suffix", "prefix-value-suffix"},
		{"$EXPAND_SET", "$EXPAND_SET"},
	}
	for _, tt := range tests {
		if got := ExpandEnv(tt.input); got != tt.want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := parseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}
