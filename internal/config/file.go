package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File mirrors Config for the YAML config file. Zero values leave the
// corresponding setting untouched.
type File struct {
	ListenAddr    string   `yaml:"listen_addr"`
	DBPath        string   `yaml:"db_path"`
	LogLevel      string   `yaml:"log_level"`
	WorkingDir    string   `yaml:"working_dir"`
	Workers       int      `yaml:"workers"`
	QueueSize     int      `yaml:"queue_size"`
	RedisURL      string   `yaml:"redis_url"`
	DefaultLayers []string `yaml:"default_layers"`
	Synchronous   *bool    `yaml:"synchronous"`
}

// LoadFile builds the configuration from defaults, then the YAML file at
// path, then environment variables. ${VAR} references in the file are
// expanded before parsing. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		f, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		f.apply(&cfg)
	}
	applyEnv(&cfg)
	return cfg, nil
}

func readFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &f, nil
}

func (f *File) apply(cfg *Config) {
	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.LogLevel != "" {
		cfg.LogLevel = parseLogLevel(f.LogLevel)
	}
	if f.WorkingDir != "" {
		cfg.WorkingDir = f.WorkingDir
	}
	if f.Workers > 0 {
		cfg.Workers = f.Workers
	}
	if f.QueueSize > 0 {
		cfg.QueueSize = f.QueueSize
	}
	if f.RedisURL != "" {
		cfg.RedisURL = f.RedisURL
	}
	if len(f.DefaultLayers) > 0 {
		cfg.DefaultLayers = f.DefaultLayers
	}
	if f.Synchronous != nil {
		cfg.Synchronous = *f.Synchronous
	}
}
