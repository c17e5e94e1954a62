package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raven-os/albinos/pkg/protocol"
)

// Config is the daemon configuration file. Every field has a working
// default; an absent file is not an error.
type Config struct {
	// Socket is the listening endpoint.
	Socket string `yaml:"socket"`

	// Database is the SQLite file holding the configurations.
	Database string `yaml:"database"`

	// RedisAddr enables the event mirror when set (host:port).
	RedisAddr string `yaml:"redis_addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogJSON switches log output to JSON lines.
	LogJSON bool `yaml:"log_json"`
}

// defaultConfig returns the configuration used when no file and no flags
// are given.
func defaultConfig() Config {
	return Config{
		Socket:   protocol.DefaultSocketPath(),
		Database: "albinos_service.db",
		LogLevel: "info",
	}
}

// loadConfig reads a YAML configuration file over the defaults. A missing
// file at the default path is fine; an explicitly requested file must
// exist.
func loadConfig(path string, required bool) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Socket == "" {
		cfg.Socket = protocol.DefaultSocketPath()
	}
	if cfg.Database == "" {
		cfg.Database = "albinos_service.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}
