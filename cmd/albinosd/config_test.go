package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/raven-os/albinos/pkg/protocol"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("/nonexistent/albinosd.yaml", false)
	if err != nil {
		t.Fatalf("loadConfig() with absent optional file should not error: %v", err)
	}
	if cfg.Socket != protocol.DefaultSocketPath() {
		t.Errorf("Socket = %q, want default %q", cfg.Socket, protocol.DefaultSocketPath())
	}
	if cfg.Database != "albinos_service.db" {
		t.Errorf("Database = %q, want albinos_service.db", cfg.Database)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.RedisAddr != "" || cfg.LogJSON {
		t.Errorf("mirror and JSON logging should default off, got %+v", cfg)
	}
}

func TestLoadConfigRequiredMissing(t *testing.T) {
	if _, err := loadConfig("/nonexistent/albinosd.yaml", true); err == nil {
		t.Error("loadConfig() with a missing required file should error")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "albinosd.yaml")
	content := `socket: /run/albinos.sock
database: /var/lib/albinos/albinos.db
redis_addr: 127.0.0.1:6379
log_level: debug
log_json: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := loadConfig(path, true)
	if err != nil {
		t.Fatalf("loadConfig() failed: %v", err)
	}
	if cfg.Socket != "/run/albinos.sock" {
		t.Errorf("Socket = %q", cfg.Socket)
	}
	if cfg.Database != "/var/lib/albinos/albinos.db" {
		t.Errorf("Database = %q", cfg.Database)
	}
	if cfg.RedisAddr != "127.0.0.1:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if !cfg.LogJSON {
		t.Error("LogJSON should be true")
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "albinosd.yaml")
	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := loadConfig(path, true)
	if err != nil {
		t.Fatalf("loadConfig() failed: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.Socket != protocol.DefaultSocketPath() {
		t.Errorf("Socket = %q, want default", cfg.Socket)
	}
	if cfg.Database != "albinos_service.db" {
		t.Errorf("Database = %q, want default", cfg.Database)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "albinosd.yaml")
	if err := os.WriteFile(path, []byte("socket: [broken\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if _, err := loadConfig(path, true); err == nil {
		t.Error("loadConfig() with invalid YAML should error")
	}
}
