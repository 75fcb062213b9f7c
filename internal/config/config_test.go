package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Runtime.Endpoint != "127.0.0.1:9001" {
		t.Fatalf("unexpected default endpoint: %q", cfg.Runtime.Endpoint)
	}
	if cfg.Runtime.NextTimeout != 15*time.Minute {
		t.Fatalf("unexpected default next timeout: %v", cfg.Runtime.NextTimeout)
	}
	if cfg.Daemon.LogLevel != "info" {
		t.Fatalf("unexpected default log level: %q", cfg.Daemon.LogLevel)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	doc := `{
		"runtime": {"endpoint": "10.0.2.2:9001"},
		"daemon": {"log_level": "debug", "manifest_path": "/srv/fn/photon.yaml"},
		"metrics": {"enabled": true, "addr": ":9200"}
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Runtime.Endpoint != "10.0.2.2:9001" {
		t.Fatalf("unexpected endpoint: %q", cfg.Runtime.Endpoint)
	}
	if cfg.Daemon.LogLevel != "debug" || cfg.Daemon.ManifestPath != "/srv/fn/photon.yaml" {
		t.Fatalf("unexpected daemon config: %+v", cfg.Daemon)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9200" {
		t.Fatalf("unexpected metrics config: %+v", cfg.Metrics)
	}
	// Untouched sections keep their defaults.
	if cfg.Runtime.ReportTimeout != 15*time.Second {
		t.Fatalf("expected default report timeout, got %v", cfg.Runtime.ReportTimeout)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "127.0.0.1:8080")
	t.Setenv("PHOTON_LOG_LEVEL", "warn")
	t.Setenv("PHOTON_VSOCK_CID", "3")
	t.Setenv("PHOTON_VSOCK_PORT", "9001")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Runtime.Endpoint != "127.0.0.1:8080" {
		t.Fatalf("unexpected endpoint: %q", cfg.Runtime.Endpoint)
	}
	if cfg.Daemon.LogLevel != "warn" {
		t.Fatalf("unexpected log level: %q", cfg.Daemon.LogLevel)
	}
	if cfg.Runtime.VsockCID != 3 || cfg.Runtime.VsockPort != 9001 {
		t.Fatalf("unexpected vsock config: %d/%d", cfg.Runtime.VsockCID, cfg.Runtime.VsockPort)
	}
}
