// Package config holds the photon daemon configuration: defaults, JSON file
// loading, and environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// RuntimeConfig holds control-endpoint connection settings.
type RuntimeConfig struct {
	// Endpoint is the host:port of the control endpoint. The
	// AWS_LAMBDA_RUNTIME_API environment variable takes precedence, per the
	// runtime API convention.
	Endpoint string `json:"endpoint"`

	// VsockCID/VsockPort, when both non-zero, route the control connection
	// over AF_VSOCK instead of TCP.
	VsockCID  uint32 `json:"vsock_cid"`
	VsockPort uint32 `json:"vsock_port"`

	NextTimeout   time.Duration `json:"next_timeout"`
	ReportTimeout time.Duration `json:"report_timeout"`
}

// DaemonConfig holds daemon-specific settings.
type DaemonConfig struct {
	ManifestPath string `json:"manifest_path"`
	LogLevel     string `json:"log_level"`
	LogFormat    string `json:"log_format"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Addr      string `json:"addr"`
	Namespace string `json:"namespace"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool    `json:"enabled"`
	Exporter    string  `json:"exporter"`
	Endpoint    string  `json:"endpoint"`
	ServiceName string  `json:"service_name"`
	SampleRate  float64 `json:"sample_rate"`
}

// Config is the central configuration struct embedding all component configs.
type Config struct {
	Runtime RuntimeConfig `json:"runtime"`
	Daemon  DaemonConfig  `json:"daemon"`
	Metrics MetricsConfig `json:"metrics"`
	Tracing TracingConfig `json:"tracing"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			Endpoint:      "127.0.0.1:9001",
			NextTimeout:   15 * time.Minute,
			ReportTimeout: 15 * time.Second,
		},
		Daemon: DaemonConfig{
			ManifestPath: "photon.yaml",
			LogLevel:     "info",
			LogFormat:    "text",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Addr:      ":9102",
			Namespace: "photon",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "otlp-http",
			Endpoint:    "localhost:4318",
			ServiceName: "photon",
			SampleRate:  1.0,
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("AWS_LAMBDA_RUNTIME_API"); v != "" {
		cfg.Runtime.Endpoint = v
	}
	if v := os.Getenv("PHOTON_VSOCK_CID"); v != "" {
		if cid, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Runtime.VsockCID = uint32(cid)
		}
	}
	if v := os.Getenv("PHOTON_VSOCK_PORT"); v != "" {
		if port, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Runtime.VsockPort = uint32(port)
		}
	}
	if v := os.Getenv("PHOTON_MANIFEST"); v != "" {
		cfg.Daemon.ManifestPath = v
	}
	if v := os.Getenv("PHOTON_LOG_LEVEL"); v != "" {
		cfg.Daemon.LogLevel = v
	}
	if v := os.Getenv("PHOTON_LOG_FORMAT"); v != "" {
		cfg.Daemon.LogFormat = v
	}
	if v := os.Getenv("PHOTON_METRICS_ADDR"); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("PHOTON_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Endpoint = v
	}
}
