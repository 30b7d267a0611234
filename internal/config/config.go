// Package config handles TOML/YAML configuration for reaper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Response formats.
const (
	FormatBatch  = "batch"
	FormatSingle = "single"
)

// Config is the root configuration structure.
type Config struct {
	AWS      AWSConfig      `toml:"aws" yaml:"aws"`
	Fallback FallbackConfig `toml:"fallback" yaml:"fallback"`
	Response ResponseConfig `toml:"response" yaml:"response"`
	Guard    GuardConfig    `toml:"guard" yaml:"guard"`
	OTEL     OTELConfig     `toml:"otel" yaml:"otel"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
}

// AWSConfig holds AWS provider settings.
type AWSConfig struct {
	Region   string `toml:"region" yaml:"region"`
	Profile  string `toml:"profile" yaml:"profile"`
	Provider string `toml:"provider" yaml:"provider"`
}

// FallbackConfig holds identifiers used when a request names none.
type FallbackConfig struct {
	// InstanceIDs is a comma-separated list (INSTANCE_IDS).
	InstanceIDs string `toml:"instance_ids" yaml:"instance_ids"`
	// InstanceID is the single-format fallback (INSTANCE_ID).
	InstanceID string `toml:"instance_id" yaml:"instance_id"`
}

// ResponseConfig selects the response shape.
type ResponseConfig struct {
	Format string `toml:"format" yaml:"format"`
}

// GuardConfig holds tag filters applied before terminating.
type GuardConfig struct {
	IncludeTags map[string]string `toml:"include_tags" yaml:"include_tags"`
	ExcludeTags map[string]string `toml:"exclude_tags" yaml:"exclude_tags"`
	// Policy is an optional path to a Rego guard policy.
	Policy string `toml:"policy" yaml:"policy"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint" yaml:"endpoint"`
	Insecure    bool          `toml:"insecure" yaml:"insecure"`
	ServiceName string        `toml:"service_name" yaml:"service_name"`
	Traces      TracesConfig  `toml:"traces" yaml:"traces"`
	Metrics     MetricsConfig `toml:"metrics" yaml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled" yaml:"enabled"`
	SampleRate float64 `toml:"sample_rate" yaml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled    bool `toml:"enabled" yaml:"enabled"`
	Prometheus bool `toml:"prometheus" yaml:"prometheus"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// ServerConfig holds HTTP serve-mode settings.
type ServerConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Load reads a TOML or YAML config file (chosen by extension), then applies
// defaults and environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg, os.LookupEnv)

	return cfg, nil
}

// FromEnv builds a config from defaults and the environment only.
func FromEnv() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnv(cfg, os.LookupEnv)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.AWS.Provider == "" {
		cfg.AWS.Provider = "aws"
	}
	if cfg.Response.Format == "" {
		cfg.Response.Format = FormatBatch
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "reaper"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}

// applyEnv overrides file values with set environment variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	overrides := []struct {
		key    string
		target *string
	}{
		{"INSTANCE_IDS", &cfg.Fallback.InstanceIDs},
		{"INSTANCE_ID", &cfg.Fallback.InstanceID},
		{"AWS_REGION", &cfg.AWS.Region},
		{"AWS_PROFILE", &cfg.AWS.Profile},
		{"REAPER_RESPONSE_FORMAT", &cfg.Response.Format},
		{"LOG_LEVEL", &cfg.Log.Level},
		{"LOG_FORMAT", &cfg.Log.Format},
		{"OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTEL.Endpoint},
		{"REAPER_SERVER_ADDR", &cfg.Server.Addr},
		{"REAPER_GUARD_POLICY", &cfg.Guard.Policy},
	}

	for _, o := range overrides {
		if v, ok := lookup(o.key); ok && v != "" {
			*o.target = v
		}
	}
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.AWS.Region == "" {
		return fmt.Errorf("aws: region required")
	}
	if c.Response.Format != FormatBatch && c.Response.Format != FormatSingle {
		return fmt.Errorf("response: format must be %q or %q (got %q)", FormatBatch, FormatSingle, c.Response.Format)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	return nil
}

// FallbackIDs splits the comma-separated fallback list, trimming whitespace
// and dropping empty entries.
func (c *Config) FallbackIDs() []string {
	var ids []string
	for _, part := range strings.Split(c.Fallback.InstanceIDs, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
