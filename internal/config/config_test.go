package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable applyEnv reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"INSTANCE_IDS", "INSTANCE_ID", "AWS_REGION", "AWS_PROFILE",
		"REAPER_RESPONSE_FORMAT", "LOG_LEVEL", "LOG_FORMAT",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "REAPER_SERVER_ADDR", "REAPER_GUARD_POLICY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	clearEnv(t)
	content := `
[aws]
region = "eu-west-1"
profile = "production"

[fallback]
instance_ids = "i-1, i-2"

[response]
format = "single"

[guard.exclude_tags]
protected = "true"

[otel]
endpoint = "localhost:4317"
insecure = true
service_name = "reaper"

[otel.traces]
enabled = true
sample_rate = 1.0

[otel.metrics]
enabled = true
prometheus = true

[log]
level = "debug"
format = "console"

[server]
addr = ":9000"
`
	path := writeTempConfig(t, "config.toml", content)
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "production", cfg.AWS.Profile)
	assert.Equal(t, "aws", cfg.AWS.Provider)
	assert.Equal(t, []string{"i-1", "i-2"}, cfg.FallbackIDs())
	assert.Equal(t, FormatSingle, cfg.Response.Format)
	assert.Equal(t, map[string]string{"protected": "true"}, cfg.Guard.ExcludeTags)
	assert.Equal(t, "localhost:4317", cfg.OTEL.Endpoint)
	assert.True(t, cfg.OTEL.Insecure)
	assert.True(t, cfg.OTEL.Traces.Enabled)
	assert.Equal(t, 1.0, cfg.OTEL.Traces.SampleRate)
	assert.True(t, cfg.OTEL.Metrics.Prometheus)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	content := `
aws:
  region: ap-southeast-2
guard:
  include_tags:
    reapable: "yes"
  policy: /etc/reaper/guard.rego
log:
  level: warn
`
	path := writeTempConfig(t, "config.yaml", content)
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "ap-southeast-2", cfg.AWS.Region)
	assert.Equal(t, map[string]string{"reapable": "yes"}, cfg.Guard.IncludeTags)
	assert.Equal(t, "/etc/reaper/guard.rego", cfg.Guard.Policy)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, FormatBatch, cfg.Response.Format)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "config.toml", "")
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, "aws", cfg.AWS.Provider)
	assert.Equal(t, FormatBatch, cfg.Response.Format)
	assert.Equal(t, "reaper", cfg.OTEL.ServiceName)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.FallbackIDs())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("INSTANCE_IDS", " i-a ,, i-b ")
	t.Setenv("AWS_REGION", "us-west-2")
	t.Setenv("LOG_LEVEL", "error")

	path := writeTempConfig(t, "config.toml", `
[aws]
region = "eu-west-1"
`)
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "us-west-2", cfg.AWS.Region)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, []string{"i-a", "i-b"}, cfg.FallbackIDs())
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("INSTANCE_ID", "i-legacy")
	t.Setenv("REAPER_RESPONSE_FORMAT", "single")
	t.Setenv("REAPER_GUARD_POLICY", "/var/task/guard.rego")

	cfg := FromEnv()

	assert.Equal(t, "i-legacy", cfg.Fallback.InstanceID)
	assert.Equal(t, "/var/task/guard.rego", cfg.Guard.Policy)
	assert.Equal(t, FormatSingle, cfg.Response.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	require.Error(t, err)
}

func TestLoad_InvalidTOML(t *testing.T) {
	content := `
[aws
region = "us-east-1"
`
	path := writeTempConfig(t, "config.toml", content)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "config.yml", "aws: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
}

func TestConfig_Validate_UnknownFormat(t *testing.T) {
	cfg := defaultConfig()
	cfg.Response.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format")
}

func TestConfig_Validate_SampleRate(t *testing.T) {
	cfg := defaultConfig()
	cfg.OTEL.Traces.SampleRate = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample_rate")
}

func TestConfig_Validate_NoRegion(t *testing.T) {
	cfg := defaultConfig()
	cfg.AWS.Region = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region")
}

// defaultConfig returns a defaulted config without reading the environment.
func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}
