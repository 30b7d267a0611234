package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/yairfalse/reaper/internal/config"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestSetupWriter_JSON(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer

	require.NoError(t, SetupWriter(config.LogConfig{Level: "info", Format: "json"}, &buf))
	log.Info().Str("instance_id", "i-1").Msg("hello")
	log.Debug().Msg("filtered")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "i-1", entry["instance_id"])
	assert.Equal(t, "reaper", entry["service"])
	assert.NotContains(t, buf.String(), "filtered")
}

func TestSetupWriter_Console(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer

	require.NoError(t, SetupWriter(config.LogConfig{Level: "debug", Format: "console"}, &buf))
	log.Debug().Msg("visible")

	assert.Contains(t, buf.String(), "visible")
}

func TestSetupWriter_InvalidLevel(t *testing.T) {
	restoreLogger(t)
	err := SetupWriter(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestSetupWriter_InvalidFormat(t *testing.T) {
	restoreLogger(t)
	err := SetupWriter(config.LogConfig{Level: "info", Format: "xml"}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestOTELHook_AddsTraceIDs(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	require.NoError(t, SetupWriter(config.LogConfig{Level: "info"}, &buf))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	log.Info().Ctx(ctx).Msg("traced")
	span.End()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}

func TestOTELHook_NoContext(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	require.NoError(t, SetupWriter(config.LogConfig{Level: "info"}, &buf))

	log.Info().Msg("plain")

	assert.NotContains(t, buf.String(), "trace_id")
}
