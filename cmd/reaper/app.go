package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/reaper/internal/config"
	"github.com/yairfalse/reaper/internal/emitter"
	"github.com/yairfalse/reaper/internal/filter"
	"github.com/yairfalse/reaper/internal/logging"
	"github.com/yairfalse/reaper/internal/provider"
	"github.com/yairfalse/reaper/internal/provider/aws"
	"github.com/yairfalse/reaper/internal/telemetry"
	"github.com/yairfalse/reaper/internal/terminator"
)

// app bundles everything an invocation needs.
type app struct {
	cfg       *config.Config
	telemetry *telemetry.Provider
	emitter   emitter.Emitter
	handler   *terminator.Handler
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg = config.FromEnv()
	} else if cfg, err = config.Load(path); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := logging.Setup(cfg.Log); err != nil {
		return nil, err
	}

	tp, err := telemetry.NewProvider(ctx, cfg.OTEL)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	p, err := resolveProvider(ctx, cfg.AWS)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	metricsEmitter, err := emitter.NewMetricsEmitter(tp.Meter())
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("create metrics emitter: %w", err)
	}
	emit := emitter.NewMultiEmitter(emitter.NewLogEmitter(nil), metricsEmitter)

	guard, err := newGuard(ctx, cfg.Guard)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	handler := terminator.NewHandler(p, terminator.Options{
		Format:          cfg.Response.Format,
		FallbackIDs:     cfg.FallbackIDs(),
		FallbackID:      cfg.Fallback.InstanceID,
		Filter:          guard,
		Emitter:         emit,
		Instrumentation: tp,
	})

	log.Debug().
		Str("provider", p.Name()).
		Str("region", p.Region()).
		Str("format", cfg.Response.Format).
		Msg("reaper initialized")

	return &app{cfg: cfg, telemetry: tp, emitter: emit, handler: handler}, nil
}

func newGuard(ctx context.Context, cfg config.GuardConfig) (*filter.Filter, error) {
	f := filter.New(cfg.IncludeTags, cfg.ExcludeTags)
	if cfg.Policy == "" {
		return f, nil
	}

	policy, err := filter.LoadPolicy(ctx, cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("load guard policy: %w", err)
	}
	log.Info().Str("policy", cfg.Policy).Msg("guard policy loaded")
	return f.WithPolicy(policy), nil
}

// resolveProvider returns the configured provider, creating and registering
// the AWS provider on first use.
func resolveProvider(ctx context.Context, cfg config.AWSConfig) (provider.Provider, error) {
	if p, ok := provider.Get(cfg.Provider); ok {
		return p, nil
	}

	if cfg.Provider == "aws" {
		p, err := aws.New(ctx, aws.Config{Region: cfg.Region, Profile: cfg.Profile})
		if err != nil {
			return nil, fmt.Errorf("create aws provider: %w", err)
		}
		provider.Register(p)
	}

	return provider.Lookup(cfg.Provider)
}

func (a *app) Close(ctx context.Context) {
	if err := a.emitter.Close(); err != nil {
		log.Warn().Err(err).Msg("close emitter")
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown telemetry")
	}
}
