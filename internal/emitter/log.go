package emitter

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/reaper/pkg/instance"
)

// LogEmitter writes one structured log line per outcome plus a summary.
type LogEmitter struct {
	logger *zerolog.Logger
}

// NewLogEmitter creates a log emitter. A nil logger means the global one.
func NewLogEmitter(logger *zerolog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) log() *zerolog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return &log.Logger
}

// Emit logs the invocation.
func (e *LogEmitter) Emit(ctx context.Context, inv instance.Invocation) error {
	l := e.log()

	if inv.Report == nil {
		l.Warn().Ctx(ctx).
			Int("status", inv.StatusCode).
			Str("error", inv.Error).
			Dur("duration", inv.Duration).
			Msg("invocation finished without report")
		return nil
	}

	for _, s := range inv.Report.Successful {
		l.Info().Ctx(ctx).
			Str("instance_id", s.InstanceID).
			Str("previous_state", string(s.PreviousState)).
			Str("current_state", string(s.CurrentState)).
			Msg("termination initiated")
	}
	for _, b := range inv.Report.Blocked {
		l.Warn().Ctx(ctx).
			Str("instance_id", b.InstanceID).
			Str("reason", b.Reason).
			Str("error_code", b.ErrorCode).
			Str("state", string(b.Details.State)).
			Msg("termination blocked")
	}
	for _, f := range inv.Report.Failed {
		l.Error().Ctx(ctx).
			Str("instance_id", f.InstanceID).
			Str("reason", f.Reason).
			Msg("termination failed")
	}

	s := inv.Report.Summary
	l.Info().Ctx(ctx).
		Int("status", inv.StatusCode).
		Int("requested", s.Requested).
		Int("successful", s.Successful).
		Int("blocked", s.Blocked).
		Int("failed", s.Failed).
		Dur("duration", inv.Duration).
		Msg("invocation complete")

	return nil
}

// Close is a no-op.
func (e *LogEmitter) Close() error {
	return nil
}
