package emitter

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/reaper/pkg/instance"
)

// Outcome label values.
const (
	OutcomeSuccessful = "successful"
	OutcomeBlocked    = "blocked"
	OutcomeFailed     = "failed"
)

// MetricsEmitter records invocations as OTEL metrics.
type MetricsEmitter struct {
	meter metric.Meter

	invocationsTotal   metric.Int64Counter
	terminationsTotal  metric.Int64Counter
	blockedTotal       metric.Int64Counter
	invocationDuration metric.Float64Histogram
}

// NewMetricsEmitter creates a metrics emitter. A nil meter means the global
// meter provider.
func NewMetricsEmitter(meter metric.Meter) (*MetricsEmitter, error) {
	if meter == nil {
		meter = otel.Meter("reaper")
	}

	e := &MetricsEmitter{meter: meter}
	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return e, nil
}

func (e *MetricsEmitter) initMetrics() error {
	var err error

	e.invocationsTotal, err = e.meter.Int64Counter(
		"reaper_invocations_total",
		metric.WithDescription("Total handler invocations by response status"),
	)
	if err != nil {
		return fmt.Errorf("create invocations counter: %w", err)
	}

	e.terminationsTotal, err = e.meter.Int64Counter(
		"reaper_terminations_total",
		metric.WithDescription("Per-instance termination outcomes"),
	)
	if err != nil {
		return fmt.Errorf("create terminations counter: %w", err)
	}

	e.blockedTotal, err = e.meter.Int64Counter(
		"reaper_blocked_total",
		metric.WithDescription("Blocked terminations by provider error code"),
	)
	if err != nil {
		return fmt.Errorf("create blocked counter: %w", err)
	}

	e.invocationDuration, err = e.meter.Float64Histogram(
		"reaper_invocation_duration_seconds",
		metric.WithDescription("Time taken to handle an invocation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create invocation_duration histogram: %w", err)
	}

	return nil
}

// Emit records the invocation as metrics.
func (e *MetricsEmitter) Emit(ctx context.Context, inv instance.Invocation) error {
	status := metric.WithAttributes(attribute.String("status", strconv.Itoa(inv.StatusCode)))
	e.invocationsTotal.Add(ctx, 1, status)
	e.invocationDuration.Record(ctx, inv.Duration.Seconds(), status)

	if inv.Report == nil {
		return nil
	}

	s := inv.Report.Summary
	e.addOutcome(ctx, OutcomeSuccessful, s.Successful)
	e.addOutcome(ctx, OutcomeBlocked, s.Blocked)
	e.addOutcome(ctx, OutcomeFailed, s.Failed)

	for _, b := range inv.Report.Blocked {
		code := b.ErrorCode
		if code == "" {
			code = "none"
		}
		e.blockedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("error_code", code)))
	}

	return nil
}

func (e *MetricsEmitter) addOutcome(ctx context.Context, outcome string, n int) {
	if n == 0 {
		return
	}
	e.terminationsTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Close is a no-op; the meter provider owns flushing.
func (e *MetricsEmitter) Close() error {
	return nil
}
