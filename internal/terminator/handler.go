// Package terminator implements the termination request handler: it resolves
// instance identifiers, snapshots them, terminates each one and aggregates a
// per-instance report.
package terminator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/yairfalse/reaper/internal/config"
	"github.com/yairfalse/reaper/internal/emitter"
	"github.com/yairfalse/reaper/internal/filter"
	"github.com/yairfalse/reaper/internal/provider"
	"github.com/yairfalse/reaper/pkg/instance"
)

// ErrNoInstances is returned by Resolve when no identifier could be found in
// the request or the fallback list.
var ErrNoInstances = errors.New("no instance IDs provided in event (instance_id, instance_ids) or INSTANCE_IDS environment variable")

// Instrumentation is the tracing/metrics surface the handler reports to.
type Instrumentation interface {
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
	RecordAPICall(ctx context.Context, operation, result string, d time.Duration)
}

// Options configure handler behavior.
type Options struct {
	// Format is config.FormatBatch (default) or config.FormatSingle.
	Format string
	// FallbackIDs are used only when the request names no instance.
	FallbackIDs []instance.ID
	// FallbackID is the single-format fallback.
	FallbackID      instance.ID
	Filter          *filter.Filter
	Emitter         emitter.Emitter
	Instrumentation Instrumentation
}

// Handler handles termination requests. It holds no per-invocation state and
// is safe for concurrent use if its provider and emitter are.
type Handler struct {
	provider provider.Provider
	opts     Options
}

// NewHandler creates a handler for the given provider.
func NewHandler(p provider.Provider, opts Options) *Handler {
	if opts.Format == "" {
		opts.Format = config.FormatBatch
	}
	if opts.Instrumentation == nil {
		opts.Instrumentation = nopInstrumentation{}
	}
	return &Handler{provider: p, opts: opts}
}

// Handle processes one invocation and always returns a structured result.
func (h *Handler) Handle(ctx context.Context, req instance.Request) *Result {
	start := time.Now()
	ctx, span := h.opts.Instrumentation.StartSpan(ctx, "reaper.invoke",
		attribute.String("provider", h.provider.Name()),
		attribute.String("format", h.opts.Format),
	)
	defer span.End()

	var (
		result *Result
		inv    instance.Invocation
	)
	if h.opts.Format == config.FormatSingle {
		result, inv = h.handleSingle(ctx, req)
	} else {
		result, inv = h.handleBatch(ctx, req)
	}

	span.SetAttributes(attribute.Int("status", result.StatusCode))
	inv.StatusCode = result.StatusCode
	inv.Duration = time.Since(start)
	h.emit(ctx, inv)

	return result
}

// Resolve builds the deduplicated identifier list for req. The fallback list
// is consulted only when the request names nothing; it is never merged with
// explicit identifiers.
func (h *Handler) Resolve(req instance.Request) ([]instance.ID, error) {
	ids := req.IDs()
	if len(ids) == 0 {
		ids = h.opts.FallbackIDs
	}

	ids = instance.Dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrNoInstances
	}
	return ids, nil
}

func (h *Handler) handleBatch(ctx context.Context, req instance.Request) (*Result, instance.Invocation) {
	ids, err := h.Resolve(req)
	if err != nil {
		log.Warn().Ctx(ctx).Err(err).Msg("rejecting invocation")
		return errorResult(http.StatusBadRequest, err.Error(), ""), instance.Invocation{Error: err.Error()}
	}

	log.Debug().Ctx(ctx).Strs("instance_ids", ids).Msg("resolved instances")

	snapshots := h.describe(ctx, ids)

	report := instance.NewReport(len(ids))
	for _, id := range ids {
		h.terminateOne(ctx, id, snapshots, report)
	}

	status := report.StatusCode()
	return &Result{StatusCode: status, Body: report}, instance.Invocation{Report: report}
}

// describe fetches snapshots for ids. A failed describe degrades to an empty
// map so termination attempts still proceed.
func (h *Handler) describe(ctx context.Context, ids []instance.ID) map[instance.ID]instance.Snapshot {
	ctx, span := h.opts.Instrumentation.StartSpan(ctx, "reaper.describe", attribute.Int("instances", len(ids)))
	defer span.End()

	start := time.Now()
	snapshots, err := h.provider.Describe(ctx, ids)
	h.opts.Instrumentation.RecordAPICall(ctx, "DescribeInstances", resultLabel(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		log.Warn().Ctx(ctx).Err(err).Int("instances", len(ids)).Msg("describe failed, continuing with unknown state")
		return map[instance.ID]instance.Snapshot{}
	}
	return snapshots
}

func (h *Handler) terminateOne(ctx context.Context, id instance.ID, snapshots map[instance.ID]instance.Snapshot, report *instance.Report) {
	snapshot, ok := snapshots[id]
	if !ok {
		snapshot = instance.UnknownSnapshot()
	}

	if snapshot.State.IsTerminal() {
		report.Blocked = append(report.Blocked, instance.Blocked{
			InstanceID: id,
			Reason:     fmt.Sprintf("Instance already in %s state", snapshot.State),
			Details:    snapshot,
		})
		return
	}

	reason, err := h.opts.Filter.Check(ctx, id, snapshot)
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Str("instance_id", id).Msg("guard evaluation failed")
		report.Failed = append(report.Failed, instance.Failed{
			InstanceID: id,
			Reason:     fmt.Sprintf("Unexpected error: %v", err),
			Details:    snapshot,
		})
		return
	}
	if reason != "" {
		report.Blocked = append(report.Blocked, instance.Blocked{
			InstanceID: id,
			Reason:     reason,
			Details:    snapshot,
		})
		return
	}

	transition, err := h.terminate(ctx, id)
	if err == nil {
		report.Successful = append(report.Successful, instance.Successful{
			InstanceID:    id,
			PreviousState: transition.Previous,
			CurrentState:  transition.Current,
			Details:       snapshot,
		})
		return
	}

	if apiErr, ok := provider.AsAPIError(err); ok {
		report.Blocked = append(report.Blocked, instance.Blocked{
			InstanceID:   id,
			Reason:       BlockedReason(apiErr),
			ErrorCode:    apiErr.Code,
			ErrorMessage: apiErr.Message,
			Details:      snapshot,
		})
		return
	}

	log.Error().Ctx(ctx).Err(err).Str("instance_id", id).Msg("unexpected termination error")
	report.Failed = append(report.Failed, instance.Failed{
		InstanceID: id,
		Reason:     fmt.Sprintf("Unexpected error: %v", err),
		Details:    snapshot,
	})
}

func (h *Handler) terminate(ctx context.Context, id instance.ID) (instance.Transition, error) {
	ctx, span := h.opts.Instrumentation.StartSpan(ctx, "reaper.terminate", attribute.String("instance_id", id))
	defer span.End()

	start := time.Now()
	transition, err := h.provider.Terminate(ctx, id)
	h.opts.Instrumentation.RecordAPICall(ctx, "TerminateInstances", resultLabel(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return instance.Transition{}, err
	}

	log.Debug().Ctx(ctx).
		Str("instance_id", id).
		Str("previous_state", string(transition.Previous)).
		Str("current_state", string(transition.Current)).
		Msg("terminate accepted")
	return transition, nil
}

// BlockedReason maps a provider error code to a human-readable reason.
func BlockedReason(err *provider.APIError) string {
	switch err.Code {
	case provider.CodeOperationNotPermitted:
		return "Termination protection enabled or insufficient permissions"
	case provider.CodeInstanceNotFound:
		return "Instance does not exist"
	case provider.CodeUnauthorized:
		return "Insufficient IAM permissions"
	default:
		return err.Message
	}
}

func (h *Handler) emit(ctx context.Context, inv instance.Invocation) {
	if h.opts.Emitter == nil {
		return
	}
	if err := h.opts.Emitter.Emit(ctx, inv); err != nil {
		log.Warn().Ctx(ctx).Err(err).Msg("emit failed")
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if apiErr, ok := provider.AsAPIError(err); ok {
		return apiErr.Code
	}
	return "error"
}

type nopInstrumentation struct{}

func (nopInstrumentation) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return noop.NewTracerProvider().Tracer("reaper").Start(ctx, name, trace.WithAttributes(attrs...))
}

func (nopInstrumentation) RecordAPICall(context.Context, string, string, time.Duration) {}
