package terminator

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/reaper/internal/provider"
	"github.com/yairfalse/reaper/pkg/instance"
)

// errNoSingleInstance mirrors the batch client error for the single format.
const errNoSingleInstance = "No instance_id provided in event or INSTANCE_ID environment variable"

// SingleBody is the single-format success body.
type SingleBody struct {
	Message       string         `json:"message"`
	InstanceID    instance.ID    `json:"instance_id"`
	PreviousState instance.State `json:"previous_state"`
	CurrentState  instance.State `json:"current_state"`
}

// handleSingle terminates exactly one instance without a describe call:
// 200 on success, 400 without an identifier, 500 on any error.
func (h *Handler) handleSingle(ctx context.Context, req instance.Request) (*Result, instance.Invocation) {
	id := req.InstanceID
	if id == "" {
		id = h.opts.FallbackID
	}
	if id == "" {
		return errorResult(http.StatusBadRequest, errNoSingleInstance, ""), instance.Invocation{Error: errNoSingleInstance}
	}

	transition, err := h.terminate(ctx, id)
	if err != nil {
		msg := fmt.Sprintf("Unexpected error: %v", err)
		if apiErr, ok := provider.AsAPIError(err); ok {
			msg = apiErr.Error()
		}
		log.Error().Ctx(ctx).Err(err).Str("instance_id", id).Msg("termination failed")
		return errorResult(http.StatusInternalServerError, msg, id), instance.Invocation{Error: msg}
	}

	return &Result{
		StatusCode: http.StatusOK,
		Body: SingleBody{
			Message:       fmt.Sprintf("Successfully initiated termination of instance %s", id),
			InstanceID:    id,
			PreviousState: transition.Previous,
			CurrentState:  transition.Current,
		},
	}, instance.Invocation{}
}
