// Package instance defines the compute instance model shared by reaper's
// providers, handler and emitters.
package instance

import "time"

// ID is a provider-assigned instance identifier (e.g., "i-abc123").
type ID = string

// State is an instance lifecycle state as reported by the provider.
type State string

const (
	StatePending      State = "pending"
	StateRunning      State = "running"
	StateShuttingDown State = "shutting-down"
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
	StateTerminating  State = "terminating"
	StateTerminated   State = "terminated"
	StateUnknown      State = "unknown"
)

// IsTerminal reports whether the instance is already terminated or
// terminating. Every other state, shutting-down included, still gets a
// terminate call.
func (s State) IsTerminal() bool {
	switch s {
	case StateTerminated, StateTerminating:
		return true
	}
	return false
}

// Snapshot is a point-in-time read of an instance. It annotates outcomes and
// is never re-validated after capture.
type Snapshot struct {
	State        State             `json:"state"`
	InstanceType string            `json:"instance_type,omitempty"`
	LaunchTime   *time.Time        `json:"launch_time,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// UnknownSnapshot is used for identifiers the describe phase did not return.
func UnknownSnapshot() Snapshot {
	return Snapshot{State: StateUnknown}
}

// Transition is the state change a terminate call reported.
type Transition struct {
	Previous State `json:"previous_state"`
	Current  State `json:"current_state"`
}

// Dedupe returns ids without repeats, keeping first-occurrence order.
func Dedupe(ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
