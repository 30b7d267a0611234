package instance

import (
	"net/http"
	"time"
)

// StatusMultiStatus is returned when some, but not all, instances terminated.
const StatusMultiStatus = http.StatusMultiStatus

// Successful records an instance whose terminate call was accepted.
type Successful struct {
	InstanceID    ID       `json:"instance_id"`
	PreviousState State    `json:"previous_state"`
	CurrentState  State    `json:"current_state"`
	Details       Snapshot `json:"details"`
}

// Blocked records an instance that could not be terminated for a known reason:
// it was already terminal, filtered out, or the provider refused the call.
type Blocked struct {
	InstanceID   ID       `json:"instance_id"`
	Reason       string   `json:"reason"`
	ErrorCode    string   `json:"error_code,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Details      Snapshot `json:"details"`
}

// Failed records an instance whose terminate call failed unexpectedly.
type Failed struct {
	InstanceID ID       `json:"instance_id"`
	Reason     string   `json:"reason"`
	Details    Snapshot `json:"details"`
}

// Summary holds the bucket counts of a report.
type Summary struct {
	Requested  int `json:"requested"`
	Successful int `json:"successful"`
	Blocked    int `json:"blocked"`
	Failed     int `json:"failed"`
}

// Report is the aggregated result of one batch invocation.
type Report struct {
	TotalRequested int          `json:"total_requested"`
	Successful     []Successful `json:"successful"`
	Blocked        []Blocked    `json:"blocked"`
	Failed         []Failed     `json:"failed"`
	Summary        Summary      `json:"summary"`
}

// NewReport creates an empty report for n requested instances.
func NewReport(n int) *Report {
	return &Report{
		TotalRequested: n,
		Successful:     make([]Successful, 0, n),
		Blocked:        make([]Blocked, 0),
		Failed:         make([]Failed, 0),
	}
}

// Summarize recomputes the summary from the buckets.
func (r *Report) Summarize() Summary {
	r.Summary = Summary{
		Requested:  r.TotalRequested,
		Successful: len(r.Successful),
		Blocked:    len(r.Blocked),
		Failed:     len(r.Failed),
	}
	return r.Summary
}

// StatusCode derives the response status: 200 when every instance
// terminated, 207 on partial success, 400 when nothing terminated.
func (r *Report) StatusCode() int {
	s := r.Summarize()
	switch {
	case s.Successful == 0:
		return http.StatusBadRequest
	case s.Blocked == 0 && s.Failed == 0:
		return http.StatusOK
	default:
		return StatusMultiStatus
	}
}

// Invocation holds the outcome of one handler call, for emitters.
type Invocation struct {
	StatusCode int
	Report     *Report // nil for client errors and single-format calls
	Error      string  // client or single-format error message
	Duration   time.Duration
}
