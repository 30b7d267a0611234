package terminator

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/yairfalse/reaper/pkg/instance"
)

// Result is a handler response: a status code and a typed body.
type Result struct {
	StatusCode int
	Body       any
}

// ErrorBody is returned for client errors and single-format failures.
type ErrorBody struct {
	Error      string      `json:"error"`
	InstanceID instance.ID `json:"instance_id,omitempty"`
}

// Response is the Lambda proxy shape: the body is a JSON document encoded
// as a string.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
}

func errorResult(status int, msg string, id instance.ID) *Result {
	return &Result{StatusCode: status, Body: ErrorBody{Error: msg, InstanceID: id}}
}

// Report returns the batch report, if the body holds one.
func (r *Result) Report() (*instance.Report, bool) {
	report, ok := r.Body.(*instance.Report)
	return report, ok
}

// Succeeded reports whether at least one instance was terminated.
func (r *Result) Succeeded() bool {
	return r.StatusCode == http.StatusOK || r.StatusCode == instance.StatusMultiStatus
}

// Encode renders the result in the Lambda proxy shape.
func (r *Result) Encode() (Response, error) {
	body, err := json.Marshal(r.Body)
	if err != nil {
		return Response{}, fmt.Errorf("encode body: %w", err)
	}
	return Response{
		StatusCode: r.StatusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

// DecodeRequest parses an invocation payload. An empty payload is an empty
// request.
func DecodeRequest(payload []byte) (instance.Request, error) {
	var req instance.Request
	if len(payload) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return instance.Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// BadRequest builds the client-error result for an undecodable payload.
func BadRequest(err error) *Result {
	return errorResult(http.StatusBadRequest, err.Error(), "")
}
