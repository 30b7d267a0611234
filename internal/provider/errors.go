package provider

import (
	"errors"
	"fmt"
)

// Error codes the handler maps to human-readable reasons.
const (
	CodeOperationNotPermitted = "OperationNotPermitted"
	CodeInstanceNotFound      = "InvalidInstanceID.NotFound"
	CodeUnauthorized          = "UnauthorizedOperation"
)

// APIError is a provider-classified client error.
type APIError struct {
	Code    string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// AsAPIError extracts an *APIError from err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
