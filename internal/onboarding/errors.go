package onboarding

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSubmissionInFlight is returned while another Continue or Skip of the
	// same session has not finished.
	ErrSubmissionInFlight = errors.New("a step submission is already in progress")
	ErrSkipNotAllowed     = errors.New("only optional steps can be skipped")
	// ErrStepNotReachable is returned when a step is submitted while a
	// blocking step before it is still incomplete.
	ErrStepNotReachable = errors.New("step is not reachable yet")
)

// FieldError is one rejected field of a step payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError means the payload failed the step's schema, either locally
// or on the backend. The state is unchanged and the draft is kept.
type ValidationError struct {
	Step   Step
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s payload", e.Step)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Step, strings.Join(parts, "; "))
}

// TransientBackendError covers network failures, timeouts and server errors
// that have nothing to do with business rules. Retrying is up to the user.
type TransientBackendError struct {
	Step       Step
	StatusCode int
	Err        error
}

func (e *TransientBackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("onboarding backend unavailable submitting %s (status %d): %v", e.Step, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("onboarding backend unavailable submitting %s: %v", e.Step, e.Err)
}

func (e *TransientBackendError) Unwrap() error {
	return e.Err
}

// OrderingConflict means the backend refused the step because a prerequisite
// entity does not exist yet.
type OrderingConflict struct {
	Step    Step
	Code    string
	Message string
}

func (e *OrderingConflict) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ordering conflict submitting %s (%s): %s", e.Step, e.Code, e.Message)
	}
	return fmt.Sprintf("ordering conflict submitting %s (%s)", e.Step, e.Code)
}

// MalformedServerResponse means the backend accepted the request but its
// response carried no usable state.
type MalformedServerResponse struct {
	Step   Step
	Reason string
}

func (e *MalformedServerResponse) Error() string {
	return fmt.Sprintf("malformed onboarding response for %s: %s", e.Step, e.Reason)
}
