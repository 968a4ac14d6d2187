package onboarding

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrBackendUnauthorized is returned when the backend rejects the forwarded credentials
var ErrBackendUnauthorized = errors.New("onboarding backend rejected credentials")

// SubmitResult is the backend's answer to an accepted step submission
type SubmitResult struct {
	State *State
	// NextStepHint is the backend's suggestion, possibly absent, stale or
	// spelled differently. It is only used after being parsed and checked.
	NextStepHint string
}

// Backend is the authoritative onboarding API.
//
// SubmitStep reports failures as *ValidationError, *TransientBackendError,
// *OrderingConflict or *MalformedServerResponse.
type Backend interface {
	FetchState(ctx context.Context) (*State, error)
	SubmitStep(ctx context.Context, step Step, payload json.RawMessage) (*SubmitResult, error)
}
