package onboarding

import (
	"encoding/json"
	"math"
)

// State is the server-authoritative onboarding snapshot. It is replaced
// wholesale after every accepted submission and never patched in place.
type State struct {
	// CompletedSteps keeps the order the server reported, which need not be
	// canonical and may contain steps this build does not know.
	CompletedSteps []Step                   `json:"completed_steps"`
	RequiredSteps  []Step                   `json:"required_steps"`
	Progress       int                      `json:"progress"`
	StepData       map[Step]json.RawMessage `json:"step_data,omitempty"`
}

// IsCompleted reports whether step appears in CompletedSteps
func (s *State) IsCompleted(step Step) bool {
	if s == nil {
		return false
	}
	for _, c := range s.CompletedSteps {
		if c == step {
			return true
		}
	}
	return false
}

// IsRequired reports whether step appears in RequiredSteps
func (s *State) IsRequired(step Step) bool {
	if s == nil {
		return false
	}
	for _, r := range s.RequiredSteps {
		if r == step {
			return true
		}
	}
	return false
}

// Clone returns a deep copy
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		CompletedSteps: append([]Step(nil), s.CompletedSteps...),
		RequiredSteps:  append([]Step(nil), s.RequiredSteps...),
		Progress:       s.Progress,
	}
	if s.StepData != nil {
		out.StepData = make(map[Step]json.RawMessage, len(s.StepData))
		for k, v := range s.StepData {
			out.StepData[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// completionProgress is the share of required steps already completed
func completionProgress(s *State) int {
	if s == nil || len(s.RequiredSteps) == 0 {
		return 0
	}
	done := 0
	for _, r := range s.RequiredSteps {
		if s.IsCompleted(r) {
			done++
		}
	}
	p := int(math.Round(100 * float64(done) / float64(len(s.RequiredSteps))))
	if p > 100 {
		return 100
	}
	return p
}

// NewState builds a fresh snapshot with every blocking step required
func NewState(required ...Step) *State {
	if len(required) == 0 {
		for _, s := range canonicalOrder {
			if s.Blocking() {
				required = append(required, s)
			}
		}
	}
	return &State{
		RequiredSteps: append([]Step(nil), required...),
		StepData:      map[Step]json.RawMessage{},
	}
}
