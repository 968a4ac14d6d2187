package onboarding

import "encoding/json"

// CodeOrganizationMissing is the conflict code the backend returns while the
// organization created by the step being submitted does not exist yet.
const CodeOrganizationMissing = "organization_missing"

type unblockKey struct {
	step Step
	code string
}

// synthesizer builds the next state the backend would have returned had the
// submission been accepted.
type synthesizer func(prev *State, step Step, payload json.RawMessage) *State

// optimisticUnblocks lists the ordering conflicts that are bootstrap races
// rather than real rejections. Anything not listed is surfaced to the caller.
var optimisticUnblocks = map[unblockKey]synthesizer{
	{StepOrgChoice, CodeOrganizationMissing}:      SynthesizeAccepted,
	{StepCompanyProfile, CodeOrganizationMissing}: SynthesizeAccepted,
}

// OptimisticUnblock returns the synthesized state for a known-benign conflict.
// A step that prev does not let the user reach is never unblocked.
func OptimisticUnblock(prev *State, conflict *OrderingConflict, payload json.RawMessage) (*State, bool) {
	if conflict == nil || !CanNavigateToStep(prev, conflict.Step) {
		return nil, false
	}
	synth, ok := optimisticUnblocks[unblockKey{conflict.Step, conflict.Code}]
	if !ok {
		return nil, false
	}
	return synth(prev, conflict.Step, payload), true
}

// SynthesizeAccepted approximates the server's answer to an accepted
// submission: step appended to the completed steps, progress recomputed but
// never lower than before, and the payload recorded as the step's data.
func SynthesizeAccepted(prev *State, step Step, payload json.RawMessage) *State {
	next := prev.Clone()
	if next == nil {
		next = NewState()
	}
	if !next.IsCompleted(step) {
		next.CompletedSteps = append(next.CompletedSteps, step)
	}
	if next.StepData == nil {
		next.StepData = make(map[Step]json.RawMessage)
	}
	next.StepData[step] = append(json.RawMessage(nil), payload...)

	if p := completionProgress(next); p > next.Progress {
		next.Progress = p
	}
	return next
}
