package onboarding

import (
	"encoding/json"
	"sort"
)

// NavigationIntent pairs the step a URL asked for with the step actually shown
type NavigationIntent struct {
	RequestedStep *Step `json:"requested_step,omitempty"`
	ResolvedStep  Step  `json:"resolved_step"`
}

// PrefillSource tells where a step's form data came from
type PrefillSource string

const (
	PrefillDraft    PrefillSource = "draft"
	PrefillServer   PrefillSource = "server"
	PrefillDefaults PrefillSource = "defaults"
)

// canonicalRequired returns the known required steps sorted by the fixed
// step order, regardless of the order the server listed them in.
func canonicalRequired(state *State) []Step {
	if state == nil {
		return nil
	}
	out := make([]Step, 0, len(state.RequiredSteps))
	seen := make(map[Step]bool, len(state.RequiredSteps))
	for _, s := range state.RequiredSteps {
		if !s.Valid() || s == StepDone || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index() < out[j].Index() })
	return out
}

// CurrentStep is the first required step, in canonical order, that the server
// has not reported completed. DONE once every required step is completed.
// Completed entries outside RequiredSteps play no part here.
func CurrentStep(state *State) Step {
	for _, s := range canonicalRequired(state) {
		if !state.IsCompleted(s) {
			return s
		}
	}
	return StepDone
}

// CanNavigateToStep reports whether step may be displayed: every required
// blocking step before it is completed, or it is the current step itself.
// Optional steps never gate the steps after them.
func CanNavigateToStep(state *State, step Step) bool {
	if !step.Valid() {
		return false
	}
	if step == CurrentStep(state) {
		return true
	}
	for _, s := range canonicalRequired(state) {
		if !s.Before(step) {
			break
		}
		if s.Blocking() && !state.IsCompleted(s) {
			return false
		}
	}
	return true
}

// ResolveDisplayedStep honours the URL step only when it is navigable and
// otherwise falls back to the current step without reporting an error.
// Drafts never influence which step is shown.
func ResolveDisplayedStep(state *State, urlHint string) NavigationIntent {
	intent := NavigationIntent{ResolvedStep: CurrentStep(state)}
	if urlHint == "" {
		return intent
	}

	requested, err := ParseStep(urlHint)
	if err != nil {
		return intent
	}
	intent.RequestedStep = &requested
	if CanNavigateToStep(state, requested) {
		intent.ResolvedStep = requested
	}
	return intent
}

// Prefill picks the data to pre-populate a step's form with: the local draft
// of an incomplete step, then the server's last saved payload, then defaults.
func Prefill(state *State, drafts Drafts, step Step, defaults json.RawMessage) (json.RawMessage, PrefillSource) {
	if d, ok := drafts[step]; ok && len(d.Payload) > 0 && !state.IsCompleted(step) {
		return d.Payload, PrefillDraft
	}
	if state != nil {
		if data, ok := state.StepData[step]; ok && len(data) > 0 && string(data) != "null" {
			return data, PrefillServer
		}
	}
	if len(defaults) == 0 {
		defaults = json.RawMessage(`{}`)
	}
	return defaults, PrefillDefaults
}

// View is the fully reconciled picture of the wizard for one request
type View struct {
	State         *State           `json:"state"`
	CurrentStep   Step             `json:"current_step"`
	Navigation    NavigationIntent `json:"navigation"`
	Prefill       json.RawMessage  `json:"prefill"`
	PrefillSource PrefillSource    `json:"prefill_source"`
	DraftSteps    []Step           `json:"draft_steps"`
}

// Resolve combines the server snapshot, the local drafts and the URL hint
func Resolve(state *State, drafts Drafts, urlHint string, schemas *Schemas) View {
	intent := ResolveDisplayedStep(state, urlHint)
	prefill, source := Prefill(state, drafts, intent.ResolvedStep, schemas.Defaults(intent.ResolvedStep))

	draftSteps := make([]Step, 0, len(drafts))
	for step := range drafts {
		if !state.IsCompleted(step) {
			draftSteps = append(draftSteps, step)
		}
	}
	sort.Slice(draftSteps, func(i, j int) bool { return draftSteps[i].Index() < draftSteps[j].Index() })

	return View{
		State:         state,
		CurrentStep:   CurrentStep(state),
		Navigation:    intent,
		Prefill:       prefill,
		PrefillSource: source,
		DraftSteps:    draftSteps,
	}
}
