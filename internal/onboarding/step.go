package onboarding

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Step identifies one page of the onboarding wizard
type Step string

const (
	StepAccountVerified  Step = "ACCOUNT_VERIFIED"
	StepOrgChoice        Step = "ORG_CHOICE"
	StepCompanyProfile   Step = "COMPANY_PROFILE"
	StepComplianceIntake Step = "COMPLIANCE_INTAKE"
	StepIntegrations     Step = "INTEGRATIONS"
	StepTeam             Step = "TEAM"
	StepFirstRFP         Step = "FIRST_RFP"
	StepDone             Step = "DONE"
)

// ErrUnknownStep is returned when a step name cannot be resolved
var ErrUnknownStep = errors.New("unknown onboarding step")

// canonicalOrder is the fixed total order of the wizard.
var canonicalOrder = []Step{
	StepAccountVerified,
	StepOrgChoice,
	StepCompanyProfile,
	StepComplianceIntake,
	StepIntegrations,
	StepTeam,
	StepFirstRFP,
	StepDone,
}

var stepIndex = func() map[Step]int {
	idx := make(map[Step]int, len(canonicalOrder))
	for i, s := range canonicalOrder {
		idx[s] = i
	}
	return idx
}()

// Steps returns every step in canonical order, DONE last
func Steps() []Step {
	return append([]Step(nil), canonicalOrder...)
}

// Valid reports whether s is one of the known steps
func (s Step) Valid() bool {
	_, ok := stepIndex[s]
	return ok
}

// Index is the position of s in the canonical order, or -1 for unknown steps
func (s Step) Index() int {
	if i, ok := stepIndex[s]; ok {
		return i
	}
	return -1
}

// Before reports whether s canonically precedes other
func (s Step) Before(other Step) bool {
	return s.Valid() && other.Valid() && s.Index() < other.Index()
}

// Blocking steps must be completed before anything after them is reachable.
func (s Step) Blocking() bool {
	switch s {
	case StepAccountVerified, StepOrgChoice, StepCompanyProfile, StepComplianceIntake:
		return true
	}
	return false
}

// Optional steps may be skipped
func (s Step) Optional() bool {
	switch s {
	case StepIntegrations, StepTeam, StepFirstRFP:
		return true
	}
	return false
}

// Slug is the URL form of the step, e.g. "company-profile"
func (s Step) Slug() string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", "-"))
}

func (s Step) String() string {
	return string(s)
}

// ParseStep resolves canonical names as well as the spellings used in URLs and
// by the backend: "company-profile", "company_profile", "companyProfile".
func ParseStep(raw string) (Step, error) {
	s := Step(normalizeStepName(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, raw)
	}
	return s, nil
}

func normalizeStepName(raw string) string {
	raw = strings.TrimSpace(raw)

	var b strings.Builder
	b.Grow(len(raw) + 4)
	var prev rune
	for i, r := range raw {
		switch {
		case r == '-' || r == ' ' || r == '.':
			r = '_'
		case i > 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			b.WriteRune('_')
		}
		b.WriteRune(unicode.ToUpper(r))
		prev = r
	}
	return b.String()
}

// UnmarshalText keeps names it cannot resolve verbatim so that retired steps
// reported by the backend survive in the snapshot.
func (s *Step) UnmarshalText(text []byte) error {
	if parsed, err := ParseStep(string(text)); err == nil {
		*s = parsed
		return nil
	}
	*s = Step(text)
	return nil
}

// MarshalText writes the step name unchanged
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s), nil
}
