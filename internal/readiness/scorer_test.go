package readiness

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"bidready/portal-backend/internal/company"
)

func strPtr(s string) *string { return &s }

func breakdownByKey(r Result) map[string]BreakdownItem {
	out := make(map[string]BreakdownItem, len(r.Breakdown))
	for _, b := range r.Breakdown {
		out[b.Key] = b
	}
	return out
}

func readyCompany() Inputs {
	return Inputs{
		Company: &company.Company{
			LegalName:    "Acme Federal LLC",
			UEI:          "ABCDEF123456",
			CAGECode:     "1ABC2",
			EIN:          "12-3456789",
			NAICSCodes:   []string{"541511"},
			AddressLine1: "1 Main St",
			City:         "Arlington",
			State:        "VA",
		},
		Staff: []company.StaffMember{{FullName: "Jane Roe"}},
		Insurance: []company.InsurancePolicy{
			{Type: "General Liability"},
			{Type: "Workers Compensation"},
			{Type: "Commercial Auto"},
		},
		Bonding: &company.BondingRecord{SuretyName: "Surety Co"},
		Documents: []company.Document{
			{Type: strPtr("W-9"), FileName: "tax.pdf"},
			{Type: strPtr("Capability Statement"), FileName: "cap.pdf"},
			{Tags: []string{"Resume"}, FileName: "people.pdf"},
			{FileName: "SAM_Registration_Confirmation.pdf"},
			{Type: strPtr("Past Performance"), FileName: "pp.pdf"},
		},
	}
}

func TestDefaultChecklist(t *testing.T) {
	c := DefaultChecklist()

	assert.Equal(t, 3, c.Version)
	assert.Len(t, c.Items, 16)
	assert.Equal(t, 45, c.TotalWeight())
	for _, item := range c.Items {
		assert.NotNil(t, item.match, item.Key)
		if item.Required {
			assert.GreaterOrEqual(t, item.Weight, 3, item.Key)
		} else {
			assert.Equal(t, 2, item.Weight, item.Key)
		}
	}
}

func TestScoreEmptyInputs(t *testing.T) {
	c := DefaultChecklist()
	result := NewScorer(c, zap.NewNop()).Score(Inputs{})

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 0, result.AchievedWeight)
	assert.Equal(t, 45, result.TotalWeight)

	keys := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		keys = append(keys, item.Key)
	}
	assert.Equal(t, keys, result.MissingKeys)
}

func TestScoreFullyReady(t *testing.T) {
	result := NewScorer(DefaultChecklist(), nil).Score(readyCompany())

	assert.Equal(t, 100, result.Score)
	assert.Empty(t, result.MissingKeys)
	for _, b := range result.Breakdown {
		assert.True(t, b.Completed, b.Key)
		assert.Empty(t, b.Reason, b.Key)
	}
}

func TestGeneralLiabilityPolicy(t *testing.T) {
	result := NewScorer(DefaultChecklist(), nil).Score(Inputs{
		Insurance: []company.InsurancePolicy{{Type: "General Liability"}},
	})

	items := breakdownByKey(result)
	assert.True(t, items["gl"].Completed)
	assert.Equal(t, 4, items["gl"].Weight)
	assert.Equal(t, 4, result.AchievedWeight)

	assert.False(t, items["workers_comp"].Completed)
	assert.Contains(t, result.MissingKeys, "workers_comp")
	assert.NotContains(t, result.MissingKeys, "gl")

	// round(100 * 4 / 45)
	assert.Equal(t, 9, result.Score)
}

func TestInsuranceSatisfiedByTaggedDocument(t *testing.T) {
	result := NewScorer(DefaultChecklist(), nil).Score(Inputs{
		Documents: []company.Document{
			{FileName: "coi.pdf", Tags: []string{"WORKERS COMP certificate"}},
		},
	})

	items := breakdownByKey(result)
	assert.True(t, items["workers_comp"].Completed)
	assert.False(t, items["gl"].Completed)
}

func TestDocumentMatchIsCaseInsensitiveSubstring(t *testing.T) {
	result := NewScorer(DefaultChecklist(), nil).Score(Inputs{
		Documents: []company.Document{
			{FileName: "ACME_Capability_Statement_2026.PDF"},
			{Type: strPtr("Form W9")},
		},
	})

	items := breakdownByKey(result)
	assert.True(t, items["capability_statement"].Completed)
	assert.True(t, items["w9"].Completed)
	assert.False(t, items["resumes"].Completed)
}

func TestBondingRecordOrDocument(t *testing.T) {
	scorer := NewScorer(DefaultChecklist(), nil)

	withRecord := breakdownByKey(scorer.Score(Inputs{Bonding: &company.BondingRecord{}}))
	assert.True(t, withRecord["bonding"].Completed)

	withLetter := breakdownByKey(scorer.Score(Inputs{
		Documents: []company.Document{{FileName: "surety-bonding-letter.pdf"}},
	}))
	assert.True(t, withLetter["bonding"].Completed)

	without := breakdownByKey(scorer.Score(Inputs{}))
	assert.False(t, without["bonding"].Completed)
	assert.NotEmpty(t, without["bonding"].Reason)
}

func TestMalformedDocumentDoesNotAffectOtherItems(t *testing.T) {
	scorer := NewScorer(DefaultChecklist(), nil)

	base := readyCompany()
	base.Documents = base.Documents[:2]
	clean := scorer.Score(base)

	base.Documents = append(base.Documents, company.Document{Type: nil, Tags: nil})
	dirty := scorer.Score(base)

	assert.Equal(t, clean, dirty)
}

func TestPanickingCheckIsIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	checklist := &Checklist{
		Version: 1,
		Items: []Item{
			{Key: "explodes", Weight: 3, match: func(in Inputs) (bool, string) {
				return *in.Documents[0].Type == "x", ""
			}},
			{Key: "staff", Weight: 1, match: func(in Inputs) (bool, string) {
				return len(in.Staff) > 0, ""
			}},
		},
	}

	result := NewScorer(checklist, zap.New(core)).Score(Inputs{
		Documents: []company.Document{{Type: nil}},
		Staff:     []company.StaffMember{{FullName: "A"}},
	})

	items := breakdownByKey(result)
	assert.False(t, items["explodes"].Completed)
	assert.Contains(t, items["explodes"].Reason, "could not be evaluated")
	assert.True(t, items["staff"].Completed)
	assert.Equal(t, []string{"explodes"}, result.MissingKeys)
	assert.Equal(t, 25, result.Score)
	assert.Equal(t, 1, logs.FilterMessage("Readiness check failed on malformed input").Len())
}

func TestZeroTotalWeight(t *testing.T) {
	result := NewScorer(&Checklist{}, nil).Score(readyCompany())
	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.MissingKeys)
}

func TestLoadChecklistErrors(t *testing.T) {
	cases := map[string]string{
		"duplicate key": `
items:
  - {key: a, kind: staff, weight: 1}
  - {key: a, kind: staff, weight: 1}`,
		"unknown field": `
items:
  - {key: a, kind: field, field: shoe_size, weight: 1}`,
		"unknown kind": `
items:
  - {key: a, kind: vibes, weight: 1}`,
		"missing keywords": `
items:
  - {key: a, kind: document, weight: 2}`,
		"negative weight": `
items:
  - {key: a, kind: staff, weight: -1}`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadChecklist([]byte(doc))
			assert.Error(t, err)
		})
	}
}

var documentPool = []company.Document{
	{Type: strPtr("W-9")},
	{Type: strPtr("General Liability COI")},
	{Tags: []string{"resume"}},
	{FileName: "bond.pdf"},
	{Type: nil},
	{FileName: "random-notes.txt"},
	{Type: strPtr("Capability Statement")},
}

func TestScoreProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	scorer := NewScorer(DefaultChecklist(), nil)

	properties.Property("score is independent of document order", prop.ForAll(
		func(picks []int, seed int64) bool {
			docs := make([]company.Document, 0, len(picks))
			for _, p := range picks {
				docs = append(docs, documentPool[p])
			}
			first := scorer.Score(Inputs{Documents: docs})

			shuffled := append([]company.Document(nil), docs...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			second := scorer.Score(Inputs{Documents: shuffled})

			return first.Score == second.Score &&
				equalStrings(first.MissingKeys, second.MissingKeys)
		},
		gen.SliceOf(gen.IntRange(0, len(documentPool)-1)),
		gen.Int64(),
	))

	properties.Property("score stays within bounds and matches missing keys", prop.ForAll(
		func(picks []int, withStaff, withBonding bool) bool {
			in := Inputs{}
			for _, p := range picks {
				in.Documents = append(in.Documents, documentPool[p])
			}
			if withStaff {
				in.Staff = []company.StaffMember{{FullName: "A"}}
			}
			if withBonding {
				in.Bonding = &company.BondingRecord{}
			}

			r := scorer.Score(in)
			missingWeight := 0
			for _, b := range r.Breakdown {
				if !b.Completed {
					missingWeight += b.Weight
				}
			}
			return r.Score >= 0 && r.Score <= 100 &&
				r.AchievedWeight+missingWeight == r.TotalWeight
		},
		gen.SliceOf(gen.IntRange(0, len(documentPool)-1)),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInputsFromRecords(t *testing.T) {
	assert.Equal(t, Inputs{}, InputsFromRecords(nil))

	records := &company.Records{Company: &company.Company{LegalName: "X"}}
	in := InputsFromRecords(records)
	require.NotNil(t, in.Company)
	assert.Equal(t, "X", in.Company.LegalName)
}
