package readiness

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"bidready/portal-backend/internal/company"
)

// Inputs is the read-only snapshot the scorer reduces
type Inputs struct {
	Company   *company.Company
	Documents []company.Document
	Staff     []company.StaffMember
	Insurance []company.InsurancePolicy
	Bonding   *company.BondingRecord
}

// InputsFromRecords adapts a repository snapshot
func InputsFromRecords(r *company.Records) Inputs {
	if r == nil {
		return Inputs{}
	}
	return Inputs{
		Company:   r.Company,
		Documents: r.Documents,
		Staff:     r.Staff,
		Insurance: r.Insurance,
		Bonding:   r.Bonding,
	}
}

// BreakdownItem is the evaluated state of one checklist item
type BreakdownItem struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Category  string `json:"category"`
	Required  bool   `json:"required"`
	Completed bool   `json:"completed"`
	Weight    int    `json:"weight"`
	Reason    string `json:"reason,omitempty"`
}

// Result is the readiness score of a company
type Result struct {
	Score            int             `json:"score"`
	AchievedWeight   int             `json:"achieved_weight"`
	TotalWeight      int             `json:"total_weight"`
	ChecklistVersion int             `json:"checklist_version"`
	Breakdown        []BreakdownItem `json:"breakdown"`
	MissingKeys      []string        `json:"missing_keys"`
}

// Scorer reduces company records to a completeness percentage
type Scorer struct {
	checklist *Checklist
	logger    *zap.Logger
}

// NewScorer creates a scorer over the given checklist
func NewScorer(checklist *Checklist, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{checklist: checklist, logger: logger}
}

// Score evaluates every checklist item. It never fails: an item whose check
// panics on a malformed record is reported as not completed.
func (s *Scorer) Score(in Inputs) Result {
	result := Result{
		ChecklistVersion: s.checklist.Version,
		Breakdown:        make([]BreakdownItem, 0, len(s.checklist.Items)),
		MissingKeys:      []string{},
	}

	for _, item := range s.checklist.Items {
		completed, reason := s.evaluate(item, in)

		result.TotalWeight += item.Weight
		if completed {
			result.AchievedWeight += item.Weight
		} else {
			result.MissingKeys = append(result.MissingKeys, item.Key)
		}

		result.Breakdown = append(result.Breakdown, BreakdownItem{
			Key:       item.Key,
			Label:     item.Label,
			Category:  item.Category,
			Required:  item.Required,
			Completed: completed,
			Weight:    item.Weight,
			Reason:    reason,
		})
	}

	result.Score = percentage(result.AchievedWeight, result.TotalWeight)
	return result
}

func (s *Scorer) evaluate(item Item, in Inputs) (completed bool, reason string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Readiness check failed on malformed input",
				zap.String("item", item.Key),
				zap.Any("panic", r))
			completed = false
			reason = fmt.Sprintf("check could not be evaluated: %v", r)
		}
	}()

	if item.match == nil {
		return false, "no match rule"
	}
	completed, reason = item.match(in)
	if completed {
		reason = ""
	}
	return completed, reason
}

func percentage(achieved, total int) int {
	if total <= 0 {
		return 0
	}
	score := int(math.Round(100 * float64(achieved) / float64(total)))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
