package readiness

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"bidready/portal-backend/internal/company"
)

//go:embed checklist.yaml
var defaultChecklistYAML []byte

// ItemKind selects the match rule of a checklist item
type ItemKind string

const (
	KindField     ItemKind = "field"
	KindStaff     ItemKind = "staff"
	KindInsurance ItemKind = "insurance"
	KindBonding   ItemKind = "bonding"
	KindDocument  ItemKind = "document"
)

// matchFunc reports whether an item is satisfied and, if not, why.
type matchFunc func(in Inputs) (bool, string)

// Item is one weighted checklist entry
type Item struct {
	Key      string   `yaml:"key"`
	Label    string   `yaml:"label"`
	Category string   `yaml:"category"`
	Kind     ItemKind `yaml:"kind"`
	Field    string   `yaml:"field,omitempty"`
	Keywords []string `yaml:"keywords,omitempty"`
	Weight   int      `yaml:"weight"`
	Required bool     `yaml:"required"`

	match matchFunc
}

// Checklist is a versioned, ordered list of items
type Checklist struct {
	Version int    `yaml:"version"`
	Items   []Item `yaml:"items"`
}

// TotalWeight sums every item weight
func (c *Checklist) TotalWeight() int {
	total := 0
	for _, item := range c.Items {
		total += item.Weight
	}
	return total
}

// LoadChecklist parses a YAML checklist and binds each item to its match rule.
func LoadChecklist(data []byte) (*Checklist, error) {
	var c Checklist
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse checklist: %w", err)
	}

	seen := make(map[string]bool, len(c.Items))
	for i := range c.Items {
		item := &c.Items[i]
		if item.Key == "" {
			return nil, fmt.Errorf("checklist item %d: key is required", i)
		}
		if seen[item.Key] {
			return nil, fmt.Errorf("checklist item %q: duplicate key", item.Key)
		}
		seen[item.Key] = true
		if item.Weight < 0 {
			return nil, fmt.Errorf("checklist item %q: weight must not be negative", item.Key)
		}

		m, err := bindMatcher(item)
		if err != nil {
			return nil, fmt.Errorf("checklist item %q: %w", item.Key, err)
		}
		item.match = m
	}

	return &c, nil
}

// DefaultChecklist returns the embedded checklist. It panics if the embedded
// file is invalid, which only a broken build can cause.
func DefaultChecklist() *Checklist {
	c, err := LoadChecklist(defaultChecklistYAML)
	if err != nil {
		panic(err)
	}
	return c
}

func bindMatcher(item *Item) (matchFunc, error) {
	keywords := lowerAll(item.Keywords)

	switch item.Kind {
	case KindField:
		check, ok := companyFields[item.Field]
		if !ok {
			return nil, fmt.Errorf("unknown company field %q", item.Field)
		}
		return func(in Inputs) (bool, string) {
			if in.Company == nil {
				return false, "company profile missing"
			}
			if !check(in.Company) {
				return false, fmt.Sprintf("%s not provided", item.Label)
			}
			return true, ""
		}, nil

	case KindStaff:
		return func(in Inputs) (bool, string) {
			if len(in.Staff) == 0 {
				return false, "no staff records"
			}
			return true, ""
		}, nil

	case KindInsurance:
		if len(keywords) == 0 {
			return nil, fmt.Errorf("insurance items need keywords")
		}
		return func(in Inputs) (bool, string) {
			for _, policy := range in.Insurance {
				if containsAny(policy.Type, keywords) {
					return true, ""
				}
			}
			if anyDocumentMatches(in.Documents, keywords) {
				return true, ""
			}
			return false, fmt.Sprintf("no policy or document matching %q", item.Keywords[0])
		}, nil

	case KindBonding:
		return func(in Inputs) (bool, string) {
			if in.Bonding != nil {
				return true, ""
			}
			if len(keywords) > 0 && anyDocumentMatches(in.Documents, keywords) {
				return true, ""
			}
			return false, "no bonding record or bonding letter"
		}, nil

	case KindDocument:
		if len(keywords) == 0 {
			return nil, fmt.Errorf("document items need keywords")
		}
		return func(in Inputs) (bool, string) {
			if anyDocumentMatches(in.Documents, keywords) {
				return true, ""
			}
			return false, fmt.Sprintf("no document matching %q", item.Keywords[0])
		}, nil

	default:
		return nil, fmt.Errorf("unknown kind %q", item.Kind)
	}
}

var companyFields = map[string]func(c *company.Company) bool{
	"legal_name": func(c *company.Company) bool { return present(c.LegalName) },
	"uei":        func(c *company.Company) bool { return present(c.UEI) },
	"cage_code":  func(c *company.Company) bool { return present(c.CAGECode) },
	"ein":        func(c *company.Company) bool { return present(c.EIN) },
	"naics_codes": func(c *company.Company) bool {
		for _, code := range c.NAICSCodes {
			if present(code) {
				return true
			}
		}
		return false
	},
	"address": func(c *company.Company) bool {
		return present(c.AddressLine1) && present(c.City) && present(c.State)
	},
}

// documentMatches reports whether any keyword is a substring of the
// document's declared type, one of its tags or its filename.
func documentMatches(doc company.Document, keywords []string) bool {
	if doc.Type != nil && containsAny(*doc.Type, keywords) {
		return true
	}
	for _, tag := range doc.Tags {
		if containsAny(tag, keywords) {
			return true
		}
	}
	return containsAny(doc.FileName, keywords)
}

func anyDocumentMatches(docs []company.Document, keywords []string) bool {
	for _, doc := range docs {
		if documentMatches(doc, keywords) {
			return true
		}
	}
	return false
}

// containsAny expects lowercased keywords
func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	s = strings.ToLower(s)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}
