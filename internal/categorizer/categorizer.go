// Package categorizer assigns categories to transactions from an ordered
// rule list, with manual overrides taking precedence.
package categorizer

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/insightdelivered/pfinance/internal/models"
	"github.com/insightdelivered/pfinance/internal/normalize"
)

// DefaultFallback is the category for transactions no rule matches.
const DefaultFallback = "Other"

// Source says which branch produced a Decision.
type Source int

const (
	Fallback Source = iota
	Manual
	Rule
)

func (s Source) String() string {
	switch s {
	case Manual:
		return "manual"
	case Rule:
		return "rule"
	default:
		return "fallback"
	}
}

// Decision is the tagged result of categorizing one transaction.
type Decision struct {
	Source     Source
	Category   string
	CategoryID int64
	// Rule is set when Source is Rule.
	Rule *models.CategoryRule
}

type compiledRule struct {
	rule    models.CategoryRule
	pattern string
}

// Snapshot is an immutable, pre-sorted view of the rules and categories
// used for one run. Build it once and reuse it for every transaction.
type Snapshot struct {
	rules      []compiledRule
	categories map[int64]models.Category
	fallback   string
}

// NewSnapshot sorts and compiles rules. Rules that are disabled, have an
// empty pattern or belong to an inactive or unknown category are dropped.
func NewSnapshot(rules []models.CategoryRule, categories []models.Category, fallback string) *Snapshot {
	if fallback == "" {
		fallback = DefaultFallback
	}
	s := &Snapshot{
		categories: make(map[int64]models.Category, len(categories)),
		fallback:   fallback,
	}
	for _, c := range categories {
		s.categories[c.ID] = c
	}

	for _, r := range Sort(rules) {
		cat, ok := s.categories[r.CategoryID]
		if !r.Enabled || !ok || !cat.Active || !r.MatchType.Valid() {
			continue
		}
		p := normalize.ForMatching(r.Pattern)
		if p == "" {
			continue
		}
		r.Category = cat.Name
		s.rules = append(s.rules, compiledRule{rule: r, pattern: p})
	}
	return s
}

// Sort orders rules by priority ascending, then by pattern length
// descending. The input is not modified.
func Sort(rules []models.CategoryRule) []models.CategoryRule {
	out := make([]models.CategoryRule, len(rules))
	copy(out, rules)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return utf8.RuneCountInString(normalize.ForMatching(out[i].Pattern)) >
			utf8.RuneCountInString(normalize.ForMatching(out[j].Pattern))
	})
	return out
}

// Rules returns the effective rules in evaluation order.
func (s *Snapshot) Rules() []models.CategoryRule {
	out := make([]models.CategoryRule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.rule
	}
	return out
}

// Fallback returns the fallback category name.
func (s *Snapshot) Fallback() string {
	return s.fallback
}

// Decide resolves the category of t: manual override, then first matching
// rule, then the fallback.
func (s *Snapshot) Decide(t models.Transaction) Decision {
	if t.IsManualOverride && t.ManualCategoryID != nil {
		if cat, ok := s.categories[*t.ManualCategoryID]; ok && cat.Active {
			return Decision{Source: Manual, Category: cat.Name, CategoryID: cat.ID}
		}
	}

	desc := normalize.ForMatching(t.Description)
	for i := range s.rules {
		r := &s.rules[i]
		if matches(r.rule.MatchType, desc, r.pattern) {
			rule := r.rule
			return Decision{Source: Rule, Category: rule.Category, CategoryID: rule.CategoryID, Rule: &rule}
		}
	}
	return Decision{Source: Fallback, Category: s.fallback}
}

// Categorize returns only the category name.
func (s *Snapshot) Categorize(t models.Transaction) string {
	return s.Decide(t).Category
}

// Apply sets Category on every transaction against this one snapshot.
func (s *Snapshot) Apply(txs []models.Transaction) {
	for i := range txs {
		txs[i].Category = s.Categorize(txs[i])
	}
}

func matches(mt models.MatchType, desc, pattern string) bool {
	switch mt {
	case models.MatchStartsWith:
		return strings.HasPrefix(desc, pattern)
	case models.MatchEndsWith:
		return strings.HasSuffix(desc, pattern)
	default:
		return strings.Contains(desc, pattern)
	}
}
