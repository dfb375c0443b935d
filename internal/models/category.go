package models

// MatchType controls how a rule pattern is compared against a description.
type MatchType string

const (
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "startsWith"
	MatchEndsWith   MatchType = "endsWith"
)

// Valid reports whether m is a known match type.
func (m MatchType) Valid() bool {
	switch m {
	case MatchContains, MatchStartsWith, MatchEndsWith:
		return true
	}
	return false
}

// Category is a user-visible spending/income bucket.
type Category struct {
	ID     int64  `json:"id" yaml:"-"`
	Name   string `json:"name" yaml:"name"`
	Active bool   `json:"active" yaml:"active"`
}

// CategoryRule maps a description pattern to a category.
// Lower Priority is evaluated first.
type CategoryRule struct {
	ID         int64     `json:"id" yaml:"-"`
	CategoryID int64     `json:"categoryId" yaml:"-"`
	Category   string    `json:"category" yaml:"category"`
	Pattern    string    `json:"pattern" yaml:"pattern"`
	MatchType  MatchType `json:"matchType" yaml:"match_type"`
	Priority   int       `json:"priority" yaml:"priority"`
	Enabled    bool      `json:"enabled" yaml:"enabled"`
}
