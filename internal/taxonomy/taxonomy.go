// Package taxonomy maps raw database identifiers and interaction codes onto the
// closed reporting taxonomy used by every rollup.
package taxonomy

import (
	"fmt"
	"strings"
	"time"
)

// Category is one of the named database categories. Values are kept exactly as
// they appear in the reporting sheets, misspellings included; downstream
// consumers match on the literal strings.
type Category string

const (
	CategoryStocks          Category = "Stocks"
	CategoryGlobalIndices   Category = `Global\Market Indices`
	CategoryEurofidaiIdx    Category = "Eurofidai Indices"
	CategoryIEurofidaiIdx   Category = "IEurofidai Indices"
	CategoryCodeMapping     Category = "Code Mapping Table"
	CategoryMutualFunds     Category = "Mutual Funds"
	CategorySpotExchange    Category = "Spot Exchange Rate"
	CategoryCorporateEvents Category = "Corporate Events"
	CategoryESG             Category = "ESG"
	CategoryGreenBonds      Category = "Green Bonds"
)

// Categories lists every named category in display order.
func Categories() []Category {
	return []Category{
		CategoryStocks,
		CategoryGlobalIndices,
		CategoryEurofidaiIdx,
		CategoryIEurofidaiIdx,
		CategoryCodeMapping,
		CategoryMutualFunds,
		CategorySpotExchange,
		CategoryCorporateEvents,
		CategoryESG,
		CategoryGreenBonds,
	}
}

// LookupMode distinguishes historical code searches from direct data extraction.
type LookupMode string

const (
	LookupSearchCode  LookupMode = "Search_Code"
	LookupExtractData LookupMode = "Extract_Data"
)

// InteractionLabel is the reporting label for an interaction type code.
type InteractionLabel string

const (
	InteractionPreview  InteractionLabel = "preview"
	InteractionDownload InteractionLabel = "download"
)

// MatchKind selects how a pattern is applied to a raw database name.
type MatchKind string

const (
	MatchContains MatchKind = "contains"
	MatchPrefix   MatchKind = "prefix"
)

// Pattern is one entry of the ordered classification list. Matching is
// case-sensitive; the first matching pattern wins, so order is load-bearing.
type Pattern struct {
	Match    string    `mapstructure:"match" yaml:"match"`
	Kind     MatchKind `mapstructure:"kind" yaml:"kind"`
	Category Category  `mapstructure:"category" yaml:"category"`
}

func (p Pattern) matches(name string) bool {
	switch p.Kind {
	case MatchPrefix:
		return strings.HasPrefix(name, p.Match)
	default:
		return strings.Contains(name, p.Match)
	}
}

// DefaultPatterns returns the built-in classification list. The order and the
// category spellings track the latest reporting variant; earlier variants split
// Mutual Funds into per-table patterns and lacked Green Bonds.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Match: "histo_actions", Kind: MatchContains, Category: CategoryStocks},
		{Match: "actions_", Kind: MatchContains, Category: CategoryStocks},
		{Match: "indices_telekurs", Kind: MatchContains, Category: CategoryGlobalIndices},
		{Match: "histo_indices_telekurs", Kind: MatchContains, Category: CategoryGlobalIndices},
		{Match: "indices_eurofidai", Kind: MatchContains, Category: CategoryEurofidaiIdx},
		{Match: "histo_indices_eurofidai", Kind: MatchContains, Category: CategoryIEurofidaiIdx},
		{Match: "corres_code", Kind: MatchContains, Category: CategoryCodeMapping},
		{Match: "fonds_mutuel_", Kind: MatchContains, Category: CategoryMutualFunds},
		{Match: "change", Kind: MatchContains, Category: CategorySpotExchange},
		{Match: "histo_ost", Kind: MatchContains, Category: CategoryCorporateEvents},
		{Match: "ost", Kind: MatchPrefix, Category: CategoryCorporateEvents},
		{Match: "esg", Kind: MatchContains, Category: CategoryESG},
		{Match: "greenbonds", Kind: MatchContains, Category: CategoryGreenBonds},
	}
}

// Taxonomy classifies raw usage rows. Zero value is not usable; construct with
// New or NewDefault.
type Taxonomy struct {
	patterns []Pattern
}

// NewDefault builds a Taxonomy over the built-in pattern list.
func NewDefault() *Taxonomy {
	t, _ := New(DefaultPatterns())
	return t
}

// New builds a Taxonomy over an explicit, ordered pattern list.
func New(patterns []Pattern) (*Taxonomy, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("taxonomy: empty pattern list")
	}
	known := map[Category]struct{}{}
	for _, c := range Categories() {
		known[c] = struct{}{}
	}
	for i, p := range patterns {
		if p.Match == "" {
			return nil, fmt.Errorf("taxonomy: pattern %d has empty match", i)
		}
		if _, ok := known[p.Category]; !ok {
			return nil, fmt.Errorf("taxonomy: pattern %d names unknown category %q", i, p.Category)
		}
	}
	cp := make([]Pattern, len(patterns))
	copy(cp, patterns)
	return &Taxonomy{patterns: cp}, nil
}

// Patterns returns a copy of the active pattern list.
func (t *Taxonomy) Patterns() []Pattern {
	cp := make([]Pattern, len(t.patterns))
	copy(cp, t.patterns)
	return cp
}

// ClassifyDatabase resolves a raw database identifier to a category.
// Returns nil when no pattern matches; such rows still count in numeric
// rollups but are excluded from category breakdowns.
func (t *Taxonomy) ClassifyDatabase(raw string) *Category {
	for _, p := range t.patterns {
		if p.matches(raw) {
			c := p.Category
			return &c
		}
	}
	return nil
}

// ClassifyLookupMode reports whether a raw database identifier is a historical
// code search or a direct data extraction.
func ClassifyLookupMode(raw string) LookupMode {
	if strings.Contains(raw, "histo") {
		return LookupSearchCode
	}
	return LookupExtractData
}

// ClassifyInteraction maps an interaction type code to its label. Codes 2 and 3
// intentionally collapse to download. Unknown codes return nil; the row is kept.
func ClassifyInteraction(code int) *InteractionLabel {
	var label InteractionLabel
	switch code {
	case 1:
		label = InteractionPreview
	case 2, 3:
		label = InteractionDownload
	default:
		return nil
	}
	return &label
}

var monthNames = [13]string{"",
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthName returns the English month name for m in 1..12, or "" otherwise.
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return monthNames[m]
}

// MonthKey renders the zero-padded YYYYMM key.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d%02d", year, month)
}

// MonthAbbrev renders the short month label used on chart axes, e.g. Mar'24.
func MonthAbbrev(date time.Time) string {
	return date.Format("Jan'06")
}
