package classifier

import (
	"fmt"
	"strings"

	"github.com/xaenox/ledger-categorizer/internal/models"
)

// DefaultCategories is the closed category set offered to the provider.
var DefaultCategories = []string{
	"Food & Drink",
	"Transportation",
	"Shopping",
	"Health & Fitness",
	"Entertainment",
	"Bills & Utilities",
	"Income",
	"Investment",
	"Education",
	"Travel",
	"Insurance",
	"Charity",
	"Other",
}

// Example is a labelled transaction used for few-shot prompting.
type Example struct {
	Description string
	Category    string
}

// KeywordRule maps a case-insensitive substring to a category.
type KeywordRule struct {
	Keyword  string
	Category string
}

var defaultExamples = []Example{
	{Description: "STARBUCKS STORE 1234", Category: "Food & Drink"},
	{Description: "Uber trip help.uber.com", Category: "Transportation"},
	{Description: "AMAZON MKTPLACE PMTS", Category: "Shopping"},
	{Description: "Monthly salary ACME Corp", Category: "Income"},
	{Description: "Spotify Premium", Category: "Entertainment"},
}

// Order matters: the first matching rule wins, so specific phrases precede
// the shorter keywords they contain.
var defaultKeywords = []KeywordRule{
	{Keyword: "uber eats", Category: "Food & Drink"},
	{Keyword: "starbucks", Category: "Food & Drink"},
	{Keyword: "mcdonald", Category: "Food & Drink"},
	{Keyword: "restaurant", Category: "Food & Drink"},
	{Keyword: "coffee", Category: "Food & Drink"},
	{Keyword: "cafe", Category: "Food & Drink"},
	{Keyword: "pizza", Category: "Food & Drink"},
	{Keyword: "grocery", Category: "Food & Drink"},
	{Keyword: "supermarket", Category: "Food & Drink"},
	{Keyword: "airbnb", Category: "Travel"},
	{Keyword: "hotel", Category: "Travel"},
	{Keyword: "airline", Category: "Travel"},
	{Keyword: "flight", Category: "Travel"},
	{Keyword: "booking.com", Category: "Travel"},
	{Keyword: "gas station", Category: "Transportation"},
	{Keyword: "shell", Category: "Transportation"},
	{Keyword: "chevron", Category: "Transportation"},
	{Keyword: "uber", Category: "Transportation"},
	{Keyword: "lyft", Category: "Transportation"},
	{Keyword: "taxi", Category: "Transportation"},
	{Keyword: "parking", Category: "Transportation"},
	{Keyword: "metro", Category: "Transportation"},
	{Keyword: "fuel", Category: "Transportation"},
	{Keyword: "netflix", Category: "Entertainment"},
	{Keyword: "spotify", Category: "Entertainment"},
	{Keyword: "cinema", Category: "Entertainment"},
	{Keyword: "steam", Category: "Entertainment"},
	{Keyword: "amazon", Category: "Shopping"},
	{Keyword: "walmart", Category: "Shopping"},
	{Keyword: "ikea", Category: "Shopping"},
	{Keyword: "pharmacy", Category: "Health & Fitness"},
	{Keyword: "gym", Category: "Health & Fitness"},
	{Keyword: "doctor", Category: "Health & Fitness"},
	{Keyword: "electric", Category: "Bills & Utilities"},
	{Keyword: "water bill", Category: "Bills & Utilities"},
	{Keyword: "internet", Category: "Bills & Utilities"},
	{Keyword: "phone bill", Category: "Bills & Utilities"},
	{Keyword: "insurance", Category: "Insurance"},
	{Keyword: "salary", Category: "Income"},
	{Keyword: "payroll", Category: "Income"},
	{Keyword: "dividend", Category: "Investment"},
	{Keyword: "brokerage", Category: "Investment"},
	{Keyword: "tuition", Category: "Education"},
	{Keyword: "udemy", Category: "Education"},
	{Keyword: "coursera", Category: "Education"},
	{Keyword: "donation", Category: "Charity"},
	{Keyword: "charity", Category: "Charity"},
}

// Taxonomy carries the closed category set, few-shot examples and the
// keyword fallback table. It is passed explicitly to whoever needs it.
type Taxonomy struct {
	categories []string
	index      map[string]string
	examples   []Example
	keywords   []KeywordRule
}

// DefaultTaxonomy returns the built-in taxonomy.
func DefaultTaxonomy() Taxonomy {
	t, err := NewTaxonomy(nil, nil, nil)
	if err != nil {
		panic(fmt.Sprintf("default taxonomy is invalid: %v", err))
	}
	return t
}

// NewTaxonomy builds a taxonomy. Nil or empty arguments select the defaults.
// Examples and keyword rules must point at categories within the set.
func NewTaxonomy(categories []string, examples []Example, keywords []KeywordRule) (Taxonomy, error) {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	if len(examples) == 0 {
		examples = defaultExamples
	}
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}

	t := Taxonomy{index: make(map[string]string, len(categories))}
	for _, c := range categories {
		name := strings.TrimSpace(c)
		if name == "" {
			return Taxonomy{}, fmt.Errorf("empty category name")
		}
		if strings.EqualFold(name, models.Uncategorized) {
			return Taxonomy{}, fmt.Errorf("%q is reserved", models.Uncategorized)
		}
		key := strings.ToLower(name)
		if _, dup := t.index[key]; dup {
			return Taxonomy{}, fmt.Errorf("duplicate category %q", name)
		}
		t.index[key] = name
		t.categories = append(t.categories, name)
	}

	for _, ex := range examples {
		canonical, ok := t.Canonical(ex.Category)
		if !ok {
			// Examples for categories outside a custom set are simply skipped
			continue
		}
		t.examples = append(t.examples, Example{Description: ex.Description, Category: canonical})
	}

	for _, rule := range keywords {
		kw := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if kw == "" {
			return Taxonomy{}, fmt.Errorf("empty keyword for category %q", rule.Category)
		}
		canonical, ok := t.Canonical(rule.Category)
		if !ok {
			continue
		}
		t.keywords = append(t.keywords, KeywordRule{Keyword: kw, Category: canonical})
	}

	return t, nil
}

// Canonical returns the set's spelling of name, matched case-insensitively
// after trimming. The fallback category is not part of the set.
func (t Taxonomy) Canonical(name string) (string, bool) {
	canonical, ok := t.index[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok
}

// Normalize maps name onto the set's spelling, or onto the fallback category.
// Names outside both are returned trimmed so ledger-only categories survive.
func (t Taxonomy) Normalize(name string) string {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, models.Uncategorized) {
		return models.Uncategorized
	}
	if canonical, ok := t.Canonical(name); ok {
		return canonical
	}
	return name
}

// Categories returns the closed set in configured order.
func (t Taxonomy) Categories() []string {
	out := make([]string, len(t.categories))
	copy(out, t.categories)
	return out
}

func (t Taxonomy) Examples() []Example {
	out := make([]Example, len(t.examples))
	copy(out, t.examples)
	return out
}

func (t Taxonomy) Keywords() []KeywordRule {
	out := make([]KeywordRule, len(t.keywords))
	copy(out, t.keywords)
	return out
}
