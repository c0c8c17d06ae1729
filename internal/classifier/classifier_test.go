package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/ledger-categorizer/internal/models"
)

func TestKeywordClassifier(t *testing.T) {
	clf := NewKeywordClassifier(DefaultTaxonomy())

	tests := []struct {
		description string
		category    string
		confidence  float64
	}{
		{"Shell gas station pump 3", "Transportation", KeywordConfidence},
		{"Starbucks downtown location", "Food & Drink", KeywordConfidence},
		{"UBER EATS order", "Food & Drink", KeywordConfidence},
		{"UBER *TRIP", "Transportation", KeywordConfidence},
		{"Netflix monthly subscription", "Entertainment", KeywordConfidence},
		{"AMAZON MKTPLACE", "Shopping", KeywordConfidence},
		{"Unknown merchant 12345", models.Uncategorized, 0},
		{"", models.Uncategorized, 0},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			category, confidence := clf.Classify(tt.description)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.confidence, confidence)
		})
	}
}

func TestKeywordClassifierIsDeterministic(t *testing.T) {
	clf := NewKeywordClassifier(DefaultTaxonomy())
	first, _ := clf.Classify("hotel parking fee")
	for i := 0; i < 50; i++ {
		again, _ := clf.Classify("hotel parking fee")
		require.Equal(t, first, again)
	}
	assert.Equal(t, "Travel", first)
}

func TestNewTaxonomy(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		tax := DefaultTaxonomy()
		assert.Equal(t, DefaultCategories, tax.Categories())
		assert.NotEmpty(t, tax.Examples())
		assert.NotEmpty(t, tax.Keywords())
	})

	t.Run("custom set filters rules outside it", func(t *testing.T) {
		tax, err := NewTaxonomy(
			[]string{"Groceries", "Rent"},
			[]Example{{Description: "LIDL", Category: "groceries"}, {Description: "Shell", Category: "Transportation"}},
			[]KeywordRule{{Keyword: " LIDL ", Category: "Groceries"}, {Keyword: "shell", Category: "Transportation"}},
		)
		require.NoError(t, err)
		assert.Equal(t, []Example{{Description: "LIDL", Category: "Groceries"}}, tax.Examples())
		assert.Equal(t, []KeywordRule{{Keyword: "lidl", Category: "Groceries"}}, tax.Keywords())
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := NewTaxonomy([]string{"Rent", "rent"}, nil, nil)
		assert.Error(t, err)
	})

	t.Run("rejects reserved name", func(t *testing.T) {
		_, err := NewTaxonomy([]string{"Rent", "uncategorized"}, nil, nil)
		assert.Error(t, err)
	})

	t.Run("rejects empty keyword", func(t *testing.T) {
		_, err := NewTaxonomy(nil, nil, []KeywordRule{{Keyword: "  ", Category: "Travel"}})
		assert.Error(t, err)
	})
}

func TestTaxonomyCanonical(t *testing.T) {
	tax := DefaultTaxonomy()

	got, ok := tax.Canonical("  bills & UTILITIES ")
	assert.True(t, ok)
	assert.Equal(t, "Bills & Utilities", got)

	_, ok = tax.Canonical("Uncategorized")
	assert.False(t, ok)

	_, ok = tax.Canonical("Bills and Utilities")
	assert.False(t, ok)
}

func TestTaxonomyNormalize(t *testing.T) {
	tax := DefaultTaxonomy()

	assert.Equal(t, "Food & Drink", tax.Normalize(" food & DRINK"))
	assert.Equal(t, models.Uncategorized, tax.Normalize("uncategorized "))
	assert.Equal(t, "Pet Care", tax.Normalize("  Pet Care "))
	assert.Empty(t, tax.Normalize("   "))
}
