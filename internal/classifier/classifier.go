package classifier

import (
	"strings"

	"github.com/xaenox/ledger-categorizer/internal/models"
)

// KeywordConfidence is the confidence assigned to a keyword-table match.
const KeywordConfidence = 0.3

// KeywordClassifier is the deterministic fallback used when the provider
// cannot be reached or returns something unusable.
type KeywordClassifier struct {
	rules []KeywordRule
}

func NewKeywordClassifier(taxonomy Taxonomy) *KeywordClassifier {
	return &KeywordClassifier{rules: taxonomy.Keywords()}
}

// Classify returns the category of the first rule whose keyword occurs in
// the description, or Uncategorized with zero confidence.
func (c *KeywordClassifier) Classify(description string) (string, float64) {
	content := strings.ToLower(description)
	for _, rule := range c.rules {
		if strings.Contains(content, rule.Keyword) {
			return rule.Category, KeywordConfidence
		}
	}
	return models.Uncategorized, 0
}
