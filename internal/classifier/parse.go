package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformedCompletion means the provider reply is not the JSON object we asked for.
var ErrMalformedCompletion = errors.New("malformed completion")

// DefaultConfidence replaces a reported confidence that is not a number in [0,1].
const DefaultConfidence = 0.3

// completion is a decoded provider reply with the confidence already sanitized.
type completion struct {
	Category   string
	Confidence float64
	Reasoning  string
}

type rawCompletion struct {
	Category   *string         `json:"category"`
	Confidence json.RawMessage `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
}

// parseCompletion decodes the provider reply. Both category and confidence
// keys are required; an unusable confidence value is replaced, not rejected.
func parseCompletion(content string) (completion, error) {
	content = cleanMarkdownWrapper(content)

	var raw rawCompletion
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return completion{}, fmt.Errorf("%w: %v", ErrMalformedCompletion, err)
	}
	if raw.Category == nil || strings.TrimSpace(*raw.Category) == "" {
		return completion{}, fmt.Errorf("%w: missing category", ErrMalformedCompletion)
	}
	if len(raw.Confidence) == 0 {
		return completion{}, fmt.Errorf("%w: missing confidence", ErrMalformedCompletion)
	}

	return completion{
		Category:   strings.TrimSpace(*raw.Category),
		Confidence: sanitizeConfidence(raw.Confidence),
		Reasoning:  raw.Reasoning,
	}, nil
}

func sanitizeConfidence(raw json.RawMessage) float64 {
	if strings.TrimSpace(string(raw)) == "null" {
		return DefaultConfidence
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return DefaultConfidence
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
		return DefaultConfidence
	}
	return v
}

// cleanMarkdownWrapper strips a ```json fence some models add despite instructions.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
