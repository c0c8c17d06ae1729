package classifier

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = "You are a financial transaction classifier. You MUST respond with ONLY a valid JSON object. " +
	"Do not include any explanatory text, markdown formatting, or commentary before or after the JSON."

// Prompt is a system/user message pair sent to the provider.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt renders the categorization prompt for description. The
// description is embedded as a JSON string so it cannot break out of its slot.
func BuildPrompt(taxonomy Taxonomy, description string) Prompt {
	var b strings.Builder

	b.WriteString("Categorize the bank transaction below into exactly one of these categories:\n")
	for _, c := range taxonomy.Categories() {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	if examples := taxonomy.Examples(); len(examples) > 0 {
		b.WriteString("\nExamples:\n")
		for _, ex := range examples {
			fmt.Fprintf(&b, "%s => %s\n", quote(ex.Description), ex.Category)
		}
	}

	b.WriteString(`
Return a JSON object with this exact structure:
{"category": "<one of the categories above>", "confidence": <number between 0.0 and 1.0>, "reasoning": "<one short sentence>"}

Transaction description: `)
	b.WriteString(quote(description))

	return Prompt{System: systemPrompt, User: b.String()}
}

func quote(s string) string {
	out, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%q", s)
	}
	return string(out)
}
