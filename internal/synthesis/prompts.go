package synthesis

import (
	"fmt"

	"github.com/pulseplan/pulse-insights/internal/classify"
)

// openingPhrase is the required first words of the answer per query type.
func openingPhrase(t classify.QueryType) string {
	switch t {
	case classify.TypeCount:
		return "You have"
	case classify.TypeList:
		return "Here are"
	case classify.TypeSearch:
		return "I found"
	case classify.TypeCompare:
		return "Comparing your work,"
	case classify.TypeAnalyze:
		return "Looking at your activity,"
	default:
		return "Based on your content,"
	}
}

// formattingRules are the per-type answer shape instructions.
func formattingRules(t classify.QueryType) string {
	switch t {
	case classify.TypeCount:
		return "State the exact number first. Add at most two sentences of status context. Never estimate or round the count."
	case classify.TypeList:
		return "Present the items as a short bulleted list in the given order. Mention the total if it exceeds the listed sample."
	case classify.TypeSearch:
		return "Summarize the best matches first. Mention how many matches there are in total."
	case classify.TypeCompare:
		return "Rank the groups with their percentages. Comment briefly on how evenly the work is distributed."
	case classify.TypeAnalyze:
		return "Lead with the completion rate. Give one or two concrete observations grounded in the numbers."
	default:
		return "Synthesize the related content into a short, direct answer."
	}
}

// buildPrompt assembles the completion instruction for the query type.
func buildPrompt(t classify.QueryType, contextBlob string) string {
	return fmt.Sprintf(`You are a productivity assistant answering a question about the user's own tracked work.

%s

Instructions:
- Begin your answer with: %q
- %s
- Use only the data above. Never invent items, numbers, or dates.
- Keep the answer under 150 words.`, contextBlob, openingPhrase(t), formattingRules(t))
}
