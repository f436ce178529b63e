package synthesis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pulseplan/pulse-insights/internal/classify"
	"github.com/pulseplan/pulse-insights/internal/exact"
)

var numberPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)

// fallbackAnswer builds a deterministic answer from the exact result's
// structured fields. Numbers are regex-extracted from rendered fields,
// never taken from model free text, so a fallback answer is always
// consistent with the real data.
func fallbackAnswer(in Input) string {
	if in.Exact == nil {
		return fallbackFromSemantic(in)
	}

	res := in.Exact
	switch res.Kind {
	case classify.TypeCount:
		n := extractNumber(fmt.Sprintf("%v", res.Value))
		answer := fmt.Sprintf("You have %s matching item(s).", n)
		if detail := breakdownSentence(res.Details["status_breakdown"]); detail != "" {
			answer += " " + detail
		}
		return answer

	case classify.TypeList:
		n := extractNumber(fmt.Sprintf("%v", res.Details["count"]))
		answer := fmt.Sprintf("Here are your items (%s total).", n)
		if items, ok := res.Value.([]exact.Item); ok {
			for _, item := range items {
				answer += fmt.Sprintf("\n- %s", item.Title)
			}
		}
		return answer

	case classify.TypeSearch:
		n := extractNumber(fmt.Sprintf("%v", res.Details["count"]))
		answer := fmt.Sprintf("I found %s match(es).", n)
		if items, ok := res.Value.([]exact.Item); ok {
			for _, item := range items {
				answer += fmt.Sprintf("\n- %s", item.Title)
			}
		}
		return answer

	case classify.TypeCompare:
		total := extractNumber(fmt.Sprintf("%v", res.Details["total"]))
		answer := fmt.Sprintf("Comparing your work, %s item(s) fall into these groups:", total)
		if groups, ok := res.Value.([]exact.Group); ok {
			for i, g := range groups {
				answer += fmt.Sprintf("\n%d. %s: %d (%.1f%%)", i+1, g.Name, g.Count, g.Percent)
			}
		}
		return answer

	case classify.TypeAnalyze:
		pct := extractNumber(fmt.Sprintf("%.0f", asFloat(res.Details["completeness"])*100))
		total := extractNumber(fmt.Sprintf("%v", res.Details["total"]))
		return fmt.Sprintf("Looking at your activity, %s of %s item(s) are complete (%s%%).",
			extractNumber(fmt.Sprintf("%v", res.Details["completed"])), total, pct)
	}

	return "No answer could be generated for this query."
}

// fallbackFromSemantic covers the semantic-only degradation path.
func fallbackFromSemantic(in Input) string {
	if in.Semantic == nil || len(in.Semantic.Insights) == 0 {
		return "No answer could be generated for this query."
	}
	return "Based on your content: " + strings.Join(in.Semantic.Insights, " ")
}

// extractNumber pulls the first numeric token from a rendered field,
// returning "0" when none is present.
func extractNumber(s string) string {
	if m := numberPattern.FindString(s); m != "" {
		return m
	}
	return "0"
}

// breakdownSentence renders a status breakdown as one sentence.
func breakdownSentence(v any) string {
	breakdown, ok := v.(map[string]int)
	if !ok || len(breakdown) == 0 {
		return ""
	}

	parts := make([]string, 0, len(breakdown))
	for _, status := range sortedKeys(breakdown) {
		parts = append(parts, fmt.Sprintf("%d %s", breakdown[status], status))
	}
	return "Breakdown: " + strings.Join(parts, ", ") + "."
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
