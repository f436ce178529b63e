package semantic

import (
	"fmt"
	"sort"

	"github.com/pulseplan/pulse-insights/internal/classify"
	"github.com/pulseplan/pulse-insights/internal/vector"
)

// buildInsights produces human-readable summaries: one line per content
// type with count and average relevance, plus one query-type sentence.
func buildInsights(t classify.QueryType, hits []vector.Hit, avg float64) []string {
	if len(hits) == 0 {
		return []string{"No semantically related content was found for this query."}
	}

	insights := make([]string, 0, 4)

	type bucket struct {
		count int
		sum   float64
	}
	byType := make(map[string]*bucket)
	for _, h := range hits {
		ct := h.ContentType
		if ct == "" {
			ct = "content"
		}
		b, ok := byType[ct]
		if !ok {
			b = &bucket{}
			byType[ct] = b
		}
		b.count++
		b.sum += float64(h.Score)
	}

	types := make([]string, 0, len(byType))
	for ct := range byType {
		types = append(types, ct)
	}
	sort.Strings(types)

	for _, ct := range types {
		b := byType[ct]
		insights = append(insights, fmt.Sprintf(
			"Found %d related %s item(s) with average relevance %.2f.",
			b.count, ct, b.sum/float64(b.count),
		))
	}

	insights = append(insights, queryTypeInsight(t, len(hits), avg))
	return insights
}

// queryTypeInsight returns one sentence tailored to the query type.
func queryTypeInsight(t classify.QueryType, count int, avg float64) string {
	switch t {
	case classify.TypeCount:
		return fmt.Sprintf("Semantic matches suggest the count may extend beyond exact filters (%d related items).", count)
	case classify.TypeList:
		return fmt.Sprintf("The %d related items can supplement the exact listing.", count)
	case classify.TypeSearch:
		return fmt.Sprintf("Top matches average %.2f relevance; lower-ranked items may still be worth reviewing.", avg)
	case classify.TypeCompare:
		return fmt.Sprintf("Related content spans the compared groups with %.2f average relevance.", avg)
	case classify.TypeAnalyze:
		return fmt.Sprintf("%d contextually similar items are available to support the analysis.", count)
	default:
		return fmt.Sprintf("Found %d semantically similar items (average relevance %.2f).", count, avg)
	}
}
