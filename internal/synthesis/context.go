package synthesis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pulseplan/pulse-insights/internal/classify"
	"github.com/pulseplan/pulse-insights/internal/exact"
	"github.com/pulseplan/pulse-insights/internal/semantic"
	"github.com/pulseplan/pulse-insights/internal/vector"
)

const (
	// maxContextChars bounds the context blob sent to the model.
	maxContextChars = 8000

	// maxSnippets is the number of semantic snippets included.
	maxSnippets = 3

	// truncationMarker is appended when a hard cap is hit.
	truncationMarker = "... [truncated]"
)

// buildContext renders the merged backend results into one bounded text
// blob: date, exact section, semantic section, and the classified query.
func buildContext(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current date: %s\n", in.Now.Format("Monday, January 2, 2006 15:04 MST"))
	fmt.Fprintf(&b, "Query: %s\n", in.Query)
	fmt.Fprintf(&b, "Query type: %s (confidence %.2f)\n", in.Classification.Type, in.Classification.Confidence)
	if in.Classification.Temporal != nil {
		fmt.Fprintf(&b, "Time range: %s to %s (%s)\n",
			in.Classification.Temporal.Start.Format("2006-01-02"),
			in.Classification.Temporal.End.Format("2006-01-02"),
			in.Classification.Temporal.Period,
		)
	}

	if in.Exact != nil {
		b.WriteString("\n== Exact results ==\n")
		writeExactSection(&b, in.Exact)
	}

	if in.Semantic != nil {
		b.WriteString("\n== Related content ==\n")
		writeSemanticSection(&b, in.Semantic)
	}

	return capText(b.String(), maxContextChars)
}

// writeExactSection renders the structured exact result per query type.
func writeExactSection(b *strings.Builder, res *exact.Result) {
	switch res.Kind {
	case classify.TypeCount:
		fmt.Fprintf(b, "Exact count: %v\n", res.Value)
		writeBreakdown(b, res.Details["status_breakdown"])

	case classify.TypeList:
		fmt.Fprintf(b, "Total matching items: %v\n", res.Details["count"])
		if mins, ok := res.Details["total_duration_min"].(int); ok && mins > 0 {
			fmt.Fprintf(b, "Total tracked time: %d minutes\n", mins)
		}
		writeBreakdown(b, res.Details["status_breakdown"])
		writeItems(b, res.Value)

	case classify.TypeSearch:
		fmt.Fprintf(b, "Matches found: %v\n", res.Details["count"])
		if kw, ok := res.Details["keywords"].([]string); ok && len(kw) > 0 {
			fmt.Fprintf(b, "Keywords: %s\n", strings.Join(kw, ", "))
		}
		writeItems(b, res.Value)

	case classify.TypeCompare:
		fmt.Fprintf(b, "Items compared: %v across %v groups\n", res.Details["total"], res.Details["groups"])
		if div, ok := res.Details["diversity"].(float64); ok {
			fmt.Fprintf(b, "Diversity score: %.2f\n", div)
		}
		if groups, ok := res.Value.([]exact.Group); ok {
			for i, g := range groups {
				fmt.Fprintf(b, "%d. %s: %d (%.1f%%)\n", i+1, g.Name, g.Count, g.Percent)
			}
		}

	case classify.TypeAnalyze:
		if c, ok := res.Details["completeness"].(float64); ok {
			fmt.Fprintf(b, "Completion rate: %.0f%%\n", c*100)
		}
		fmt.Fprintf(b, "Items analyzed: %v, completed: %v\n", res.Details["total"], res.Details["completed"])
		if mins, ok := res.Details["total_duration_min"].(int); ok && mins > 0 {
			fmt.Fprintf(b, "Total tracked time: %d minutes\n", mins)
		}
		if ready, ok := res.Details["ready_for_analysis"].(bool); ok {
			fmt.Fprintf(b, "Ready for analysis: %t\n", ready)
		}
		writeBreakdown(b, res.Details["status_breakdown"])
	}

	fmt.Fprintf(b, "(scanned %d records, accuracy %.2f)\n", res.Meta.ItemsScanned, res.Meta.Accuracy)
}

// writeSemanticSection renders insights plus the top snippets by relevance.
func writeSemanticSection(b *strings.Builder, res *semantic.Result) {
	for _, insight := range res.Insights {
		fmt.Fprintf(b, "- %s\n", insight)
	}

	hits := make([]vector.Hit, len(res.Sources))
	copy(hits, res.Sources)
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > maxSnippets {
		hits = hits[:maxSnippets]
	}

	for _, h := range hits {
		snippet := h.Snippet
		if snippet == "" {
			continue
		}
		fmt.Fprintf(b, "Snippet (%.2f relevance): %s\n", h.Score, snippet)
	}
}

func writeBreakdown(b *strings.Builder, v any) {
	breakdown, ok := v.(map[string]int)
	if !ok || len(breakdown) == 0 {
		return
	}

	statuses := make([]string, 0, len(breakdown))
	for s := range breakdown {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	b.WriteString("By status:\n")
	for _, s := range statuses {
		fmt.Fprintf(b, "  %s: %d\n", s, breakdown[s])
	}
}

func writeItems(b *strings.Builder, v any) {
	items, ok := v.([]exact.Item)
	if !ok || len(items) == 0 {
		return
	}

	b.WriteString("Items:\n")
	for _, item := range items {
		line := fmt.Sprintf("  - %s", item.Title)
		if item.Project != "" {
			line += fmt.Sprintf(" [%s]", item.Project)
		}
		if item.Status != "" {
			line += fmt.Sprintf(" (%s)", item.Status)
		}
		b.WriteString(line + "\n")
	}
}

// capText truncates text at the limit with an explicit marker.
func capText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit-len(truncationMarker)] + truncationMarker
}

// Input is everything the synthesizer needs for one answer.
type Input struct {
	// Query is the original query text.
	Query string

	// Classification is the classifier output for the query.
	Classification classify.Classification

	// Exact is the exact backend result, nil if it failed or was skipped.
	Exact *exact.Result

	// Semantic is the semantic backend result, nil if it failed or was
	// skipped.
	Semantic *semantic.Result

	// TotalElapsed is the end-to-end query latency so far.
	TotalElapsed time.Duration

	// Now is the reference time rendered into the context.
	Now time.Time
}
