package exact

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/pulseplan/pulse-insights/internal/classify"
	"github.com/pulseplan/pulse-insights/internal/opstore"
)

// listSampleSize is how many items a list result carries verbatim.
const listSampleSize = 5

func (a *Adapter) handleCount(ctx context.Context, cl classify.Classification, userID string) (*Result, error) {
	records, err := a.query(ctx, a.baseQuery(cl, userID))
	if err != nil {
		return nil, err
	}

	breakdown := statusBreakdown(records)

	return &Result{
		Kind:  classify.TypeCount,
		Value: len(records),
		Details: map[string]any{
			"status_breakdown": breakdown,
			"record_type":      string(inferRecordType(cl.Normalized)),
		},
		Meta: Meta{ItemsScanned: len(records), Accuracy: 1.0},
	}, nil
}

func (a *Adapter) handleList(ctx context.Context, cl classify.Classification, userID string) (*Result, error) {
	q := a.baseQuery(cl, userID)
	q.OrderBy = "created_at"
	q.Desc = true

	records, err := a.query(ctx, q)
	if err != nil {
		return nil, err
	}

	sample := make([]Item, 0, listSampleSize)
	for i, r := range records {
		if i >= listSampleSize {
			break
		}
		sample = append(sample, toItem(r))
	}

	return &Result{
		Kind:  classify.TypeList,
		Value: sample,
		Details: map[string]any{
			"count":              len(records),
			"status_breakdown":   statusBreakdown(records),
			"total_duration_min": totalDuration(records),
		},
		Meta: Meta{ItemsScanned: len(records), Accuracy: 1.0},
	}, nil
}

// handleSearch fetches the structured scope from the store, then applies
// containment matching in memory: the store has no full-text filter.
// Containment can both under- and over-match, so accuracy is 0.95.
func (a *Adapter) handleSearch(ctx context.Context, cl classify.Classification, userID string) (*Result, error) {
	records, err := a.query(ctx, a.baseQuery(cl, userID))
	if err != nil {
		return nil, err
	}

	keywords := searchKeywords(cl)
	matched := make([]Item, 0)
	for _, r := range records {
		if containsAnyKeyword(strings.ToLower(r.Title), keywords) {
			matched = append(matched, toItem(r))
		}
	}

	return &Result{
		Kind:  classify.TypeSearch,
		Value: matched,
		Details: map[string]any{
			"count":    len(matched),
			"keywords": keywords,
		},
		Meta: Meta{ItemsScanned: len(records), Accuracy: 0.95},
	}, nil
}

// handleCompare buckets records by project (falling back to status when no
// project is set) and ranks the buckets with percentages and a normalized
// entropy score describing how evenly work is spread.
func (a *Adapter) handleCompare(ctx context.Context, cl classify.Classification, userID string) (*Result, error) {
	records, err := a.query(ctx, a.baseQuery(cl, userID))
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]int)
	for _, r := range records {
		key := r.Project
		if key == "" {
			key = r.Status
		}
		if key == "" {
			key = "unassigned"
		}
		buckets[key]++
	}

	groups := make([]Group, 0, len(buckets))
	for name, count := range buckets {
		pct := 0.0
		if len(records) > 0 {
			pct = 100 * float64(count) / float64(len(records))
		}
		groups = append(groups, Group{Name: name, Count: count, Percent: pct})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Name < groups[j].Name
	})

	return &Result{
		Kind:  classify.TypeCompare,
		Value: groups,
		Details: map[string]any{
			"total":     len(records),
			"groups":    len(groups),
			"diversity": diversityScore(buckets, len(records)),
		},
		Meta: Meta{ItemsScanned: len(records), Accuracy: 1.0},
	}, nil
}

// handleAnalyze reports completeness and readiness flags over the scoped
// records so the synthesizer can render an analysis section.
func (a *Adapter) handleAnalyze(ctx context.Context, cl classify.Classification, userID string) (*Result, error) {
	records, err := a.query(ctx, a.baseQuery(cl, userID))
	if err != nil {
		return nil, err
	}

	completed := 0
	for _, r := range records {
		if r.Status == "complete" || r.CompletedAt != nil {
			completed++
		}
	}

	completeness := 0.0
	if len(records) > 0 {
		completeness = float64(completed) / float64(len(records))
	}

	return &Result{
		Kind:  classify.TypeAnalyze,
		Value: completeness,
		Details: map[string]any{
			"total":              len(records),
			"completed":          completed,
			"completeness":       completeness,
			"total_duration_min": totalDuration(records),
			"status_breakdown":   statusBreakdown(records),
			"ready_for_analysis": len(records) > 0,
		},
		Meta: Meta{ItemsScanned: len(records), Accuracy: 1.0},
	}, nil
}

func statusBreakdown(records []opstore.Record) map[string]int {
	breakdown := make(map[string]int)
	for _, r := range records {
		status := r.Status
		if status == "" {
			status = "none"
		}
		breakdown[status]++
	}
	return breakdown
}

func totalDuration(records []opstore.Record) int {
	total := 0
	for _, r := range records {
		total += r.DurationMin
	}
	return total
}

// diversityScore is Shannon entropy over bucket shares, normalized to [0,1]
// by the maximum entropy for the bucket count. 1.0 means work is spread
// evenly; 0 means it all sits in one bucket.
func diversityScore(buckets map[string]int, total int) float64 {
	if total == 0 || len(buckets) <= 1 {
		return 0
	}

	entropy := 0.0
	for _, count := range buckets {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}

	return entropy / math.Log2(float64(len(buckets)))
}

// searchStopWords are dropped from containment keywords.
var searchStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "the": true, "for": true,
	"find": true, "search": true, "look": true, "where": true, "is": true,
	"my": true, "me": true, "about": true, "in": true, "of": true, "on": true,
	"task": true, "tasks": true, "session": true, "sessions": true,
	"note": true, "notes": true, "timer": true, "timers": true,
	"to": true, "with": true, "that": true, "this": true,
}

// searchKeywords extracts containment terms from the normalized query,
// dropping stop words and already-extracted entities.
func searchKeywords(cl classify.Classification) []string {
	claimed := make(map[string]bool)
	for _, e := range cl.Entities {
		claimed[strings.ToLower(e.Value)] = true
	}

	keywords := make([]string, 0, 4)
	for _, word := range strings.Fields(cl.Normalized) {
		word = strings.Trim(word, "?!.,\"'")
		if len(word) < 2 || searchStopWords[word] || claimed[word] {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

func containsAnyKeyword(title string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}
