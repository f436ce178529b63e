// Package semantic implements the semantic-query adapter: embed the query,
// run a similarity search (native RPC first, manual scan fallback), and
// return ranked snippets with relevance statistics and insight strings.
package semantic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pulseplan/pulse-insights/internal/classify"
	"github.com/pulseplan/pulse-insights/internal/cost"
	"github.com/pulseplan/pulse-insights/internal/model"
	"github.com/pulseplan/pulse-insights/internal/pkg/errors"
	"github.com/pulseplan/pulse-insights/internal/pkg/logger"
	"github.com/pulseplan/pulse-insights/internal/vector"
)

// Meta describes search coverage for a semantic result.
type Meta struct {
	ElapsedMs     int64   `json:"elapsed_ms"`
	Dimension     int     `json:"dimension"`
	ResultCount   int     `json:"result_count"`
	AvgSimilarity float64 `json:"avg_similarity"`
	UsedFallback  bool    `json:"used_fallback"`
}

// Result is the output of a semantic query.
type Result struct {
	Insights []string     `json:"insights"`
	Sources  []vector.Hit `json:"sources"`
	Meta     Meta         `json:"metadata"`
}

// Adapter executes semantic queries against the vector store.
type Adapter struct {
	model     model.Service
	governor  *cost.Governor
	native    vector.Store
	fallback  vector.Store
	estimator *model.TokenEstimator
	log       *logger.Logger
}

// NewAdapter creates a semantic adapter. native may be nil, in which case
// every search takes the fallback path.
func NewAdapter(modelSvc model.Service, governor *cost.Governor, native, fallback vector.Store, log *logger.Logger) *Adapter {
	return &Adapter{
		model:     modelSvc,
		governor:  governor,
		native:    native,
		fallback:  fallback,
		estimator: model.NewTokenEstimator(),
		log:       log.WithBackend(errors.BackendSemantic),
	}
}

// Execute embeds the query and searches for similar content. The native
// path is tried first; any error from it falls back to the manual scan.
func (a *Adapter) Execute(ctx context.Context, cl classify.Classification, query, userID string) (*Result, error) {
	start := time.Now()

	decision := a.governor.Check(ctx, userID, cost.KindEmbedding)
	if !decision.Allowed {
		return nil, errors.CostLimitError("embedding", decision.Reason)
	}

	embedding, err := a.model.Embed(ctx, query)
	a.governor.RecordEmbedding(ctx, userID, a.estimator.Estimate(query), err == nil)
	if err != nil {
		return nil, err
	}

	req := vector.Search{
		Embedding:    embedding,
		Threshold:    similarityThreshold(cl.Type),
		TopK:         resultCap(cl.Type),
		UserID:       userID,
		ContentTypes: inferContentTypes(query),
	}
	if cl.Temporal != nil {
		req.After = &cl.Temporal.Start
		req.Before = &cl.Temporal.End
	}

	hits, usedFallback, err := a.search(ctx, req)
	if err != nil {
		return nil, err
	}

	avg := avgSimilarity(hits)

	return &Result{
		Insights: buildInsights(cl.Type, hits, avg),
		Sources:  hits,
		Meta: Meta{
			ElapsedMs:     time.Since(start).Milliseconds(),
			Dimension:     len(embedding),
			ResultCount:   len(hits),
			AvgSimilarity: avg,
			UsedFallback:  usedFallback,
		},
	}, nil
}

// search tries the native path, then the manual fallback.
func (a *Adapter) search(ctx context.Context, req vector.Search) ([]vector.Hit, bool, error) {
	if a.native != nil {
		hits, err := a.native.SimilaritySearch(ctx, req)
		if err == nil {
			return hits, false, nil
		}
		a.log.Warn("Native similarity search failed, using manual fallback", "error", err)
	}

	if a.fallback == nil {
		return nil, false, errors.BackendError(errors.BackendSemantic, fmt.Errorf("no similarity search path available"))
	}

	hits, err := a.fallback.SimilaritySearch(ctx, req)
	if err != nil {
		return nil, true, errors.BackendError(errors.BackendSemantic, err)
	}
	return hits, true, nil
}

// similarityThreshold returns the minimum relevance per query type.
func similarityThreshold(t classify.QueryType) float32 {
	switch t {
	case classify.TypeCount, classify.TypeList:
		return 0.8
	case classify.TypeSearch:
		return 0.7
	case classify.TypeCompare:
		return 0.6
	case classify.TypeAnalyze:
		return 0.75
	default:
		return 0.7
	}
}

// resultCap returns the maximum result count per query type.
func resultCap(t classify.QueryType) int {
	switch t {
	case classify.TypeCount:
		return 5
	case classify.TypeList:
		return 10
	case classify.TypeSearch:
		return 15
	case classify.TypeCompare:
		return 10
	case classify.TypeAnalyze:
		return 8
	default:
		return 10
	}
}

// inferContentTypes maps query vocabulary to content types. Empty means
// search everything.
func inferContentTypes(query string) []string {
	q := strings.ToLower(query)

	var types []string
	if strings.Contains(q, "task") || strings.Contains(q, "todo") {
		types = append(types, "task")
	}
	if strings.Contains(q, "session") || strings.Contains(q, "focus") || strings.Contains(q, "deep work") {
		types = append(types, "session")
	}
	if strings.Contains(q, "timer") || strings.Contains(q, "pomodoro") {
		types = append(types, "timer")
	}
	if strings.Contains(q, "block") || strings.Contains(q, "distraction") || strings.Contains(q, "site") {
		types = append(types, "site_block")
	}
	return types
}

func avgSimilarity(hits []vector.Hit) float64 {
	if len(hits) == 0 {
		return 0
	}
	var sum float64
	for _, h := range hits {
		sum += float64(h.Score)
	}
	return sum / float64(len(hits))
}
