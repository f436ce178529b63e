package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pulseplan/pulse-insights/internal/breaker"
	"github.com/pulseplan/pulse-insights/internal/bus"
	"github.com/pulseplan/pulse-insights/internal/cache"
	"github.com/pulseplan/pulse-insights/internal/classify"
	"github.com/pulseplan/pulse-insights/internal/config"
	"github.com/pulseplan/pulse-insights/internal/exact"
	"github.com/pulseplan/pulse-insights/internal/metrics"
	"github.com/pulseplan/pulse-insights/internal/pkg/errors"
	"github.com/pulseplan/pulse-insights/internal/pkg/logger"
	"github.com/pulseplan/pulse-insights/internal/semantic"
	"github.com/pulseplan/pulse-insights/internal/synthesis"
	"github.com/pulseplan/pulse-insights/internal/vector"
)

type stubExact struct {
	mu    sync.Mutex
	res   *exact.Result
	err   error
	calls int
}

func (s *stubExact) Execute(_ context.Context, cl classify.Classification, _ string) (*exact.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.res != nil {
		return s.res, nil
	}
	return &exact.Result{
		Kind:  cl.Type,
		Value: 3,
		Meta:  exact.Meta{ItemsScanned: 3, Accuracy: 1.0},
	}, nil
}

func (s *stubExact) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSemantic struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *stubSemantic) Execute(_ context.Context, _ classify.Classification, _, _ string) (*semantic.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &semantic.Result{
		Insights: []string{"Found 1 related task item(s) with average relevance 0.85."},
		Sources:  []vector.Hit{{ID: "doc-1", ContentType: "task", Snippet: "auth refactor", Score: 0.85}},
		Meta:     semantic.Meta{ResultCount: 1, AvgSimilarity: 0.85},
	}, nil
}

func (s *stubSemantic) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubSemantic) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type stubSynth struct {
	confidence float64
}

func (s *stubSynth) Synthesize(_ context.Context, in synthesis.Input, _ string) *synthesis.Answer {
	meta := synthesis.Metadata{
		QueryType:                string(in.Classification.Type),
		ClassificationConfidence: in.Classification.Confidence,
		ExactUsed:                in.Exact != nil,
		SemanticUsed:             in.Semantic != nil,
	}
	if in.Exact != nil {
		meta.DataSourcesUsed = append(meta.DataSourcesUsed, errors.BackendExact)
	}
	if in.Semantic != nil {
		meta.DataSourcesUsed = append(meta.DataSourcesUsed, errors.BackendSemantic)
	}
	return &synthesis.Answer{Text: "synthesized answer", Confidence: s.confidence, Metadata: meta}
}

func (s *stubSynth) Fallback(in synthesis.Input) *synthesis.Answer {
	return &synthesis.Answer{
		Text:       "fallback answer",
		Confidence: 0.1,
		Metadata: synthesis.Metadata{
			QueryType: string(in.Classification.Type),
			Fallback:  true,
		},
	}
}

type fixture struct {
	engine   *Engine
	exact    *stubExact
	semantic *stubSemantic
	cache    cache.Cache
	metrics  *metrics.Metrics
	bus      *bus.MemoryBus
}

func newFixture(t *testing.T, opts ...func(*fixture)) *fixture {
	t.Helper()

	f := &fixture{
		exact:    &stubExact{},
		semantic: &stubSemantic{},
		cache: cache.NewMemoryCache(config.CacheConfig{
			TTLMs:      5 * 60 * 1000,
			MaxEntries: 100,
		}),
		metrics: metrics.New(0.1),
		bus:     bus.NewMemoryBus(logger.New("error", "text")),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.engine = New(Deps{
		Classifier:  classify.New(),
		Exact:       f.exact,
		Semantic:    f.semantic,
		Synthesizer: &stubSynth{confidence: 0.9},
		Cache:       f.cache,
		Bus:         f.bus,
		Metrics:     f.metrics,
	}, config.EngineConfig{
		ExactDeadlineMs:    10000,
		SemanticDeadlineMs: 8000,
		EMASmoothing:       0.1,
		CacheMinConfidence: 0.6,
	}, config.BreakerConfig{
		FailureThreshold:    3,
		TimeoutMs:           30000,
		HalfOpenMaxAttempts: 2,
	}, logger.New("error", "text"))

	t.Cleanup(func() { f.bus.Close() })
	return f
}

func TestProcessQueryValidation(t *testing.T) {
	f := newFixture(t)

	if _, err := f.engine.ProcessQuery(context.Background(), "   ", "alice"); errors.CodeOf(err) != errors.CodeValidation {
		t.Errorf("empty query error = %v, want VALIDATION_ERROR", err)
	}
	if _, err := f.engine.ProcessQuery(context.Background(), "how many tasks", ""); errors.CodeOf(err) != errors.CodeValidation {
		t.Errorf("empty user error = %v, want VALIDATION_ERROR", err)
	}
}

func TestProcessQueryBothBackends(t *testing.T) {
	f := newFixture(t)

	answer, err := f.engine.ProcessQuery(context.Background(), "how many tasks did I finish?", "alice")
	if err != nil {
		t.Fatalf("ProcessQuery() error = %v", err)
	}

	if answer.Metadata.Fallback {
		t.Error("Fallback = true, want synthesized answer")
	}
	if !answer.Metadata.ExactUsed || !answer.Metadata.SemanticUsed {
		t.Errorf("backends used = (%t, %t), want both", answer.Metadata.ExactUsed, answer.Metadata.SemanticUsed)
	}
	if f.exact.callCount() != 1 || f.semantic.callCount() != 1 {
		t.Errorf("backend calls = (%d, %d), want (1, 1)", f.exact.callCount(), f.semantic.callCount())
	}
}

func TestProcessQueryCaching(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.ProcessQuery(ctx, "how many tasks did I finish?", "alice")
	if err != nil {
		t.Fatalf("first ProcessQuery() error = %v", err)
	}
	if first.Metadata.CacheHit {
		t.Error("first answer marked as cache hit")
	}

	second, err := f.engine.ProcessQuery(ctx, "how many tasks did I finish?", "alice")
	if err != nil {
		t.Fatalf("second ProcessQuery() error = %v", err)
	}
	if !second.Metadata.CacheHit {
		t.Error("second answer not marked as cache hit")
	}
	if f.exact.callCount() != 1 {
		t.Errorf("exact calls = %d, want 1 (second query cached)", f.exact.callCount())
	}

	snap := f.metrics.Snapshot()
	if snap.CacheHits != 1 || snap.CacheMisses != 1 {
		t.Errorf("cache counters = (%d hits, %d misses), want (1, 1)", snap.CacheHits, snap.CacheMisses)
	}
}

func TestProcessQueryLowConfidenceNotCached(t *testing.T) {
	f := newFixture(t)
	f.engine.deps.Synthesizer = &stubSynth{confidence: 0.5}
	ctx := context.Background()

	if _, err := f.engine.ProcessQuery(ctx, "how many tasks did I finish?", "alice"); err != nil {
		t.Fatalf("ProcessQuery() error = %v", err)
	}
	if f.cache.Len() != 0 {
		t.Errorf("cache Len() = %d, want 0 for low-confidence answer", f.cache.Len())
	}
}

func TestProcessQueryExactDegrades(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.exact.err = errors.BackendError(errors.BackendExact, fmt.Errorf("store down"))
	})

	degraded := make(chan bus.Event, 1)
	f.bus.Subscribe(context.Background(), bus.TopicBackendDegraded, func(_ context.Context, ev bus.Event) error {
		degraded <- ev
		return nil
	})

	answer, err := f.engine.ProcessQuery(context.Background(), "how many tasks did I finish?", "alice")
	if err != nil {
		t.Fatalf("ProcessQuery() error = %v, want degraded answer", err)
	}

	if answer.Metadata.ExactUsed {
		t.Error("ExactUsed = true, want false after exact failure")
	}
	if !answer.Metadata.SemanticUsed {
		t.Error("SemanticUsed = false, want semantic-only answer")
	}
	if len(answer.Metadata.DataSourcesUsed) != 1 || answer.Metadata.DataSourcesUsed[0] != "semantic" {
		t.Errorf("DataSourcesUsed = %v, want [semantic]", answer.Metadata.DataSourcesUsed)
	}

	select {
	case ev := <-degraded:
		payload, ok := ev.Payload.(bus.BackendDegraded)
		if !ok {
			t.Fatalf("payload type = %T, want BackendDegraded", ev.Payload)
		}
		if payload.Backend != "exact" {
			t.Errorf("degraded backend = %q, want exact", payload.Backend)
		}
	case <-time.After(time.Second):
		t.Fatal("no degradation event published")
	}

	snap := f.metrics.Snapshot()
	if snap.BackendFailures["exact"] != 1 {
		t.Errorf("exact failures = %d, want 1", snap.BackendFailures["exact"])
	}
}

func TestProcessQueryTotalDegradation(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.exact.err = errors.BackendError(errors.BackendExact, fmt.Errorf("store down"))
		f.semantic.err = errors.BackendError(errors.BackendSemantic, fmt.Errorf("vector store down"))
	})

	answer, err := f.engine.ProcessQuery(context.Background(), "how many tasks did I finish?", "alice")
	if err != nil {
		t.Fatalf("ProcessQuery() error = %v, want fallback answer", err)
	}

	if !answer.Metadata.Fallback {
		t.Error("Fallback = false, want true when every backend failed")
	}
	if answer.Confidence > 0.2 {
		t.Errorf("Confidence = %v, want <= 0.2 for total degradation", answer.Confidence)
	}

	snap := f.metrics.Snapshot()
	if snap.QueryErrors != 1 {
		t.Errorf("QueryErrors = %d, want 1", snap.QueryErrors)
	}
	if snap.FallbackAnswers != 1 {
		t.Errorf("FallbackAnswers = %d, want 1", snap.FallbackAnswers)
	}
	if f.cache.Len() != 0 {
		t.Errorf("cache Len() = %d, want 0 (fallback answers are low confidence)", f.cache.Len())
	}
}

func TestProcessQueryBreakerSkipsCalls(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.exact.err = errors.BackendError(errors.BackendExact, fmt.Errorf("store down"))
	})
	ctx := context.Background()

	// Three failing queries trip the exact breaker. Distinct queries so
	// none is served from the answer cache.
	for _, q := range []string{
		"how many tasks did I finish today?",
		"how many sessions did I finish today?",
		"how many timers did I finish today?",
	} {
		if _, err := f.engine.ProcessQuery(ctx, q, "alice"); err != nil {
			t.Fatalf("ProcessQuery(%q) error = %v", q, err)
		}
	}
	if f.exact.callCount() != 3 {
		t.Fatalf("exact calls = %d, want 3 before breaker opens", f.exact.callCount())
	}
	if got := f.engine.BreakerSnapshots()[0].State; got != breaker.StateOpen {
		t.Fatalf("exact breaker state = %s, want OPEN", got)
	}

	if _, err := f.engine.ProcessQuery(ctx, "how many sessions did I run today?", "alice"); err != nil {
		t.Fatalf("ProcessQuery() error = %v", err)
	}
	if f.exact.callCount() != 3 {
		t.Errorf("exact calls = %d, want 3 (open breaker skips the call)", f.exact.callCount())
	}
	if f.semantic.callCount() != 4 {
		t.Errorf("semantic calls = %d, want 4 (semantic breaker unaffected)", f.semantic.callCount())
	}
}

func TestProcessQueryCostDenialCounted(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.semantic.err = errors.CostLimitError("embedding", "daily embedding limit reached")
	})

	if _, err := f.engine.ProcessQuery(context.Background(), "what did I work on?", "alice"); err != nil {
		t.Fatalf("ProcessQuery() error = %v", err)
	}

	if got := f.metrics.Snapshot().CostDenials; got != 1 {
		t.Errorf("CostDenials = %d, want 1", got)
	}
}

func TestProcessQueryCostDenialDoesNotTripBreaker(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.semantic.err = errors.CostLimitError("embedding", "daily embedding limit reached")
	})
	ctx := context.Background()

	// One over-budget user burns through as many denials as the failure
	// threshold. Distinct queries so none is served from the answer cache.
	for _, q := range []string{
		"what did I work on this week?",
		"what was I focused on this week?",
		"what have I been thinking about?",
	} {
		if _, err := f.engine.ProcessQuery(ctx, q, "over-budget"); err != nil {
			t.Fatalf("ProcessQuery(%q) error = %v", q, err)
		}
	}
	if got := f.engine.BreakerSnapshots()[1].State; got != breaker.StateClosed {
		t.Fatalf("semantic breaker state = %s, want CLOSED (denials are per user, the backend is healthy)", got)
	}

	// A different user within budget still reaches the backend.
	f.semantic.setErr(nil)
	answer, err := f.engine.ProcessQuery(ctx, "what did I work on yesterday?", "bob")
	if err != nil {
		t.Fatalf("ProcessQuery() error = %v", err)
	}
	if !answer.Metadata.SemanticUsed {
		t.Error("SemanticUsed = false, want semantic answer for an in-budget user")
	}
	if f.semantic.callCount() != 4 {
		t.Errorf("semantic calls = %d, want 4 (no call skipped)", f.semantic.callCount())
	}

	snap := f.metrics.Snapshot()
	if snap.CostDenials != 3 {
		t.Errorf("CostDenials = %d, want 3", snap.CostDenials)
	}
	if snap.BackendFailures["semantic"] != 0 {
		t.Errorf("semantic failures = %d, want 0 for cost denials", snap.BackendFailures["semantic"])
	}
}

func TestProcessQueryPublishesAnswered(t *testing.T) {
	f := newFixture(t)

	answered := make(chan bus.Event, 1)
	f.bus.Subscribe(context.Background(), bus.TopicQueryAnswered, func(_ context.Context, ev bus.Event) error {
		answered <- ev
		return nil
	})

	if _, err := f.engine.ProcessQuery(context.Background(), "how many tasks did I finish?", "alice"); err != nil {
		t.Fatalf("ProcessQuery() error = %v", err)
	}

	select {
	case ev := <-answered:
		payload, ok := ev.Payload.(bus.QueryAnswered)
		if !ok {
			t.Fatalf("payload type = %T, want QueryAnswered", ev.Payload)
		}
		if payload.QueryType != "count" {
			t.Errorf("QueryType = %q, want count", payload.QueryType)
		}
		if ev.UserID != "alice" {
			t.Errorf("UserID = %q, want alice", ev.UserID)
		}
	case <-time.After(time.Second):
		t.Fatal("no answered event published")
	}
}

func TestProcessQuerySemanticOnly(t *testing.T) {
	f := newFixture(t)

	answer, err := f.engine.ProcessQuery(context.Background(), "what have I been thinking about?", "alice")
	if err != nil {
		t.Fatalf("ProcessQuery() error = %v", err)
	}

	if answer.Metadata.QueryType != "semantic" {
		t.Errorf("QueryType = %q, want semantic", answer.Metadata.QueryType)
	}
	if f.exact.callCount() != 0 {
		t.Errorf("exact calls = %d, want 0 for a semantic-only classification", f.exact.callCount())
	}
	if f.semantic.callCount() != 1 {
		t.Errorf("semantic calls = %d, want 1", f.semantic.callCount())
	}
}
