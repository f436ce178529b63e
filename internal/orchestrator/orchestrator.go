// Package orchestrator coordinates a query across both backends: classify,
// check the answer cache, fan out under per-backend breakers and deadlines,
// and synthesize one answer. Backend failures degrade to partial answers;
// the caller never sees a backend error.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulseplan/pulse-insights/internal/breaker"
	"github.com/pulseplan/pulse-insights/internal/bus"
	"github.com/pulseplan/pulse-insights/internal/cache"
	"github.com/pulseplan/pulse-insights/internal/classify"
	"github.com/pulseplan/pulse-insights/internal/config"
	"github.com/pulseplan/pulse-insights/internal/exact"
	"github.com/pulseplan/pulse-insights/internal/metrics"
	"github.com/pulseplan/pulse-insights/internal/pkg/errors"
	"github.com/pulseplan/pulse-insights/internal/pkg/hash"
	"github.com/pulseplan/pulse-insights/internal/pkg/logger"
	"github.com/pulseplan/pulse-insights/internal/semantic"
	"github.com/pulseplan/pulse-insights/internal/synthesis"
)

// eventSource identifies the engine in published telemetry events.
const eventSource = "orchestrator"

// ExactBackend executes structured queries.
type ExactBackend interface {
	Execute(ctx context.Context, cl classify.Classification, userID string) (*exact.Result, error)
}

// SemanticBackend executes similarity queries.
type SemanticBackend interface {
	Execute(ctx context.Context, cl classify.Classification, query, userID string) (*semantic.Result, error)
}

// Synthesizer merges backend results into one answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, in synthesis.Input, userID string) *synthesis.Answer
	Fallback(in synthesis.Input) *synthesis.Answer
}

// Deps are the engine's collaborators.
type Deps struct {
	Classifier  *classify.Classifier
	Exact       ExactBackend
	Semantic    SemanticBackend
	Synthesizer Synthesizer
	Cache       cache.Cache
	Bus         bus.Bus
	Metrics     *metrics.Metrics
}

// Engine is the hybrid query engine entry point.
type Engine struct {
	deps Deps
	cfg  config.EngineConfig

	exactBreaker    *breaker.Breaker
	semanticBreaker *breaker.Breaker

	log *logger.Logger
	now func() time.Time
}

// New creates an engine with fresh per-backend breakers. Breaker state
// transitions are published on the bus and counted.
func New(deps Deps, cfg config.EngineConfig, breakerCfg config.BreakerConfig, log *logger.Logger) *Engine {
	e := &Engine{
		deps:            deps,
		cfg:             cfg,
		exactBreaker:    breaker.New(errors.BackendExact, breakerCfg, log),
		semanticBreaker: breaker.New(errors.BackendSemantic, breakerCfg, log),
		log:             log,
		now:             time.Now,
	}

	e.exactBreaker.OnStateChange(e.onBreakerChange)
	e.semanticBreaker.OnStateChange(e.onBreakerChange)
	return e
}

// ProcessQuery answers one query for one user. The only error it returns
// is input validation; backend and model failures degrade the answer
// instead of failing it.
func (e *Engine) ProcessQuery(ctx context.Context, query, userID string) (*synthesis.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.ValidationError("query must not be empty")
	}
	if userID == "" {
		return nil, errors.ValidationError("user id must not be empty")
	}

	start := e.now()
	log := e.log.WithUser(userID)

	cl := e.deps.Classifier.Classify(query, start)
	log.Debug("Query classified",
		"type", cl.Type,
		"confidence", cl.Confidence,
		"needs_exact", cl.NeedsExact,
		"needs_semantic", cl.NeedsSemantic,
	)

	key := hash.AnswerKey(userID, cl.Normalized, cl.Hash())
	if answer, ok := e.deps.Cache.Get(ctx, key); ok {
		answer.Metadata.CacheHit = true
		e.deps.Metrics.CacheHits.Inc()
		e.publishAnswered(ctx, userID, answer, time.Since(start))
		log.Debug("Answer served from cache", "key", key)
		return answer, nil
	}
	e.deps.Metrics.CacheMisses.Inc()

	exactRes, semRes := e.fanOut(ctx, cl, query, userID)

	in := synthesis.Input{
		Query:          query,
		Classification: cl,
		Exact:          exactRes,
		Semantic:       semRes,
		TotalElapsed:   time.Since(start),
		Now:            start,
	}

	var answer *synthesis.Answer
	allBackendsDown := exactRes == nil && semRes == nil
	if allBackendsDown {
		answer = e.deps.Synthesizer.Fallback(in)
	} else {
		answer = e.deps.Synthesizer.Synthesize(ctx, in, userID)
	}

	elapsed := time.Since(start)
	answer.Metadata.ElapsedMs = elapsed.Milliseconds()

	e.deps.Metrics.RecordQuery(elapsed, allBackendsDown)
	if answer.Metadata.Fallback {
		e.deps.Metrics.FallbackAnswers.Inc()
	}

	if answer.Confidence > e.cfg.CacheMinConfidence {
		e.deps.Cache.Set(ctx, key, answer)
	}

	e.publishAnswered(ctx, userID, answer, elapsed)
	log.Info("Query answered",
		"type", cl.Type,
		"confidence", answer.Confidence,
		"fallback", answer.Metadata.Fallback,
		"sources", answer.Metadata.DataSourcesUsed,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return answer, nil
}

// fanOut runs both backends concurrently. Each backend resolves to nil on
// any failure; neither blocks or cancels the other.
func (e *Engine) fanOut(ctx context.Context, cl classify.Classification, query, userID string) (*exact.Result, *semantic.Result) {
	var (
		exactRes *exact.Result
		semRes   *semantic.Result
	)

	g, gctx := errgroup.WithContext(ctx)

	if cl.NeedsExact {
		g.Go(func() error {
			exactRes = e.runExact(gctx, cl, userID)
			return nil
		})
	}

	if cl.NeedsSemantic {
		g.Go(func() error {
			semRes = e.runSemantic(gctx, cl, query, userID)
			return nil
		})
	}

	_ = g.Wait()
	return exactRes, semRes
}

func (e *Engine) runExact(ctx context.Context, cl classify.Classification, userID string) *exact.Result {
	if !e.exactBreaker.Allowed() {
		e.degrade(ctx, userID, errors.BackendExact, "circuit open, call skipped")
		return nil
	}

	e.deps.Metrics.BackendCalls.WithLabels(errors.BackendExact).Inc()

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ExactDeadline())
	defer cancel()

	var res *exact.Result
	err := e.exactBreaker.Execute(callCtx, func(ctx context.Context) error {
		var execErr error
		res, execErr = e.deps.Exact.Execute(ctx, cl, userID)
		return execErr
	})
	if err != nil {
		e.deps.Metrics.BackendFailures.WithLabels(errors.BackendExact).Inc()
		e.degrade(ctx, userID, errors.BackendExact, failureReason(callCtx, errors.BackendExact, err))
		return nil
	}
	return res
}

func (e *Engine) runSemantic(ctx context.Context, cl classify.Classification, query, userID string) *semantic.Result {
	if !e.semanticBreaker.Allowed() {
		e.degrade(ctx, userID, errors.BackendSemantic, "circuit open, call skipped")
		return nil
	}

	e.deps.Metrics.BackendCalls.WithLabels(errors.BackendSemantic).Inc()

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.SemanticDeadline())
	defer cancel()

	var res *semantic.Result
	err := e.semanticBreaker.Execute(callCtx, func(ctx context.Context) error {
		var execErr error
		res, execErr = e.deps.Semantic.Execute(ctx, cl, query, userID)
		return execErr
	})
	if err != nil {
		// Cost denials degrade the result but are not backend failures.
		if errors.IsCostLimited(err) {
			e.deps.Metrics.CostDenials.Inc()
		} else {
			e.deps.Metrics.BackendFailures.WithLabels(errors.BackendSemantic).Inc()
		}
		e.degrade(ctx, userID, errors.BackendSemantic, failureReason(callCtx, errors.BackendSemantic, err))
		return nil
	}
	return res
}

// failureReason normalizes a backend failure into the degradation reason,
// folding a blown deadline into a timeout error.
func failureReason(callCtx context.Context, backend string, err error) string {
	if callCtx.Err() == context.DeadlineExceeded && errors.CodeOf(err) == "" {
		return errors.TimeoutError(backend).Error()
	}
	return err.Error()
}

// degrade records that one backend resolved to nothing.
func (e *Engine) degrade(ctx context.Context, userID, backend, reason string) {
	e.log.WithUser(userID).Warn("Backend degraded", "backend", backend, "reason", reason)
	e.publish(ctx, bus.TopicBackendDegraded, bus.NewEvent(
		bus.TopicBackendDegraded, eventSource, userID,
		bus.BackendDegraded{Backend: backend, Reason: reason},
	))
}

func (e *Engine) publishAnswered(ctx context.Context, userID string, answer *synthesis.Answer, elapsed time.Duration) {
	e.publish(ctx, bus.TopicQueryAnswered, bus.NewEvent(
		bus.TopicQueryAnswered, eventSource, userID,
		bus.QueryAnswered{
			QueryType:  answer.Metadata.QueryType,
			Confidence: answer.Confidence,
			CacheHit:   answer.Metadata.CacheHit,
			Fallback:   answer.Metadata.Fallback,
			ElapsedMs:  elapsed.Milliseconds(),
		},
	))
}

func (e *Engine) publish(ctx context.Context, topic string, event bus.Event) {
	if err := e.deps.Bus.Publish(ctx, topic, event); err != nil {
		e.log.Warn("Telemetry publish failed", "topic", topic, "error", err)
	}
}

// onBreakerChange forwards breaker transitions to telemetry.
func (e *Engine) onBreakerChange(backend string, from, to breaker.State) {
	if to == breaker.StateOpen {
		e.deps.Metrics.BreakerOpens.WithLabels(backend).Inc()
	}
	e.publish(context.Background(), bus.TopicBreakerState, bus.NewEvent(
		bus.TopicBreakerState, eventSource, "",
		bus.BreakerStateChanged{Backend: backend, From: string(from), To: string(to)},
	))
}

// BreakerSnapshots returns the current state of both backend breakers.
func (e *Engine) BreakerSnapshots() []breaker.Snapshot {
	return []breaker.Snapshot{
		e.exactBreaker.Snapshot(),
		e.semanticBreaker.Snapshot(),
	}
}
