// Package cost enforces per-user, per-day ceilings on language-model usage.
// The governor answers "may this call happen" before every billable call
// and records actual usage after the call completes.
package cost

import (
	"context"
	"fmt"
	"time"

	"github.com/pulseplan/pulse-insights/internal/config"
	"github.com/pulseplan/pulse-insights/internal/pkg/logger"
)

// CallKind identifies a billable model call.
type CallKind string

const (
	KindEmbedding  CallKind = "embedding"
	KindCompletion CallKind = "completion"
)

// Usage is the per (user, day) counter set.
type Usage struct {
	ModelCalls       int     `json:"model_calls"`
	EmbeddingCalls   int     `json:"embedding_calls"`
	CompletionCalls  int     `json:"completion_calls"`
	TokensUsed       int64   `json:"tokens_used"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// Decision is the outcome of a ceiling check. It never carries an error:
// the caller decides what "not allowed" means, typically skipping the model
// call and falling back to a deterministic answer.
type Decision struct {
	Allowed         bool     `json:"allowed"`
	Reason          string   `json:"reason,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Ledger stores usage counters keyed by (user, day). Day keys use the
// "2006-01-02" form in UTC. Entries for past days are never read.
type Ledger interface {
	// Get returns the usage for the given user and day. A missing entry
	// returns a zero Usage, not an error.
	Get(ctx context.Context, userID, day string) (Usage, error)

	// Add atomically accumulates the delta into the entry for (user, day),
	// creating it if absent.
	Add(ctx context.Context, userID, day string, delta Usage) error
}

// Governor checks usage ceilings and records actual usage.
type Governor struct {
	ledger Ledger
	cfg    config.CostConfig
	log    *logger.Logger
	now    func() time.Time
}

// NewGovernor creates a cost governor over the given ledger.
func NewGovernor(ledger Ledger, cfg config.CostConfig, log *logger.Logger) *Governor {
	return &Governor{
		ledger: ledger,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// DayKey returns the ledger day key for the given time, in UTC.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Check evaluates the five ceilings for today's usage. A ledger read
// failure fails open.
func (g *Governor) Check(ctx context.Context, userID string, kind CallKind) Decision {
	usage, err := g.ledger.Get(ctx, userID, DayKey(g.now()))
	if err != nil {
		g.log.Warn("Cost ledger read failed, allowing call", "user_id", userID, "error", err)
		return Decision{Allowed: true}
	}

	if usage.ModelCalls >= g.cfg.MaxDailyCalls {
		return deny(
			fmt.Sprintf("daily model call limit reached (%d/%d)", usage.ModelCalls, g.cfg.MaxDailyCalls),
			"Wait for the daily limit to reset at midnight UTC",
			"Rephrase queries to reuse cached answers",
		)
	}

	switch kind {
	case KindEmbedding:
		if usage.EmbeddingCalls >= g.cfg.MaxDailyEmbeddings {
			return deny(
				fmt.Sprintf("daily embedding limit reached (%d/%d)", usage.EmbeddingCalls, g.cfg.MaxDailyEmbeddings),
				"Exact-match queries do not consume embeddings",
				"Wait for the daily limit to reset at midnight UTC",
			)
		}
	case KindCompletion:
		if usage.CompletionCalls >= g.cfg.MaxDailyCompletions {
			return deny(
				fmt.Sprintf("daily completion limit reached (%d/%d)", usage.CompletionCalls, g.cfg.MaxDailyCompletions),
				"Answers fall back to structured summaries without completions",
				"Wait for the daily limit to reset at midnight UTC",
			)
		}
	}

	if usage.TokensUsed >= g.cfg.MaxDailyTokens {
		return deny(
			fmt.Sprintf("daily token budget exhausted (%d/%d)", usage.TokensUsed, g.cfg.MaxDailyTokens),
			"Shorter queries consume fewer tokens",
			"Wait for the daily limit to reset at midnight UTC",
		)
	}

	if usage.EstimatedCostUSD >= g.cfg.MaxDailyCostUSD {
		return deny(
			fmt.Sprintf("daily spend limit reached ($%.4f/$%.2f)", usage.EstimatedCostUSD, g.cfg.MaxDailyCostUSD),
			"Wait for the daily limit to reset at midnight UTC",
		)
	}

	return Decision{Allowed: true}
}

// RecordEmbedding charges an embedding call. Failed calls are charged one
// call against the count ceilings but no tokens or spend.
func (g *Governor) RecordEmbedding(ctx context.Context, userID string, tokens int, success bool) {
	delta := Usage{ModelCalls: 1, EmbeddingCalls: 1}
	if success {
		delta.TokensUsed = int64(tokens)
		delta.EstimatedCostUSD = float64(tokens) / 1000 * g.cfg.EmbeddingRatePer1K
	}
	g.record(ctx, userID, delta)
}

// RecordCompletion charges a completion call with separate input and output
// token counts.
func (g *Governor) RecordCompletion(ctx context.Context, userID string, promptTokens, completionTokens int, success bool) {
	delta := Usage{ModelCalls: 1, CompletionCalls: 1}
	if success {
		delta.TokensUsed = int64(promptTokens + completionTokens)
		delta.EstimatedCostUSD = float64(promptTokens)/1000*g.cfg.CompletionInRatePer1K +
			float64(completionTokens)/1000*g.cfg.CompletionOutRatePer1K
	}
	g.record(ctx, userID, delta)
}

// Today returns the current usage for the user.
func (g *Governor) Today(ctx context.Context, userID string) (Usage, error) {
	return g.ledger.Get(ctx, userID, DayKey(g.now()))
}

func (g *Governor) record(ctx context.Context, userID string, delta Usage) {
	if err := g.ledger.Add(ctx, userID, DayKey(g.now()), delta); err != nil {
		g.log.Warn("Cost ledger write failed", "user_id", userID, "error", err)
	}
}

func deny(reason string, recommendations ...string) Decision {
	return Decision{
		Allowed:         false,
		Reason:          reason,
		Recommendations: recommendations,
	}
}
