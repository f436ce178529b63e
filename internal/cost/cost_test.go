package cost

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/pulseplan/pulse-insights/internal/config"
	"github.com/pulseplan/pulse-insights/internal/pkg/logger"
)

func testConfig() config.CostConfig {
	return config.CostConfig{
		MaxDailyCalls:          200,
		MaxDailyEmbeddings:     150,
		MaxDailyCompletions:    100,
		MaxDailyTokens:         500000,
		MaxDailyCostUSD:        5.0,
		EmbeddingRatePer1K:     0.00002,
		CompletionInRatePer1K:  0.0025,
		CompletionOutRatePer1K: 0.01,
	}
}

func testGovernor(cfg config.CostConfig) (*Governor, *MemoryLedger) {
	ledger := NewMemoryLedger()
	g := NewGovernor(ledger, cfg, logger.New("error", "text"))
	g.now = func() time.Time {
		return time.Date(2025, 6, 16, 14, 30, 0, 0, time.UTC)
	}
	return g, ledger
}

func TestGovernor_AllowsUnderCeilings(t *testing.T) {
	g, _ := testGovernor(testConfig())

	d := g.Check(context.Background(), "u1", KindEmbedding)
	if !d.Allowed {
		t.Fatalf("fresh user should be allowed, got reason %q", d.Reason)
	}
	if d.Reason != "" || len(d.Recommendations) != 0 {
		t.Error("allowed decision should carry no reason or recommendations")
	}
}

func TestGovernor_CallCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDailyCalls = 3
	g, _ := testGovernor(cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		g.RecordEmbedding(ctx, "u1", 10, true)
	}

	d := g.Check(ctx, "u1", KindEmbedding)
	if d.Allowed {
		t.Fatal("expected denial after call ceiling")
	}
	if d.Reason == "" {
		t.Error("denial must carry a reason")
	}
	if len(d.Recommendations) == 0 {
		t.Error("denial must carry recommendations")
	}
}

func TestGovernor_KindSpecificCeilings(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDailyEmbeddings = 2
	cfg.MaxDailyCompletions = 1
	g, _ := testGovernor(cfg)
	ctx := context.Background()

	g.RecordEmbedding(ctx, "u1", 10, true)
	g.RecordEmbedding(ctx, "u1", 10, true)

	if d := g.Check(ctx, "u1", KindEmbedding); d.Allowed {
		t.Error("embedding ceiling should deny embeddings")
	}
	if d := g.Check(ctx, "u1", KindCompletion); !d.Allowed {
		t.Errorf("embedding ceiling should not deny completions: %q", d.Reason)
	}

	g.RecordCompletion(ctx, "u1", 100, 50, true)
	if d := g.Check(ctx, "u1", KindCompletion); d.Allowed {
		t.Error("completion ceiling should deny completions")
	}
}

func TestGovernor_TokenCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDailyTokens = 100
	g, _ := testGovernor(cfg)
	ctx := context.Background()

	g.RecordEmbedding(ctx, "u1", 150, true)

	d := g.Check(ctx, "u1", KindEmbedding)
	if d.Allowed {
		t.Fatal("expected denial after token budget exhausted")
	}
}

func TestGovernor_CostCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDailyCostUSD = 0.001
	g, _ := testGovernor(cfg)
	ctx := context.Background()

	// 1000 completion output tokens at $0.01/1k = $0.01 > $0.001
	g.RecordCompletion(ctx, "u1", 0, 1000, true)

	d := g.Check(ctx, "u1", KindCompletion)
	if d.Allowed {
		t.Fatal("expected denial after spend ceiling")
	}
	if len(d.Recommendations) == 0 {
		t.Error("denial must carry recommendations")
	}
}

func TestGovernor_FailedCallChargesCallOnly(t *testing.T) {
	g, _ := testGovernor(testConfig())
	ctx := context.Background()

	g.RecordEmbedding(ctx, "u1", 500, false)

	usage, err := g.Today(ctx, "u1")
	if err != nil {
		t.Fatalf("Today() error: %v", err)
	}
	if usage.ModelCalls != 1 || usage.EmbeddingCalls != 1 {
		t.Errorf("failed call should charge one call: %+v", usage)
	}
	if usage.TokensUsed != 0 || usage.EstimatedCostUSD != 0 {
		t.Errorf("failed call should charge no tokens or spend: %+v", usage)
	}
}

func TestGovernor_CostArithmetic(t *testing.T) {
	g, _ := testGovernor(testConfig())
	ctx := context.Background()

	g.RecordCompletion(ctx, "u1", 2000, 1000, true)

	usage, _ := g.Today(ctx, "u1")
	want := 2.0*0.0025 + 1.0*0.01 // $0.015
	if math.Abs(usage.EstimatedCostUSD-want) > 1e-9 {
		t.Errorf("EstimatedCostUSD = %f, want %f", usage.EstimatedCostUSD, want)
	}
	if usage.TokensUsed != 3000 {
		t.Errorf("TokensUsed = %d, want 3000", usage.TokensUsed)
	}
}

func TestGovernor_UsersIndependent(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDailyCalls = 1
	g, _ := testGovernor(cfg)
	ctx := context.Background()

	g.RecordEmbedding(ctx, "u1", 10, true)

	if d := g.Check(ctx, "u1", KindEmbedding); d.Allowed {
		t.Error("u1 should be denied")
	}
	if d := g.Check(ctx, "u2", KindEmbedding); !d.Allowed {
		t.Error("u2 should be unaffected by u1's usage")
	}
}

func TestGovernor_FailsOpenOnLedgerError(t *testing.T) {
	g := NewGovernor(failingLedger{}, testConfig(), logger.New("error", "text"))

	d := g.Check(context.Background(), "u1", KindEmbedding)
	if !d.Allowed {
		t.Error("ledger read failure should fail open")
	}
}

func TestMemoryLedger_Sweep(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	ledger.Add(ctx, "u1", "2025-06-15", Usage{ModelCalls: 1})
	ledger.Add(ctx, "u1", "2025-06-16", Usage{ModelCalls: 1})
	ledger.Add(ctx, "u2", "2025-06-14", Usage{ModelCalls: 1})

	removed := ledger.Sweep("2025-06-16")
	if removed != 2 {
		t.Errorf("Sweep removed %d, want 2", removed)
	}
	if ledger.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ledger.Len())
	}

	u, _ := ledger.Get(ctx, "u1", "2025-06-16")
	if u.ModelCalls != 1 {
		t.Error("today's entry should survive the sweep")
	}
}

type failingLedger struct{}

func (failingLedger) Get(ctx context.Context, userID, day string) (Usage, error) {
	return Usage{}, fmt.Errorf("ledger unavailable")
}

func (failingLedger) Add(ctx context.Context, userID, day string, delta Usage) error {
	return fmt.Errorf("ledger unavailable")
}
