package cost

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Compile-time interface check
var _ Ledger = (*MemoryLedger)(nil)

// MemoryLedger keeps usage counters in process memory. Entries from past
// days are unreachable once the day rolls over and are removed by Sweep.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string]Usage // "userID:day"
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string]Usage),
	}
}

// Get returns the usage for (user, day), zero if absent.
func (l *MemoryLedger) Get(ctx context.Context, userID, day string) (Usage, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.entries[ledgerKey(userID, day)], nil
}

// Add accumulates the delta into the entry for (user, day).
func (l *MemoryLedger) Add(ctx context.Context, userID, day string, delta Usage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey(userID, day)
	u := l.entries[key]
	u.ModelCalls += delta.ModelCalls
	u.EmbeddingCalls += delta.EmbeddingCalls
	u.CompletionCalls += delta.CompletionCalls
	u.TokensUsed += delta.TokensUsed
	u.EstimatedCostUSD += delta.EstimatedCostUSD
	l.entries[key] = u

	return nil
}

// Sweep removes entries from days other than today. Returns the number of
// entries removed.
func (l *MemoryLedger) Sweep(today string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key := range l.entries {
		if !strings.HasSuffix(key, ":"+today) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep at the given interval until ctx is cancelled.
func (l *MemoryLedger) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.Sweep(DayKey(now))
			}
		}
	}()
}

// Len returns the number of ledger entries.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.entries)
}

func ledgerKey(userID, day string) string {
	return userID + ":" + day
}
