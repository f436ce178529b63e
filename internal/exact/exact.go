// Package exact executes structured queries against the operational store.
// Results are 100% accurate for all shapes except text search, where
// containment matching is recorded at 0.95.
package exact

import (
	"context"
	"strings"
	"time"

	"github.com/pulseplan/pulse-insights/internal/classify"
	"github.com/pulseplan/pulse-insights/internal/opstore"
	"github.com/pulseplan/pulse-insights/internal/pkg/errors"
	"github.com/pulseplan/pulse-insights/internal/pkg/logger"
)

// Meta describes how an exact result was produced.
type Meta struct {
	// ItemsScanned is the number of records the store returned before
	// post-processing.
	ItemsScanned int `json:"items_scanned"`

	// Accuracy is 1.0 for structured paths, 0.95 for text search.
	Accuracy float64 `json:"accuracy"`

	// ElapsedMs is the adapter execution time.
	ElapsedMs int64 `json:"elapsed_ms"`
}

// Result is a structured answer from the operational store. Read-only once
// produced.
type Result struct {
	// Kind mirrors the classification type that produced the result.
	Kind classify.QueryType `json:"kind"`

	// Value is the primary answer: a count, an item list, or a grouping.
	Value any `json:"value"`

	// Details carries type-specific structured fields for synthesis.
	Details map[string]any `json:"details,omitempty"`

	// Meta describes scan size, accuracy, and timing.
	Meta Meta `json:"meta"`
}

// Item is a compact record rendering used in list and search results.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Project     string `json:"project,omitempty"`
	Status      string `json:"status,omitempty"`
	DurationMin int    `json:"duration_min,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// Group is one ranked bucket in a compare result.
type Group struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Adapter executes one handler per classification type. It performs no
// retries; failure isolation belongs to the orchestrator and its breakers.
type Adapter struct {
	store opstore.Store
	log   *logger.Logger
}

// NewAdapter creates an exact-query adapter over the given store.
func NewAdapter(store opstore.Store, log *logger.Logger) *Adapter {
	return &Adapter{
		store: store,
		log:   log.WithBackend(errors.BackendExact),
	}
}

// Execute dispatches the classification to its handler.
func (a *Adapter) Execute(ctx context.Context, cl classify.Classification, userID string) (*Result, error) {
	start := time.Now()

	var (
		result *Result
		err    error
	)

	switch cl.Type {
	case classify.TypeCount:
		result, err = a.handleCount(ctx, cl, userID)
	case classify.TypeList:
		result, err = a.handleList(ctx, cl, userID)
	case classify.TypeSearch:
		result, err = a.handleSearch(ctx, cl, userID)
	case classify.TypeCompare:
		result, err = a.handleCompare(ctx, cl, userID)
	case classify.TypeAnalyze:
		result, err = a.handleAnalyze(ctx, cl, userID)
	default:
		return nil, errors.ValidationError("no exact handler for classification type: " + string(cl.Type))
	}

	if err != nil {
		a.log.Debug("Exact query failed", "type", cl.Type, "error", err)
		return nil, err
	}

	result.Meta.ElapsedMs = time.Since(start).Milliseconds()
	a.log.Debug("Exact query completed",
		"type", cl.Type,
		"items_scanned", result.Meta.ItemsScanned,
		"elapsed_ms", result.Meta.ElapsedMs,
	)
	return result, nil
}

// baseQuery builds the store query the classification implies: the user
// scope, the inferred record type, entity filters, and at most one temporal
// range (the store rejects composite range filters, so the temporal bound is
// the only range this adapter ever emits).
func (a *Adapter) baseQuery(cl classify.Classification, userID string) opstore.Query {
	filters := []opstore.Filter{
		{Field: "user_id", Op: opstore.OpEq, Value: userID},
		{Field: "type", Op: opstore.OpEq, Value: inferRecordType(cl.Normalized)},
	}

	for _, e := range cl.Entities {
		switch e.Type {
		case classify.EntityProject:
			filters = append(filters, opstore.Filter{
				Field: "project", Op: opstore.OpEq, Value: strings.ToLower(e.Value),
			})
		case classify.EntityStatus:
			filters = append(filters, opstore.Filter{
				Field: "status", Op: opstore.OpEq, Value: e.Value,
			})
		case classify.EntityPerson:
			filters = append(filters, opstore.Filter{
				Field: "assignee", Op: opstore.OpEq, Value: e.Value,
			})
		}
	}

	if cl.Temporal != nil {
		filters = append(filters,
			opstore.Filter{Field: "created_at", Op: opstore.OpGte, Value: cl.Temporal.Start},
			opstore.Filter{Field: "created_at", Op: opstore.OpLt, Value: cl.Temporal.End},
		)
	}

	return opstore.Query{Filters: filters}
}

// query runs a store query, wrapping any failure as a typed backend error.
func (a *Adapter) query(ctx context.Context, q opstore.Query) ([]opstore.Record, error) {
	records, err := a.store.Query(ctx, q)
	if err != nil {
		return nil, errors.BackendError(errors.BackendExact, err)
	}
	return records, nil
}

// inferRecordType picks the record collection the query is about.
func inferRecordType(normalized string) opstore.RecordType {
	switch {
	case containsAny(normalized, "session", "focus", "pomodoro"):
		return opstore.TypeSession
	case containsAny(normalized, "timer"):
		return opstore.TypeTimer
	case containsAny(normalized, "blocked site", "site block", "blocked sites", "blocklist", "distraction"):
		return opstore.TypeSiteBlock
	default:
		return opstore.TypeTask
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func toItem(r opstore.Record) Item {
	return Item{
		ID:          r.ID,
		Title:       r.Title,
		Project:     r.Project,
		Status:      r.Status,
		DurationMin: r.DurationMin,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}
