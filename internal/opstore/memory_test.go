package opstore

import (
	"context"
	"testing"
	"time"
)

func seedStore() *MemoryStore {
	base := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.Seed([]Record{
		{ID: "t1", Type: TypeTask, UserID: "u1", Title: "write report", Project: "alpha", Status: "incomplete", CreatedAt: base},
		{ID: "t2", Type: TypeTask, UserID: "u1", Title: "review design", Project: "alpha", Status: "complete", CreatedAt: base.Add(24 * time.Hour)},
		{ID: "t3", Type: TypeTask, UserID: "u1", Title: "ship beta", Project: "beta", Status: "incomplete", CreatedAt: base.Add(48 * time.Hour)},
		{ID: "t4", Type: TypeTask, UserID: "u2", Title: "other user task", Project: "alpha", Status: "incomplete", CreatedAt: base},
		{ID: "s1", Type: TypeSession, UserID: "u1", Title: "deep work", DurationMin: 50, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "s2", Type: TypeSession, UserID: "u1", Title: "email triage", DurationMin: 25, CreatedAt: base.Add(72 * time.Hour)},
	})
	return s
}

func TestMemoryStore_EqualityFilters(t *testing.T) {
	s := seedStore()

	got, err := s.Query(context.Background(), Query{
		Filters: []Filter{
			{Field: "user_id", Op: OpEq, Value: "u1"},
			{Field: "type", Op: OpEq, Value: TypeTask},
			{Field: "project", Op: OpEq, Value: "alpha"},
		},
	})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d records, want 2", len(got))
	}
}

func TestMemoryStore_RangeFilter(t *testing.T) {
	s := seedStore()
	cutoff := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	got, err := s.Query(context.Background(), Query{
		Filters: []Filter{
			{Field: "user_id", Op: OpEq, Value: "u1"},
			{Field: "created_at", Op: OpGte, Value: cutoff},
		},
	})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d records, want 3 (t2, t3, s2)", len(got))
	}
}

func TestMemoryStore_HalfOpenTimeRange(t *testing.T) {
	s := seedStore()
	start := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	// [start, end) on a single field is legal; t2 sits exactly at end+9h.
	got, err := s.Query(context.Background(), Query{
		Filters: []Filter{
			{Field: "user_id", Op: OpEq, Value: "u1"},
			{Field: "created_at", Op: OpGte, Value: start},
			{Field: "created_at", Op: OpLt, Value: end},
		},
	})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d records, want 2 (t1, s1)", len(got))
	}
}

func TestMemoryStore_CompositeRangeRejected(t *testing.T) {
	s := seedStore()

	_, err := s.Query(context.Background(), Query{
		Filters: []Filter{
			{Field: "created_at", Op: OpGte, Value: time.Now()},
			{Field: "duration_min", Op: OpGte, Value: 10},
		},
	})
	if err == nil {
		t.Fatal("expected composite range query to be rejected")
	}
}

func TestMemoryStore_InFilter(t *testing.T) {
	s := seedStore()

	got, err := s.Query(context.Background(), Query{
		Filters: []Filter{
			{Field: "status", Op: OpIn, Value: []string{"incomplete", "blocked"}},
			{Field: "user_id", Op: OpEq, Value: "u1"},
		},
	})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d records, want 2", len(got))
	}
}

func TestMemoryStore_InFilterTooLarge(t *testing.T) {
	s := seedStore()

	values := make([]string, MaxInValues+1)
	for i := range values {
		values[i] = "v"
	}

	_, err := s.Query(context.Background(), Query{
		Filters: []Filter{{Field: "status", Op: OpIn, Value: values}},
	})
	if err == nil {
		t.Fatal("expected oversized in filter to be rejected")
	}
}

func TestMemoryStore_OrderAndLimit(t *testing.T) {
	s := seedStore()

	got, err := s.Query(context.Background(), Query{
		Filters: []Filter{{Field: "user_id", Op: OpEq, Value: "u1"}},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   2,
	})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].ID != "s2" {
		t.Errorf("first record = %s, want s2 (newest)", got[0].ID)
	}
	if got[0].CreatedAt.Before(got[1].CreatedAt) {
		t.Error("descending order not applied")
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := seedStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Query(ctx, Query{})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
