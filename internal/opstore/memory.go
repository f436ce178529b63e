package opstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation. It backs tests and
// local development; production deployments adapt the host application's
// document store behind the same interface.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Seed replaces the store contents.
func (m *MemoryStore) Seed(records []Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make([]Record, len(records))
	copy(m.records, records)
}

// Add appends a single record.
func (m *MemoryStore) Add(r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
}

// Query returns copies of records matching all filters.
func (m *MemoryStore) Query(ctx context.Context, q Query) ([]Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]Record, 0)
	for _, r := range m.records {
		if matchesAll(r, q.Filters) {
			matched = append(matched, r)
		}
	}

	if q.OrderBy != "" {
		sortRecords(matched, q.OrderBy, q.Desc)
	}

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	return matched, nil
}

func matchesAll(r Record, filters []Filter) bool {
	for _, f := range filters {
		if !matches(r, f) {
			return false
		}
	}
	return true
}

func matches(r Record, f Filter) bool {
	switch f.Op {
	case OpEq:
		return fieldString(r, f.Field) == toString(f.Value)

	case OpIn:
		values, ok := f.Value.([]string)
		if !ok {
			return false
		}
		field := fieldString(r, f.Field)
		for _, v := range values {
			if field == v {
				return true
			}
		}
		return false

	case OpGte, OpLte, OpLt:
		return matchesRange(r, f)
	}
	return false
}

func matchesRange(r Record, f Filter) bool {
	// Time-valued fields compare as timestamps, numeric fields as ints.
	if ts, ok := f.Value.(time.Time); ok {
		field, ok := fieldTime(r, f.Field)
		if !ok {
			return false
		}
		switch f.Op {
		case OpGte:
			return !field.Before(ts)
		case OpLte:
			return !field.After(ts)
		case OpLt:
			return field.Before(ts)
		}
		return false
	}

	if n, ok := toInt(f.Value); ok {
		field, ok := fieldInt(r, f.Field)
		if !ok {
			return false
		}
		switch f.Op {
		case OpGte:
			return field >= n
		case OpLte:
			return field <= n
		case OpLt:
			return field < n
		}
	}
	return false
}

func fieldString(r Record, field string) string {
	switch field {
	case "id":
		return r.ID
	case "type":
		return string(r.Type)
	case "user_id":
		return r.UserID
	case "title":
		return r.Title
	case "project":
		return r.Project
	case "assignee":
		return r.Assignee
	case "status":
		return r.Status
	}
	return ""
}

func fieldTime(r Record, field string) (time.Time, bool) {
	switch field {
	case "created_at":
		return r.CreatedAt, true
	case "completed_at":
		if r.CompletedAt == nil {
			return time.Time{}, false
		}
		return *r.CompletedAt, true
	}
	return time.Time{}, false
}

func fieldInt(r Record, field string) (int, bool) {
	if field == "duration_min" {
		return r.DurationMin, true
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case RecordType:
		return string(s)
	}
	return ""
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

func sortRecords(records []Record, orderBy string, desc bool) {
	sort.SliceStable(records, func(i, j int) bool {
		var less bool
		switch orderBy {
		case "created_at":
			less = records[i].CreatedAt.Before(records[j].CreatedAt)
		case "duration_min":
			less = records[i].DurationMin < records[j].DurationMin
		default:
			less = strings.Compare(fieldString(records[i], orderBy), fieldString(records[j], orderBy)) < 0
		}
		if desc {
			return !less
		}
		return less
	})
}
