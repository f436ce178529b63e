// Package opstore defines the operational store boundary: the backend
// holding exact, structured productivity records (tasks, sessions, timers,
// site blocks) queryable by equality, range, and membership filters.
package opstore

import (
	"context"
	"fmt"
	"time"

	"github.com/pulseplan/pulse-insights/internal/pkg/errors"
)

// RecordType identifies the document collection a record belongs to.
type RecordType string

const (
	// TypeTask - a to-do item with project, assignee, and status.
	TypeTask RecordType = "task"

	// TypeSession - a completed focus session with a duration.
	TypeSession RecordType = "session"

	// TypeTimer - a running or finished timer.
	TypeTimer RecordType = "timer"

	// TypeSiteBlock - a site-blocking rule activation.
	TypeSiteBlock RecordType = "site_block"
)

// Record is one operational document. Records are value types; the store
// hands out copies, never shared references.
type Record struct {
	ID          string     `json:"id"`
	Type        RecordType `json:"type"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Project     string     `json:"project,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Status      string     `json:"status,omitempty"`
	DurationMin int        `json:"duration_min,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Op is a filter operator.
type Op string

const (
	// OpEq - exact match.
	OpEq Op = "=="

	// OpGte - greater than or equal (range).
	OpGte Op = ">="

	// OpLte - less than or equal (range).
	OpLte Op = "<="

	// OpLt - strictly less than (range); used for half-open time bounds.
	OpLt Op = "<"

	// OpIn - membership, at most MaxInValues values per call.
	OpIn Op = "in"
)

// MaxInValues caps membership filter size; larger sets must be batched by
// the caller.
const MaxInValues = 10

// Filter constrains one field.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query is a filtered, optionally ordered and limited read.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Store is the operational store interface.
type Store interface {
	// Query returns records matching all filters. At most one field may
	// carry range operators; stores of this shape reject composite-range
	// queries.
	Query(ctx context.Context, q Query) ([]Record, error)
}

// Validate rejects queries the operational store cannot execute: more than
// one range-filtered field, or oversized membership filters.
func (q Query) Validate() error {
	rangeField := ""
	for _, f := range q.Filters {
		switch f.Op {
		case OpGte, OpLte, OpLt:
			if rangeField != "" && rangeField != f.Field {
				return errors.ValidationError(
					fmt.Sprintf("composite range filters not supported: %s and %s", rangeField, f.Field))
			}
			rangeField = f.Field
		case OpIn:
			values, ok := f.Value.([]string)
			if !ok {
				return errors.ValidationError(fmt.Sprintf("in filter on %s requires []string", f.Field))
			}
			if len(values) > MaxInValues {
				return errors.ValidationError(
					fmt.Sprintf("in filter on %s exceeds %d values", f.Field, MaxInValues))
			}
		case OpEq:
		default:
			return errors.ValidationError(fmt.Sprintf("unknown filter op: %s", f.Op))
		}
	}
	return nil
}
