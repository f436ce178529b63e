// Package classify provides query classification for the hybrid query engine.
// Classification is deterministic, side-effect-free, and performs no I/O.
package classify

import (
	"fmt"
	"strings"
	"time"

	"github.com/pulseplan/pulse-insights/internal/pkg/hash"
)

// QueryType represents the shape of answer a query expects.
type QueryType string

const (
	// TypeCount - asking for an exact number of matching records.
	TypeCount QueryType = "count"

	// TypeList - requesting enumeration of items.
	TypeList QueryType = "list"

	// TypeSearch - looking for specific records by content.
	TypeSearch QueryType = "search"

	// TypeCompare - comparing two or more groupings.
	TypeCompare QueryType = "compare"

	// TypeAnalyze - seeking aggregate productivity analysis.
	TypeAnalyze QueryType = "analyze"

	// TypeSemantic - no exact shape matched; answered from context alone.
	TypeSemantic QueryType = "semantic"
)

// Entity is a term extracted from the query text.
type Entity struct {
	// Type is the entity kind: project, person, or status.
	Type string `json:"type"`

	// Value is the extracted text.
	Value string `json:"value"`

	// Confidence is how confident extraction is (0-1).
	Confidence float64 `json:"confidence"`
}

// Entity type constants.
const (
	EntityProject = "project"
	EntityPerson  = "person"
	EntityStatus  = "status"
)

// TimeRange is an absolute half-open interval resolved from a relative period.
type TimeRange struct {
	// Start is inclusive.
	Start time.Time `json:"start"`

	// End is exclusive.
	End time.Time `json:"end"`

	// Period is the recognized vocabulary word (today, week, 2_weeks, month).
	Period string `json:"period"`
}

// Classification is the immutable result of classifying one query.
type Classification struct {
	// Original is the raw query text.
	Original string `json:"original"`

	// Normalized is the lowercased, whitespace-collapsed query.
	Normalized string `json:"normalized"`

	// Type is the matched query shape.
	Type QueryType `json:"type"`

	// Confidence is the fixed confidence of the matched rule (0-1).
	Confidence float64 `json:"confidence"`

	// NeedsExact indicates the operational store should be queried.
	NeedsExact bool `json:"needs_exact"`

	// NeedsSemantic indicates the vector store should be queried.
	NeedsSemantic bool `json:"needs_semantic"`

	// Entities are terms extracted from the query.
	Entities []Entity `json:"entities"`

	// Temporal is the resolved time filter, if any.
	Temporal *TimeRange `json:"temporal,omitempty"`
}

// rule pairs a match predicate with the classification it builds. Rules are
// evaluated in priority order; the first match wins.
type rule struct {
	queryType  QueryType
	confidence float64
	needsExact bool
	match      func(q string) bool
}

var rules = []rule{
	{TypeCount, 0.95, true, func(q string) bool {
		return containsAny(q, "how many", "count of", "count the", "number of", "total number")
	}},
	{TypeList, 0.90, true, func(q string) bool {
		return hasAnyPrefix(q, "list ", "show me ", "show all ", "enumerate ") ||
			containsAny(q, "what tasks", "what sessions", "which tasks", "which sessions")
	}},
	{TypeSearch, 0.85, true, func(q string) bool {
		return containsAny(q, "find ", "search ", "look for ", "looking for ", "where is", "where are")
	}},
	{TypeCompare, 0.80, true, func(q string) bool {
		return containsAny(q, "compare", " vs ", " versus ", "more than", "less than", "difference between")
	}},
	{TypeAnalyze, 0.90, true, func(q string) bool {
		return containsAny(q, "analyze", "analyse", "how productive", "productivity", "insight", "summary of", "summarize", "trend")
	}},
}

// Classifier maps raw query text to a Classification.
type Classifier struct {
	// skipSemanticForExact drops the semantic backend when a pure-exact
	// rule matched at maximal confidence. Off by default: semantic context
	// is always attempted.
	skipSemanticForExact bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithSkipSemanticForExact opts out of semantic context when an exact rule
// matched at maximal confidence.
func WithSkipSemanticForExact() Option {
	return func(c *Classifier) {
		c.skipSemanticForExact = true
	}
}

// New creates a new Classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// maxRuleConfidence is the highest confidence any rule assigns.
const maxRuleConfidence = 0.95

// Classify maps a query to its Classification, anchored at now for temporal
// resolution.
func (c *Classifier) Classify(query string, now time.Time) Classification {
	normalized := hash.NormalizeQuery(query)

	result := Classification{
		Original:      query,
		Normalized:    normalized,
		Type:          TypeSemantic,
		Confidence:    0.50,
		NeedsExact:    false,
		NeedsSemantic: true,
		Entities:      extractEntities(query),
		Temporal:      extractTemporal(normalized, now),
	}

	for _, r := range rules {
		if r.match(normalized) {
			result.Type = r.queryType
			result.Confidence = r.confidence
			result.NeedsExact = r.needsExact
			break
		}
	}

	if c.skipSemanticForExact && result.NeedsExact && result.Confidence >= maxRuleConfidence {
		result.NeedsSemantic = false
	}

	return result
}

// Hash returns a deterministic digest of the classification for cache keys.
// Temporal bounds are bucketed to the hour so that repeated relative-period
// queries within the same hour share a key.
func (cl Classification) Hash() string {
	var b strings.Builder
	b.WriteString(string(cl.Type))
	for _, e := range cl.Entities {
		b.WriteString("|")
		b.WriteString(e.Type)
		b.WriteString("=")
		b.WriteString(strings.ToLower(e.Value))
	}
	if cl.Temporal != nil {
		b.WriteString(fmt.Sprintf("|%s:%d:%d",
			cl.Temporal.Period,
			cl.Temporal.Start.Truncate(time.Hour).Unix(),
			cl.Temporal.End.Truncate(time.Hour).Unix(),
		))
	}
	return hash.SHA256Short([]byte(b.String()), 16)
}

func containsAny(q string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(q, s) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(q string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(q, p) {
			return true
		}
	}
	return false
}
