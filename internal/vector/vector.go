// Package vector provides the vector store boundary for semantic retrieval:
// a native similarity-search path backed by Qdrant and a manual fallback
// that pages candidate documents and scores them client-side.
package vector

import (
	"context"
	"math"
	"time"
)

// Search defines parameters for a similarity search.
type Search struct {
	// Embedding is the dense query vector.
	Embedding []float32

	// Threshold filters out results scoring below this similarity.
	Threshold float32

	// TopK is the maximum number of results to return.
	TopK int

	// UserID constrains results to one user's content.
	UserID string

	// ContentTypes constrains results to the given content types
	// (e.g. "task", "session"). Empty means all types.
	ContentTypes []string

	// After / Before bound the document creation time. Nil means unbounded.
	After  *time.Time
	Before *time.Time
}

// Hit is a single similarity search result.
type Hit struct {
	ID          string  `json:"id"`
	ContentType string  `json:"content_type"`
	Snippet     string  `json:"snippet"`
	Score       float32 `json:"score"`
}

// Store performs similarity searches over embedded content.
type Store interface {
	SimilaritySearch(ctx context.Context, req Search) ([]Hit, error)
}

// Doc is a candidate document visited by the manual fallback path.
type Doc struct {
	ID          string
	UserID      string
	ContentType string
	Snippet     string
	Embedding   []float32
	CreatedAt   time.Time
}

// Cosine computes cosine similarity dot(a,b) / (||a|| * ||b||).
// Returns 0 when either vector has zero norm or lengths differ.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
