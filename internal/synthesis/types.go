// Package synthesis merges exact and semantic results into one bounded
// natural-language answer with a confidence score and source attribution.
package synthesis

// Source attributes part of an answer to a backend result.
type Source struct {
	ID             string  `json:"id"`
	Backend        string  `json:"backend"`
	ContentType    string  `json:"content_type,omitempty"`
	Snippet        string  `json:"snippet,omitempty"`
	RelevanceScore float32 `json:"relevance_score,omitempty"`
}

// Metadata carries everything the confidence score is derived from, plus
// per-stage timing. An Answer's confidence is never asserted independently
// of these fields.
type Metadata struct {
	QueryType                string   `json:"query_type"`
	ClassificationConfidence float64  `json:"classification_confidence"`
	ExactUsed                bool     `json:"exact_used"`
	SemanticUsed             bool     `json:"semantic_used"`
	ExactRequired            bool     `json:"exact_required"`
	SemanticRequired         bool     `json:"semantic_required"`
	ExactAccuracy            float64  `json:"exact_accuracy,omitempty"`
	AvgSimilarity            float64  `json:"avg_similarity,omitempty"`
	DataSourcesUsed          []string `json:"data_sources_used"`
	ElapsedMs                int64    `json:"elapsed_ms"`
	CacheHit                 bool     `json:"cache_hit"`
	Fallback                 bool     `json:"fallback"`
	Model                    string   `json:"model,omitempty"`
	Truncated                bool     `json:"truncated,omitempty"`
}

// Answer is the externally visible result of a query. Immutable once
// constructed; safe to cache and hand to multiple readers.
type Answer struct {
	Text       string   `json:"text"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
	Metadata   Metadata `json:"metadata"`
}
