package vector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/pulseplan/pulse-insights/internal/config"
	"github.com/pulseplan/pulse-insights/internal/pkg/errors"
)

const (
	// DefaultTimeout bounds individual Qdrant operations.
	DefaultTimeout = 10 * time.Second

	defaultTopK = 10
)

// Compile-time interface check
var _ Store = (*QdrantStore)(nil)

// QdrantStore implements Store against a Qdrant collection. Points carry
// a dense vector plus user_id, content_type, snippet, and created_at
// (unix seconds) payload fields.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	timeout    time.Duration
	mu         sync.RWMutex
	closed     bool
}

// NewQdrantStore creates a Qdrant-backed vector store.
func NewQdrantStore(cfg config.QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		timeout:    DefaultTimeout,
	}, nil
}

// Close closes the underlying connection.
func (s *QdrantStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.client.Close()
}

// HealthCheck verifies the Qdrant server is reachable.
func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("qdrant store is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// SimilaritySearch performs a server-side dense search with payload filters.
func (s *QdrantStore) SimilaritySearch(ctx context.Context, req Search) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.BackendError(errors.BackendSemantic, fmt.Errorf("qdrant store is closed"))
	}

	if len(req.Embedding) == 0 {
		return nil, errors.BackendError(errors.BackendSemantic, fmt.Errorf("embedding is required"))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	limit := uint64(req.TopK)
	if limit == 0 {
		limit = defaultTopK
	}

	queryPoints := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(req.Embedding),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	if req.Threshold > 0 {
		queryPoints.ScoreThreshold = qdrant.PtrOf(req.Threshold)
	}
	if f := buildFilter(req); f != nil {
		queryPoints.Filter = f
	}

	points, err := s.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, errors.BackendError(errors.BackendSemantic, fmt.Errorf("similarity search failed: %w", err))
	}

	return scoredPointsToHits(points), nil
}

// buildFilter builds a Qdrant filter from the search constraints.
func buildFilter(req Search) *qdrant.Filter {
	var conditions []*qdrant.Condition

	if req.UserID != "" {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: "user_id",
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: req.UserID},
					},
				},
			},
		})
	}

	if len(req.ContentTypes) > 0 {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: "content_type",
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keywords{
							Keywords: &qdrant.RepeatedStrings{Strings: req.ContentTypes},
						},
					},
				},
			},
		})
	}

	if req.After != nil || req.Before != nil {
		r := &qdrant.Range{}
		if req.After != nil {
			r.Gte = qdrant.PtrOf(float64(req.After.Unix()))
		}
		if req.Before != nil {
			r.Lt = qdrant.PtrOf(float64(req.Before.Unix()))
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   "created_at",
					Range: r,
				},
			},
		})
	}

	if len(conditions) == 0 {
		return nil
	}

	return &qdrant.Filter{Must: conditions}
}

// scoredPointsToHits converts Qdrant scored points to Hits.
func scoredPointsToHits(points []*qdrant.ScoredPoint) []Hit {
	hits := make([]Hit, 0, len(points))

	for _, p := range points {
		var id string
		switch v := p.Id.PointIdOptions.(type) {
		case *qdrant.PointId_Uuid:
			id = v.Uuid
		case *qdrant.PointId_Num:
			id = fmt.Sprintf("%d", v.Num)
		}

		hits = append(hits, Hit{
			ID:          id,
			ContentType: getStringValue(p.Payload, "content_type"),
			Snippet:     getStringValue(p.Payload, "snippet"),
			Score:       p.Score,
		})
	}

	return hits
}

func getStringValue(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		if sv, ok := v.Kind.(*qdrant.Value_StringValue); ok {
			return sv.StringValue
		}
	}
	return ""
}
