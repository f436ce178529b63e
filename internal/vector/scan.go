package vector

import (
	"context"
	"sort"
	"strconv"

	"github.com/pulseplan/pulse-insights/internal/pkg/logger"
)

const scanPageSize = 200

// ScanPage is one page of candidate documents from a ScanSource.
type ScanPage struct {
	Docs       []Doc
	NextCursor string
}

// ScanSource pages through candidate documents for client-side scoring.
// Cursor semantics are source-defined; an empty cursor starts from the
// beginning and an empty NextCursor ends the scan.
type ScanSource interface {
	Scan(ctx context.Context, req Search, cursor string, limit int) (ScanPage, error)
}

// Compile-time interface check
var _ Store = (*ManualStore)(nil)

// ManualStore implements Store by paging candidates from a ScanSource and
// computing cosine similarity client-side. It is the fallback path used
// when the native similarity RPC is unavailable.
type ManualStore struct {
	source ScanSource
	log    *logger.Logger
}

// NewManualStore creates a scan-based fallback store.
func NewManualStore(source ScanSource, log *logger.Logger) *ManualStore {
	return &ManualStore{source: source, log: log}
}

// SimilaritySearch pages all candidates, scores each against the query
// embedding, keeps results at or above the threshold, sorts descending,
// and caps at TopK.
func (s *ManualStore) SimilaritySearch(ctx context.Context, req Search) ([]Hit, error) {
	var hits []Hit
	cursor := ""
	scanned := 0

	for {
		page, err := s.source.Scan(ctx, req, cursor, scanPageSize)
		if err != nil {
			return nil, err
		}

		scanned += len(page.Docs)
		for _, doc := range page.Docs {
			score := Cosine(req.Embedding, doc.Embedding)
			if score < req.Threshold {
				continue
			}
			hits = append(hits, Hit{
				ID:          doc.ID,
				ContentType: doc.ContentType,
				Snippet:     doc.Snippet,
				Score:       score,
			})
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	topK := req.TopK
	if topK == 0 {
		topK = defaultTopK
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}

	s.log.Debug("Manual similarity scan complete",
		"scanned", scanned,
		"kept", len(hits),
		"threshold", req.Threshold,
	)

	return hits, nil
}

// MemorySource is an in-memory ScanSource for tests and local runs.
type MemorySource struct {
	docs []Doc
}

// NewMemorySource creates a memory-backed scan source.
func NewMemorySource(docs []Doc) *MemorySource {
	return &MemorySource{docs: docs}
}

// Add appends a document to the source.
func (m *MemorySource) Add(doc Doc) {
	m.docs = append(m.docs, doc)
}

// Scan returns a page of documents matching the search constraints.
// The cursor is the integer offset into the filtered set.
func (m *MemorySource) Scan(ctx context.Context, req Search, cursor string, limit int) (ScanPage, error) {
	if err := ctx.Err(); err != nil {
		return ScanPage{}, err
	}

	filtered := make([]Doc, 0, len(m.docs))
	for _, doc := range m.docs {
		if req.UserID != "" && doc.UserID != req.UserID {
			continue
		}
		if len(req.ContentTypes) > 0 && !containsString(req.ContentTypes, doc.ContentType) {
			continue
		}
		if req.After != nil && doc.CreatedAt.Before(*req.After) {
			continue
		}
		if req.Before != nil && !doc.CreatedAt.Before(*req.Before) {
			continue
		}
		filtered = append(filtered, doc)
	}

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err == nil {
			start = n
		}
	}
	if start >= len(filtered) {
		return ScanPage{}, nil
	}

	end := start + limit
	next := ""
	if end >= len(filtered) {
		end = len(filtered)
	} else {
		next = strconv.Itoa(end)
	}

	return ScanPage{Docs: filtered[start:end], NextCursor: next}, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
