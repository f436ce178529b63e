package synthesis

import (
	"context"
	"fmt"

	"github.com/pulseplan/pulse-insights/internal/cost"
	"github.com/pulseplan/pulse-insights/internal/model"
	"github.com/pulseplan/pulse-insights/internal/pkg/errors"
	"github.com/pulseplan/pulse-insights/internal/pkg/logger"
)

const (
	// maxAnswerChars bounds the final answer text.
	maxAnswerChars = 2000

	// maxCompletionTokens bounds the model completion request.
	maxCompletionTokens = 500

	// slowQueryMs is the latency above which confidence is penalized.
	slowQueryMs = 8000
)

// Synthesizer builds the final answer from backend results.
type Synthesizer struct {
	model     model.Service
	governor  *cost.Governor
	estimator *model.TokenEstimator
	log       *logger.Logger
}

// NewSynthesizer creates a synthesizer over the given model service.
func NewSynthesizer(modelSvc model.Service, governor *cost.Governor, log *logger.Logger) *Synthesizer {
	return &Synthesizer{
		model:     modelSvc,
		governor:  governor,
		estimator: model.NewTokenEstimator(),
		log:       log,
	}
}

// Synthesize merges the backend results into an answer. It never returns
// an error: model failure or cost denial substitutes the deterministic
// fallback built from the exact result's structured fields.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input, userID string) *Answer {
	meta := buildMeta(in)

	text, truncated, fellBack := s.complete(ctx, in, userID)
	meta.Fallback = fellBack
	meta.Truncated = truncated
	if !fellBack {
		meta.Model = s.model.CompletionModelName()
	}

	return &Answer{
		Text:       text,
		Sources:    buildSources(in),
		Confidence: Confidence(meta),
		Metadata:   meta,
	}
}

// degradedConfidenceCap pins total-degradation answers low regardless of
// classification confidence.
const degradedConfidenceCap = 0.2

// Fallback builds the deterministic answer without consulting the model.
// Used when every backend resolved to nothing and a completion would have
// no data to work from; confidence is pinned at or below 0.2.
func (s *Synthesizer) Fallback(in Input) *Answer {
	meta := buildMeta(in)
	meta.Fallback = true

	text, truncated := capAnswerText(fallbackAnswer(in))
	meta.Truncated = truncated

	confidence := Confidence(meta)
	if confidence > degradedConfidenceCap {
		confidence = degradedConfidenceCap
	}

	return &Answer{
		Text:       text,
		Sources:    buildSources(in),
		Confidence: confidence,
		Metadata:   meta,
	}
}

func buildMeta(in Input) Metadata {
	meta := Metadata{
		QueryType:                string(in.Classification.Type),
		ClassificationConfidence: in.Classification.Confidence,
		ExactRequired:            in.Classification.NeedsExact,
		SemanticRequired:         in.Classification.NeedsSemantic,
		ExactUsed:                in.Exact != nil,
		SemanticUsed:             in.Semantic != nil,
		ElapsedMs:                in.TotalElapsed.Milliseconds(),
	}
	if in.Exact != nil {
		meta.ExactAccuracy = in.Exact.Meta.Accuracy
		meta.DataSourcesUsed = append(meta.DataSourcesUsed, errors.BackendExact)
	}
	if in.Semantic != nil {
		meta.AvgSimilarity = in.Semantic.Meta.AvgSimilarity
		meta.DataSourcesUsed = append(meta.DataSourcesUsed, errors.BackendSemantic)
	}
	return meta
}

// complete requests the model completion, falling back deterministically.
// Returns the answer text, whether it was truncated, and whether the
// fallback path was used.
func (s *Synthesizer) complete(ctx context.Context, in Input, userID string) (string, bool, bool) {
	decision := s.governor.Check(ctx, userID, cost.KindCompletion)
	if !decision.Allowed {
		s.log.Info("Completion denied by cost governor, using fallback",
			"user_id", userID,
			"reason", decision.Reason,
		)
		return capAnswer(fallbackAnswer(in))
	}

	prompt := buildPrompt(in.Classification.Type, buildContext(in))
	promptTokens := s.estimator.Estimate(prompt)

	text, err := s.model.Complete(ctx, prompt, maxCompletionTokens)
	s.governor.RecordCompletion(ctx, userID, promptTokens, s.estimator.Estimate(text), err == nil)
	if err != nil {
		s.log.Warn("Completion failed, using fallback", "user_id", userID, "error", err)
		return capAnswer(fallbackAnswer(in))
	}

	capped, truncated := capAnswerText(text)
	return capped, truncated, false
}

func capAnswer(text string) (string, bool, bool) {
	capped, truncated := capAnswerText(text)
	return capped, truncated, true
}

func capAnswerText(text string) (string, bool) {
	if len(text) <= maxAnswerChars {
		return text, false
	}
	return text[:maxAnswerChars-len(truncationMarker)] + truncationMarker, true
}

// Confidence derives the answer confidence from its own metadata:
// classification confidence, backend accuracy and relevance bonuses, and
// missing-backend and latency penalties, clamped to [0.1, 1.0].
func Confidence(meta Metadata) float64 {
	c := meta.ClassificationConfidence

	if meta.ExactUsed && meta.ExactAccuracy > 0.9 {
		c += 0.2
	}
	if meta.SemanticUsed && meta.AvgSimilarity > 0.8 {
		c += 0.1
	}
	if meta.ExactRequired && !meta.ExactUsed {
		c -= 0.3
	}
	if meta.SemanticRequired && !meta.SemanticUsed {
		c -= 0.2
	}
	if meta.ElapsedMs > slowQueryMs {
		c -= 0.1
	}

	if c < 0.1 {
		c = 0.1
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

// buildSources attributes the answer to its backend results.
func buildSources(in Input) []Source {
	var sources []Source

	if in.Exact != nil {
		sources = append(sources, Source{
			ID:      fmt.Sprintf("exact:%s", in.Exact.Kind),
			Backend: errors.BackendExact,
		})
	}

	if in.Semantic != nil {
		for _, hit := range in.Semantic.Sources {
			sources = append(sources, Source{
				ID:             hit.ID,
				Backend:        errors.BackendSemantic,
				ContentType:    hit.ContentType,
				Snippet:        hit.Snippet,
				RelevanceScore: hit.Score,
			})
		}
	}

	return sources
}
