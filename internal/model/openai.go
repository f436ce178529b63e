package model

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/pulseplan/pulse-insights/internal/config"
	"github.com/pulseplan/pulse-insights/internal/pkg/errors"
	"github.com/pulseplan/pulse-insights/internal/pkg/logger"
)

// Compile-time interface check
var _ Service = (*OpenAI)(nil)

// EmbeddingsService defines the interface for making embedding API calls.
// This abstraction enables testing without calling the real OpenAI API.
type EmbeddingsService interface {
	New(ctx context.Context, params openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// CompletionsService defines the interface for making chat completion calls.
type CompletionsService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements the model service using OpenAI's API. A client-side
// rate limiter smooths bursts before they reach the provider; hard daily
// ceilings live in the cost governor, not here.
type OpenAI struct {
	embeddings      EmbeddingsService
	completions     CompletionsService
	embedModel      openai.EmbeddingModel
	completionModel string
	limiter         *rate.Limiter
	log             *logger.Logger
}

// NewOpenAI creates a new OpenAI-backed model service.
func NewOpenAI(cfg config.ModelConfig, log *logger.Logger) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))

	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &OpenAI{
		embeddings:      client.Embeddings,
		completions:     client.Chat.Completions,
		embedModel:      openai.EmbeddingModel(cfg.EmbedModel),
		completionModel: cfg.CompletionModel,
		limiter:         rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		log:             log.WithBackend(errors.BackendModel),
	}
}

// Embed generates an embedding for the given text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, errors.BackendError(errors.BackendModel, err)
	}

	resp, err := o.embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.F[openai.EmbeddingNewParamsInputUnion](
			openai.EmbeddingNewParamsInputArrayOfStrings([]string{text}),
		),
		Model: openai.F(o.embedModel),
	})
	if err != nil {
		return nil, errors.BackendError(errors.BackendModel, fmt.Errorf("embedding generation failed: %w", err))
	}

	if len(resp.Data) == 0 {
		return nil, errors.BackendError(errors.BackendModel, fmt.Errorf("embedding generation returned no data"))
	}

	// Convert float64 to float32
	embedding := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		embedding[i] = float32(v)
	}

	return embedding, nil
}

// Complete requests a bounded chat completion for the prompt.
func (o *OpenAI) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", errors.SynthesisError(err)
	}

	resp, err := o.completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		}),
		Model:     openai.F(openai.ChatModel(o.completionModel)),
		MaxTokens: openai.F(int64(maxTokens)),
	})
	if err != nil {
		return "", errors.SynthesisError(fmt.Errorf("completion failed: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", errors.SynthesisError(fmt.Errorf("completion returned no choices"))
	}

	o.log.Debug("Completion generated",
		"model", o.completionModel,
		"prompt_chars", len(prompt),
		"answer_chars", len(resp.Choices[0].Message.Content),
	)

	return resp.Choices[0].Message.Content, nil
}

// EmbedModelName returns the embedding model name.
func (o *OpenAI) EmbedModelName() string {
	return string(o.embedModel)
}

// CompletionModelName returns the completion model name.
func (o *OpenAI) CompletionModelName() string {
	return o.completionModel
}
