// Package model defines the language-model service boundary: embedding and
// bounded completion. Both operations are billable and are checked against
// the cost governor by callers before invocation.
package model

import "context"

// Service is the language-model interface consumed by the semantic adapter
// and the synthesizer.
type Service interface {
	// Embed generates a dense embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Complete requests a natural-language completion for the prompt,
	// bounded by maxTokens.
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)

	// EmbedModelName returns the embedding model identifier.
	EmbedModelName() string

	// CompletionModelName returns the completion model identifier.
	CompletionModelName() string
}
