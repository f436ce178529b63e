package model

import (
	"github.com/tiktoken-go/tokenizer"
)

// TokenEstimator estimates token counts for cost accounting. It prefers a
// real BPE tokenizer and falls back to a words-based approximation when one
// cannot be loaded.
type TokenEstimator struct {
	codec tokenizer.Codec
}

// NewTokenEstimator creates an estimator using the cl100k_base encoding.
// The approximation fallback keeps cost accounting working even when the
// encoding tables are unavailable.
func NewTokenEstimator() *TokenEstimator {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return &TokenEstimator{}
	}
	return &TokenEstimator{codec: codec}
}

// Estimate returns the token count for the given text.
func (te *TokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}

	if te.codec != nil {
		ids, _, err := te.codec.Encode(text)
		if err == nil {
			return len(ids)
		}
	}

	return approximateTokens(text)
}

// approximateTokens uses a words × 1.3 heuristic: most BPE tokenizers
// produce about 1.3 tokens per English word.
func approximateTokens(text string) int {
	words := 0
	inWord := false
	for _, r := range text {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if isSpace {
			inWord = false
		} else if !inWord {
			words++
			inWord = true
		}
	}
	return int(float64(words) * 1.3)
}
