package model

import "testing"

func TestTokenEstimator_Estimate(t *testing.T) {
	te := NewTokenEstimator()

	if got := te.Estimate(""); got != 0 {
		t.Errorf("Estimate(\"\") = %d, want 0", got)
	}

	got := te.Estimate("How many tasks are in project Alpha this week?")
	if got < 5 || got > 20 {
		t.Errorf("Estimate short sentence = %d, want roughly 9-12", got)
	}

	// Longer text yields more tokens.
	short := te.Estimate("focus session")
	long := te.Estimate("focus session focus session focus session focus session")
	if long <= short {
		t.Errorf("longer text should yield more tokens: %d <= %d", long, short)
	}
}

func TestApproximateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"one", 1},
		{"one two three four", 5},      // 4 * 1.3 = 5.2 -> 5
		{"  spaced   out   words ", 3}, // 3 * 1.3 = 3.9 -> 3
	}

	for _, tt := range tests {
		if got := approximateTokens(tt.text); got != tt.want {
			t.Errorf("approximateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
