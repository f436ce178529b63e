// Package hash provides hashing utilities.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA256 hash of a string.
func SHA256String(s string) string {
	return SHA256([]byte(s))
}

// SHA256Short returns the first n characters of a SHA256 hash.
func SHA256Short(data []byte, n int) string {
	h := SHA256(data)
	if n > len(h) {
		return h
	}
	return h[:n]
}

// AnswerKey derives a deterministic cache key for an answered query from the
// user, the normalized query text, and the classification hash. The
// classification hash already buckets temporal bounds to the hour, so two
// "this week" queries in the same hour share a key.
func AnswerKey(userID, normalizedQuery, classificationHash string) string {
	data := []byte(userID + "\x00" + SHA256String(normalizedQuery) + "\x00" + classificationHash)
	return SHA256Short(data, 32)
}

// NormalizeQuery lowercases and collapses whitespace for cache-key purposes.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
