package classify

import (
	"regexp"
	"strings"
	"unicode"
)

var projectPattern = regexp.MustCompile(`(?i)\bproject\s+([A-Za-z][A-Za-z0-9_-]*)`)

// statusKeywords are recognized task-status terms.
var statusKeywords = map[string]string{
	"incomplete": "incomplete",
	"unfinished": "incomplete",
	"complete":   "complete",
	"completed":  "complete",
	"done":       "complete",
	"pending":    "pending",
	"active":     "active",
	"blocked":    "blocked",
	"overdue":    "overdue",
}

// personStoplist holds capitalized tokens that are never person names:
// sentence starters, product words, and period words that surveys of real
// queries showed being capitalized.
var personStoplist = map[string]bool{
	"i": true, "how": true, "what": true, "which": true, "who": true,
	"when": true, "where": true, "why": true, "list": true, "show": true,
	"find": true, "search": true, "compare": true, "analyze": true,
	"count": true, "the": true, "my": true, "today": true, "monday": true,
	"tuesday": true, "wednesday": true, "thursday": true, "friday": true,
	"saturday": true, "sunday": true, "january": true, "february": true,
	"march": true, "april": true, "may": true, "june": true, "july": true,
	"august": true, "september": true, "october": true, "november": true,
	"december": true, "project": true, "task": true, "tasks": true,
	"session": true, "sessions": true, "timer": true, "alpha": true,
	"beta": true,
}

// extractEntities pulls project names, person names, and status keywords
// from the raw (case-preserving) query text.
func extractEntities(query string) []Entity {
	entities := make([]Entity, 0, 4)
	seen := make(map[string]bool)

	// Project names: "project <Name>"
	for _, m := range projectPattern.FindAllStringSubmatch(query, -1) {
		key := EntityProject + ":" + strings.ToLower(m[1])
		if seen[key] {
			continue
		}
		seen[key] = true
		entities = append(entities, Entity{
			Type:       EntityProject,
			Value:      m[1],
			Confidence: 0.9,
		})
	}

	// Person names: capitalized tokens minus stoplist. The first token is
	// skipped since sentence-initial capitalization carries no signal.
	words := strings.Fields(query)
	for i, word := range words {
		if i == 0 {
			continue
		}
		cleaned := trimPunct(word)
		if cleaned == "" || !unicode.IsUpper(rune(cleaned[0])) {
			continue
		}
		lower := strings.ToLower(cleaned)
		if personStoplist[lower] {
			continue
		}
		// A project name already claimed this token.
		if seen[EntityProject+":"+lower] {
			continue
		}
		key := EntityPerson + ":" + lower
		if seen[key] {
			continue
		}
		seen[key] = true
		entities = append(entities, Entity{
			Type:       EntityPerson,
			Value:      cleaned,
			Confidence: 0.7,
		})
	}

	// Status keywords.
	for _, word := range words {
		lower := strings.ToLower(trimPunct(word))
		status, ok := statusKeywords[lower]
		if !ok {
			continue
		}
		key := EntityStatus + ":" + status
		if seen[key] {
			continue
		}
		seen[key] = true
		entities = append(entities, Entity{
			Type:       EntityStatus,
			Value:      status,
			Confidence: 0.8,
		})
	}

	return entities
}

func trimPunct(word string) string {
	return strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
