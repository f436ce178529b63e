package classify

import (
	"strings"
	"time"
)

// Period vocabulary. Resolution is a closed set on purpose: anything outside
// it is left to the semantic backend rather than guessed at.
const (
	PeriodToday     = "today"
	PeriodYesterday = "yesterday"
	PeriodWeek      = "week"
	PeriodTwoWeeks  = "2_weeks"
	PeriodMonth     = "month"
)

// extractTemporal resolves a relative period in the normalized query to an
// absolute [start, end) range anchored at now. Returns nil when no period
// word is present.
func extractTemporal(normalized string, now time.Time) *TimeRange {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case strings.Contains(normalized, "today"):
		return &TimeRange{
			Start:  midnight,
			End:    midnight.AddDate(0, 0, 1),
			Period: PeriodToday,
		}

	case strings.Contains(normalized, "yesterday"):
		return &TimeRange{
			Start:  midnight.AddDate(0, 0, -1),
			End:    midnight,
			Period: PeriodYesterday,
		}

	// Two-week phrasings must win over the bare "week" match below.
	case containsAny(normalized, "2 weeks", "two weeks", "last two weeks", "fortnight"):
		return &TimeRange{
			Start:  now.AddDate(0, 0, -14),
			End:    now,
			Period: PeriodTwoWeeks,
		}

	case containsAny(normalized, "this week", "last week", "past week", "week"):
		return &TimeRange{
			Start:  now.AddDate(0, 0, -7),
			End:    now,
			Period: PeriodWeek,
		}

	case containsAny(normalized, "this month", "last month", "past month", "month"):
		return &TimeRange{
			Start:  now.AddDate(0, 0, -30),
			End:    now,
			Period: PeriodMonth,
		}
	}

	return nil
}
