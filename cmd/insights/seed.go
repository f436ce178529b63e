package main

import (
	"time"

	"github.com/pulseplan/pulse-insights/internal/opstore"
)

// demoUser is the user id the bundled dataset belongs to.
const demoUser = "demo"

// demoRecords builds a small dataset of tasks, sessions, and timers spread
// over the two weeks before now, so temporal queries have data to hit.
func demoRecords(now time.Time) []opstore.Record {
	at := func(daysAgo int) time.Time {
		return now.AddDate(0, 0, -daysAgo)
	}
	done := func(daysAgo int) *time.Time {
		t := at(daysAgo)
		return &t
	}

	return []opstore.Record{
		{ID: "task-1", Type: opstore.TypeTask, UserID: demoUser, Title: "Refactor auth middleware", Project: "backend", Status: "complete", CreatedAt: at(9), CompletedAt: done(7)},
		{ID: "task-2", Type: opstore.TypeTask, UserID: demoUser, Title: "Write release notes", Project: "backend", Status: "complete", CreatedAt: at(6), CompletedAt: done(5)},
		{ID: "task-3", Type: opstore.TypeTask, UserID: demoUser, Title: "Fix flaky login test", Project: "backend", Assignee: "sam", Status: "incomplete", CreatedAt: at(3)},
		{ID: "task-4", Type: opstore.TypeTask, UserID: demoUser, Title: "Design onboarding flow", Project: "mobile", Status: "incomplete", CreatedAt: at(2)},
		{ID: "task-5", Type: opstore.TypeTask, UserID: demoUser, Title: "Review billing PR", Project: "backend", Assignee: "alex", Status: "complete", CreatedAt: at(1), CompletedAt: done(0)},
		{ID: "task-6", Type: opstore.TypeTask, UserID: demoUser, Title: "Update mobile deps", Project: "mobile", Status: "incomplete", CreatedAt: at(1)},

		{ID: "sess-1", Type: opstore.TypeSession, UserID: demoUser, Title: "Morning deep work", Status: "complete", DurationMin: 90, CreatedAt: at(8), CompletedAt: done(8)},
		{ID: "sess-2", Type: opstore.TypeSession, UserID: demoUser, Title: "Focus: auth refactor", Status: "complete", DurationMin: 50, CreatedAt: at(7), CompletedAt: done(7)},
		{ID: "sess-3", Type: opstore.TypeSession, UserID: demoUser, Title: "Afternoon review block", Status: "complete", DurationMin: 45, CreatedAt: at(2), CompletedAt: done(2)},
		{ID: "sess-4", Type: opstore.TypeSession, UserID: demoUser, Title: "Focus: release prep", Status: "complete", DurationMin: 60, CreatedAt: at(0), CompletedAt: done(0)},

		{ID: "timer-1", Type: opstore.TypeTimer, UserID: demoUser, Title: "Pomodoro", Status: "complete", DurationMin: 25, CreatedAt: at(4), CompletedAt: done(4)},
		{ID: "timer-2", Type: opstore.TypeTimer, UserID: demoUser, Title: "Pomodoro", Status: "complete", DurationMin: 25, CreatedAt: at(1), CompletedAt: done(1)},

		{ID: "block-1", Type: opstore.TypeSiteBlock, UserID: demoUser, Title: "news site block", Status: "active", CreatedAt: at(10)},
	}
}
