package classify

import (
	"testing"
	"time"
)

var anchor = time.Date(2025, 6, 16, 14, 30, 0, 0, time.UTC)

func TestClassify_Types(t *testing.T) {
	tests := []struct {
		query          string
		wantType       QueryType
		wantConfidence float64
		wantExact      bool
	}{
		{"How many tasks in project Alpha?", TypeCount, 0.95, true},
		{"count of sessions this week", TypeCount, 0.95, true},
		{"total number of blocked sites", TypeCount, 0.95, true},
		{"List my incomplete tasks", TypeList, 0.90, true},
		{"show me all sessions from yesterday", TypeList, 0.90, true},
		{"which tasks are overdue", TypeList, 0.90, true},
		{"find the task about quarterly review", TypeSearch, 0.85, true},
		{"search notes for standup", TypeSearch, 0.85, true},
		{"where is my timer for deep work", TypeSearch, 0.85, true},
		{"compare this week vs last week", TypeCompare, 0.80, true},
		{"difference between morning and evening sessions", TypeCompare, 0.80, true},
		{"How productive was I this month?", TypeAnalyze, 0.90, true},
		{"analyze my focus trend", TypeAnalyze, 0.90, true},
		{"what should I work on next", TypeSemantic, 0.50, false},
		{"", TypeSemantic, 0.50, false},
	}

	c := New()
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := c.Classify(tt.query, anchor)

			if got.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", got.Type, tt.wantType)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %f, want %f", got.Confidence, tt.wantConfidence)
			}
			if got.NeedsExact != tt.wantExact {
				t.Errorf("NeedsExact = %v, want %v", got.NeedsExact, tt.wantExact)
			}
			if !got.NeedsSemantic {
				t.Error("NeedsSemantic should default to true")
			}
		})
	}
}

func TestClassify_SkipSemanticForExact(t *testing.T) {
	c := New(WithSkipSemanticForExact())

	got := c.Classify("how many tasks today", anchor)
	if got.NeedsSemantic {
		t.Error("maximal-confidence exact classification should skip semantic when opted out")
	}

	// Lower-confidence rules keep semantic context.
	got = c.Classify("compare this week vs last week", anchor)
	if !got.NeedsSemantic {
		t.Error("compare classification should keep semantic backend")
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := New()
	a := c.Classify("How many tasks in project Alpha today?", anchor)
	b := c.Classify("How many tasks in project Alpha today?", anchor)

	if a.Hash() != b.Hash() {
		t.Errorf("classification hash not deterministic: %s != %s", a.Hash(), b.Hash())
	}
}

func TestExtractEntities(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []Entity
	}{
		{
			"project name",
			"How many tasks in project Orion?",
			[]Entity{{EntityProject, "Orion", 0.9}},
		},
		{
			"person name",
			"list sessions with Dana this week",
			[]Entity{{EntityPerson, "Dana", 0.7}},
		},
		{
			"status keyword",
			"show me incomplete tasks",
			[]Entity{{EntityStatus, "incomplete", 0.8}},
		},
		{
			"status synonym folds to canonical",
			"how many done tasks",
			[]Entity{{EntityStatus, "complete", 0.8}},
		},
		{
			"stoplist filters question words",
			"What should I do Monday?",
			[]Entity{},
		},
		{
			"sentence-initial capital ignored",
			"Find my notes",
			[]Entity{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractEntities(tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entities %v, want %d", len(got), got, len(tt.want))
			}
			for i, e := range got {
				if e.Type != tt.want[i].Type || e.Value != tt.want[i].Value {
					t.Errorf("entity[%d] = %+v, want %+v", i, e, tt.want[i])
				}
				if e.Confidence != tt.want[i].Confidence {
					t.Errorf("entity[%d] confidence = %f, want %f", i, e.Confidence, tt.want[i].Confidence)
				}
			}
		})
	}
}

func TestExtractEntities_ProjectNotDoubleCountedAsPerson(t *testing.T) {
	got := extractEntities("How many tasks in project Mercury?")

	for _, e := range got {
		if e.Type == EntityPerson && e.Value == "Mercury" {
			t.Error("project name should not also be extracted as a person")
		}
	}
}

func TestExtractTemporal(t *testing.T) {
	midnight := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		query      string
		wantPeriod string
		wantStart  time.Time
		wantEnd    time.Time
	}{
		{"how many tasks today", PeriodToday, midnight, midnight.AddDate(0, 0, 1)},
		{"sessions yesterday", PeriodYesterday, midnight.AddDate(0, 0, -1), midnight},
		{"this week summary", PeriodWeek, anchor.AddDate(0, 0, -7), anchor},
		{"last 2 weeks of work", PeriodTwoWeeks, anchor.AddDate(0, 0, -14), anchor},
		{"productivity this month", PeriodMonth, anchor.AddDate(0, 0, -30), anchor},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := extractTemporal(tt.query, anchor)
			if got == nil {
				t.Fatal("expected temporal range, got nil")
			}
			if got.Period != tt.wantPeriod {
				t.Errorf("Period = %s, want %s", got.Period, tt.wantPeriod)
			}
			if !got.Start.Equal(tt.wantStart) {
				t.Errorf("Start = %v, want %v", got.Start, tt.wantStart)
			}
			if !got.End.Equal(tt.wantEnd) {
				t.Errorf("End = %v, want %v", got.End, tt.wantEnd)
			}
			if !got.Start.Before(got.End) {
				t.Error("range must be half-open with Start < End")
			}
		})
	}
}

func TestExtractTemporal_NoPeriod(t *testing.T) {
	if got := extractTemporal("list all tasks", anchor); got != nil {
		t.Errorf("expected nil temporal, got %+v", got)
	}
}

func TestHash_HourBucketing(t *testing.T) {
	c := New()

	// Two classifications within the same hour share a hash.
	a := c.Classify("sessions this week", time.Date(2025, 6, 16, 14, 5, 0, 0, time.UTC))
	b := c.Classify("sessions this week", time.Date(2025, 6, 16, 14, 55, 0, 0, time.UTC))
	if a.Hash() != b.Hash() {
		t.Error("same-hour temporal classifications should share a hash")
	}

	// A different hour changes the hash.
	d := c.Classify("sessions this week", time.Date(2025, 6, 16, 16, 5, 0, 0, time.UTC))
	if a.Hash() == d.Hash() {
		t.Error("different-hour temporal classifications should not share a hash")
	}
}

func BenchmarkClassify(b *testing.B) {
	c := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Classify("How many incomplete tasks in project Alpha this week?", anchor)
	}
}
