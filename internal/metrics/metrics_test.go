package metrics

import (
	"fmt"
	"math"
	"testing"
	"time"
)

func TestEMA_Seeding(t *testing.T) {
	ema := NewEMA(0.1)

	if ema.Value() != 0 {
		t.Errorf("unseeded EMA = %f, want 0", ema.Value())
	}

	ema.Observe(100)
	if ema.Value() != 100 {
		t.Errorf("first observation should seed directly, got %f", ema.Value())
	}
}

func TestEMA_Smoothing(t *testing.T) {
	ema := NewEMA(0.1)
	ema.Observe(100)
	ema.Observe(200)

	// 0.1*200 + 0.9*100 = 110
	if math.Abs(ema.Value()-110) > 1e-9 {
		t.Errorf("EMA = %f, want 110", ema.Value())
	}

	ema.Observe(110)
	if math.Abs(ema.Value()-110) > 1e-9 {
		t.Errorf("EMA at steady state = %f, want 110", ema.Value())
	}
}

func TestEMA_InvalidSmoothingDefaults(t *testing.T) {
	for _, s := range []float64{0, -1, 1.5} {
		ema := NewEMA(s)
		if ema.smoothing != 0.1 {
			t.Errorf("NewEMA(%f).smoothing = %f, want 0.1", s, ema.smoothing)
		}
	}
}

func TestCounter(t *testing.T) {
	c := NewCounter("test_total", "help", nil)
	c.Inc()
	c.Add(5)
	c.Add(-3) // ignored

	if c.Value() != 6 {
		t.Errorf("Value() = %d, want 6", c.Value())
	}
}

func TestCounterVec(t *testing.T) {
	cv := NewCounterVec("calls_total", "help", []string{"backend"})

	cv.WithLabels("exact").Inc()
	cv.WithLabels("exact").Inc()
	cv.WithLabels("semantic").Inc()

	if got := cv.WithLabels("exact").Value(); got != 2 {
		t.Errorf("exact = %d, want 2", got)
	}
	if got := cv.WithLabels("semantic").Value(); got != 1 {
		t.Errorf("semantic = %d, want 1", got)
	}
	if len(cv.GetAll()) != 2 {
		t.Errorf("GetAll() = %d counters, want 2", len(cv.GetAll()))
	}
}

func TestMetrics_RecordQuery(t *testing.T) {
	m := New(0.1)

	m.RecordQuery(100*time.Millisecond, false)
	m.RecordQuery(200*time.Millisecond, true)

	if m.Queries.Value() != 2 {
		t.Errorf("Queries = %d, want 2", m.Queries.Value())
	}
	if m.QueryErrors.Value() != 1 {
		t.Errorf("QueryErrors = %d, want 1", m.QueryErrors.Value())
	}

	// Latency seeded at 100, then 0.1*200 + 0.9*100 = 110
	if math.Abs(m.LatencyEMA.Value()-110) > 1e-9 {
		t.Errorf("LatencyEMA = %f, want 110", m.LatencyEMA.Value())
	}
	// Error rate seeded at 0, then 0.1*1 + 0.9*0 = 0.1
	if math.Abs(m.ErrorRateEMA.Value()-0.1) > 1e-9 {
		t.Errorf("ErrorRateEMA = %f, want 0.1", m.ErrorRateEMA.Value())
	}
}

func TestMetrics_Snapshot(t *testing.T) {
	m := New(0.1)

	m.RecordQuery(50*time.Millisecond, false)
	m.CacheHits.Inc()
	m.BackendCalls.WithLabels("exact").Inc()
	m.BackendFailures.WithLabels("semantic").Inc()

	snap := m.Snapshot()
	if snap.Queries != 1 || snap.CacheHits != 1 {
		t.Errorf("snapshot counters: %+v", snap)
	}
	if snap.BackendCalls["exact"] != 1 {
		t.Errorf("BackendCalls[exact] = %d, want 1", snap.BackendCalls["exact"])
	}
	if snap.BackendFailures["semantic"] != 1 {
		t.Errorf("BackendFailures[semantic] = %d, want 1", snap.BackendFailures["semantic"])
	}
}

func TestMetrics_RecordBusPublish(t *testing.T) {
	m := New(0.1)

	m.RecordBusPublish("insights.query.answered", 5, nil)
	m.RecordBusPublish("insights.query.answered", 5, fmt.Errorf("kafka down"))

	if got := m.BusEventsPublished.WithLabels("insights.query.answered").Value(); got != 2 {
		t.Errorf("published = %d, want 2", got)
	}
	if got := m.BusErrors.WithLabels("insights.query.answered").Value(); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
}
