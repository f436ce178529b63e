package metrics

import (
	"sync"
	"time"
)

// Metrics holds the engine's performance counters and rolling averages.
type Metrics struct {
	// Query metrics
	Queries         *Counter
	QueryErrors     *Counter
	CacheHits       *Counter
	CacheMisses     *Counter
	FallbackAnswers *Counter

	// Backend metrics
	BackendCalls    *CounterVec // labels: backend
	BackendFailures *CounterVec // labels: backend
	BreakerOpens    *CounterVec // labels: backend

	// Cost metrics
	CostDenials *Counter

	// Bus metrics
	BusEventsPublished *CounterVec // labels: topic
	BusErrors          *CounterVec // labels: topic

	// Rolling averages
	LatencyEMA   *EMA // milliseconds
	ErrorRateEMA *EMA // 0-1 per query

	startTime time.Time
	mu        sync.RWMutex
}

// New creates a metrics instance with the given EMA smoothing factor.
func New(smoothing float64) *Metrics {
	return &Metrics{
		Queries:            NewCounter("insights_queries_total", "Total queries processed", nil),
		QueryErrors:        NewCounter("insights_query_errors_total", "Queries that produced no backend result", nil),
		CacheHits:          NewCounter("insights_cache_hits_total", "Answer cache hits", nil),
		CacheMisses:        NewCounter("insights_cache_misses_total", "Answer cache misses", nil),
		FallbackAnswers:    NewCounter("insights_fallback_answers_total", "Answers built from the deterministic fallback", nil),
		BackendCalls:       NewCounterVec("insights_backend_calls_total", "Backend calls attempted", []string{"backend"}),
		BackendFailures:    NewCounterVec("insights_backend_failures_total", "Backend calls that failed or timed out", []string{"backend"}),
		BreakerOpens:       NewCounterVec("insights_breaker_opens_total", "Circuit breaker open transitions", []string{"backend"}),
		CostDenials:        NewCounter("insights_cost_denials_total", "Model calls denied by the cost governor", nil),
		BusEventsPublished: NewCounterVec("insights_bus_events_total", "Telemetry events published", []string{"topic"}),
		BusErrors:          NewCounterVec("insights_bus_errors_total", "Telemetry publish failures", []string{"topic"}),
		LatencyEMA:         NewEMA(smoothing),
		ErrorRateEMA:       NewEMA(smoothing),
		startTime:          time.Now(),
	}
}

// RecordQuery folds one completed query into the counters and averages.
func (m *Metrics) RecordQuery(elapsed time.Duration, failed bool) {
	m.Queries.Inc()
	m.LatencyEMA.Observe(float64(elapsed.Milliseconds()))

	errVal := 0.0
	if failed {
		m.QueryErrors.Inc()
		errVal = 1.0
	}
	m.ErrorRateEMA.Observe(errVal)
}

// RecordBusPublish implements bus.MetricsRecorder.
func (m *Metrics) RecordBusPublish(topic string, latencyMs int64, err error) {
	m.BusEventsPublished.WithLabels(topic).Inc()
	if err != nil {
		m.BusErrors.WithLabels(topic).Inc()
	}
}

// Snapshot is a point-in-time view of the engine counters.
type Snapshot struct {
	Queries         int64            `json:"queries"`
	QueryErrors     int64            `json:"query_errors"`
	CacheHits       int64            `json:"cache_hits"`
	CacheMisses     int64            `json:"cache_misses"`
	FallbackAnswers int64            `json:"fallback_answers"`
	CostDenials     int64            `json:"cost_denials"`
	BackendCalls    map[string]int64 `json:"backend_calls"`
	BackendFailures map[string]int64 `json:"backend_failures"`
	AvgLatencyMs    float64          `json:"avg_latency_ms"`
	ErrorRate       float64          `json:"error_rate"`
	UptimeSeconds   int64            `json:"uptime_seconds"`
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{
		Queries:         m.Queries.Value(),
		QueryErrors:     m.QueryErrors.Value(),
		CacheHits:       m.CacheHits.Value(),
		CacheMisses:     m.CacheMisses.Value(),
		FallbackAnswers: m.FallbackAnswers.Value(),
		CostDenials:     m.CostDenials.Value(),
		BackendCalls:    vecValues(m.BackendCalls, "backend"),
		BackendFailures: vecValues(m.BackendFailures, "backend"),
		AvgLatencyMs:    m.LatencyEMA.Value(),
		ErrorRate:       m.ErrorRateEMA.Value(),
		UptimeSeconds:   int64(time.Since(m.startTime).Seconds()),
	}
}

func vecValues(cv *CounterVec, label string) map[string]int64 {
	result := make(map[string]int64)
	for _, c := range cv.GetAll() {
		result[c.Labels()[label]] = c.Value()
	}
	return result
}
