package metrics

import (
	"slices"
	"sync"
	"time"

	"github.com/glimte/proxymachine-go/interceptors"
)

const maxSamples = 100

// SimpleMetricsCollector is an in-memory interceptors.MetricsCollector
type SimpleMetricsCollector struct {
	mu sync.RWMutex

	callCounts  map[string]int64
	errorCounts map[string]map[string]int64
	durations   map[string]*TimeStats
}

var _ interceptors.MetricsCollector = (*SimpleMetricsCollector)(nil)

// TimeStats tracks timing statistics of one method
type TimeStats struct {
	Count   int64
	Total   time.Duration
	Min     time.Duration
	Max     time.Duration
	samples []time.Duration // last maxSamples durations, oldest first
}

// NewSimpleMetricsCollector creates a new in-memory metrics collector
func NewSimpleMetricsCollector() *SimpleMetricsCollector {
	return &SimpleMetricsCollector{
		callCounts:  make(map[string]int64),
		errorCounts: make(map[string]map[string]int64),
		durations:   make(map[string]*TimeStats),
	}
}

// IncrementCallCount implements interceptors.MetricsCollector
func (c *SimpleMetricsCollector) IncrementCallCount(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callCounts[method]++
}

// RecordCallDuration implements interceptors.MetricsCollector
func (c *SimpleMetricsCollector) RecordCallDuration(method string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, exists := c.durations[method]
	if !exists {
		stats = &TimeStats{
			Min:     duration,
			Max:     duration,
			samples: make([]time.Duration, 0, maxSamples),
		}
		c.durations[method] = stats
	}

	stats.Count++
	stats.Total += duration
	if duration < stats.Min {
		stats.Min = duration
	}
	if duration > stats.Max {
		stats.Max = duration
	}

	if len(stats.samples) >= maxSamples {
		stats.samples = stats.samples[1:]
	}
	stats.samples = append(stats.samples, duration)
}

// IncrementErrorCount implements interceptors.MetricsCollector
func (c *SimpleMetricsCollector) IncrementErrorCount(method string, errorType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.errorCounts[method] == nil {
		c.errorCounts[method] = make(map[string]int64)
	}
	c.errorCounts[method][errorType]++
}

// Summary is a snapshot of everything a SimpleMetricsCollector recorded
type Summary struct {
	CallCounts  map[string]int64            `json:"call_counts"`
	ErrorCounts map[string]map[string]int64 `json:"error_counts"`
	Durations   map[string]DurationStats    `json:"durations"`
}

// DurationStats summarizes the durations recorded for one method
type DurationStats struct {
	Count int64         `json:"count"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// Summary returns a copy of all collected metrics
func (c *SimpleMetricsCollector) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := Summary{
		CallCounts:  make(map[string]int64, len(c.callCounts)),
		ErrorCounts: make(map[string]map[string]int64, len(c.errorCounts)),
		Durations:   make(map[string]DurationStats, len(c.durations)),
	}

	for method, count := range c.callCounts {
		summary.CallCounts[method] = count
	}

	for method, errs := range c.errorCounts {
		summary.ErrorCounts[method] = make(map[string]int64, len(errs))
		for errorType, count := range errs {
			summary.ErrorCounts[method][errorType] = count
		}
	}

	for method, stats := range c.durations {
		ds := DurationStats{
			Count: stats.Count,
			Min:   stats.Min,
			Max:   stats.Max,
		}
		if stats.Count > 0 {
			ds.Avg = stats.Total / time.Duration(stats.Count)
		}
		if len(stats.samples) > 0 {
			sorted := slices.Clone(stats.samples)
			slices.Sort(sorted)
			ds.P50 = percentile(sorted, 0.50)
			ds.P95 = percentile(sorted, 0.95)
			ds.P99 = percentile(sorted, 0.99)
		}
		summary.Durations[method] = ds
	}

	return summary
}

// CallCount returns the number of calls recorded for method
func (c *SimpleMetricsCollector) CallCount(method string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.callCounts[method]
}

// ErrorCount returns the number of failures of errorType recorded for method
func (c *SimpleMetricsCollector) ErrorCount(method, errorType string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errorCounts[method][errorType]
}

// Reset clears all collected metrics
func (c *SimpleMetricsCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.callCounts = make(map[string]int64)
	c.errorCounts = make(map[string]map[string]int64)
	c.durations = make(map[string]*TimeStats)
}

// percentile expects sorted samples
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}
