// internal/utils/metrics.go
package utils

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects application metrics
type MetricsCollector struct {
	counters   map[string]*Counter
	histograms map[string]*Histogram

	mu sync.RWMutex
}

// Counter metric - using atomic operations for thread-safe value updates
type Counter struct {
	name  string
	value int64
}

// Histogram metric (simple implementation tracking count, sum, min, max)
type Histogram struct {
	name  string
	count int64
	sum   int64
	min   int64
	max   int64
	mu    sync.Mutex
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// GetMetricsCollector returns the global metrics collector
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = &MetricsCollector{
			counters:   make(map[string]*Counter),
			histograms: make(map[string]*Histogram),
		}
	})
	return globalMetrics
}

// IncrementCounter increments a counter metric
func (m *MetricsCollector) IncrementCounter(name string) {
	m.AddCounter(name, 1)
}

// AddCounter adds a value to a counter metric
func (m *MetricsCollector) AddCounter(name string, value int64) {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if exists {
		atomic.AddInt64(&counter.value, value)
		return
	}

	m.mu.Lock()
	counter, exists = m.counters[name]
	if !exists {
		counter = &Counter{name: name}
		m.counters[name] = counter
	}
	m.mu.Unlock()

	atomic.AddInt64(&counter.value, value)
}

// GetCounterValue returns the current value of a counter
func (m *MetricsCollector) GetCounterValue(name string) int64 {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		return 0
	}
	return atomic.LoadInt64(&counter.value)
}

// RecordHistogram records a value in a histogram metric
func (m *MetricsCollector) RecordHistogram(name string, value int64) {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		histogram, exists = m.histograms[name]
		if !exists {
			histogram = &Histogram{name: name, min: value, max: value}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.mu.Lock()
	defer histogram.mu.Unlock()

	histogram.count++
	histogram.sum += value
	if value < histogram.min {
		histogram.min = value
	}
	if value > histogram.max {
		histogram.max = value
	}
}

// GetMetrics returns a snapshot of all metrics
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]interface{})

	for name, counter := range m.counters {
		snapshot[name] = atomic.LoadInt64(&counter.value)
	}

	for name, histogram := range m.histograms {
		histogram.mu.Lock()
		avg := int64(0)
		if histogram.count > 0 {
			avg = histogram.sum / histogram.count
		}
		snapshot[name] = map[string]int64{
			"count": histogram.count,
			"sum":   histogram.sum,
			"min":   histogram.min,
			"max":   histogram.max,
			"avg":   avg,
		}
		histogram.mu.Unlock()
	}

	return snapshot
}

// ExtractionMetrics provides helpers for the extraction pipeline metrics
type ExtractionMetrics struct {
	collector *MetricsCollector
}

// NewExtractionMetrics creates extraction pipeline metrics helpers
func NewExtractionMetrics() *ExtractionMetrics {
	return &ExtractionMetrics{collector: GetMetricsCollector()}
}

// RecordExtraction records a completed extraction with its term/dropped counts
func (em *ExtractionMetrics) RecordExtraction(terms, dropped int, duration time.Duration) {
	em.collector.IncrementCounter("extraction.requests.total")
	em.collector.AddCounter("extraction.terms.total", int64(terms))
	em.collector.AddCounter("extraction.dropped.total", int64(dropped))
	em.collector.RecordHistogram("extraction.duration_ms", duration.Milliseconds())
}

// RecordLLMAttempts records the attempt count of a single logical LLM call
func (em *ExtractionMetrics) RecordLLMAttempts(attempts int) {
	em.collector.AddCounter("llm.attempts.total", int64(attempts))
	if attempts > 1 {
		em.collector.AddCounter("llm.retries.total", int64(attempts-1))
	}
}

// RecordError records a classified pipeline error
func (em *ExtractionMetrics) RecordError(errorType string) {
	em.collector.IncrementCounter("extraction.errors." + errorType)
}
