package monitoring

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZanzyTHEbar/trunkstat/internal/analysis"
)

// maxResponseSamples bounds the latency window
const maxResponseSamples = 1000

// Metrics holds service counters and a sliding window of response times
type Metrics struct {
	RequestCount    int64
	ErrorCount      int64
	BoxplotCount    int64
	TrendCount      int64
	RemovedSamples  int64
	RateLimitBlocks int64
	StartTime       time.Time

	// Response times in milliseconds, oldest first
	ResponseTimes      []float64
	ResponseTimesMutex sync.RWMutex

	// Status code tracking
	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex

	// Memory and system metrics
	GCCount        int64
	GCPauseTotalNs int64
	HeapAlloc      int64
	HeapSys        int64
	Goroutines     int64

	// Host metrics; zero until the first successful sample
	SystemMemoryUsedPercent float64
	SystemLoad1             float64
	SystemMutex             sync.RWMutex
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:            time.Now(),
		ResponseTimes:        make([]float64, 0, maxResponseSamples),
		RequestCountByStatus: make(map[int]int64),
	}
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// RecordBoxplot counts a boxplot computation and the samples it eliminated
func (m *Metrics) RecordBoxplot(removed int) {
	atomic.AddInt64(&m.BoxplotCount, 1)
	atomic.AddInt64(&m.RemovedSamples, int64(removed))
}

// RecordTrend counts a regression fit
func (m *Metrics) RecordTrend() {
	atomic.AddInt64(&m.TrendCount, 1)
}

// IncrementRateLimitBlock counts a rejected request
func (m *Metrics) IncrementRateLimitBlock() {
	atomic.AddInt64(&m.RateLimitBlocks, 1)
}

// RecordResponseTime stores a response time, keeping the last maxResponseSamples
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	ms := float64(duration.Nanoseconds()) / float64(time.Millisecond)

	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = append(m.ResponseTimes, ms)
	if len(m.ResponseTimes) > maxResponseSamples {
		m.ResponseTimes = m.ResponseTimes[1:]
	}
	m.ResponseTimesMutex.Unlock()
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	defer m.StatusMutex.Unlock()
	m.RequestCountByStatus[statusCode]++
}

// RecordGCMetrics records Go garbage collector metrics
func (m *Metrics) RecordGCMetrics(gcCount, gcPauseTotalNs, heapAlloc, heapSys, goroutines int64) {
	atomic.StoreInt64(&m.GCCount, gcCount)
	atomic.StoreInt64(&m.GCPauseTotalNs, gcPauseTotalNs)
	atomic.StoreInt64(&m.HeapAlloc, heapAlloc)
	atomic.StoreInt64(&m.HeapSys, heapSys)
	atomic.StoreInt64(&m.Goroutines, goroutines)
}

// latencyEstimator snapshots the window into a sample estimator, or nil when empty
// RecordSystemMetrics stores host memory usage and the one-minute load average
func (m *Metrics) RecordSystemMetrics(memoryUsedPercent, load1 float64) {
	m.SystemMutex.Lock()
	defer m.SystemMutex.Unlock()
	m.SystemMemoryUsedPercent = memoryUsedPercent
	m.SystemLoad1 = load1
}

func (m *Metrics) latencyEstimator() *analysis.QuantileEstimator[float64] {
	m.ResponseTimesMutex.RLock()
	window := make([]float64, len(m.ResponseTimes))
	copy(window, m.ResponseTimes)
	m.ResponseTimesMutex.RUnlock()

	e, err := analysis.NewQuantileEstimator(window, true)
	if err != nil {
		return nil
	}
	return e
}

// GetPercentileResponseTime returns the percentile (0-100) response time in milliseconds
func (m *Metrics) GetPercentileResponseTime(percentile float64) float64 {
	e := m.latencyEstimator()
	if e == nil {
		return 0
	}
	return e.Quantile(percentile / 100)
}

// GetLatencyBoxPlot returns the Tukey boxplot of the response time window
func (m *Metrics) GetLatencyBoxPlot() []float64 {
	e := m.latencyEstimator()
	if e == nil {
		return []float64{}
	}
	box := e.TukeyBoxPlot()
	return box[:]
}

// GetStatusCodeDistribution returns request count by status code
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.StatusMutex.RLock()
	defer m.StatusMutex.RUnlock()

	distribution := make(map[int]int64, len(m.RequestCountByStatus))
	for code, count := range m.RequestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	heapAlloc := atomic.LoadInt64(&m.HeapAlloc)
	heapSys := atomic.LoadInt64(&m.HeapSys)
	heapUsage := float64(0)
	if heapSys > 0 {
		heapUsage = float64(heapAlloc) / float64(heapSys) * 100
	}

	stats := map[string]interface{}{
		"uptime_seconds":     time.Since(m.StartTime).Seconds(),
		"total_requests":     requests,
		"error_count":        errors,
		"error_rate_percent": errorRate,
		"boxplot_count":      atomic.LoadInt64(&m.BoxplotCount),
		"trend_count":        atomic.LoadInt64(&m.TrendCount),
		"removed_samples":    atomic.LoadInt64(&m.RemovedSamples),
		"rate_limit_blocks":  atomic.LoadInt64(&m.RateLimitBlocks),
		"start_time":         m.StartTime.Format(time.RFC3339),

		"latency_boxplot_ms":       m.GetLatencyBoxPlot(),
		"status_code_distribution": m.GetStatusCodeDistribution(),

		// System metrics
		"go_gc_count":           atomic.LoadInt64(&m.GCCount),
		"go_gc_pause_total_ns":  atomic.LoadInt64(&m.GCPauseTotalNs),
		"go_heap_alloc_bytes":   heapAlloc,
		"go_heap_sys_bytes":     heapSys,
		"go_heap_usage_percent": heapUsage,
		"go_goroutines":         atomic.LoadInt64(&m.Goroutines),
	}

	m.SystemMutex.RLock()
	stats["system_memory_used_percent"] = m.SystemMemoryUsedPercent
	stats["system_load1"] = m.SystemLoad1
	m.SystemMutex.RUnlock()

	if e := m.latencyEstimator(); e != nil {
		stats["avg_response_time_ms"] = e.Avg()
		stats["p50_response_time_ms"] = e.Quantile(0.50)
		stats["p95_response_time_ms"] = e.Quantile(0.95)
		stats["p99_response_time_ms"] = e.Quantile(0.99)
	}

	return stats
}

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	atomic.StoreInt64(&m.RequestCount, 0)
	atomic.StoreInt64(&m.ErrorCount, 0)
	atomic.StoreInt64(&m.BoxplotCount, 0)
	atomic.StoreInt64(&m.TrendCount, 0)
	atomic.StoreInt64(&m.RemovedSamples, 0)
	atomic.StoreInt64(&m.RateLimitBlocks, 0)
	atomic.StoreInt64(&m.GCCount, 0)
	atomic.StoreInt64(&m.GCPauseTotalNs, 0)
	atomic.StoreInt64(&m.HeapAlloc, 0)
	atomic.StoreInt64(&m.HeapSys, 0)
	atomic.StoreInt64(&m.Goroutines, 0)
	m.RecordSystemMetrics(0, 0)

	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = m.ResponseTimes[:0]
	m.ResponseTimesMutex.Unlock()

	m.StatusMutex.Lock()
	m.RequestCountByStatus = make(map[int]int64)
	m.StatusMutex.Unlock()

	m.StartTime = time.Now()
}
