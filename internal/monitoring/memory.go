package monitoring

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// MemorySampler periodically copies runtime and host memory statistics into Metrics
type MemorySampler struct {
	metrics  *Metrics
	logger   *Logger
	interval time.Duration
}

// NewMemorySampler creates a sampler; a non-positive interval defaults to 15s
func NewMemorySampler(metrics *Metrics, logger *Logger, interval time.Duration) *MemorySampler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &MemorySampler{
		metrics:  metrics,
		logger:   logger,
		interval: interval,
	}
}

// Run samples until ctx is cancelled
func (s *MemorySampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("Starting memory sampling", "interval_ms", s.interval.Milliseconds())
	s.Sample()

	for {
		select {
		case <-ticker.C:
			s.Sample()
		case <-ctx.Done():
			slog.Info("Memory sampling stopped")
			return
		}
	}
}

// Sample reads runtime and host statistics once. Host readings that fail
// (unsupported platform, restricted /proc) keep their previous values.
func (s *MemorySampler) Sample() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s.metrics.RecordGCMetrics(
		int64(memStats.NumGC),
		int64(memStats.PauseTotalNs),
		int64(memStats.HeapAlloc),
		int64(memStats.HeapSys),
		int64(runtime.NumGoroutine()),
	)

	s.logger.Debug("Memory sample",
		"heap_alloc_mb", memStats.HeapAlloc/(1024*1024),
		"heap_sys_mb", memStats.HeapSys/(1024*1024),
		"num_gc", memStats.NumGC,
	)

	s.sampleHost()
}

func (s *MemorySampler) sampleHost() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		s.logger.Debug("Host memory unavailable", "error", err)
		return
	}
	avg, err := load.Avg()
	if err != nil {
		s.logger.Debug("Load average unavailable", "error", err)
		s.metrics.RecordSystemMetrics(vm.UsedPercent, 0)
		return
	}
	s.metrics.RecordSystemMetrics(vm.UsedPercent, avg.Load1)
}
