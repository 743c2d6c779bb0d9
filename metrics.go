package orca

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/procfs"
)

// processorMetrics instruments algorithm executions. Collectors are created
// per processor; MustRegisterMetrics attaches them to a registerer.
type processorMetrics struct {
	executions *prometheus.CounterVec
	active     prometheus.Gauge
	duration   prometheus.Histogram
}

func newProcessorMetrics(processorName string) *processorMetrics {
	labels := prometheus.Labels{"processor": processorName}
	return &processorMetrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "orca",
			Subsystem:   "processor",
			Name:        "algorithm_executions_total",
			Help:        "Algorithm executions by result status.",
			ConstLabels: labels,
		}, []string{"status"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "orca",
			Subsystem:   "processor",
			Name:        "active_executions",
			Help:        "Algorithm executions currently in flight.",
			ConstLabels: labels,
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "orca",
			Subsystem:   "processor",
			Name:        "algorithm_duration_seconds",
			Help:        "Wall-clock duration of algorithm executions.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
}

func (m *processorMetrics) observe(status ResultStatus, elapsed time.Duration) {
	m.executions.WithLabelValues(string(status)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// MustRegisterMetrics registers the processor's Prometheus collectors on reg.
// Panics if a collector is already registered, matching the client library's
// MustRegister convention.
func (p *Processor) MustRegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(p.metrics.executions, p.metrics.active, p.metrics.duration)
}

// liveMetrics snapshots the figures reported by HealthCheck.
func (p *Processor) liveMetrics() ProcessorMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	uptime := p.clock().Sub(p.startedAt)
	return ProcessorMetrics{
		ActiveTasks:   p.activeTasks.Load(),
		MemoryBytes:   ms.Alloc,
		CPUPercent:    cpuPercent(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
	}
}

// cpuPercent reports the process's average CPU utilization over its lifetime,
// read from procfs. Returns 0 where procfs is unavailable.
func cpuPercent(uptime time.Duration) float64 {
	if uptime <= 0 {
		return 0
	}
	proc, err := procfs.Self()
	if err != nil {
		return 0
	}
	stat, err := proc.Stat()
	if err != nil {
		return 0
	}
	return stat.CPUTime() / uptime.Seconds() * 100
}
