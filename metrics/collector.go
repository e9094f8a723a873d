// Package metrics exports logger statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/neehar-mavuduru/swaplog/asynclogger"
)

// StatsSource is anything that can produce a statistics snapshot.
// *asynclogger.Logger implements it.
type StatsSource interface {
	Stats() asynclogger.Stats
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(asynclogger.Stats) int64
}

// Collector reads a fresh snapshot on every scrape, so nothing has to be
// updated from the logging path.
type Collector struct {
	src      StatsSource
	counters []counterDesc
	pending  *prometheus.Desc
}

// NewCollector creates a collector for src. Register it with a
// prometheus.Registerer.
func NewCollector(src StatsSource, namespace string) *Collector {
	counter := func(name, help string, value func(asynclogger.Stats) int64) counterDesc {
		return counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "logger", name), help, nil, nil),
			value: value,
		}
	}

	return &Collector{
		src: src,
		counters: []counterDesc{
			counter("logs_total", "Log lines accepted past the level filter.",
				func(s asynclogger.Stats) int64 { return s.TotalLogs }),
			counter("logs_dropped_total", "Log lines dropped because the logger was closing.",
				func(s asynclogger.Stats) int64 { return s.DroppedLogs }),
			counter("logs_truncated_total", "Log lines cut to the maximum line size.",
				func(s asynclogger.Stats) int64 { return s.TruncatedLogs }),
			counter("bytes_written_total", "Bytes written to the log file.",
				func(s asynclogger.Stats) int64 { return s.BytesWritten }),
			counter("bytes_dropped_total", "Bytes lost to open or write failures.",
				func(s asynclogger.Stats) int64 { return s.DroppedBytes }),
			counter("drain_cycles_total", "Writer cycles that wrote buffers to the file.",
				func(s asynclogger.Stats) int64 { return s.DrainCycles }),
			counter("write_errors_total", "Failed write or sync calls.",
				func(s asynclogger.Stats) int64 { return s.WriteErrors }),
			counter("rotations_total", "Log file rotations.",
				func(s asynclogger.Stats) int64 { return s.Rotations }),
			counter("rotation_errors_total", "Rotations with a failed rename or reopen.",
				func(s asynclogger.Stats) int64 { return s.RotationErrors }),
			counter("buffer_swaps_total", "Active buffers handed to the writer.",
				func(s asynclogger.Stats) int64 { return s.BufferSwaps }),
			counter("buffers_allocated_total", "Buffers allocated.",
				func(s asynclogger.Stats) int64 { return s.BuffersAllocated }),
		},
		pending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "logger", "pending_buffers"),
			"Buffers waiting for the writer.", nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	ch <- c.pending
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	for _, cd := range c.counters {
		ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(cd.value(s)))
	}
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(s.PendingBuffers))
}
