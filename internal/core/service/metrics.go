package service

import (
	"log"
	"sync"
	"time"
)

// Outcome classifies one processed payment event for the collector.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeDuplicate
)

// MetricsSnapshot is a point-in-time view of the rolling counters.
type MetricsSnapshot struct {
	Processed  uint64
	Succeeded  uint64
	Failed     uint64
	Duplicates uint64
	AvgLatency time.Duration
}

// MetricsCollector keeps rolling counters and a bounded sliding window of
// latencies. Every emitEvery processed events it writes a summary line to the
// logger.
type MetricsCollector struct {
	mu         sync.Mutex
	processed  uint64
	succeeded  uint64
	failed     uint64
	duplicates uint64
	window     []time.Duration
	next       int
	filled     int
	emitEvery  uint64
	logger     *log.Logger
}

// NewMetricsCollector creates a collector with the given latency window size
// and emit interval.
func NewMetricsCollector(windowSize, emitEvery int, logger *log.Logger) *MetricsCollector {
	if windowSize <= 0 {
		windowSize = 100
	}
	if emitEvery <= 0 {
		emitEvery = 50
	}
	if logger == nil {
		logger = log.Default()
	}
	return &MetricsCollector{
		window:    make([]time.Duration, windowSize),
		emitEvery: uint64(emitEvery),
		logger:    logger,
	}
}

// Observe records one processed event and its latency.
func (c *MetricsCollector) Observe(outcome Outcome, latency time.Duration) {
	c.mu.Lock()
	c.processed++
	switch outcome {
	case OutcomeSuccess:
		c.succeeded++
	case OutcomeFailure:
		c.failed++
	case OutcomeDuplicate:
		c.duplicates++
	}
	c.window[c.next] = latency
	c.next = (c.next + 1) % len(c.window)
	if c.filled < len(c.window) {
		c.filled++
	}
	emit := c.processed%c.emitEvery == 0
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if emit {
		c.logger.Printf("payment metrics: processed=%d succeeded=%d failed=%d duplicates=%d avg_latency=%s",
			snap.Processed, snap.Succeeded, snap.Failed, snap.Duplicates, snap.AvgLatency)
	}
}

// Snapshot returns the current counters and running average latency.
func (c *MetricsCollector) Snapshot() MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *MetricsCollector) snapshotLocked() MetricsSnapshot {
	snap := MetricsSnapshot{
		Processed:  c.processed,
		Succeeded:  c.succeeded,
		Failed:     c.failed,
		Duplicates: c.duplicates,
	}
	if c.filled > 0 {
		var sum time.Duration
		for i := 0; i < c.filled; i++ {
			sum += c.window[i]
		}
		snap.AvgLatency = sum / time.Duration(c.filled)
	}
	return snap
}
