package metrics

import (
	"time"

	"github.com/hodei/pipelines/pkg/types"
)

// Snapshot is the subset of orchestrator state the Collector samples
// periodically; it is provided by whichever component owns the
// authoritative in-memory view (queue, registry) to avoid a metrics
// package import cycle back into pkg/orchestrator.
type Snapshot interface {
	QueuedJobs() []*types.Job
	Workers() []*types.Worker
}

// Collector periodically samples orchestrator state into gauges.
type Collector struct {
	snapshot Snapshot
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(snapshot Snapshot) *Collector {
	return &Collector{
		snapshot: snapshot,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectQueueMetrics()
	c.collectWorkerMetrics()
}

func (c *Collector) collectQueueMetrics() {
	jobs := c.snapshot.QueuedJobs()

	byPriority := make(map[string]int)
	byPhase := make(map[string]int)
	for _, j := range jobs {
		byPriority[priorityLabel(j.Priority)]++
		byPhase[string(j.Phase)]++
	}

	for p, n := range byPriority {
		JobsQueuedTotal.WithLabelValues(p).Set(float64(n))
	}
	for phase, n := range byPhase {
		JobsByPhase.WithLabelValues(phase).Set(float64(n))
	}
}

func (c *Collector) collectWorkerMetrics() {
	workers := c.snapshot.Workers()

	counts := make(map[string]map[string]int)
	for _, w := range workers {
		if counts[w.PoolName] == nil {
			counts[w.PoolName] = make(map[string]int)
		}
		counts[w.PoolName][string(w.Status)]++
	}

	for pool, statuses := range counts {
		for status, n := range statuses {
			WorkersTotal.WithLabelValues(pool, status).Set(float64(n))
		}
	}
}

func priorityLabel(p types.Priority) string {
	switch {
	case p >= types.PriorityCritical:
		return "critical"
	case p >= types.PriorityHigh:
		return "high"
	case p >= types.PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}
