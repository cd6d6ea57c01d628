package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/hodei/pipelines/pkg/pool"
	"github.com/hodei/pipelines/pkg/types"
)

// staleUtilizationGrace bounds how old a cached pool.Utilization snapshot
// may be before a PoolStrategy stops trusting it. A pool the Registry
// hasn't sampled recently is treated as fully loaded rather than favored
// by a stale zero-load reading.
const staleUtilizationGrace = 30 * time.Second

// poolUtilLookup is the subset of *pool.Registry the pool placement
// strategies consult; *pool.Registry satisfies it.
type poolUtilLookup interface {
	Utilization(poolName string) (pool.Utilization, bool)
}

// PoolStrategy picks one ResourcePool from a set of candidates that already
// passed provider-health and label-selector filtering. candidates is never
// empty when SelectPool is called.
type PoolStrategy interface {
	Name() string
	SelectPool(candidates []*types.ResourcePool, job *types.Job, util poolUtilLookup) *types.ResourcePool
}

// PoolStrategyByName resolves a pool placement strategy by configuration
// name, defaulting to round-robin when name is unrecognized or empty.
func PoolStrategyByName(name string) PoolStrategy {
	switch name {
	case "least-loaded":
		return &LeastLoadedPoolStrategy{}
	case "greedy-best-fit":
		return GreedyBestFitPoolStrategy{}
	case "bin-packing":
		return BinPackingPoolStrategy{}
	default:
		return NewRoundRobinPoolStrategy()
	}
}

// sortedByName returns a copy of pools ordered lexically by Name, giving
// every strategy a deterministic tie-break.
func sortedByName(pools []*types.ResourcePool) []*types.ResourcePool {
	out := make([]*types.ResourcePool, len(pools))
	copy(out, pools)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// loadOf returns p's cached utilization, or a fully-loaded reading if the
// Registry has no snapshot yet or the snapshot is older than
// staleUtilizationGrace.
func loadOf(p *types.ResourcePool, util poolUtilLookup) pool.Utilization {
	u, ok := util.Utilization(p.Name)
	if !ok || time.Since(u.Timestamp) > staleUtilizationGrace {
		return pool.Utilization{CPUPercent: 100, MemPercent: 100, ActiveInstances: p.MaxWorkers}
	}
	return u
}

// weightedLoad scores a pool per spec.md's Least Loaded weighting:
// cpuPct + memPct + activeWorkers/maxWorkers, each term contributing on a
// roughly 0-1 scale so no single dimension dominates.
func weightedLoad(p *types.ResourcePool, util poolUtilLookup) float64 {
	u := loadOf(p, util)
	var activeRatio float64
	if p.MaxWorkers > 0 {
		activeRatio = float64(u.ActiveInstances) / float64(p.MaxWorkers)
	}
	return u.CPUPercent/100 + u.MemPercent/100 + activeRatio
}

// RoundRobinPoolStrategy cycles through candidate pools in lexical name
// order, advancing a shared cursor on every SelectPool call.
type RoundRobinPoolStrategy struct {
	mu     sync.Mutex
	cursor int
}

// NewRoundRobinPoolStrategy creates a RoundRobinPoolStrategy with a fresh
// cursor.
func NewRoundRobinPoolStrategy() *RoundRobinPoolStrategy {
	return &RoundRobinPoolStrategy{}
}

func (s *RoundRobinPoolStrategy) Name() string { return "round-robin" }

func (s *RoundRobinPoolStrategy) SelectPool(candidates []*types.ResourcePool, job *types.Job, util poolUtilLookup) *types.ResourcePool {
	ordered := sortedByName(candidates)

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.cursor % len(ordered)
	s.cursor++
	return ordered[idx]
}

// LeastLoadedPoolStrategy picks the pool with the lowest weighted
// cpuPct+memPct+activeWorkers/maxWorkers score.
type LeastLoadedPoolStrategy struct{}

func (LeastLoadedPoolStrategy) Name() string { return "least-loaded" }

func (LeastLoadedPoolStrategy) SelectPool(candidates []*types.ResourcePool, job *types.Job, util poolUtilLookup) *types.ResourcePool {
	ordered := sortedByName(candidates)
	best := ordered[0]
	bestScore := weightedLoad(best, util)
	for _, p := range ordered[1:] {
		if score := weightedLoad(p, util); score < bestScore {
			best, bestScore = p, score
		}
	}
	return best
}

// GreedyBestFitPoolStrategy picks the pool with the fewest free worker
// slots that still has at least one, packing new jobs onto the pool that
// is already closest to full rather than spreading them out.
type GreedyBestFitPoolStrategy struct{}

func (GreedyBestFitPoolStrategy) Name() string { return "greedy-best-fit" }

func (GreedyBestFitPoolStrategy) SelectPool(candidates []*types.ResourcePool, job *types.Job, util poolUtilLookup) *types.ResourcePool {
	ordered := sortedByName(candidates)
	var best *types.ResourcePool
	bestFree := -1
	for _, p := range ordered {
		u := loadOf(p, util)
		free := p.MaxWorkers - u.ActiveInstances
		if p.MaxWorkers > 0 && free <= 0 {
			continue
		}
		if best == nil || free < bestFree {
			best, bestFree = p, free
		}
	}
	if best == nil {
		return ordered[0]
	}
	return best
}

// BinPackingPoolStrategy consolidates load onto the pool with the highest
// utilization that still has headroom, so lightly loaded pools stay idle
// and reclaimable.
type BinPackingPoolStrategy struct{}

func (BinPackingPoolStrategy) Name() string { return "bin-packing" }

func (BinPackingPoolStrategy) SelectPool(candidates []*types.ResourcePool, job *types.Job, util poolUtilLookup) *types.ResourcePool {
	ordered := sortedByName(candidates)
	var best *types.ResourcePool
	bestScore := -1.0
	for _, p := range ordered {
		u := loadOf(p, util)
		if p.MaxWorkers > 0 && u.ActiveInstances >= p.MaxWorkers {
			continue
		}
		if score := weightedLoad(p, util); score > bestScore {
			best, bestScore = p, score
		}
	}
	if best == nil {
		return ordered[0]
	}
	return best
}
