package scheduler

import (
	"math/rand"

	"github.com/hodei/pipelines/pkg/types"
)

// Strategy picks one Worker from a set of candidates that all satisfy a
// Job's WorkerRequirements. Candidates is never empty when Select is called.
type Strategy interface {
	Name() string
	Select(candidates []*types.Worker) *types.Worker
}

// StrategyByName resolves a placement strategy by its configuration name,
// defaulting to spread when name is unrecognized or empty.
func StrategyByName(name string) Strategy {
	switch name {
	case "binpack":
		return BinPackStrategy{}
	case "random":
		return RandomStrategy{}
	default:
		return SpreadStrategy{}
	}
}

// BinPackStrategy favors the worker with the LEAST available capacity that
// still fits, packing jobs tightly onto fewer workers so idle ones can be
// reclaimed (useful for ephemeral pools billed per-instance).
type BinPackStrategy struct{}

func (BinPackStrategy) Name() string { return "binpack" }

func (BinPackStrategy) Select(candidates []*types.Worker) *types.Worker {
	var best *types.Worker
	var bestAvail int64
	for _, w := range candidates {
		avail := w.Capacity.Available()
		score := avail.CPUMillis + avail.MemoryBytes/(1<<20)
		if best == nil || score < bestAvail {
			best = w
			bestAvail = score
		}
	}
	return best
}

// SpreadStrategy favors the worker with the MOST available capacity,
// balancing load evenly. Grounded on the teacher's selectNode, which picked
// the node with the fewest existing containers.
type SpreadStrategy struct{}

func (SpreadStrategy) Name() string { return "spread" }

func (SpreadStrategy) Select(candidates []*types.Worker) *types.Worker {
	var best *types.Worker
	var bestAvail int64 = -1
	for _, w := range candidates {
		avail := w.Capacity.Available()
		score := avail.CPUMillis + avail.MemoryBytes/(1<<20)
		if score > bestAvail {
			best = w
			bestAvail = score
		}
	}
	return best
}

// RandomStrategy picks uniformly among candidates, useful for test harnesses
// and for pools where every worker is identical.
type RandomStrategy struct{}

func (RandomStrategy) Name() string { return "random" }

func (RandomStrategy) Select(candidates []*types.Worker) *types.Worker {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rand.Intn(len(candidates))]
}

// MatchesLabels reports whether workerLabels contains every key/value pair
// in required (nil/empty required matches anything). pkg/engine uses this
// to pick a worker within the pool pkg/scheduler already assigned a job to.
func MatchesLabels(workerLabels, required map[string]string) bool {
	for k, v := range required {
		if workerLabels[k] != v {
			return false
		}
	}
	return true
}
