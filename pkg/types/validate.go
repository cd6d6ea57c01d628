package types

import "fmt"

// Validate checks structural invariants of a PipelineModel: non-empty
// stages, unique step names across the whole step tree (including nested
// parallelGroup/dir/withEnv/timeout/retry children and nested parallel
// Stage groups), and an acyclic artifact dependency graph at the Stage
// level (a stage's Requires must be satisfied by some strictly earlier
// stage's Produces). The cycle check follows Kahn's algorithm, the same
// topological-sort idiom used to order task graphs with inter-task
// dependencies.
func (p *PipelineModel) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pipeline: name is required")
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("pipeline %q: at least one stage is required", p.Name)
	}

	seenSteps := make(map[string]bool)
	produced := make(map[string]string) // artifact name -> producing stage
	pos := make(map[string]int)         // stage name -> position in walk order
	var order []string
	deps := make(map[string][]string)

	var walkStage func(stage Stage) error
	walkStage = func(stage Stage) error {
		if len(stage.Steps) == 0 && len(stage.Parallel) == 0 {
			return fmt.Errorf("pipeline %q: stage %q has no steps and no parallel children", p.Name, stage.Name)
		}
		for _, step := range stage.Steps {
			if err := checkStepNames(p.Name, step, seenSteps); err != nil {
				return err
			}
		}
		for _, a := range stage.Produces {
			produced[a] = stage.Name
		}
		pos[stage.Name] = len(order)
		order = append(order, stage.Name)
		for _, child := range stage.Parallel {
			if err := walkStage(child); err != nil {
				return err
			}
		}
		return nil
	}

	for _, stage := range p.Stages {
		if err := walkStage(stage); err != nil {
			return err
		}
	}

	var walkDeps func(stage Stage) error
	walkDeps = func(stage Stage) error {
		for _, req := range stage.Requires {
			producer, ok := produced[req]
			if !ok {
				return fmt.Errorf("pipeline %q: stage %q requires artifact %q which no stage produces", p.Name, stage.Name, req)
			}
			if producer == stage.Name {
				return fmt.Errorf("pipeline %q: stage %q cannot require an artifact it produces itself", p.Name, stage.Name)
			}
			if pos[producer] > pos[stage.Name] {
				return fmt.Errorf("pipeline %q: stage %q requires artifact %q produced by later stage %q", p.Name, stage.Name, req, producer)
			}
			deps[stage.Name] = append(deps[stage.Name], producer)
		}
		for _, child := range stage.Parallel {
			if err := walkDeps(child); err != nil {
				return err
			}
		}
		return nil
	}
	for _, stage := range p.Stages {
		if err := walkDeps(stage); err != nil {
			return err
		}
	}

	if _, err := topoSort(order, deps); err != nil {
		return fmt.Errorf("pipeline %q: %w", p.Name, err)
	}
	return nil
}

// checkStepNames recurses into step.Children (parallelGroup/dir/withEnv/
// timeout/retry wrappers) enforcing global step-name uniqueness.
func checkStepNames(pipelineName string, step Step, seen map[string]bool) error {
	if step.Name != "" {
		if seen[step.Name] {
			return fmt.Errorf("pipeline %q: duplicate step name %q", pipelineName, step.Name)
		}
		seen[step.Name] = true
	}
	for _, child := range step.Children {
		if err := checkStepNames(pipelineName, child, seen); err != nil {
			return err
		}
	}
	return nil
}

// topoSort orders nodes so that every dependency precedes its dependent,
// returning an error if deps describes a cycle.
func topoSort(nodes []string, deps map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string)
	for _, n := range nodes {
		indegree[n] = 0
	}
	for n, ds := range deps {
		indegree[n] += len(ds)
		for _, d := range ds {
			dependents[d] = append(dependents[d], n)
		}
	}

	var queue, result []string
	for _, n := range nodes {
		if indegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		result = append(result, n)
		for _, dep := range dependents[n] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(result) != len(nodes) {
		return nil, fmt.Errorf("cyclic artifact dependency among stages")
	}
	return result, nil
}
