package graph

import (
	"sort"

	"github.com/teranos/quire/errors"
)

// Resolve returns a topological ordering of all registered stages, or
// ErrDependencyCycle naming the offending cycle. Ordering ties break by
// registration sequence so runs are reproducible.
func (r *Registry) Resolve() ([]StageID, error) {
	// Build adjacency and in-degree from derived edges. Parallel edges
	// (two kinds between the same pair) count once.
	succ := make(map[StageID]map[StageID]bool)
	indegree := make(map[StageID]int)
	for _, s := range r.stages {
		indegree[s.ID] = 0
	}
	for _, e := range r.Edges() {
		if succ[e.Producer] == nil {
			succ[e.Producer] = make(map[StageID]bool)
		}
		if !succ[e.Producer][e.Consumer] {
			succ[e.Producer][e.Consumer] = true
			indegree[e.Consumer]++
		}
	}

	// Kahn's algorithm with a frontier kept sorted by registration sequence
	var frontier []*Stage
	for _, s := range r.stages {
		if indegree[s.ID] == 0 {
			frontier = append(frontier, s)
		}
	}

	var order []StageID
	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool { return frontier[i].seq < frontier[j].seq })
		next := frontier[0]
		frontier = frontier[1:]
		order = append(order, next.ID)

		for succID := range succ[next.ID] {
			indegree[succID]--
			if indegree[succID] == 0 {
				frontier = append(frontier, r.byID[succID])
			}
		}
	}

	if len(order) != len(r.stages) {
		return nil, r.cycleError(succ, indegree)
	}
	return order, nil
}

// cycleError isolates the stages actually sitting on a cycle and names one
// concrete cycle in the error.
func (r *Registry) cycleError(succ map[StageID]map[StageID]bool, indegree map[StageID]int) error {
	// Residual nodes still holding in-degree after Kahn include everything
	// downstream of a cycle; trim nodes with no residual successors until
	// only cycle members remain.
	residual := make(map[StageID]bool)
	for id, deg := range indegree {
		if deg > 0 {
			residual[id] = true
		}
	}
	for {
		trimmed := false
		for id := range residual {
			hasSucc := false
			for next := range succ[id] {
				if residual[next] {
					hasSucc = true
					break
				}
			}
			if !hasSucc {
				delete(residual, id)
				trimmed = true
			}
		}
		if !trimmed {
			break
		}
	}

	// Walk successors within the cycle set until a stage repeats
	var start StageID
	for _, s := range r.stages {
		if residual[s.ID] {
			start = s.ID
			break
		}
	}

	seen := make(map[StageID]int)
	var path []StageID
	current := start
	for {
		if idx, ok := seen[current]; ok {
			cycle := append([]StageID{}, path[idx:]...)
			cycle = append(cycle, current)
			names := make([]string, len(cycle))
			for i, id := range cycle {
				names[i] = string(id)
			}
			return errors.NewCycleError(names)
		}
		seen[current] = len(path)
		path = append(path, current)

		for next := range succ[current] {
			if residual[next] {
				current = next
				break
			}
		}
	}
}

// ReadySet returns all stages whose every declared input kind has at least
// one committed artifact among completed. The engine filters this further
// by stage status.
func (r *Registry) ReadySet(completed map[Kind]bool) []StageID {
	var ready []StageID
	for _, s := range r.stages {
		ok := true
		for _, kind := range s.Inputs {
			if !completed[kind] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, s.ID)
		}
	}
	return ready
}

// Dependents returns every stage transitively depending on the given stage,
// in registration order. Used to propagate BlockedDownstream on failure.
func (r *Registry) Dependents(id StageID) []StageID {
	succ := make(map[StageID][]StageID)
	for _, e := range r.Edges() {
		succ[e.Producer] = append(succ[e.Producer], e.Consumer)
	}

	visited := make(map[StageID]bool)
	var visit func(StageID)
	visit = func(cur StageID) {
		for _, next := range succ[cur] {
			if !visited[next] {
				visited[next] = true
				visit(next)
			}
		}
	}
	visit(id)

	var deps []StageID
	for _, s := range r.stages {
		if visited[s.ID] {
			deps = append(deps, s.ID)
		}
	}
	return deps
}
