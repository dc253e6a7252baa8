// Package plan turns a goal into a validated, persisted task graph.
package plan

import (
	"fmt"

	"github.com/jmlow/goalflow/internal/domain"
)

// Decomposition is a candidate task graph as returned by a decomposer,
// before validation and persistence.
type Decomposition struct {
	Title     string
	Intent    string
	Templates []domain.SubTaskTemplate

	// NeedsClarification means the decomposer could not produce a graph
	// and is asking the caller for more context.
	NeedsClarification bool
	Clarification      string

	// Spend of the decomposition call itself (planning phase).
	Usage domain.Usage
	Cost  float64
}

// Validate checks a decomposition for structural soundness: every step
// names a target, every dependency resolves within the candidate set,
// and the dependency relation is acyclic. A clarification flag without
// explanatory text is rejected rather than silently accepted.
func Validate(d *Decomposition) error {
	if d.NeedsClarification {
		if d.Clarification == "" {
			return &domain.ValidationError{Reason: "clarification requested without explanation"}
		}
		return nil
	}

	if len(d.Templates) == 0 {
		return &domain.ValidationError{Reason: "decomposition produced no sub-tasks"}
	}

	byID := make(map[string]*domain.SubTaskTemplate, len(d.Templates))
	for i := range d.Templates {
		t := &d.Templates[i]
		if t.ID == "" {
			return &domain.ValidationError{Reason: fmt.Sprintf("sub-task %d has no id", i)}
		}
		if _, dup := byID[t.ID]; dup {
			return &domain.ValidationError{Reason: "duplicate sub-task id " + t.ID}
		}
		if t.Target == "" {
			return &domain.ValidationError{Reason: "sub-task " + t.ID + " has no target"}
		}
		if t.Action != domain.ActionTool && t.Action != domain.ActionInference {
			return &domain.ValidationError{Reason: fmt.Sprintf("sub-task %s has unknown action %q", t.ID, t.Action)}
		}
		byID[t.ID] = t
	}

	for _, t := range d.Templates {
		for _, dep := range t.DependsOn {
			if _, ok := byID[dep]; !ok {
				return &domain.ValidationError{Reason: fmt.Sprintf("sub-task %s depends on unknown id %s", t.ID, dep)}
			}
		}
	}

	if cycle := findCycle(d.Templates); cycle != nil {
		return &domain.ValidationError{Reason: "dependency cycle detected", Cycle: cycle}
	}
	return nil
}

// findCycle runs a colored DFS over the dependency edges and returns
// one participating cycle path, or nil when the graph is acyclic.
// Traversal follows declaration order so the witness is stable.
func findCycle(templates []domain.SubTaskTemplate) []string {
	const (
		white = iota // unvisited
		gray         // on the current DFS path
		black        // fully explored
	)

	index := make(map[string]int, len(templates))
	for i, t := range templates {
		index[t.ID] = i
	}

	color := make([]int, len(templates))
	parent := make([]int, len(templates))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, dep := range templates[u].DependsOn {
			v := index[dep]
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// Back edge: walk parents from u back to v.
				cycle = []int{v}
				for w := u; w != v; w = parent[w] {
					cycle = append(cycle, w)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range templates {
		if color[i] == white && dfs(i) {
			ids := make([]string, 0, len(cycle))
			// cycle was collected v, u..., v walking parent links; reverse
			// into dependency order.
			for j := len(cycle) - 1; j >= 0; j-- {
				ids = append(ids, templates[cycle[j]].ID)
			}
			return ids
		}
	}
	return nil
}
