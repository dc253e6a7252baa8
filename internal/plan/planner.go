package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/jmlow/goalflow/internal/domain"
	"github.com/jmlow/goalflow/internal/logging"
)

// Result of planning a goal: exactly one of Graph or Clarification is
// set. A clarification result persists nothing; the caller resubmits
// the goal with added context.
type Result struct {
	Graph         *domain.TaskGraph
	Clarification string
}

// Planner drives decompose -> validate -> persist.
type Planner struct {
	decomposer Decomposer
	graphs     domain.GraphStore
	log        *logging.Logger
}

func NewPlanner(d Decomposer, graphs domain.GraphStore) *Planner {
	return &Planner{
		decomposer: d,
		graphs:     graphs,
		log:        logging.New("planner"),
	}
}

// Plan decomposes the goal and persists a ready graph, or returns the
// decomposer's clarification request.
func (p *Planner) Plan(ctx context.Context, goal string) (*Result, error) {
	dec, err := p.decomposer.Decompose(ctx, goal)
	if err != nil {
		return nil, err
	}

	if err := Validate(dec); err != nil {
		p.log.Warn("decomposition rejected", map[string]any{"goal": goal}, err)
		return nil, err
	}

	if dec.NeedsClarification {
		p.log.Info("clarification required", map[string]any{"clarification": dec.Clarification})
		return &Result{Clarification: dec.Clarification}, nil
	}

	now := time.Now().UTC()
	g := &domain.TaskGraph{
		ID:            domain.NewGraphID(),
		Title:         dec.Title,
		Objective:     goal,
		Status:        domain.GraphReady,
		Templates:     dec.Templates,
		PlanningUsage: dec.Usage,
		PlanningCost:  dec.Cost,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if g.Title == "" {
		g.Title = truncate(goal, 80)
	}

	if err := p.graphs.CreateGraph(ctx, g); err != nil {
		return nil, fmt.Errorf("persist graph: %w", err)
	}

	p.log.Info("graph ready", map[string]any{
		"graph": g.ID,
		"tasks": len(g.Templates),
	})
	return &Result{Graph: g}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
