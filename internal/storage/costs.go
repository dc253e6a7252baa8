package storage

import (
	"context"

	"github.com/jmlow/goalflow/internal/domain"
)

// ExecutionPhaseCosts splits an execution's spend into the planning
// phase (the parent graph's construction) and the execution phase
// (step dispatch). Ad-hoc executions have no planning record.
func (s *Storage) ExecutionPhaseCosts(ctx context.Context, executionID string) ([]domain.CostRecord, error) {
	exec, err := s.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	records := []domain.CostRecord{}
	if exec.GraphID != "" {
		g, err := s.GetGraph(ctx, exec.GraphID)
		if err != nil {
			return nil, err
		}
		records = append(records, domain.CostRecord{
			Phase: domain.PhasePlanning,
			Usage: g.PlanningUsage,
			Cost:  g.PlanningCost,
		})
	}
	records = append(records, domain.CostRecord{
		Phase: domain.PhaseExecution,
		Usage: exec.Usage,
		Cost:  exec.Cost,
	})
	return records, nil
}

// GraphCost sums planning spend plus every execution's spend under the
// graph.
func (s *Storage) GraphCost(ctx context.Context, graphID string) (domain.Usage, float64, error) {
	g, err := s.GetGraph(ctx, graphID)
	if err != nil {
		return domain.Usage{}, 0, err
	}

	usage := g.PlanningUsage
	cost := g.PlanningCost

	var promptTokens, completionTokens, totalTokens int
	var execCost float64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0),
			COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost), 0)
		FROM executions WHERE graph_id = ?
	`, graphID).Scan(&promptTokens, &completionTokens, &totalTokens, &execCost)
	if err != nil {
		return domain.Usage{}, 0, err
	}

	usage.Add(domain.Usage{PromptTokens: promptTokens, CompletionTokens: completionTokens, TotalTokens: totalTokens})
	return usage, cost + execCost, nil
}
