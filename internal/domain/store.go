package domain

import "context"

// GraphStore persists task graphs.
type GraphStore interface {
	CreateGraph(ctx context.Context, g *TaskGraph) error
	GetGraph(ctx context.Context, id string) (*TaskGraph, error)
	ListGraphs(ctx context.Context, limit int) ([]*TaskGraph, error)
	UpdateGraphStatus(ctx context.Context, id string, status GraphStatus, clarification string) error
}

// ExecutionStore persists execution rows and their aggregate counters.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, e *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	// ListExecutions returns executions newest first. Empty graphID
	// means all graphs; limit 0 means no limit.
	ListExecutions(ctx context.Context, graphID string, limit int) ([]*Execution, error)
	UpdateExecution(ctx context.Context, e *Execution) error
}

// StepStore persists sub-steps.
type StepStore interface {
	CreateSteps(ctx context.Context, steps []*SubStep) error
	// GetSteps returns an execution's steps in template order.
	GetSteps(ctx context.Context, executionID string) ([]*SubStep, error)
	UpdateStep(ctx context.Context, s *SubStep) error
	// RecordStepResult writes the step's result and the execution's
	// aggregate counters in a single transaction, so a reader never
	// observes a completed step without its aggregate contribution.
	RecordStepResult(ctx context.Context, step *SubStep, exec *Execution) error
}

// StopRequestStore persists the append-only stop request log.
type StopRequestStore interface {
	// CreateStopRequest always accepts an insertion; duplicates for an
	// already-active scope are permitted.
	CreateStopRequest(ctx context.Context, r *StopRequest) error
	// HasActiveStopRequest is a membership test over requested rows.
	HasActiveStopRequest(ctx context.Context, scope StopScope, scopeID string) (bool, error)
	// MarkStopRequestsHandled atomically flips every requested row for
	// the scope to handled and returns how many rows changed.
	MarkStopRequestsHandled(ctx context.Context, scope StopScope, scopeID string) (int, error)
	ListStopRequests(ctx context.Context, scope StopScope, scopeID string) ([]*StopRequest, error)
}

// CostStore exposes derived cost queries.
type CostStore interface {
	// ExecutionPhaseCosts splits an execution's spend into the planning
	// phase (its graph's construction) and the execution phase.
	ExecutionPhaseCosts(ctx context.Context, executionID string) ([]CostRecord, error)
	// GraphCost sums planning and execution spend for every execution
	// under the graph.
	GraphCost(ctx context.Context, graphID string) (Usage, float64, error)
}

// Store combines every persistence concern of the engine. Constructed
// explicitly and passed by reference; there is no package-level handle.
type Store interface {
	GraphStore
	ExecutionStore
	StepStore
	StopRequestStore
	CostStore

	Ping(ctx context.Context) error
	Close() error
}
