// Package domain defines the core entities of the workflow engine:
// task graphs, executions, sub-steps, stop requests and usage records.
package domain

import "time"

// GraphStatus tracks a task graph through planning and validation.
type GraphStatus string

const (
	GraphPlanning              GraphStatus = "planning"
	GraphReady                 GraphStatus = "ready"
	GraphClarificationRequired GraphStatus = "clarification_required"
	GraphFailed                GraphStatus = "failed"
	GraphCancelled             GraphStatus = "cancelled"
)

// ActionKind discriminates how a sub-task is executed.
type ActionKind string

const (
	ActionTool      ActionKind = "tool"
	ActionInference ActionKind = "inference"
)

// SubTaskTemplate is the immutable blueprint for one unit of work.
// Templates never change once their graph reaches GraphReady.
type SubTaskTemplate struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Thought     string         `json:"thought,omitempty"`
	Action      ActionKind     `json:"action"`
	Target      string         `json:"target"`
	Params      map[string]any `json:"params,omitempty"`
	Expected    string         `json:"expected,omitempty"`
	DependsOn   []string       `json:"depends_on,omitempty"`
}

// Recurrence holds optional schedule metadata for a graph.
type Recurrence struct {
	Schedule string `json:"schedule,omitempty"`
	Active   bool   `json:"active,omitempty"`
}

// TaskGraph is a persisted DAG of sub-task templates produced by
// decomposition. Template order is the declaration order and is the
// tie-break for equally-ready steps during scheduling.
type TaskGraph struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Objective     string            `json:"objective"`
	Status        GraphStatus       `json:"status"`
	Templates     []SubTaskTemplate `json:"templates"`
	Recurrence    Recurrence        `json:"recurrence,omitempty"`
	Clarification string            `json:"clarification,omitempty"`

	// Planning-phase cost: what the decomposer spent building this graph.
	PlanningUsage Usage   `json:"planning_usage"`
	PlanningCost  float64 `json:"planning_cost"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Template returns the template with the given id, or nil.
func (g *TaskGraph) Template(id string) *SubTaskTemplate {
	for i := range g.Templates {
		if g.Templates[i].ID == id {
			return &g.Templates[i]
		}
	}
	return nil
}
