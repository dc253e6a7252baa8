package domain

import "time"

// ExecutionStatus tracks one run of a task graph.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionWaiting   ExecutionStatus = "waiting"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionPartial   ExecutionStatus = "partial"
	ExecutionSuspended ExecutionStatus = "suspended"
)

// Terminal reports whether the status admits no further scheduling.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionPartial
}

// Resumable reports whether Resume may re-enter the scheduler loop.
func (s ExecutionStatus) Resumable() bool {
	return s == ExecutionSuspended || s == ExecutionWaiting
}

// SuspendedReasonStopped marks a suspension caused by a stop request.
const SuspendedReasonStopped = "stopped"

// Execution is one run of a TaskGraph or of an ad-hoc ungraphed goal.
// Counter invariant: Total = Completed + Failed + Waiting + in-flight.
type Execution struct {
	ID      string `json:"id"`
	GraphID string `json:"graph_id,omitempty"` // empty for ad-hoc runs
	Request string `json:"request"`
	Intent  string `json:"intent,omitempty"`

	Status      ExecutionStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Duration    time.Duration   `json:"duration,omitempty"`

	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	FailedTasks    int `json:"failed_tasks"`
	WaitingTasks   int `json:"waiting_tasks"`

	FinalResult string `json:"final_result,omitempty"`
	Synthesis   string `json:"synthesis,omitempty"`

	SuspendedReason string     `json:"suspended_reason,omitempty"`
	SuspendedAt     *time.Time `json:"suspended_at,omitempty"`
	RetryCount      int        `json:"retry_count"`
	LastRetryAt     *time.Time `json:"last_retry_at,omitempty"`

	Usage Usage   `json:"usage"`
	Cost  float64 `json:"cost"`
}

// InFlightTasks returns the pending+running remainder of the counter
// invariant.
func (e *Execution) InFlightTasks() int {
	return e.TotalTasks - e.CompletedTasks - e.FailedTasks - e.WaitingTasks
}

// StepStatus tracks a sub-step through its lifecycle.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepWaiting   StepStatus = "waiting"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Terminal reports whether the step will not be scheduled again.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}

// SubStep is the execution-time instance of a SubTaskTemplate.
type SubStep struct {
	ID          string `json:"id"`
	ExecutionID string `json:"execution_id"`

	// Template mirror. TaskID is the template id; Index is the template
	// declaration order and fixes dispatch tie-breaks.
	TaskID      string         `json:"task_id"`
	Index       int            `json:"index"`
	Description string         `json:"description"`
	Thought     string         `json:"thought,omitempty"`
	Action      ActionKind     `json:"action"`
	Target      string         `json:"target"`
	Params      map[string]any `json:"params,omitempty"`
	Expected    string         `json:"expected,omitempty"`
	DependsOn   []string       `json:"depends_on,omitempty"`

	Status      StepStatus    `json:"status"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`

	// Result is opaque to the engine; collaborators decide its shape.
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`

	Usage Usage          `json:"usage"`
	Cost  float64        `json:"cost"`
	Stats map[string]any `json:"stats,omitempty"` // provider-specific generation stats
}

// NewSubSteps instantiates pending sub-steps from a graph's templates,
// preserving declaration order.
func NewSubSteps(executionID string, templates []SubTaskTemplate) []*SubStep {
	steps := make([]*SubStep, 0, len(templates))
	for i, t := range templates {
		steps = append(steps, &SubStep{
			ID:          NewStepID(),
			ExecutionID: executionID,
			TaskID:      t.ID,
			Index:       i,
			Description: t.Description,
			Thought:     t.Thought,
			Action:      t.Action,
			Target:      t.Target,
			Params:      t.Params,
			Expected:    t.Expected,
			DependsOn:   t.DependsOn,
			Status:      StepPending,
		})
	}
	return steps
}
