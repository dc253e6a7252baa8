package engine

import (
	"context"

	"github.com/jmlow/goalflow/internal/domain"
)

// RunOptions carries per-dispatch overrides. The zero value means "use
// the step's own target and the runner's defaults"; RedoStep passes a
// provider/model override here.
type RunOptions struct {
	ProviderID string
	ModelID    string
}

// RunResult is the collaborator-agnostic outcome of one step dispatch.
// The engine does not interpret Output or Error beyond recording them.
type RunResult struct {
	Success bool
	Output  string
	Error   string
	Usage   domain.Usage
	Cost    float64
	Stats   map[string]any
}

// StepRunner executes one sub-step. Implementations dispatch to a tool
// executor or an inference provider; the scheduler only sees this
// contract. A non-nil error is treated the same as an unsuccessful
// result: recorded on the step, never aborting the loop.
type StepRunner interface {
	Run(ctx context.Context, step *domain.SubStep, opts RunOptions) (*RunResult, error)
}
