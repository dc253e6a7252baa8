package engine

import (
	"context"
	"fmt"

	"github.com/jmlow/goalflow/internal/domain"
)

// Resume re-enters the scheduler loop of a suspended or waiting
// execution. Completed steps are never re-run; scheduling continues
// from the persisted step statuses. A still-active stop request for
// the execution re-suspends immediately, so callers clear or outwait
// stops before resuming.
func (e *Engine) Resume(ctx context.Context, executionID string) (*domain.Execution, error) {
	exec, err := e.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if !exec.Status.Resumable() {
		return nil, fmt.Errorf("execution %s is %s, not resumable", exec.ID, exec.Status)
	}
	steps, err := e.store.GetSteps(ctx, exec.ID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	exec.Status = domain.ExecutionRunning
	exec.SuspendedReason = ""
	exec.SuspendedAt = nil
	exec.RetryCount++
	exec.LastRetryAt = &now
	if err := e.store.UpdateExecution(ctx, exec); err != nil {
		return nil, err
	}
	e.events.Emit(domain.NewEvent(domain.EventResumed, exec.ID).
		WithData("retry_count", exec.RetryCount))
	e.log.WithExecution(exec.ID).Info("execution resumed", map[string]any{
		"retry_count": exec.RetryCount,
	})

	if err := e.runLoop(ctx, exec, steps); err != nil {
		return exec, err
	}
	return exec, nil
}

// RetryFailed resets every failed step of a terminal execution back to
// pending, propagation casualties included, and re-runs the loop.
// Completed steps keep their results and are not dispatched again.
func (e *Engine) RetryFailed(ctx context.Context, executionID string) (*domain.Execution, error) {
	exec, err := e.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if !exec.Status.Terminal() {
		return nil, fmt.Errorf("execution %s is %s, retry needs a finished execution", exec.ID, exec.Status)
	}
	if exec.FailedTasks == 0 {
		return nil, fmt.Errorf("execution %s has no failed steps", exec.ID)
	}
	steps, err := e.store.GetSteps(ctx, exec.ID)
	if err != nil {
		return nil, err
	}

	reset := 0
	for _, st := range steps {
		if st.Status != domain.StepFailed {
			continue
		}
		clearStepResult(st)
		if err := e.store.UpdateStep(ctx, st); err != nil {
			return nil, err
		}
		reset++
	}

	recompute(exec, steps)
	exec.Status = domain.ExecutionRunning
	exec.CompletedAt = nil
	if err := e.store.UpdateExecution(ctx, exec); err != nil {
		return nil, err
	}
	e.log.WithExecution(exec.ID).Info("retrying failed steps", map[string]any{"reset": reset})

	if err := e.runLoop(ctx, exec, steps); err != nil {
		return exec, err
	}
	return exec, nil
}

// RedoStep re-runs one terminal step in place, optionally with a
// different provider or model, and replaces its result. Other steps
// are untouched; the execution's aggregates and terminal status are
// recomputed from the new step set. Redo on a non-terminal execution
// is rejected so it cannot race the scheduler.
func (e *Engine) RedoStep(ctx context.Context, executionID, taskID string, opts RunOptions) (*domain.SubStep, error) {
	exec, err := e.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if !exec.Status.Terminal() {
		return nil, fmt.Errorf("execution %s is %s, redo needs a finished execution", exec.ID, exec.Status)
	}
	steps, err := e.store.GetSteps(ctx, exec.ID)
	if err != nil {
		return nil, err
	}

	var step *domain.SubStep
	for _, st := range steps {
		if st.TaskID == taskID || st.ID == taskID {
			step = st
			break
		}
	}
	if step == nil {
		return nil, &domain.NotFoundError{Kind: "step", ID: taskID}
	}
	if !step.Status.Terminal() {
		return nil, fmt.Errorf("step %s is %s, redo needs a finished step", step.TaskID, step.Status)
	}

	start := e.clock.Now()
	clearStepResult(step)
	step.Status = domain.StepRunning
	step.StartedAt = &start

	res, err := e.runner.Run(ctx, step, opts)
	if err != nil {
		res = &RunResult{Error: (&domain.StepExecutionError{StepID: step.ID, TaskID: step.TaskID, Cause: err}).Error()}
	}

	now := e.clock.Now()
	step.CompletedAt = &now
	step.Duration = now.Sub(start)
	step.Result = res.Output
	step.Error = res.Error
	step.Usage = res.Usage
	step.Cost = res.Cost
	step.Stats = res.Stats
	step.Status = domain.StepFailed
	if res.Success {
		step.Status = domain.StepCompleted
	}

	recompute(exec, steps)
	if err := e.store.RecordStepResult(ctx, step, exec); err != nil {
		return nil, err
	}

	e.observeStep(step)
	e.log.WithExecution(exec.ID).Info("step redone", map[string]any{
		"task": step.TaskID, "status": string(step.Status),
		"provider": opts.ProviderID, "model": opts.ModelID,
	})
	return step, nil
}

func clearStepResult(st *domain.SubStep) {
	st.Status = domain.StepPending
	st.StartedAt = nil
	st.CompletedAt = nil
	st.Duration = 0
	st.Result = ""
	st.Error = ""
	st.Usage = domain.Usage{}
	st.Cost = 0
	st.Stats = nil
}
