package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError rejects a malformed or cyclic graph before
// persistence. It is never retried.
type ValidationError struct {
	Reason string
	Cycle  []string // participating template ids, when a cycle was found
}

func (e *ValidationError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("invalid task graph: %s (cycle: %s)", e.Reason, strings.Join(e.Cycle, " -> "))
	}
	return "invalid task graph: " + e.Reason
}

// NotFoundError reports an unknown graph, execution or step id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// StepExecutionError records a failed tool or inference call. It is
// caught per step, recorded verbatim, and never aborts the scheduler
// loop.
type StepExecutionError struct {
	StepID string
	TaskID string
	Cause  error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.TaskID, e.Cause)
}

func (e *StepExecutionError) Unwrap() error { return e.Cause }

// AggregationError reports a failed counter or cost update. The step
// result write it accompanied must have been rolled back with it.
type AggregationError struct {
	ExecutionID string
	Cause       error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate update for %s failed: %v", e.ExecutionID, e.Cause)
}

func (e *AggregationError) Unwrap() error { return e.Cause }
