package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDPrefixes(t *testing.T) {
	tests := []struct {
		id     string
		prefix string
	}{
		{NewGraphID(), PrefixGraph},
		{NewExecutionID(), PrefixExecution},
		{NewStepID(), PrefixStep},
		{NewStopID(), PrefixStop},
	}
	for _, tt := range tests {
		assert.True(t, HasPrefix(tt.id, tt.prefix), "%s should carry %s", tt.id, tt.prefix)
	}

	// Fresh ids never collide.
	assert.NotEqual(t, NewStepID(), NewStepID())

	// A bare prefix is not a valid id.
	assert.False(t, HasPrefix(PrefixGraph, PrefixGraph))
	assert.False(t, HasPrefix(NewGraphID(), PrefixExecution))
}

func TestUsageAdd(t *testing.T) {
	u := Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	u.Add(Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3})

	assert.Equal(t, Usage{PromptTokens: 11, CompletionTokens: 7, TotalTokens: 18}, u)
	assert.False(t, u.Empty())
	assert.True(t, Usage{}.Empty())
}

func TestCalculateCost(t *testing.T) {
	m := Model{InputCost: 3.0, OutputCost: 15.0}
	got := CalculateCost(Usage{PromptTokens: 1_000_000, CompletionTokens: 200_000}, m)
	assert.InDelta(t, 3.0+3.0, got, 1e-9)

	assert.Zero(t, CalculateCost(Usage{}, m))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "$0.00", FormatCost(0))
	assert.Equal(t, "<$0.01", FormatCost(0.004))
	assert.Equal(t, "$1.23", FormatCost(1.234))

	assert.Equal(t, "999", FormatTokens(999))
	assert.Equal(t, "1.5k", FormatTokens(1500))
}

func TestExecutionStatusPredicates(t *testing.T) {
	for _, s := range []ExecutionStatus{ExecutionCompleted, ExecutionFailed, ExecutionPartial} {
		assert.True(t, s.Terminal(), "%s", s)
		assert.False(t, s.Resumable(), "%s", s)
	}
	for _, s := range []ExecutionStatus{ExecutionSuspended, ExecutionWaiting} {
		assert.False(t, s.Terminal(), "%s", s)
		assert.True(t, s.Resumable(), "%s", s)
	}
	assert.False(t, ExecutionRunning.Terminal())
	assert.False(t, ExecutionRunning.Resumable())
}

func TestStepStatusTerminal(t *testing.T) {
	assert.True(t, StepCompleted.Terminal())
	assert.True(t, StepFailed.Terminal())
	assert.False(t, StepPending.Terminal())
	assert.False(t, StepRunning.Terminal())
	assert.False(t, StepWaiting.Terminal())
}

func TestInFlightTasks(t *testing.T) {
	e := Execution{TotalTasks: 10, CompletedTasks: 4, FailedTasks: 2, WaitingTasks: 1}
	assert.Equal(t, 3, e.InFlightTasks())
}

func TestNewSubStepsMirrorsTemplates(t *testing.T) {
	templates := []SubTaskTemplate{
		{ID: "a", Description: "first", Action: ActionTool, Target: "bash", Params: map[string]any{"command": "ls"}},
		{ID: "b", Description: "second", Action: ActionInference, Target: "model", DependsOn: []string{"a"}},
	}

	steps := NewSubSteps("exec_1", templates)
	require.Len(t, steps, 2)

	for i, st := range steps {
		assert.True(t, HasPrefix(st.ID, PrefixStep))
		assert.Equal(t, "exec_1", st.ExecutionID)
		assert.Equal(t, templates[i].ID, st.TaskID)
		assert.Equal(t, i, st.Index)
		assert.Equal(t, StepPending, st.Status)
	}
	assert.Equal(t, []string{"a"}, steps[1].DependsOn)
	assert.Equal(t, "ls", steps[0].Params["command"])
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Reason: "dependency cycle detected", Cycle: []string{"a", "b", "a"}}
	assert.Equal(t, "invalid task graph: dependency cycle detected (cycle: a -> b -> a)", err.Error())

	plain := &ValidationError{Reason: "empty task set"}
	assert.Equal(t, "invalid task graph: empty task set", plain.Error())
}

func TestIsNotFoundUnwraps(t *testing.T) {
	err := fmt.Errorf("load graph: %w", &NotFoundError{Kind: "graph", ID: "graph_x"})
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("load graph: gone")))
}

func TestStepExecutionErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &StepExecutionError{StepID: "step_1", TaskID: "fetch", Cause: cause}

	assert.Contains(t, err.Error(), "fetch")
	assert.ErrorIs(t, err, cause)
}
