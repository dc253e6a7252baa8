package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmlow/goalflow/internal/domain"
	"github.com/jmlow/goalflow/internal/engine"
	"github.com/jmlow/goalflow/internal/testutil"
)

func TestResumeRejectsTerminalExecution(t *testing.T) {
	store := testutil.OpenStore(t)
	stub := testutil.NewStubRunner()
	eng := engine.New(store, stub, engine.Config{})

	g := readyGraph(t, store, diamondTemplates())
	exec, err := eng.ExecuteGraph(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionCompleted, exec.Status)

	_, err = eng.Resume(context.Background(), exec.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not resumable")
}

func TestRetryFailedRerunsOnlyFailedSteps(t *testing.T) {
	store := testutil.OpenStore(t)
	stub := testutil.NewStubRunner()
	stub.Fail["b"] = true
	eng := engine.New(store, stub, engine.Config{})

	g := readyGraph(t, store, diamondTemplates())
	exec, err := eng.ExecuteGraph(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionPartial, exec.Status)

	// The transient failure clears; retry picks up b and the propagated d.
	delete(stub.Fail, "b")

	retried, err := eng.RetryFailed(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCompleted, retried.Status)
	assert.Equal(t, 4, retried.CompletedTasks)
	assert.Equal(t, 0, retried.FailedTasks)

	// Completed steps were not re-run.
	assert.Equal(t, 1, stub.CallCount("a"))
	assert.Equal(t, 1, stub.CallCount("c"))
	assert.Equal(t, 2, stub.CallCount("b"))
	// d was propagation-failed, so this is its first real dispatch.
	assert.Equal(t, 1, stub.CallCount("d"))
}

func TestRetryFailedRejectsCleanExecution(t *testing.T) {
	store := testutil.OpenStore(t)
	eng := engine.New(store, testutil.NewStubRunner(), engine.Config{})

	g := readyGraph(t, store, diamondTemplates())
	exec, err := eng.ExecuteGraph(context.Background(), g.ID)
	require.NoError(t, err)

	_, err = eng.RetryFailed(context.Background(), exec.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no failed steps")
}

func TestRedoStepReplacesResultInPlace(t *testing.T) {
	store := testutil.OpenStore(t)
	stub := testutil.NewStubRunner()
	stub.Results["b"] = "first attempt"
	stub.UsagePerStep = domain.Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}
	stub.CostPerStep = 0.001
	eng := engine.New(store, stub, engine.Config{})

	g := readyGraph(t, store, diamondTemplates())
	exec, err := eng.ExecuteGraph(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionCompleted, exec.Status)

	stub.Results["b"] = "second attempt"
	step, err := eng.RedoStep(context.Background(), exec.ID, "b", engine.RunOptions{
		ProviderID: "openai",
		ModelID:    "gpt-4o",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StepCompleted, step.Status)
	assert.Equal(t, "second attempt", step.Result)

	// The override reached the runner.
	opts := stub.LastOpts("b")
	assert.Equal(t, "openai", opts.ProviderID)
	assert.Equal(t, "gpt-4o", opts.ModelID)

	// Only b was re-dispatched; siblings keep their results.
	assert.Equal(t, 2, stub.CallCount("b"))
	assert.Equal(t, 1, stub.CallCount("a"))

	steps, err := store.GetSteps(context.Background(), exec.ID)
	require.NoError(t, err)
	for _, st := range steps {
		if st.TaskID == "b" {
			assert.Equal(t, "second attempt", st.Result)
		} else {
			assert.Equal(t, "done: "+st.TaskID, st.Result)
		}
	}

	// Aggregates were recomputed, not double-counted.
	after, err := store.GetExecution(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, after.CompletedTasks)
	assert.Equal(t, 80, after.Usage.TotalTokens)
	assert.Equal(t, domain.ExecutionCompleted, after.Status)
}

func TestRedoStepCanFlipStatusToPartial(t *testing.T) {
	store := testutil.OpenStore(t)
	stub := testutil.NewStubRunner()
	eng := engine.New(store, stub, engine.Config{})

	g := readyGraph(t, store, diamondTemplates())
	exec, err := eng.ExecuteGraph(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionCompleted, exec.Status)

	stub.Fail["d"] = true
	step, err := eng.RedoStep(context.Background(), exec.ID, "d", engine.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StepFailed, step.Status)

	after, err := store.GetExecution(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionPartial, after.Status)
	assert.Equal(t, 3, after.CompletedTasks)
	assert.Equal(t, 1, after.FailedTasks)
}

func TestRedoStepUnknownTask(t *testing.T) {
	store := testutil.OpenStore(t)
	eng := engine.New(store, testutil.NewStubRunner(), engine.Config{})

	g := readyGraph(t, store, diamondTemplates())
	exec, err := eng.ExecuteGraph(context.Background(), g.ID)
	require.NoError(t, err)

	_, err = eng.RedoStep(context.Background(), exec.ID, "nope", engine.RunOptions{})
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestRedoStepRejectsRunningExecution(t *testing.T) {
	store := testutil.OpenStore(t)
	stub := testutil.NewStubRunner()
	eng := engine.New(store, stub, engine.Config{})

	g := readyGraph(t, store, diamondTemplates())
	_, err := eng.Stops().RequestGraphStop(context.Background(), g.ID)
	require.NoError(t, err)

	exec, err := eng.ExecuteGraph(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionSuspended, exec.Status)

	_, err = eng.RedoStep(context.Background(), exec.ID, "a", engine.RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redo needs a finished execution")
}
