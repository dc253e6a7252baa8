package runner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmlow/goalflow/internal/domain"
	"github.com/jmlow/goalflow/internal/engine"
	"github.com/jmlow/goalflow/internal/provider"
	"github.com/jmlow/goalflow/internal/testutil"
	"github.com/jmlow/goalflow/internal/tool"
)

func testRunner(t *testing.T, stub *testutil.StubProvider) *Runner {
	t.Helper()
	providers := provider.NewFactory()
	providers.Register("stub", func() provider.Provider { return stub })
	providers.Register("other", func() provider.Provider { return stub })
	return New(tool.DefaultRegistry(t.TempDir()), providers, "stub", "stub-model")
}

func TestRunDispatchesToolSteps(t *testing.T) {
	r := testRunner(t, &testutil.StubProvider{})

	step := &domain.SubStep{
		TaskID: "echo",
		Action: domain.ActionTool,
		Target: "bash",
		Params: map[string]any{"command": "echo out"},
	}
	res, err := r.Run(context.Background(), step, engine.RunOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "out\n", res.Output)
}

func TestRunToolFailureStaysInResult(t *testing.T) {
	r := testRunner(t, &testutil.StubProvider{})

	step := &domain.SubStep{
		TaskID: "boom",
		Action: domain.ActionTool,
		Target: "bash",
		Params: map[string]any{"command": "exit 1"},
	}
	res, err := r.Run(context.Background(), step, engine.RunOptions{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestRunUnknownToolFailsDispatch(t *testing.T) {
	r := testRunner(t, &testutil.StubProvider{})

	step := &domain.SubStep{Action: domain.ActionTool, Target: "teleport"}
	res, err := r.Run(context.Background(), step, engine.RunOptions{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "tool not found")
}

func TestRunInferenceUsesStepModel(t *testing.T) {
	stub := &testutil.StubProvider{
		Response: "forty-two",
		Usage:    domain.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		Cost:     0.002,
	}
	r := testRunner(t, stub)

	step := &domain.SubStep{
		TaskID:      "answer",
		Description: "compute the answer",
		Action:      domain.ActionInference,
		Target:      "big-model",
	}
	res, err := r.Run(context.Background(), step, engine.RunOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "forty-two", res.Output)
	assert.Equal(t, 15, res.Usage.TotalTokens)
	assert.InDelta(t, 0.002, res.Cost, 1e-9)

	require.Len(t, stub.Requests, 1)
	assert.Equal(t, "big-model", stub.Requests[0].Model)
}

func TestRunInferenceOptionsOverrideDefaults(t *testing.T) {
	stub := &testutil.StubProvider{Response: "ok"}
	r := testRunner(t, stub)

	step := &domain.SubStep{Description: "redo this", Action: domain.ActionInference}
	_, err := r.Run(context.Background(), step, engine.RunOptions{
		ProviderID: "other",
		ModelID:    "fancier-model",
	})
	require.NoError(t, err)

	require.Len(t, stub.Requests, 1)
	assert.Equal(t, "fancier-model", stub.Requests[0].Model)
}

func TestRunInferenceFallsBackToDefaultModel(t *testing.T) {
	stub := &testutil.StubProvider{Response: "ok"}
	r := testRunner(t, stub)

	step := &domain.SubStep{Description: "plain", Action: domain.ActionInference}
	_, err := r.Run(context.Background(), step, engine.RunOptions{})
	require.NoError(t, err)

	require.Len(t, stub.Requests, 1)
	assert.Equal(t, "stub-model", stub.Requests[0].Model)
}

func TestRunRejectsUnknownAction(t *testing.T) {
	r := testRunner(t, &testutil.StubProvider{})

	_, err := r.Run(context.Background(), &domain.SubStep{Action: "teleport"}, engine.RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")
}

func TestInferencePromptIsStableAndComplete(t *testing.T) {
	step := &domain.SubStep{
		Description: "summarize findings",
		Thought:     "read the three inputs first",
		Expected:    "a short paragraph",
		Params: map[string]any{
			"zeta":  "last",
			"alpha": "first",
		},
	}

	prompt := inferencePrompt(step)
	assert.Contains(t, prompt, "Task: summarize findings")
	assert.Contains(t, prompt, "Approach: read the three inputs first")
	assert.Contains(t, prompt, "Expected output: a short paragraph")
	// Params are emitted in sorted key order.
	assert.Less(t, strings.Index(prompt, "alpha:"), strings.Index(prompt, "zeta:"))
}
