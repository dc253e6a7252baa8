package plan_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmlow/goalflow/internal/domain"
	"github.com/jmlow/goalflow/internal/plan"
	"github.com/jmlow/goalflow/internal/testutil"
)

type stubDecomposer struct {
	dec *plan.Decomposition
	err error
}

func (s *stubDecomposer) Decompose(ctx context.Context, goal string) (*plan.Decomposition, error) {
	return s.dec, s.err
}

func TestPlanPersistsReadyGraph(t *testing.T) {
	store := testutil.OpenStore(t)
	dec := &plan.Decomposition{
		Title: "Two step plan",
		Templates: []domain.SubTaskTemplate{
			{ID: "t1", Description: "first", Action: domain.ActionTool, Target: "bash"},
			{ID: "t2", Description: "second", Action: domain.ActionInference, Target: "claude", DependsOn: []string{"t1"}},
		},
		Usage: domain.Usage{PromptTokens: 120, CompletionTokens: 80, TotalTokens: 200},
		Cost:  0.0042,
	}

	p := plan.NewPlanner(&stubDecomposer{dec: dec}, store)
	res, err := p.Plan(context.Background(), "do the two things")
	require.NoError(t, err)
	require.NotNil(t, res.Graph)
	assert.Empty(t, res.Clarification)

	g, err := store.GetGraph(context.Background(), res.Graph.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GraphReady, g.Status)
	assert.True(t, strings.HasPrefix(g.ID, "graph_"))
	assert.Equal(t, "do the two things", g.Objective)
	assert.Len(t, g.Templates, 2)
	assert.Equal(t, []string{"t1"}, g.Templates[1].DependsOn)
	assert.Equal(t, 200, g.PlanningUsage.TotalTokens)
	assert.InDelta(t, 0.0042, g.PlanningCost, 1e-9)
}

func TestPlanClarificationPersistsNothing(t *testing.T) {
	store := testutil.OpenStore(t)
	dec := &plan.Decomposition{
		NeedsClarification: true,
		Clarification:      "which environment should this target?",
	}

	p := plan.NewPlanner(&stubDecomposer{dec: dec}, store)
	res, err := p.Plan(context.Background(), "deploy it")
	require.NoError(t, err)
	assert.Nil(t, res.Graph)
	assert.Equal(t, "which environment should this target?", res.Clarification)

	graphs, err := store.ListGraphs(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, graphs)
}

func TestPlanRejectsInvalidDecomposition(t *testing.T) {
	store := testutil.OpenStore(t)
	dec := &plan.Decomposition{
		Templates: []domain.SubTaskTemplate{
			{ID: "a", Action: domain.ActionTool, Target: "bash", DependsOn: []string{"b"}},
			{ID: "b", Action: domain.ActionTool, Target: "bash", DependsOn: []string{"a"}},
		},
	}

	p := plan.NewPlanner(&stubDecomposer{dec: dec}, store)
	_, err := p.Plan(context.Background(), "impossible")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")

	graphs, err := store.ListGraphs(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, graphs)
}
