package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmlow/goalflow/internal/domain"
)

func openTestStore(t *testing.T) *Storage {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testGraph() *domain.TaskGraph {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.TaskGraph{
		ID:        domain.NewGraphID(),
		Title:     "Release pipeline",
		Objective: "cut and ship the release",
		Status:    domain.GraphReady,
		Templates: []domain.SubTaskTemplate{
			{ID: "t1", Description: "run tests", Action: domain.ActionTool, Target: "bash",
				Params: map[string]any{"command": "go test ./..."}},
			{ID: "t2", Description: "write notes", Action: domain.ActionInference, Target: "claude-sonnet",
				DependsOn: []string{"t1"}},
		},
		PlanningUsage: domain.Usage{PromptTokens: 500, CompletionTokens: 300, TotalTokens: 800},
		PlanningCost:  0.012,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func testExecution(graphID string) *domain.Execution {
	return &domain.Execution{
		ID:        domain.NewExecutionID(),
		GraphID:   graphID,
		Request:   "cut and ship the release",
		Status:    domain.ExecutionPending,
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestGraphRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := testGraph()
	require.NoError(t, s.CreateGraph(ctx, g))

	got, err := s.GetGraph(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Title, got.Title)
	assert.Equal(t, domain.GraphReady, got.Status)
	require.Len(t, got.Templates, 2)
	assert.Equal(t, "go test ./...", got.Templates[0].Params["command"])
	assert.Equal(t, []string{"t1"}, got.Templates[1].DependsOn)
	assert.Equal(t, 800, got.PlanningUsage.TotalTokens)
	assert.InDelta(t, 0.012, got.PlanningCost, 1e-9)
}

func TestGetGraphNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetGraph(context.Background(), "graph_missing")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestUpdateGraphStatusKeepsTemplates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := testGraph()
	require.NoError(t, s.CreateGraph(ctx, g))
	require.NoError(t, s.UpdateGraphStatus(ctx, g.ID, domain.GraphCancelled, ""))

	got, err := s.GetGraph(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GraphCancelled, got.Status)
	assert.Len(t, got.Templates, 2)

	err = s.UpdateGraphStatus(ctx, "graph_missing", domain.GraphFailed, "")
	assert.True(t, domain.IsNotFound(err))
}

func TestExecutionRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := testGraph()
	require.NoError(t, s.CreateGraph(ctx, g))

	e := testExecution(g.ID)
	require.NoError(t, s.CreateExecution(ctx, e))

	now := time.Now().UTC().Truncate(time.Second)
	e.Status = domain.ExecutionCompleted
	e.CompletedAt = &now
	e.Duration = 90 * time.Second
	e.TotalTasks = 2
	e.CompletedTasks = 2
	e.Usage = domain.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}
	e.Cost = 0.003
	e.FinalResult = "released v2.1.0"
	require.NoError(t, s.UpdateExecution(ctx, e))

	got, err := s.GetExecution(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCompleted, got.Status)
	assert.Equal(t, 90*time.Second, got.Duration)
	assert.Equal(t, 2, got.CompletedTasks)
	assert.Equal(t, "released v2.1.0", got.FinalResult)
	assert.Equal(t, 150, got.Usage.TotalTokens)
	require.NotNil(t, got.CompletedAt)
}

func TestListExecutionsFilterAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := testGraph()
	require.NoError(t, s.CreateGraph(ctx, g))

	other := testGraph()
	other.ID = domain.NewGraphID()
	require.NoError(t, s.CreateGraph(ctx, other))

	for i := 0; i < 3; i++ {
		e := testExecution(g.ID)
		e.StartedAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.CreateExecution(ctx, e))
	}
	require.NoError(t, s.CreateExecution(ctx, testExecution(other.ID)))

	all, err := s.ListExecutions(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	filtered, err := s.ListExecutions(ctx, g.ID, 0)
	require.NoError(t, err)
	assert.Len(t, filtered, 3)
	// Newest first.
	for i := 1; i < len(filtered); i++ {
		assert.False(t, filtered[i].StartedAt.After(filtered[i-1].StartedAt))
	}

	limited, err := s.ListExecutions(ctx, g.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStepsRoundtripInTemplateOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := testGraph()
	require.NoError(t, s.CreateGraph(ctx, g))
	e := testExecution(g.ID)
	require.NoError(t, s.CreateExecution(ctx, e))

	steps := domain.NewSubSteps(e.ID, g.Templates)
	require.NoError(t, s.CreateSteps(ctx, steps))

	got, err := s.GetSteps(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].TaskID)
	assert.Equal(t, "t2", got[1].TaskID)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, domain.StepPending, got[0].Status)
	assert.Equal(t, "go test ./...", got[0].Params["command"])
	assert.Equal(t, []string{"t1"}, got[1].DependsOn)
}

func TestRecordStepResultWritesStepAndCounters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := testGraph()
	require.NoError(t, s.CreateGraph(ctx, g))
	e := testExecution(g.ID)
	e.TotalTasks = 2
	require.NoError(t, s.CreateExecution(ctx, e))

	steps := domain.NewSubSteps(e.ID, g.Templates)
	require.NoError(t, s.CreateSteps(ctx, steps))

	now := time.Now().UTC().Truncate(time.Second)
	st := steps[0]
	st.Status = domain.StepCompleted
	st.StartedAt = &now
	st.CompletedAt = &now
	st.Result = "ok"
	st.Usage = domain.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	st.Cost = 0.001

	e.CompletedTasks = 1
	e.Usage.Add(st.Usage)
	e.Cost += st.Cost
	require.NoError(t, s.RecordStepResult(ctx, st, e))

	gotSteps, err := s.GetSteps(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepCompleted, gotSteps[0].Status)
	assert.Equal(t, "ok", gotSteps[0].Result)

	gotExec, err := s.GetExecution(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotExec.CompletedTasks)
	assert.Equal(t, 15, gotExec.Usage.TotalTokens)
	assert.InDelta(t, 0.001, gotExec.Cost, 1e-9)

	// Counter invariant holds on the persisted row.
	inFlight := gotExec.TotalTasks - gotExec.CompletedTasks - gotExec.FailedTasks - gotExec.WaitingTasks
	assert.Equal(t, 1, inFlight)
}

func TestStopRequestLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	execID := domain.NewExecutionID()

	active, err := s.HasActiveStopRequest(ctx, domain.StopScopeExecution, execID)
	require.NoError(t, err)
	assert.False(t, active)

	// Duplicates are accepted; "has active" stays a membership test.
	require.NoError(t, s.CreateStopRequest(ctx, domain.NewStopRequest(domain.StopScopeExecution, execID)))
	require.NoError(t, s.CreateStopRequest(ctx, domain.NewStopRequest(domain.StopScopeExecution, execID)))

	active, err = s.HasActiveStopRequest(ctx, domain.StopScopeExecution, execID)
	require.NoError(t, err)
	assert.True(t, active)

	n, err := s.MarkStopRequestsHandled(ctx, domain.StopScopeExecution, execID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	active, err = s.HasActiveStopRequest(ctx, domain.StopScopeExecution, execID)
	require.NoError(t, err)
	assert.False(t, active)

	// Handling again is a no-op.
	n, err = s.MarkStopRequestsHandled(ctx, domain.StopScopeExecution, execID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	all, err := s.ListStopRequests(ctx, domain.StopScopeExecution, execID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, r := range all {
		assert.Equal(t, domain.StopHandled, r.Status)
		assert.NotNil(t, r.HandledAt)
	}
}

func TestMarkHandledIsScopedPerScope(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	graphID := domain.NewGraphID()
	execID := domain.NewExecutionID()

	require.NoError(t, s.CreateStopRequest(ctx, domain.NewStopRequest(domain.StopScopeGraph, graphID)))
	require.NoError(t, s.CreateStopRequest(ctx, domain.NewStopRequest(domain.StopScopeExecution, execID)))

	n, err := s.MarkStopRequestsHandled(ctx, domain.StopScopeExecution, execID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The graph-scoped request stays active.
	active, err := s.HasActiveStopRequest(ctx, domain.StopScopeGraph, graphID)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestExecutionPhaseCosts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := testGraph()
	require.NoError(t, s.CreateGraph(ctx, g))

	e := testExecution(g.ID)
	e.Usage = domain.Usage{PromptTokens: 60, CompletionTokens: 40, TotalTokens: 100}
	e.Cost = 0.005
	require.NoError(t, s.CreateExecution(ctx, e))

	records, err := s.ExecutionPhaseCosts(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.PhasePlanning, records[0].Phase)
	assert.Equal(t, 800, records[0].Usage.TotalTokens)
	assert.Equal(t, domain.PhaseExecution, records[1].Phase)
	assert.InDelta(t, 0.005, records[1].Cost, 1e-9)
}

func TestExecutionPhaseCostsAdHoc(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := testExecution("")
	require.NoError(t, s.CreateExecution(ctx, e))

	records, err := s.ExecutionPhaseCosts(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.PhaseExecution, records[0].Phase)
}

func TestGraphCostSumsExecutions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := testGraph()
	require.NoError(t, s.CreateGraph(ctx, g))

	for i := 0; i < 2; i++ {
		e := testExecution(g.ID)
		e.Usage = domain.Usage{PromptTokens: 100, CompletionTokens: 100, TotalTokens: 200}
		e.Cost = 0.01
		require.NoError(t, s.CreateExecution(ctx, e))
	}

	usage, cost, err := s.GraphCost(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 800+400, usage.TotalTokens)
	assert.InDelta(t, 0.012+0.02, cost, 1e-9)
}

func TestPing(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
