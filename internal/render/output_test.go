package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jmlow/goalflow/internal/domain"
	"github.com/jmlow/goalflow/internal/engine"
)

func TestRenderGraphPlain(t *testing.T) {
	r := New(false)
	g := &domain.TaskGraph{
		ID:        "graph_1",
		Title:     "release checklist",
		Objective: "ship v2",
		Status:    domain.GraphReady,
		Templates: []domain.SubTaskTemplate{
			{ID: "build", Description: "compile artifacts", Action: domain.ActionTool},
			{ID: "test", Description: "run the suite", Action: domain.ActionTool, DependsOn: []string{"build"}},
		},
		PlanningUsage: domain.Usage{TotalTokens: 1500},
		PlanningCost:  0.05,
	}

	out := r.Graph(g)
	assert.Contains(t, out, "release checklist")
	assert.Contains(t, out, "graph_1  ready  ship v2")
	assert.Contains(t, out, "<- build")
	assert.Contains(t, out, "planning: 1.5k tokens, $0.05")
}

func TestRenderExecutionCounters(t *testing.T) {
	r := New(false)
	e := &domain.Execution{
		ID:             "exec_1",
		Request:        "ship v2",
		Status:         domain.ExecutionPartial,
		TotalTasks:     5,
		CompletedTasks: 3,
		FailedTasks:    1,
		WaitingTasks:   1,
		Duration:       90 * time.Second,
		Usage:          domain.Usage{TotalTokens: 2000},
		Cost:           0.12,
	}

	out := r.Execution(e)
	assert.Contains(t, out, "exec_1  partial")
	assert.Contains(t, out, "5 total, 3 completed, 1 failed, 1 waiting, 0 in flight")
	assert.Contains(t, out, "duration: 1m30s")
	assert.Contains(t, out, "2.0k tokens, $0.12")
	assert.NotContains(t, out, "suspended")
}

func TestRenderSuspendedExecution(t *testing.T) {
	out := New(false).Execution(&domain.Execution{
		ID:              "exec_2",
		Status:          domain.ExecutionSuspended,
		SuspendedReason: domain.SuspendedReasonStopped,
	})
	assert.Contains(t, out, "suspended: stopped")
}

func TestRenderStepsShowsErrors(t *testing.T) {
	out := New(false).Steps([]*domain.SubStep{
		{TaskID: "a", Action: domain.ActionTool, Description: "fetch data", Status: domain.StepCompleted},
		{TaskID: "b", Action: domain.ActionInference, Description: "summarize", Status: domain.StepFailed, Error: "dependency a failed"},
	})

	assert.Contains(t, out, "✓ a")
	assert.Contains(t, out, "✗ b")
	assert.Contains(t, out, "dependency a failed")
}

func TestRenderEmptyListings(t *testing.T) {
	r := New(false)
	assert.Equal(t, "No graphs found", r.Graphs(nil))
	assert.Equal(t, "No executions found", r.Executions(nil))
	assert.Equal(t, "No steps found", r.Steps(nil))
	assert.Equal(t, "No spend recorded", r.CostBuckets(nil))
	assert.Equal(t, "No cost records", r.PhaseCosts(nil))
}

func TestRenderCostBucketsIncludesTotal(t *testing.T) {
	out := New(false).CostBuckets([]engine.BucketSummary{
		{Bucket: "2026-08-01", Executions: 2, Usage: domain.Usage{TotalTokens: 1000}, Cost: 0.02},
		{Bucket: "2026-08-02", Executions: 1, Usage: domain.Usage{TotalTokens: 500}, Cost: 0.01},
	})

	assert.Contains(t, out, "2026-08-01")
	assert.Contains(t, out, "2026-08-02")
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "3 runs")
	assert.Contains(t, out, "$0.03")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "longer ...", Truncate("longer sentence here", 10))
}

func TestWriterHelpers(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)

	w.Header("graph %s", "graph_1")
	w.Section("steps")
	w.Item("%s done", "a")
	w.Nested("because %s", "reasons")
	w.Empty("nothing else")

	out := buf.String()
	assert.Contains(t, out, "GRAPH GRAPH_1")
	assert.Contains(t, out, "STEPS:")
	assert.Contains(t, out, "  a done")
	assert.Contains(t, out, "    └─ because reasons")
	assert.Contains(t, out, "nothing else")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "2.5s", FormatDuration(2500*time.Millisecond))
	assert.Equal(t, "1m30s", FormatDuration(90*time.Second))
}
