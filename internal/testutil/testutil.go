// Package testutil provides shared fakes for engine and planner tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmlow/goalflow/internal/domain"
	"github.com/jmlow/goalflow/internal/engine"
	"github.com/jmlow/goalflow/internal/provider"
	"github.com/jmlow/goalflow/internal/storage"
)

// OpenStore opens a throwaway sqlite store under t.TempDir.
func OpenStore(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// StubRunner is a StepRunner driven by per-task outcomes. It records
// every dispatch so tests can assert call counts and ordering.
type StubRunner struct {
	mu sync.Mutex

	// Fail lists task ids that should fail; everything else succeeds.
	Fail map[string]bool
	// Results maps task id to the output to return.
	Results map[string]string
	// UsagePerStep, CostPerStep apply to every successful dispatch.
	UsagePerStep domain.Usage
	CostPerStep  float64

	calls []string
	opts  map[string]engine.RunOptions
}

func NewStubRunner() *StubRunner {
	return &StubRunner{
		Fail:    make(map[string]bool),
		Results: make(map[string]string),
		opts:    make(map[string]engine.RunOptions),
	}
}

func (r *StubRunner) Run(ctx context.Context, step *domain.SubStep, opts engine.RunOptions) (*engine.RunResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, step.TaskID)
	r.opts[step.TaskID] = opts
	r.mu.Unlock()

	if r.Fail[step.TaskID] {
		return &engine.RunResult{Error: fmt.Sprintf("task %s blew up", step.TaskID)}, nil
	}

	output := r.Results[step.TaskID]
	if output == "" {
		output = "done: " + step.TaskID
	}
	return &engine.RunResult{
		Success: true,
		Output:  output,
		Usage:   r.UsagePerStep,
		Cost:    r.CostPerStep,
	}, nil
}

// Calls returns task ids in dispatch order.
func (r *StubRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// CallCount returns how many times a task was dispatched.
func (r *StubRunner) CallCount(taskID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range r.calls {
		if id == taskID {
			n++
		}
	}
	return n
}

// LastOpts returns the options of a task's most recent dispatch.
func (r *StubRunner) LastOpts(taskID string) engine.RunOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts[taskID]
}

// StubProvider returns canned completions.
type StubProvider struct {
	Name      string
	Response  string
	Usage     domain.Usage
	Cost      float64
	Err       error
	Requests  []*provider.Request
	requestMu sync.Mutex
}

func (p *StubProvider) ID() string {
	if p.Name == "" {
		return "stub"
	}
	return p.Name
}

func (p *StubProvider) Models() []domain.Model {
	return []domain.Model{{ID: "stub-model", Name: "Stub"}}
}

func (p *StubProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	p.requestMu.Lock()
	p.Requests = append(p.Requests, req)
	p.requestMu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	return &provider.Response{Text: p.Response, Usage: p.Usage, Cost: p.Cost}, nil
}

// FixedClock reports a settable instant, for deterministic bucketing
// and duration assertions.
type FixedClock struct {
	mu      sync.Mutex
	current time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{current: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

var (
	_ engine.Clock      = (*FixedClock)(nil)
	_ engine.StepRunner = (*StubRunner)(nil)
	_ provider.Provider = (*StubProvider)(nil)
)
