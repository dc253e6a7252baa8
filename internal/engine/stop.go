package engine

import (
	"context"

	"github.com/jmlow/goalflow/internal/domain"
	"github.com/jmlow/goalflow/internal/logging"
)

// StopController is the write and query surface of the stop-request
// subsystem. Requests are cooperative: the scheduler polls Active
// between ticks and never aborts in-flight step calls.
type StopController struct {
	store domain.StopRequestStore
	log   *logging.Logger
}

func NewStopController(store domain.StopRequestStore) *StopController {
	return &StopController{store: store, log: logging.New("stop")}
}

// RequestExecutionStop appends a stop request scoped to one execution.
// Requesting an already-stopping execution is accepted and changes
// nothing observable.
func (c *StopController) RequestExecutionStop(ctx context.Context, executionID string) (*domain.StopRequest, error) {
	return c.request(ctx, domain.StopScopeExecution, executionID)
}

// RequestGraphStop appends a stop request scoped to a graph; it covers
// every execution of that graph.
func (c *StopController) RequestGraphStop(ctx context.Context, graphID string) (*domain.StopRequest, error) {
	return c.request(ctx, domain.StopScopeGraph, graphID)
}

func (c *StopController) request(ctx context.Context, scope domain.StopScope, scopeID string) (*domain.StopRequest, error) {
	r := domain.NewStopRequest(scope, scopeID)
	if err := c.store.CreateStopRequest(ctx, r); err != nil {
		return nil, err
	}
	c.log.Info("stop requested", map[string]any{"scope": string(scope), "scope_id": scopeID})
	return r, nil
}

// Active reports whether a stop request covers the execution, checking
// its own scope and, for graphed runs, the parent graph's scope.
func (c *StopController) Active(ctx context.Context, exec *domain.Execution) (bool, error) {
	active, err := c.store.HasActiveStopRequest(ctx, domain.StopScopeExecution, exec.ID)
	if err != nil || active {
		return active, err
	}
	if exec.GraphID == "" {
		return false, nil
	}
	return c.store.HasActiveStopRequest(ctx, domain.StopScopeGraph, exec.GraphID)
}

// Handle marks every request covering the execution as handled, each
// scope atomically.
func (c *StopController) Handle(ctx context.Context, exec *domain.Execution) error {
	if _, err := c.store.MarkStopRequestsHandled(ctx, domain.StopScopeExecution, exec.ID); err != nil {
		return err
	}
	if exec.GraphID != "" {
		if _, err := c.store.MarkStopRequestsHandled(ctx, domain.StopScopeGraph, exec.GraphID); err != nil {
			return err
		}
	}
	return nil
}
