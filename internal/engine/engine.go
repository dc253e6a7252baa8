package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jmlow/goalflow/internal/domain"
	"github.com/jmlow/goalflow/internal/logging"
	"github.com/jmlow/goalflow/internal/metrics"
)

// DefaultConcurrency keeps dispatch sequential unless configured
// otherwise. Template declaration order then fixes the global order.
const DefaultConcurrency = 1

// Config tunes engine construction. Zero values fall back to defaults.
type Config struct {
	// Concurrency bounds how many ready steps run at once.
	Concurrency int
	Metrics     *metrics.Metrics
	Clock       Clock
}

// Engine drives executions of task graphs: it instantiates sub-steps,
// schedules them respecting dependencies, records results and
// aggregates, and honors cooperative stop requests between waves.
type Engine struct {
	store       domain.Store
	runner      StepRunner
	stops       *StopController
	events      *Emitter
	metrics     *metrics.Metrics
	clock       Clock
	concurrency int
	log         *logging.Logger
}

func New(store domain.Store, runner StepRunner, cfg Config) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	return &Engine{
		store:       store,
		runner:      runner,
		stops:       NewStopController(store),
		events:      NewEmitter(),
		metrics:     cfg.Metrics,
		clock:       cfg.Clock,
		concurrency: cfg.Concurrency,
		log:         logging.New("engine"),
	}
}

// Events exposes the live event stream for subscribers.
func (e *Engine) Events() *Emitter { return e.events }

// Stops exposes the stop request surface.
func (e *Engine) Stops() *StopController { return e.stops }

// ExecuteGraph instantiates and runs an execution of a ready graph.
// The graph's templates are copied into sub-steps; a later redo of the
// graph's plan never disturbs past executions.
func (e *Engine) ExecuteGraph(ctx context.Context, graphID string) (*domain.Execution, error) {
	graph, err := e.store.GetGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if graph.Status != domain.GraphReady {
		return nil, fmt.Errorf("graph %s is %s, not ready", graph.ID, graph.Status)
	}

	exec := &domain.Execution{
		ID:        domain.NewExecutionID(),
		GraphID:   graph.ID,
		Request:   graph.Objective,
		Intent:    graph.Title,
		Status:    domain.ExecutionPending,
		StartedAt: e.clock.Now(),
	}
	return e.start(ctx, exec, graph.Templates)
}

// ExecuteAdHoc runs a pre-validated template set without a persisted
// parent graph.
func (e *Engine) ExecuteAdHoc(ctx context.Context, request string, templates []domain.SubTaskTemplate) (*domain.Execution, error) {
	exec := &domain.Execution{
		ID:        domain.NewExecutionID(),
		Request:   request,
		Status:    domain.ExecutionPending,
		StartedAt: e.clock.Now(),
	}
	return e.start(ctx, exec, templates)
}

func (e *Engine) start(ctx context.Context, exec *domain.Execution, templates []domain.SubTaskTemplate) (*domain.Execution, error) {
	steps := domain.NewSubSteps(exec.ID, templates)
	exec.TotalTasks = len(steps)

	if err := e.store.CreateExecution(ctx, exec); err != nil {
		return nil, err
	}
	if err := e.store.CreateSteps(ctx, steps); err != nil {
		return nil, err
	}

	exec.Status = domain.ExecutionRunning
	if err := e.store.UpdateExecution(ctx, exec); err != nil {
		return nil, err
	}
	e.events.Emit(startedEvent(exec))
	e.log.WithExecution(exec.ID).Info("execution started", map[string]any{
		"graph": exec.GraphID, "steps": len(steps),
	})

	if err := e.runLoop(ctx, exec, steps); err != nil {
		return exec, err
	}
	return exec, nil
}

// runLoop is the scheduler: propagate failures, compute the ready set,
// honor stop requests, dispatch one bounded wave, repeat until nothing
// is ready, then settle the terminal status. In-flight steps always
// finish; stops take effect only between waves.
func (e *Engine) runLoop(ctx context.Context, exec *domain.Execution, steps []*domain.SubStep) error {
	log := e.log.WithExecution(exec.ID)
	e.metrics.ActiveExecutions.Inc()
	defer e.metrics.ActiveExecutions.Dec()

	byTask := make(map[string]*domain.SubStep, len(steps))
	for _, st := range steps {
		byTask[st.TaskID] = st
	}

	var mu sync.Mutex // guards exec and steps during a wave

	for {
		if err := e.propagateFailures(ctx, exec, steps, byTask); err != nil {
			return err
		}

		ready := readySteps(steps, byTask)
		if len(ready) == 0 {
			break
		}

		stopped, err := e.stops.Active(ctx, exec)
		if err != nil {
			return err
		}
		if stopped {
			return e.suspend(ctx, exec, domain.SuspendedReasonStopped)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.concurrency)
		for _, st := range ready {
			st := st
			g.Go(func() error {
				return e.dispatch(gctx, exec, st, &mu)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		log.Debug("wave finished", map[string]any{
			"completed": exec.CompletedTasks, "failed": exec.FailedTasks,
		})
	}

	return e.finalize(ctx, exec, steps)
}

// propagateFailures marks pending steps whose dependency chain contains
// a failed step as failed too, to a fixpoint. Propagated steps carry a
// failure message naming the dependency and count toward failedTasks.
func (e *Engine) propagateFailures(ctx context.Context, exec *domain.Execution, steps []*domain.SubStep, byTask map[string]*domain.SubStep) error {
	for {
		changed := false
		for _, st := range steps {
			if st.Status != domain.StepPending {
				continue
			}
			for _, dep := range st.DependsOn {
				d := byTask[dep]
				if d == nil || d.Status != domain.StepFailed {
					continue
				}
				now := e.clock.Now()
				st.Status = domain.StepFailed
				st.Error = fmt.Sprintf("dependency %s failed", dep)
				st.CompletedAt = &now

				exec.FailedTasks++
				if err := e.store.RecordStepResult(ctx, st, exec); err != nil {
					return err
				}
				e.metrics.StepsTotal.WithLabelValues(string(domain.StepFailed)).Inc()
				e.events.Emit(domain.NewEvent(domain.EventStepFailed, exec.ID).
					WithStep(st.Index).WithData("task", st.TaskID).WithError(st.Error))
				changed = true
				break
			}
		}
		if !changed {
			return nil
		}
	}
}

// readySteps returns pending steps whose dependencies have all
// completed, in template declaration order.
func readySteps(steps []*domain.SubStep, byTask map[string]*domain.SubStep) []*domain.SubStep {
	var ready []*domain.SubStep
	for _, st := range steps {
		if st.Status != domain.StepPending {
			continue
		}
		ok := true
		for _, dep := range st.DependsOn {
			d := byTask[dep]
			if d == nil || d.Status != domain.StepCompleted {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, st)
		}
	}
	return ready
}

// dispatch runs one step through the runner and records its outcome.
// Runner failures become step failures, never loop errors; only
// persistence failures abort.
func (e *Engine) dispatch(ctx context.Context, exec *domain.Execution, st *domain.SubStep, mu *sync.Mutex) error {
	start := e.clock.Now()

	mu.Lock()
	st.Status = domain.StepRunning
	st.StartedAt = &start
	mu.Unlock()
	if err := e.store.UpdateStep(ctx, st); err != nil {
		return err
	}
	if st.Action == domain.ActionTool {
		e.events.Emit(domain.NewEvent(domain.EventToolCalled, exec.ID).
			WithStep(st.Index).WithData("tool", st.Target))
	}

	res, err := e.runner.Run(ctx, st, RunOptions{})
	if err != nil {
		res = &RunResult{Error: (&domain.StepExecutionError{StepID: st.ID, TaskID: st.TaskID, Cause: err}).Error()}
	}

	now := e.clock.Now()
	e.metrics.StepDuration.Observe(now.Sub(start).Seconds())

	mu.Lock()
	defer mu.Unlock()

	st.CompletedAt = &now
	st.Duration = now.Sub(start)
	st.Result = res.Output
	st.Error = res.Error
	st.Usage = res.Usage
	st.Cost = res.Cost
	st.Stats = res.Stats

	if res.Success {
		st.Status = domain.StepCompleted
		exec.CompletedTasks++
	} else {
		st.Status = domain.StepFailed
		exec.FailedTasks++
	}
	exec.Usage.Add(res.Usage)
	exec.Cost += res.Cost

	if err := e.store.RecordStepResult(ctx, st, exec); err != nil {
		return err
	}
	e.observeStep(st)
	e.emitStepFinished(exec, st)
	return nil
}

func (e *Engine) observeStep(st *domain.SubStep) {
	e.metrics.StepsTotal.WithLabelValues(string(st.Status)).Inc()
	if st.Usage.PromptTokens > 0 {
		e.metrics.TokensTotal.WithLabelValues("prompt").Add(float64(st.Usage.PromptTokens))
	}
	if st.Usage.CompletionTokens > 0 {
		e.metrics.TokensTotal.WithLabelValues("completion").Add(float64(st.Usage.CompletionTokens))
	}
	if st.Cost > 0 {
		e.metrics.CostTotal.Add(st.Cost)
	}
}

func (e *Engine) emitStepFinished(exec *domain.Execution, st *domain.SubStep) {
	completed := st.Status == domain.StepCompleted
	if st.Action == domain.ActionTool {
		kind := domain.EventToolFailed
		if completed {
			kind = domain.EventToolCompleted
		}
		evt := domain.NewEvent(kind, exec.ID).WithStep(st.Index).WithData("tool", st.Target)
		if !completed {
			evt = evt.WithError(st.Error)
		}
		e.events.Emit(evt)
	}

	kind := domain.EventStepFailed
	if completed {
		kind = domain.EventStepCompleted
	}
	evt := domain.NewEvent(kind, exec.ID).WithStep(st.Index).WithData("task", st.TaskID)
	if !completed {
		evt = evt.WithError(st.Error)
	}
	e.events.Emit(evt)
}

// suspend pauses the execution in a resumable state and marks the
// covering stop requests handled.
func (e *Engine) suspend(ctx context.Context, exec *domain.Execution, reason string) error {
	now := e.clock.Now()
	exec.Status = domain.ExecutionSuspended
	exec.SuspendedReason = reason
	exec.SuspendedAt = &now

	if err := e.store.UpdateExecution(ctx, exec); err != nil {
		return err
	}
	if err := e.stops.Handle(ctx, exec); err != nil {
		return err
	}
	e.events.Emit(domain.NewEvent(domain.EventPaused, exec.ID).WithData("reason", reason))
	e.log.WithExecution(exec.ID).Info("execution suspended", map[string]any{"reason": reason})
	return nil
}

// finalize settles the terminal status once no step is schedulable:
// completed when everything succeeded, partial when failures mixed with
// completions, failed otherwise.
func (e *Engine) finalize(ctx context.Context, exec *domain.Execution, steps []*domain.SubStep) error {
	now := e.clock.Now()
	exec.Status = terminalStatus(exec)
	exec.CompletedAt = &now
	exec.Duration = now.Sub(exec.StartedAt)
	exec.FinalResult = finalResult(steps)

	if err := e.store.UpdateExecution(ctx, exec); err != nil {
		return err
	}
	e.metrics.ExecutionsTotal.WithLabelValues(string(exec.Status)).Inc()
	e.events.Emit(executionFinishedEvent(exec))
	e.log.WithExecution(exec.ID).TimedEvent("execution finished", exec.StartedAt, map[string]any{
		"status": string(exec.Status), "completed": exec.CompletedTasks,
		"failed": exec.FailedTasks, "cost": exec.Cost,
	})
	return nil
}

func executionFinishedEvent(exec *domain.Execution) domain.Event {
	kind := domain.EventCompleted
	if exec.Status == domain.ExecutionFailed {
		kind = domain.EventFailed
	}
	return domain.NewEvent(kind, exec.ID).WithData("status", string(exec.Status))
}

// finalResult is the output of the last completed step in template
// order, the closest thing an unsynthesized run has to an answer.
func finalResult(steps []*domain.SubStep) string {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Status == domain.StepCompleted && steps[i].Result != "" {
			return steps[i].Result
		}
	}
	return ""
}

// GetExecution loads an execution with a liveness guard against ids of
// the wrong kind.
func (e *Engine) GetExecution(ctx context.Context, id string) (*domain.Execution, error) {
	if !domain.HasPrefix(id, domain.PrefixExecution) {
		return nil, &domain.NotFoundError{Kind: "execution", ID: id}
	}
	return e.store.GetExecution(ctx, id)
}
