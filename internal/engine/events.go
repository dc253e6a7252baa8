package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/jmlow/goalflow/internal/domain"
)

const subscriberBuffer = 128

// Emitter fans execution lifecycle events out to subscribers. Delivery
// is best effort: a subscriber that falls behind its buffer misses
// events and is expected to reconstruct them via Replay. Streams are
// finite; the channel closes after the terminal event.
type Emitter struct {
	mu   sync.Mutex
	subs map[string][]chan domain.Event
}

func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[string][]chan domain.Event)}
}

// Subscribe registers for an execution's events. The returned cancel
// func is safe to call more than once and after stream close.
func (em *Emitter) Subscribe(executionID string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	em.mu.Lock()
	em.subs[executionID] = append(em.subs[executionID], ch)
	em.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			em.mu.Lock()
			defer em.mu.Unlock()
			chans := em.subs[executionID]
			for i, c := range chans {
				if c == ch {
					em.subs[executionID] = append(chans[:i], chans[i+1:]...)
					close(c)
					return
				}
			}
			// Already closed by a terminal event.
		})
	}
	return ch, cancel
}

// Emit delivers the event to every subscriber of its execution, in the
// order the scheduler produced it. After a terminal event all channels
// for the execution are closed.
func (em *Emitter) Emit(evt domain.Event) {
	em.mu.Lock()
	defer em.mu.Unlock()

	for _, ch := range em.subs[evt.ExecutionID] {
		select {
		case ch <- evt:
		default: // slow subscriber, best effort
		}
	}

	if evt.Type.Terminal() {
		for _, ch := range em.subs[evt.ExecutionID] {
			close(ch)
		}
		delete(em.subs, evt.ExecutionID)
	}
}

// Replay reconstructs an execution's event stream from persisted rows,
// for subscribers that joined after the fact. The reconstruction keys
// off step statuses and timestamps, so a crash between an event and its
// persisted row costs at most that event.
func Replay(ctx context.Context, store domain.Store, executionID string) ([]domain.Event, error) {
	exec, err := store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	steps, err := store.GetSteps(ctx, executionID)
	if err != nil {
		return nil, err
	}

	events := []domain.Event{startedEvent(exec)}

	done := make([]*domain.SubStep, 0, len(steps))
	for _, st := range steps {
		if st.Status.Terminal() {
			done = append(done, st)
		}
	}
	sort.SliceStable(done, func(i, j int) bool {
		a, b := done[i], done[j]
		if a.CompletedAt != nil && b.CompletedAt != nil && !a.CompletedAt.Equal(*b.CompletedAt) {
			return a.CompletedAt.Before(*b.CompletedAt)
		}
		return a.Index < b.Index
	})

	for _, st := range done {
		events = append(events, stepEvents(exec, st)...)
	}

	switch {
	case exec.Status == domain.ExecutionSuspended:
		evt := domain.NewEvent(domain.EventPaused, exec.ID).WithData("reason", exec.SuspendedReason)
		if exec.SuspendedAt != nil {
			evt.Timestamp = *exec.SuspendedAt
		}
		events = append(events, evt)
	case exec.Status.Terminal():
		events = append(events, terminalEvent(exec))
	}
	return events, nil
}

func startedEvent(exec *domain.Execution) domain.Event {
	evt := domain.NewEvent(domain.EventStarted, exec.ID).WithData("request", exec.Request)
	evt.Timestamp = exec.StartedAt
	return evt
}

func stepEvents(exec *domain.Execution, st *domain.SubStep) []domain.Event {
	var events []domain.Event

	completed := st.Status == domain.StepCompleted
	if st.Action == domain.ActionTool && st.StartedAt != nil {
		called := domain.NewEvent(domain.EventToolCalled, exec.ID).WithStep(st.Index).WithData("tool", st.Target)
		called.Timestamp = *st.StartedAt

		kind := domain.EventToolFailed
		if completed {
			kind = domain.EventToolCompleted
		}
		finished := domain.NewEvent(kind, exec.ID).WithStep(st.Index).WithData("tool", st.Target)
		if st.CompletedAt != nil {
			finished.Timestamp = *st.CompletedAt
		}
		if !completed {
			finished = finished.WithError(st.Error)
		}
		events = append(events, called, finished)
	}

	kind := domain.EventStepFailed
	if completed {
		kind = domain.EventStepCompleted
	}
	evt := domain.NewEvent(kind, exec.ID).WithStep(st.Index).WithData("task", st.TaskID)
	if st.CompletedAt != nil {
		evt.Timestamp = *st.CompletedAt
	}
	if !completed {
		evt = evt.WithError(st.Error)
	}
	return append(events, evt)
}

func terminalEvent(exec *domain.Execution) domain.Event {
	kind := domain.EventCompleted
	if exec.Status == domain.ExecutionFailed {
		kind = domain.EventFailed
	}
	evt := domain.NewEvent(kind, exec.ID).WithData("status", string(exec.Status))
	if exec.CompletedAt != nil {
		evt.Timestamp = *exec.CompletedAt
	}
	return evt
}
