package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmlow/goalflow/internal/domain"
)

// Clock supplies the engine's notion of now. Injected so timestamps and
// cost bucketing are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// recompute derives an execution's counters, usage, cost and status
// from its current steps. It is the single source of truth for the
// counter invariant: total = completed + failed + waiting + in-flight.
func recompute(exec *domain.Execution, steps []*domain.SubStep) {
	exec.TotalTasks = len(steps)
	exec.CompletedTasks = 0
	exec.FailedTasks = 0
	exec.WaitingTasks = 0
	exec.Usage = domain.Usage{}
	exec.Cost = 0

	allTerminal := len(steps) > 0
	for _, st := range steps {
		switch st.Status {
		case domain.StepCompleted:
			exec.CompletedTasks++
		case domain.StepFailed:
			exec.FailedTasks++
		case domain.StepWaiting:
			exec.WaitingTasks++
		}
		if !st.Status.Terminal() {
			allTerminal = false
		}
		exec.Usage.Add(st.Usage)
		exec.Cost += st.Cost
	}

	if allTerminal {
		exec.Status = terminalStatus(exec)
	}
}

// terminalStatus applies the terminal-status rule: completed when no
// failures, partial when failures and completions mix, failed when
// every attempted step failed.
func terminalStatus(exec *domain.Execution) domain.ExecutionStatus {
	switch {
	case exec.FailedTasks == 0 && exec.WaitingTasks == 0 && exec.CompletedTasks == exec.TotalTasks:
		return domain.ExecutionCompleted
	case exec.FailedTasks > 0 && exec.CompletedTasks > 0:
		return domain.ExecutionPartial
	default:
		return domain.ExecutionFailed
	}
}

// BucketBy selects the calendar granularity of a cost summary.
type BucketBy string

const (
	BucketDay   BucketBy = "day"
	BucketWeek  BucketBy = "week"
	BucketMonth BucketBy = "month"
)

// BucketSummary aggregates execution spend within one calendar bucket.
type BucketSummary struct {
	Bucket     string       `json:"bucket"`
	Start      time.Time    `json:"start"`
	Executions int          `json:"executions"`
	Usage      domain.Usage `json:"usage"`
	Cost       float64      `json:"cost"`
}

// CostSummary groups every execution's spend into calendar-aligned
// buckets. An execution is bucketed on completedAt, or startedAt while
// incomplete, so the partition covers all rows without overlap.
func (e *Engine) CostSummary(ctx context.Context, by BucketBy) ([]BucketSummary, error) {
	execs, err := e.store.ListExecutions(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	return SummarizeCosts(execs, by)
}

// SummarizeCosts buckets executions by calendar day, ISO week (Monday
// start) or calendar month.
func SummarizeCosts(execs []*domain.Execution, by BucketBy) ([]BucketSummary, error) {
	switch by {
	case BucketDay, BucketWeek, BucketMonth:
	default:
		return nil, fmt.Errorf("unknown bucket granularity: %q", by)
	}

	buckets := make(map[string]*BucketSummary)
	for _, exec := range execs {
		ts := exec.StartedAt
		if exec.CompletedAt != nil {
			ts = *exec.CompletedAt
		}
		key, start := bucketOf(ts.UTC(), by)

		b, ok := buckets[key]
		if !ok {
			b = &BucketSummary{Bucket: key, Start: start}
			buckets[key] = b
		}
		b.Executions++
		b.Usage.Add(exec.Usage)
		b.Cost += exec.Cost
	}

	out := make([]BucketSummary, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// bucketOf maps a timestamp to its calendar bucket key and start. Week
// buckets follow ISO 8601: weeks start Monday and the key carries the
// ISO year, which can differ from the calendar year at boundaries.
func bucketOf(t time.Time, by BucketBy) (string, time.Time) {
	switch by {
	case BucketDay:
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return start.Format("2006-01-02"), start
	case BucketWeek:
		isoYear, isoWeek := t.ISOWeek()
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		for start.Weekday() != time.Monday {
			start = start.AddDate(0, 0, -1)
		}
		return fmt.Sprintf("%04d-W%02d", isoYear, isoWeek), start
	default: // BucketMonth
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start.Format("2006-01"), start
	}
}
