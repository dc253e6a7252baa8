package render

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/jmlow/goalflow/internal/domain"
	"github.com/jmlow/goalflow/internal/engine"
)

// Renderer formats engine entities. pretty enables color and rules;
// plain output stays grep-friendly.
type Renderer struct {
	pretty bool
}

func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// Graph formats a task graph with its templates and dependencies.
func (r *Renderer) Graph(g *domain.TaskGraph) string {
	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("%s", g.Title) + "\n")
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	} else {
		sb.WriteString(g.Title + "\n")
	}
	fmt.Fprintf(&sb, "%s  %s  %s\n", g.ID, statusString(string(g.Status), r.pretty), g.Objective)

	for _, t := range g.Templates {
		deps := ""
		if len(t.DependsOn) > 0 {
			deps = " <- " + strings.Join(t.DependsOn, ", ")
		}
		fmt.Fprintf(&sb, "  %-10s [%s] %s%s\n", t.ID, t.Action, Truncate(t.Description, 60), deps)
	}

	if g.PlanningCost > 0 {
		fmt.Fprintf(&sb, "planning: %s tokens, %s\n",
			domain.FormatTokens(g.PlanningUsage.TotalTokens), domain.FormatCost(g.PlanningCost))
	}
	return sb.String()
}

// Graphs formats a graph listing, one line each.
func (r *Renderer) Graphs(graphs []*domain.TaskGraph) string {
	if len(graphs) == 0 {
		return "No graphs found"
	}
	var sb strings.Builder
	for _, g := range graphs {
		fmt.Fprintf(&sb, "%s  %-22s %-12s %s\n",
			g.CreatedAt.Format("2006-01-02 15:04"), g.ID,
			statusString(string(g.Status), r.pretty), Truncate(g.Title, 50))
	}
	return sb.String()
}

// Execution formats an execution summary with its counters.
func (r *Renderer) Execution(e *domain.Execution) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s  %s\n", e.ID, statusString(string(e.Status), r.pretty))
	fmt.Fprintf(&sb, "  goal:     %s\n", Truncate(e.Request, 70))
	fmt.Fprintf(&sb, "  tasks:    %d total, %d completed, %d failed, %d waiting, %d in flight\n",
		e.TotalTasks, e.CompletedTasks, e.FailedTasks, e.WaitingTasks, e.InFlightTasks())
	if e.Duration > 0 {
		fmt.Fprintf(&sb, "  duration: %s\n", FormatDuration(e.Duration))
	}
	if !e.Usage.Empty() {
		fmt.Fprintf(&sb, "  usage:    %s tokens, %s\n",
			domain.FormatTokens(e.Usage.TotalTokens), domain.FormatCost(e.Cost))
	}
	if e.SuspendedReason != "" {
		fmt.Fprintf(&sb, "  suspended: %s\n", e.SuspendedReason)
	}
	return sb.String()
}

// Executions formats an execution listing.
func (r *Renderer) Executions(execs []*domain.Execution) string {
	if len(execs) == 0 {
		return "No executions found"
	}
	var sb strings.Builder
	for _, e := range execs {
		fmt.Fprintf(&sb, "%s  %-22s %-10s %d/%d  %s\n",
			e.StartedAt.Format("2006-01-02 15:04"), e.ID,
			statusString(string(e.Status), r.pretty),
			e.CompletedTasks, e.TotalTasks, Truncate(e.Request, 45))
	}
	return sb.String()
}

// Steps formats an execution's steps in template order.
func (r *Renderer) Steps(steps []*domain.SubStep) string {
	if len(steps) == 0 {
		return "No steps found"
	}
	var sb strings.Builder
	for _, st := range steps {
		icon := stepIcon(st.Status, r.pretty)
		fmt.Fprintf(&sb, "%s %-10s [%s] %s\n", icon, st.TaskID, st.Action, Truncate(st.Description, 60))
		if st.Error != "" {
			fmt.Fprintf(&sb, "    └─ %s\n", Truncate(st.Error, 70))
		}
	}
	return sb.String()
}

// CostBuckets formats a calendar cost summary.
func (r *Renderer) CostBuckets(buckets []engine.BucketSummary) string {
	if len(buckets) == 0 {
		return "No spend recorded"
	}
	var sb strings.Builder
	var totalCost float64
	var totalRuns int
	for _, b := range buckets {
		fmt.Fprintf(&sb, "%-10s  %4d runs  %10s tokens  %s\n",
			b.Bucket, b.Executions, domain.FormatTokens(b.Usage.TotalTokens), domain.FormatCost(b.Cost))
		totalCost += b.Cost
		totalRuns += b.Executions
	}
	fmt.Fprintf(&sb, "%-10s  %4d runs  %s\n", "total", totalRuns, domain.FormatCost(totalCost))
	return sb.String()
}

// PhaseCosts formats an execution's planning/execution split.
func (r *Renderer) PhaseCosts(records []domain.CostRecord) string {
	if len(records) == 0 {
		return "No cost records"
	}
	var sb strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&sb, "%-10s %10s tokens  %s\n",
			rec.Phase, domain.FormatTokens(rec.Usage.TotalTokens), domain.FormatCost(rec.Cost))
	}
	return sb.String()
}

func statusString(status string, pretty bool) string {
	if !pretty {
		return status
	}
	switch status {
	case "completed", "ready":
		return color.GreenString(status)
	case "failed":
		return color.RedString(status)
	case "partial", "suspended", "clarification_required":
		return color.YellowString(status)
	case "running":
		return color.CyanString(status)
	default:
		return status
	}
}

func stepIcon(status domain.StepStatus, pretty bool) string {
	switch status {
	case domain.StepCompleted:
		if pretty {
			return color.GreenString("✓")
		}
		return "✓"
	case domain.StepFailed:
		if pretty {
			return color.RedString("✗")
		}
		return "✗"
	case domain.StepRunning:
		return "▸"
	case domain.StepWaiting:
		return "…"
	default:
		return "•"
	}
}
