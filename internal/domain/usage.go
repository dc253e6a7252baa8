package domain

import "fmt"

// Usage tracks token counts for a step, an execution, or a summary bucket.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Add combines two Usage values.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Empty reports whether the usage carries no tokens.
func (u Usage) Empty() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}

// Model describes an inference model with per-million-token pricing.
type Model struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ContextSize int     `json:"context_size"`
	InputCost   float64 `json:"input_cost"`  // $ per 1M prompt tokens
	OutputCost  float64 `json:"output_cost"` // $ per 1M completion tokens
}

// CalculateCost computes the dollar cost of a usage under a model's pricing.
func CalculateCost(u Usage, m Model) float64 {
	return float64(u.PromptTokens)*m.InputCost/1_000_000 +
		float64(u.CompletionTokens)*m.OutputCost/1_000_000
}

// FormatCost returns a human-readable cost string.
func FormatCost(cost float64) string {
	if cost == 0 {
		return "$0.00"
	}
	if cost < 0.01 {
		return "<$0.01"
	}
	return fmt.Sprintf("$%.2f", cost)
}

// FormatTokens returns a human-readable token count.
func FormatTokens(tokens int) string {
	if tokens < 1000 {
		return fmt.Sprintf("%d", tokens)
	}
	return fmt.Sprintf("%.1fk", float64(tokens)/1000)
}

// CostPhase attributes a cost record to graph construction or step dispatch.
type CostPhase string

const (
	PhasePlanning  CostPhase = "planning"
	PhaseExecution CostPhase = "execution"
)

// CostRecord is the derived per-phase (cost, usage) pair. It is computed
// from graphs and executions, never stored on its own.
type CostRecord struct {
	Phase CostPhase `json:"phase"`
	Usage Usage     `json:"usage"`
	Cost  float64   `json:"cost"`
}
