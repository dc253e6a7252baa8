package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/jmlow/goalflow/internal/domain"
	"github.com/jmlow/goalflow/internal/provider"
)

// Decomposer turns a natural-language goal into a candidate task graph
// or a clarification request.
type Decomposer interface {
	Decompose(ctx context.Context, goal string) (*Decomposition, error)
}

const decomposeSystemPrompt = `You break a user goal into a dependency graph of sub-tasks.
Respond with a single JSON object, no prose:
{
  "title": "short graph title",
  "intent": "one-line primary intent",
  "clarification_required": false,
  "clarification": "",
  "tasks": [
    {
      "id": "t1",
      "description": "what this step does",
      "thought": "why this step exists",
      "action": "tool" or "inference",
      "target": "tool name or agent name",
      "params": {},
      "expected": "expected output",
      "depends_on": ["t0"]
    }
  ]
}
Set clarification_required true and fill clarification when the goal is
too ambiguous to plan. Dependencies must reference task ids in this
response and must not form cycles.`

// decompositionJSON mirrors the model's response shape.
type decompositionJSON struct {
	Title                 string `json:"title"`
	Intent                string `json:"intent"`
	ClarificationRequired bool   `json:"clarification_required"`
	Clarification         string `json:"clarification"`
	Tasks                 []struct {
		ID          string         `json:"id"`
		Description string         `json:"description"`
		Thought     string         `json:"thought"`
		Action      string         `json:"action"`
		Target      string         `json:"target"`
		Params      map[string]any `json:"params"`
		Expected    string         `json:"expected"`
		DependsOn   []string       `json:"depends_on"`
	} `json:"tasks"`
}

// LLMDecomposer prompts a provider for a JSON plan.
type LLMDecomposer struct {
	provider provider.Provider
	model    string
}

func NewLLMDecomposer(p provider.Provider, model string) *LLMDecomposer {
	return &LLMDecomposer{provider: p, model: model}
}

func (d *LLMDecomposer) Decompose(ctx context.Context, goal string) (*Decomposition, error) {
	resp, err := d.provider.Complete(ctx, &provider.Request{
		Model:  d.model,
		System: decomposeSystemPrompt,
		Prompt: goal,
	})
	if err != nil {
		return nil, fmt.Errorf("decompose goal: %w", err)
	}

	parsed, err := parsePlanJSON(resp.Text)
	if err != nil {
		return nil, err
	}

	dec := &Decomposition{
		Title:              parsed.Title,
		Intent:             parsed.Intent,
		NeedsClarification: parsed.ClarificationRequired,
		Clarification:      parsed.Clarification,
		Usage:              resp.Usage,
		Cost:               resp.Cost,
	}
	for _, t := range parsed.Tasks {
		dec.Templates = append(dec.Templates, domain.SubTaskTemplate{
			ID:          t.ID,
			Description: t.Description,
			Thought:     t.Thought,
			Action:      domain.ActionKind(t.Action),
			Target:      t.Target,
			Params:      t.Params,
			Expected:    t.Expected,
			DependsOn:   t.DependsOn,
		})
	}
	return dec, nil
}

// parsePlanJSON extracts the JSON object from model output, repairing
// malformed JSON before giving up. Models wrap plans in code fences or
// truncate trailing braces often enough that repair pays for itself.
func parsePlanJSON(text string) (*decompositionJSON, error) {
	raw := strings.TrimSpace(text)
	if i := strings.Index(raw, "{"); i > 0 {
		raw = raw[i:]
	}
	if i := strings.LastIndex(raw, "}"); i >= 0 {
		raw = raw[:i+1]
	}

	var parsed decompositionJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		fixed, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, fmt.Errorf("plan is not valid JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(fixed), &parsed); err != nil {
			return nil, fmt.Errorf("plan is not valid JSON after repair: %w", err)
		}
	}
	return &parsed, nil
}
