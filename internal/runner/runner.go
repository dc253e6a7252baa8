// Package runner bridges the scheduler's step contract to concrete
// collaborators: the tool registry and the provider factory.
package runner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmlow/goalflow/internal/domain"
	"github.com/jmlow/goalflow/internal/engine"
	"github.com/jmlow/goalflow/internal/logging"
	"github.com/jmlow/goalflow/internal/provider"
	"github.com/jmlow/goalflow/internal/tool"
)

// Runner dispatches tool steps to the registry and inference steps to
// an LLM provider.
type Runner struct {
	tools     *tool.Registry
	providers *provider.Factory

	// Defaults for inference steps that do not name a model.
	ProviderID string
	ModelID    string

	log *logging.Logger
}

func New(tools *tool.Registry, providers *provider.Factory, providerID, modelID string) *Runner {
	return &Runner{
		tools:      tools,
		providers:  providers,
		ProviderID: providerID,
		ModelID:    modelID,
		log:        logging.New("runner"),
	}
}

// Run executes one sub-step. Failures come back inside the result; a
// returned error means the step could not be dispatched at all.
func (r *Runner) Run(ctx context.Context, step *domain.SubStep, opts engine.RunOptions) (*engine.RunResult, error) {
	switch step.Action {
	case domain.ActionTool:
		return r.runTool(ctx, step)
	case domain.ActionInference:
		return r.runInference(ctx, step, opts)
	default:
		return nil, fmt.Errorf("unknown action kind: %q", step.Action)
	}
}

func (r *Runner) runTool(ctx context.Context, step *domain.SubStep) (*engine.RunResult, error) {
	res, err := r.tools.Execute(ctx, step.Target, step.Params)
	if err != nil && res == nil {
		return nil, err
	}

	out := &engine.RunResult{
		Success: res.Error == nil,
		Output:  res.Output,
		Stats:   res.Metadata,
	}
	if res.Error != nil {
		out.Error = res.Error.Error()
	}
	return out, nil
}

func (r *Runner) runInference(ctx context.Context, step *domain.SubStep, opts engine.RunOptions) (*engine.RunResult, error) {
	providerID := r.ProviderID
	if opts.ProviderID != "" {
		providerID = opts.ProviderID
	}
	p, err := r.providers.Get(providerID)
	if err != nil {
		return nil, err
	}

	model := step.Target
	if opts.ModelID != "" {
		model = opts.ModelID
	}
	if model == "" {
		model = r.ModelID
	}

	resp, err := p.Complete(ctx, &provider.Request{
		Model:  model,
		System: inferenceSystemPrompt,
		Prompt: inferencePrompt(step),
	})
	if err != nil {
		return &engine.RunResult{Error: err.Error()}, nil
	}

	return &engine.RunResult{
		Success: true,
		Output:  resp.Text,
		Usage:   resp.Usage,
		Cost:    resp.Cost,
		Stats:   resp.Stats,
	}, nil
}

const inferenceSystemPrompt = `You are executing one sub-task of a larger goal.
Produce only the sub-task's output. Be direct; no preamble.`

// inferencePrompt flattens the step into a task prompt. Params become
// labeled context lines so the model sees the planner's inputs.
func inferencePrompt(step *domain.SubStep) string {
	var sb strings.Builder
	sb.WriteString("Task: " + step.Description + "\n")
	if step.Thought != "" {
		sb.WriteString("Approach: " + step.Thought + "\n")
	}
	if step.Expected != "" {
		sb.WriteString("Expected output: " + step.Expected + "\n")
	}
	keys := make([]string, 0, len(step.Params))
	for k := range step.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %v\n", k, step.Params[k])
	}
	return sb.String()
}

var _ engine.StepRunner = (*Runner)(nil)
