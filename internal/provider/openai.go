package provider

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jmlow/goalflow/internal/domain"
)

// OpenAI adapts the OpenAI chat completion API.
type OpenAI struct {
	client *openai.Client
}

func NewOpenAI(apiKey, baseURL string) *OpenAI {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg)}
}

func (o *OpenAI) ID() string { return "openai" }

func (o *OpenAI) Models() []domain.Model {
	return []domain.Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000, InputCost: 2.5, OutputCost: 10},
		{ID: "gpt-4o-mini", Name: "GPT-4o mini", ContextSize: 128000, InputCost: 0.15, OutputCost: 0.6},
		{ID: "gpt-4.1", Name: "GPT-4.1", ContextSize: 1000000, InputCost: 2, OutputCost: 8},
		{ID: "o3-mini", Name: "o3-mini", ContextSize: 200000, InputCost: 1.1, OutputCost: 4.4},
	}
}

func (o *OpenAI) Complete(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: req.Prompt,
	})

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               model,
		Messages:            messages,
		MaxCompletionTokens: maxTokens,
		Temperature:         float32(req.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	usage := domain.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return &Response{
		Text:  resp.Choices[0].Message.Content,
		Usage: usage,
		Cost:  domain.CalculateCost(usage, modelPricing(o, model)),
		Stats: map[string]any{
			"model":         resp.Model,
			"finish_reason": string(resp.Choices[0].FinishReason),
		},
	}, nil
}
