// Package provider implements LLM provider adapters and their factory.
package provider

import (
	"context"
	"net/http"

	"github.com/jmlow/goalflow/internal/domain"
)

// Request is a single non-streaming completion request.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response carries the completion text plus its usage and dollar cost.
type Response struct {
	Text  string
	Usage domain.Usage
	Cost  float64
	Stats map[string]any // provider-specific generation stats
}

// Provider is the interface all LLM providers implement.
type Provider interface {
	ID() string
	Models() []domain.Model
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// HTTPClient abstracts http.Client for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const defaultMaxTokens = 4096

// modelPricing finds the pricing entry for a model id, falling back to
// the provider's first model so unknown ids still accrue some cost.
func modelPricing(p Provider, modelID string) domain.Model {
	models := p.Models()
	for _, m := range models {
		if m.ID == modelID {
			return m
		}
	}
	if len(models) > 0 {
		return models[0]
	}
	return domain.Model{ID: modelID}
}
