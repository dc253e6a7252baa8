package provider

import (
	"fmt"
	"sync"
)

// Factory resolves providers by name. Builders can be replaced for
// testing or extended with custom providers.
type Factory struct {
	mu       sync.RWMutex
	cache    map[string]Provider
	builders map[string]func() Provider
}

// NewFactory creates a factory with the built-in providers registered.
func NewFactory() *Factory {
	f := &Factory{
		cache:    make(map[string]Provider),
		builders: make(map[string]func() Provider),
	}
	f.Register("anthropic", func() Provider { return NewAnthropic("", "") })
	f.Register("openai", func() Provider { return NewOpenAI("", "") })
	return f
}

// Register adds or replaces a provider builder.
func (f *Factory) Register(id string, builder func() Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[id] = builder
	delete(f.cache, id)
}

// Get returns a provider instance by id, constructing it on first use.
func (f *Factory) Get(id string) (Provider, error) {
	f.mu.RLock()
	if p, ok := f.cache[id]; ok {
		f.mu.RUnlock()
		return p, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.cache[id]; ok {
		return p, nil
	}
	builder, ok := f.builders[id]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", id)
	}
	p := builder()
	f.cache[id] = p
	return p, nil
}

// IDs lists the registered provider ids.
func (f *Factory) IDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.builders))
	for id := range f.builders {
		ids = append(ids, id)
	}
	return ids
}
