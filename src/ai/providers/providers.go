// Package providers links every provider implementation into the binary
// and offers a pooled lookup keyed by provider name.
package providers

import (
	"fmt"
	"sync"

	"github.com/modelarena/arena/src/ai/core"

	// Registered providers.
	_ "github.com/modelarena/arena/src/ai/anthropic"
	_ "github.com/modelarena/arena/src/ai/mock"
	_ "github.com/modelarena/arena/src/ai/openai"
)

// Pool caches one client per provider name.
type Pool struct {
	cfg     core.FactoryConfig
	mu      sync.Mutex
	clients map[string]core.Client
}

func NewPool(cfg core.FactoryConfig) *Pool {
	return &Pool{cfg: cfg, clients: map[string]core.Client{}}
}

// Client returns (building if needed) the client for a provider name.
func (p *Pool) Client(provider string) (core.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[provider]; ok {
		return c, nil
	}
	cfg := p.cfg
	cfg.Provider = provider
	c, err := core.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", provider, err)
	}
	p.clients[provider] = c
	return c, nil
}
