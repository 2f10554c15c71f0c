package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
)

// Chain tries providers in priority order and returns the first successful
// completion. It replaces per-call provider selection with a fixed fallback
// strategy; the last error per provider is retained for status reporting.
type Chain struct {
	providers []Provider

	mu       sync.RWMutex
	lastErrs map[string]string
}

// ProviderStatus reports the health of one provider in the chain
type ProviderStatus struct {
	Name      string `json:"name"`
	LastError string `json:"last_error,omitempty"`
}

// NewChain creates a fallback chain over the given providers
func NewChain(providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		lastErrs:  map[string]string{},
	}
}

// Complete asks providers in order until one succeeds. An empty response is
// treated as a provider failure.
func (c *Chain) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	if len(c.providers) == 0 {
		return "", errors.New("no llm providers configured")
	}

	var lastErr error
	for _, p := range c.providers {
		start := time.Now()
		resp, err := p.Complete(ctx, prompt, temperature)
		if err == nil && resp == "" {
			err = errors.New("empty response")
		}

		c.mu.Lock()
		if err != nil {
			c.lastErrs[p.Name()] = err.Error()
		} else {
			c.lastErrs[p.Name()] = ""
		}
		c.mu.Unlock()

		if err != nil {
			lgr.Printf("[WARN] provider %s failed in %v: %v", p.Name(), time.Since(start).Round(time.Millisecond), err)
			lastErr = err
			continue
		}

		return resp, nil
	}

	return "", fmt.Errorf("all %d providers failed: %w", len(c.providers), lastErr)
}

// Statuses returns the providers in priority order with their last errors
func (c *Chain) Statuses() []ProviderStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ProviderStatus, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, ProviderStatus{Name: p.Name(), LastError: c.lastErrs[p.Name()]})
	}
	return out
}
