package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Chain synthesizes with the first provider that answers. After a fallback
// succeeds, that provider is tried first on the next answer so a dead
// backend /tts endpoint costs one round trip per session, not per answer.
type Chain struct {
	providers []Provider
	logger    *slog.Logger

	mu        sync.Mutex
	preferred int
}

// NewChain returns a chain over providers in priority order.
func NewChain(providers ...Provider) (*Chain, error) {
	return NewChainWithLogger(slog.Default(), providers...)
}

// NewChainWithLogger is NewChain with an explicit logger.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "tts.chain"),
	}, nil
}

// order lists provider indexes starting at the preferred one.
func (c *Chain) order() []int {
	c.mu.Lock()
	first := c.preferred
	c.mu.Unlock()

	idx := make([]int, 0, len(c.providers))
	idx = append(idx, first)
	for i := range c.providers {
		if i != first {
			idx = append(idx, i)
		}
	}
	return idx
}

// Synthesize implements Provider.
func (c *Chain) Synthesize(ctx context.Context, text string, voice Voice) (*Result, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	failed := &ChainError{}
	for _, i := range c.order() {
		res, err := c.providers[i].Synthesize(ctx, text, voice)
		if err == nil {
			c.prefer(i, res.Provider)
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		failed.Errors = append(failed.Errors, err)
		c.logger.Warn("synthesis failed", "provider_index", i, "error", err)
	}
	return nil, failed
}

func (c *Chain) prefer(i int, name string) {
	c.mu.Lock()
	changed := c.preferred != i
	c.preferred = i
	c.mu.Unlock()
	if changed {
		c.logger.Info("switched synthesis provider", "provider_index", i, "provider", name)
	}
}

// Health reports an error only when no provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	var errs []error
	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		return nil
	}
	return fmt.Errorf("tts: no healthy provider: %w", errors.Join(errs...))
}

// Close closes every provider and joins their errors.
func (c *Chain) Close() error {
	var errs []error
	for _, p := range c.providers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// Providers returns the chain's providers in priority order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

// ChainError lists each provider's failure in the order they were tried.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "tts: every provider failed: " + strings.Join(msgs, "; ")
}

// Unwrap exposes every provider error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}

var _ Provider = (*Chain)(nil)
