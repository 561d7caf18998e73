package llm

import (
	"context"
	"math/rand"
	"time"
)

// Client wraps a Provider with per-call timeouts, classified retries with
// exponential backoff, and cost accounting. All LLM traffic in the service
// goes through a Client.
type Client struct {
	provider   Provider
	pricing    Pricing
	maxRetries int
	timeout    time.Duration
	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithPricing overrides the built-in price table.
func WithPricing(p Pricing) ClientOption {
	return func(c *Client) { c.pricing = p }
}

// WithMaxRetries sets the retry budget for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a Client around the given provider.
func NewClient(provider Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider:   provider,
		maxRetries: 3,
		timeout:    120 * time.Second,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProviderName returns the name of the wrapped provider.
func (c *Client) ProviderName() string { return c.provider.Name() }

// Chat sends a system+user prompt pair and returns the completion with its
// cost filled in. Rate-limit and connection errors are retried with
// exponential backoff; auth and validation errors are not.
func (c *Client) Chat(ctx context.Context, system, user, model string, maxTokens int, temperature float64) (*CompletionResponse, error) {
	req := CompletionRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []Message{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: user},
		},
	}
	return c.Complete(ctx, req)
}

// Complete runs the request through the retry loop.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, backoff(attempt)); err != nil {
				return nil, err
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if c.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}

		resp, err := c.provider.Complete(callCtx, req)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			resp.Cost = c.pricing.CostFor(resp.Model, resp.InputTokens, resp.OutputTokens)
			return resp, nil
		}

		lastErr = err
		if !Retryable(err) {
			break
		}
		// Stop retrying when the caller is gone.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// backoff returns the delay before the given retry attempt (1-based),
// doubling each time with jitter: ~1s, ~2s, ~4s, ...
func backoff(attempt int) time.Duration {
	base := time.Second << (attempt - 1)
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 4))
	return base + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
