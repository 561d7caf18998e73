package llm

import "context"

// Provider is one chat backend. Adapters normalize transport failures
// into *Error values so the client can classify and retry them.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name identifies the provider in logs and stats.
	Name() string
}
