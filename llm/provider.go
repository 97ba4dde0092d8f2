package llm

import "context"

// ProviderAdapter is the interface every provider backend implements.
// The agent loop is strictly synchronous, so the contract is a single
// blocking Complete call; streaming is a presentation concern and lives
// outside this package.
type ProviderAdapter interface {
	// Name returns the provider identifier (e.g. "openai", "ollama").
	Name() string

	// Complete sends a blocking request and returns the full response.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Closer is implemented by adapters that hold resources.
type Closer interface {
	Close() error
}
