// Package llm provides interfaces and implementations for LLM completion clients
package llm

import "context"

// Client defines the interface for structured generation against a language model
type Client interface {
	// Complete sends a prompt to the model and returns the raw completion text
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithSchema sends a prompt and unmarshals the JSON response into out.
	// out must be a pointer to the target struct. A response that cannot be
	// coerced into out fails with a *SchemaError.
	CompleteWithSchema(ctx context.Context, prompt string, out any) error
}

// Usage accumulates token consumption across requests made by one client.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Requests         int64
}

// UsageReporter is implemented by clients that track token usage.
type UsageReporter interface {
	// Usage returns the cumulative token usage for this client.
	Usage() Usage
}
