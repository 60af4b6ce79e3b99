package contract

import "context"

// LanguageModel is the opaque generation capability. Structured output is
// requested through the prompt and decoded by the caller.
type LanguageModel interface {
	Generate(ctx context.Context, prompt string, input map[string]any) (string, error)
}

// Lookup is the opaque resource search capability.
type Lookup interface {
	Search(ctx context.Context, query string) ([]Resource, error)
}

// EventPublisher receives best-effort domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
