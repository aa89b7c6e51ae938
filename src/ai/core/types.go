package core

import "context"

// Options controls model behavior; fields are optional per provider.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int
	SystemPrompt        string
}

// Client is a provider-agnostic interface for the LLM operations the arena needs.
type Client interface {
	// Respond returns the model's full answer to a single-turn prompt.
	Respond(ctx context.Context, input string, opts Options) (string, error)
}

// Streamer is implemented by providers that support incremental output.
// Chunks are delivered in order; a non-nil error from the callback stops the stream.
type Streamer interface {
	RespondStream(ctx context.Context, input string, opts Options, fn func(chunk string) error) error
}
