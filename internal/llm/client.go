// Package llm provides an abstraction over the hosted language model used for
// chat completion, streaming and embeddings.
package llm

import "context"

// Message is one chat turn sent to the model
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// System builds a system message
func System(content string) Message { return Message{Role: "system", Content: content} }

// User builds a user message
func User(content string) Message { return Message{Role: "user", Content: content} }

// Assistant builds an assistant message
func Assistant(content string) Message { return Message{Role: "assistant", Content: content} }

// Options tune a single completion call
type Options struct {
	Model       string
	Temperature *float64
}

// Option mutates Options
type Option func(*Options)

// WithModel overrides the configured chat model
func WithModel(model string) Option {
	return func(o *Options) { o.Model = model }
}

// WithTemperature overrides the configured temperature
func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = &t }
}

// TokenCallback receives each streamed token chunk. Returning an error stops
// the stream.
type TokenCallback func(chunk string) error

// Client defines the language model operations used by the orchestrator.
type Client interface {
	// Complete returns the full answer to the messages.
	Complete(ctx context.Context, messages []Message, opts ...Option) (string, error)

	// Stream sends the answer chunk by chunk to the callback.
	Stream(ctx context.Context, messages []Message, callback TokenCallback, opts ...Option) error

	// Embed returns one vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// Models returns the configured chat and embedding model names.
	Models() (chat, embedding string)
}

func applyOptions(defaults Options, opts []Option) Options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
