// Package llm abstracts the generative model behind a Completer so the
// draft generator and correction learner don't care which backend is
// configured. Two implementations exist: the OpenAI chat-completions API
// and AWS Bedrock (Claude). Both must be assumed to fail occasionally;
// callers always carry a fallback.
package llm

import "context"

// Message is one turn of model input.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a bounded completion call.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Completer produces a text completion.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Embedder turns text into a vector for the semantic memory store.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

const (
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
)
