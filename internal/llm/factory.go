package llm

import (
	"context"
	"fmt"
	"log"

	"github.com/copperline/barback/internal/config"
)

// NewCompleter picks the configured model backend. OpenAI wins when both
// are enabled. Returns nil when neither is, which callers must treat as
// "model unavailable, use the fallback path".
func NewCompleter(ctx context.Context, cfg *config.Config) (Completer, error) {
	switch {
	case cfg.OpenAI.Enabled:
		log.Printf("[LLM] Using OpenAI backend (model=%s)", cfg.OpenAI.Model)
		return NewOpenAIClient(cfg.OpenAI), nil
	case cfg.Bedrock.Enabled:
		client, err := NewBedrockClient(ctx, cfg.Bedrock)
		if err != nil {
			return nil, fmt.Errorf("bedrock backend: %w", err)
		}
		log.Printf("[LLM] Using Bedrock backend (model=%s, region=%s)", cfg.Bedrock.ModelID, cfg.Bedrock.Region)
		return client, nil
	}
	log.Printf("[LLM] No model backend enabled; drafts fall back to canned replies")
	return nil, nil
}
