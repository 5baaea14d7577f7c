package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/copperline/barback/internal/config"
	"github.com/copperline/barback/internal/pkg/httpretry"
)

// OpenAIClient implements Completer and Embedder against the OpenAI API.
type OpenAIClient struct {
	apiKey     string
	model      string
	embedModel string
	baseURL    string
	httpClient httpretry.HTTPDoer
}

// NewOpenAIClient creates an OpenAI-backed model client.
func NewOpenAIClient(cfg config.OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		embedModel: cfg.EmbedModel,
		baseURL:    cfg.BaseURL,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 2),
	}
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message      openAIChatMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) post(ctx context.Context, path string, payload, out interface{}) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w (body: %s)", err, string(body))
	}
	return nil
}

// Complete runs a chat completion and returns the first choice's text.
func (c *OpenAIClient) Complete(ctx context.Context, r Request) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	maxTokens := r.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := r.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	messages := make([]openAIChatMessage, 0, len(r.Messages)+1)
	if r.System != "" {
		messages = append(messages, openAIChatMessage{Role: "system", Content: r.System})
	}
	for _, m := range r.Messages {
		messages = append(messages, openAIChatMessage{Role: m.Role, Content: m.Content})
	}

	var resp openAIChatResponse
	err := c.post(ctx, "/v1/chat/completions", openAIChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed vectorizes text for the semantic memory store.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}

	var resp openAIEmbedResponse
	err := c.post(ctx, "/v1/embeddings", openAIEmbedRequest{
		Model: c.embedModel,
		Input: []string{text},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return resp.Data[0].Embedding, nil
}
