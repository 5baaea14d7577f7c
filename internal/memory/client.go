// Package memory is the semantic memory client. Text is embedded through
// the model provider's embedding endpoint and stored/queried against a
// small vector-store REST service. Callers must tolerate the store being
// unreachable: business-fact lookups degrade to DefaultFacts, everything
// else to empty results.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/copperline/barback/internal/config"
	"github.com/copperline/barback/internal/llm"
	"github.com/copperline/barback/internal/pkg/httpretry"
)

// DefaultFacts is the hardcoded fallback used when the store is down or
// has nothing for the business scope. Keep it short; it rides in every
// draft prompt.
var DefaultFacts = []string{
	"Copperline Cocktail Co. is a mobile cocktail catering service.",
	"Standard packages include bartenders, mixers, ice, and garnishes; clients usually supply the alcohol.",
	"Bookings need a date, guest count, and venue before a quote goes out.",
}

// Result is one ranked memory hit.
type Result struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Client talks to the vector store.
type Client struct {
	baseURL    string
	apiKey     string
	embedder   llm.Embedder
	httpClient httpretry.HTTPDoer
}

// NewClient creates a memory client. The embedder vectorizes queries and
// writes before they reach the store.
func NewClient(cfg config.MemoryConfig, embedder llm.Embedder) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		embedder: embedder,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 2),
	}
}

func (c *Client) doJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// Search returns ranked memories for a query within a scope. Scopes in
// use: "business" for shared facts, "sender:<phone>" for per-client
// memory, "rules" for promoted correction rules.
func (c *Client) Search(ctx context.Context, query, scope string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	body, err := c.doJSON(ctx, "/api/vectors/query", map[string]interface{}{
		"vector": vector,
		"scope":  scope,
		"limit":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("querying memory: %w", err)
	}

	var resp struct {
		Results []Result `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing memory results: %w", err)
	}
	return resp.Results, nil
}

// Write stores text under a scope. Importance weights later ranking;
// source records who wrote it (e.g. "correction_learner").
func (c *Client) Write(ctx context.Context, text, scope, category string, importance float64, source string) error {
	vector, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding text: %w", err)
	}

	body, err := c.doJSON(ctx, "/api/vectors/upsert", map[string]interface{}{
		"vector":     vector,
		"text":       text,
		"scope":      scope,
		"category":   category,
		"importance": importance,
		"source":     source,
	})
	if err != nil {
		return fmt.Errorf("writing memory: %w", err)
	}

	var resp struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parsing write result: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("memory store rejected write")
	}
	return nil
}
