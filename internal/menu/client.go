// Package menu is the client for the downstream menu/order system. The
// evaluate call is a dry run used to classify an inbound text; the apply
// call commits the resulting change and only ever runs after a human
// approved the outbound reply that references it.
package menu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/copperline/barback/internal/config"
	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/pkg/httpretry"
)

// Client talks to the menu service REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a menu service client.
func NewClient(cfg config.MenuConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
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

type evaluateResponse struct {
	Status     string          `json:"status"`
	Action     string          `json:"action"`
	Payload    json.RawMessage `json:"payload"`
	Summary    string          `json:"summary"`
	Candidates []string        `json:"candidates"`
}

// Evaluate runs the dry-run classification of an inbound text against
// the menu state. The caller degrades failures to no_action.
func (c *Client) Evaluate(ctx context.Context, phone, text string) (*domain.Evaluation, error) {
	body, err := c.doJSON(ctx, "/api/menu/evaluate", map[string]interface{}{
		"phone":   phone,
		"text":    text,
		"dry_run": true,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluating message: %w", err)
	}

	var resp evaluateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing evaluation: %w", err)
	}

	ev := &domain.Evaluation{
		Action:     domain.ActionType(resp.Action),
		Payload:    resp.Payload,
		Summary:    resp.Summary,
		Candidates: resp.Candidates,
	}
	switch resp.Status {
	case "ready":
		ev.Verdict = domain.VerdictReady
	case "ambiguous":
		ev.Verdict = domain.VerdictAmbiguous
	case "not_found":
		ev.Verdict = domain.VerdictNotFound
	default:
		ev.Verdict = domain.VerdictNoAction
		ev.Action = domain.ActionNone
	}
	return ev, nil
}

// ApplyResult is the commit outcome of a deferred action.
type ApplyResult struct {
	Applied bool   `json:"applied"`
	Summary string `json:"summary"`
}

// Apply commits a previously evaluated action. Callers must treat
// Applied == false the same as an error: the referenced change did not
// happen.
func (c *Client) Apply(ctx context.Context, payload json.RawMessage) (*ApplyResult, error) {
	body, err := c.doJSON(ctx, "/api/menu/apply", map[string]interface{}{
		"payload": payload,
		"apply":   true,
	})
	if err != nil {
		return nil, fmt.Errorf("applying action: %w", err)
	}

	var out ApplyResult
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing apply result: %w", err)
	}
	return &out, nil
}

// Mirror forwards a copy of message traffic to the menu service.
// Fire-and-forget; the caller logs any error and moves on.
func (c *Client) Mirror(ctx context.Context, direction, phone, body string) error {
	_, err := c.doJSON(ctx, "/api/menu/mirror", map[string]interface{}{
		"direction": direction,
		"phone":     phone,
		"body":      body,
		"at":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("mirroring message: %w", err)
	}
	return nil
}
