// Package twilio is the telephony provider client: outbound SMS, outbound
// voice calls, webhook form parsing, request signature validation, and
// TwiML rendering for call answers.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/copperline/barback/internal/config"
	"github.com/copperline/barback/internal/pkg/httpretry"
)

// Client talks to the Twilio REST API.
type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a Twilio API client.
func NewClient(cfg config.TwilioConfig) *Client {
	return &Client{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		baseURL:    cfg.BaseURL,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// FromNumber returns the configured sending number.
func (c *Client) FromNumber() string { return c.fromNumber }

type createResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// doForm posts form-encoded params to a resource under the account and
// decodes the create response.
func (c *Client) doForm(ctx context.Context, resource string, params url.Values) (*createResponse, error) {
	fullURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/%s.json", c.baseURL, c.accountSID, resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

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

	var out createResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &out, nil
}

// SendSMS sends body to the given number and returns the provider message
// SID.
func (c *Client) SendSMS(ctx context.Context, to, body string) (string, error) {
	params := url.Values{}
	params.Set("To", to)
	params.Set("From", c.fromNumber)
	params.Set("Body", body)

	resp, err := c.doForm(ctx, "Messages", params)
	if err != nil {
		return "", fmt.Errorf("sending SMS: %w", err)
	}
	return resp.SID, nil
}

// Call originates an outbound voice call. Twilio fetches call
// instructions from twimlURL when the callee answers; statusCallback, if
// set, receives the final call status.
func (c *Client) Call(ctx context.Context, to, twimlURL, statusCallback string) (string, error) {
	params := url.Values{}
	params.Set("To", to)
	params.Set("From", c.fromNumber)
	params.Set("Url", twimlURL)
	if statusCallback != "" {
		params.Set("StatusCallback", statusCallback)
	}

	resp, err := c.doForm(ctx, "Calls", params)
	if err != nil {
		return "", fmt.Errorf("originating call: %w", err)
	}
	return resp.SID, nil
}
