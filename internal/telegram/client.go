// Package telegram is the approval-channel client: it delivers draft
// notifications with inline approve/reject actions and receives the
// operator's decisions via the bot webhook types.
package telegram

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

// Client talks to the Telegram Bot API.
type Client struct {
	botToken   string
	chatID     int64
	baseURL    string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a Telegram bot client.
func NewClient(cfg config.TelegramConfig) *Client {
	return &Client{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		baseURL:  cfg.BaseURL,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// ChatID returns the operator chat the bot posts into.
func (c *Client) ChatID() int64 { return c.chatID }

// InlineKeyboard is the reply_markup payload for action buttons.
type InlineKeyboard struct {
	InlineKeyboard [][]InlineButton `json:"inline_keyboard"`
}

// InlineButton is one tappable action. URL buttons open a link;
// callback buttons post CallbackData back through the bot webhook.
type InlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Chat identifies a Telegram conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// BotMessage is a message in the operator chat.
type BotMessage struct {
	MessageID      int64       `json:"message_id"`
	Text           string      `json:"text"`
	Chat           Chat        `json:"chat"`
	ReplyToMessage *BotMessage `json:"reply_to_message,omitempty"`
}

// CallbackQuery is a button press on an inline keyboard.
type CallbackQuery struct {
	ID      string      `json:"id"`
	Data    string      `json:"data"`
	Message *BotMessage `json:"message,omitempty"`
}

// Update is one delivery from the bot webhook.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *BotMessage    `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", method, err)
	}

	fullURL := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var out apiResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram API error: %s", out.Description)
	}
	return out.Result, nil
}

// SendMessage posts text into the operator chat, optionally with an
// inline keyboard, and returns the new message id.
func (c *Client) SendMessage(ctx context.Context, text string, keyboard *InlineKeyboard) (int64, error) {
	payload := map[string]interface{}{
		"chat_id": c.chatID,
		"text":    text,
	}
	if keyboard != nil {
		payload["reply_markup"] = keyboard
	}

	result, err := c.call(ctx, "sendMessage", payload)
	if err != nil {
		return 0, fmt.Errorf("sending message: %w", err)
	}

	var msg BotMessage
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("parsing sent message: %w", err)
	}
	return msg.MessageID, nil
}

// EditMessageText replaces the text of an earlier bot message. Used to
// collapse the action buttons once a decision lands.
func (c *Client) EditMessageText(ctx context.Context, messageID int64, text string) error {
	payload := map[string]interface{}{
		"chat_id":    c.chatID,
		"message_id": messageID,
		"text":       text,
	}
	if _, err := c.call(ctx, "editMessageText", payload); err != nil {
		return fmt.Errorf("editing message: %w", err)
	}
	return nil
}

// AnswerCallbackQuery acknowledges a button press so the client stops
// showing a spinner; text, if set, shows as a toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	payload := map[string]interface{}{
		"callback_query_id": callbackID,
	}
	if text != "" {
		payload["text"] = text
	}
	if _, err := c.call(ctx, "answerCallbackQuery", payload); err != nil {
		return fmt.Errorf("answering callback: %w", err)
	}
	return nil
}
