package telegram

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/pkg/logger"
)

// Callback data prefixes for the inline action buttons.
const (
	callbackApprove = "approve:"
	callbackReject  = "reject:"
)

// ParseCallback splits button callback data into an action and the
// outbound message id it refers to.
func ParseCallback(data string) (action, messageID string, ok bool) {
	switch {
	case strings.HasPrefix(data, callbackApprove):
		return "approve", strings.TrimPrefix(data, callbackApprove), true
	case strings.HasPrefix(data, callbackReject):
		return "reject", strings.TrimPrefix(data, callbackReject), true
	}
	return "", "", false
}

var notifIDPattern = regexp.MustCompile(`(?m)^ID: (\S+)$`)

// ExtractMessageID recovers the outbound message id from a notification's
// text. Edits arrive as replies to the notification, so this is how a
// reply finds its draft.
func ExtractMessageID(notificationText string) (string, bool) {
	m := notifIDPattern.FindStringSubmatch(notificationText)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Notifier renders approval traffic for the operator chat. It satisfies
// the approval service's notifier contract.
type Notifier struct {
	client  *Client
	baseURL string
}

// NewNotifier creates a notifier that links back to the web approval
// form at baseURL.
func NewNotifier(client *Client, baseURL string) *Notifier {
	return &Notifier{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NotifyPending posts the draft with approve/reject buttons and a link
// to the web form. Replying to the notification with new text edits the
// draft. Returns an error so the caller can fall back to auto-approval.
func (n *Notifier) NotifyPending(ctx context.Context, m *domain.Message, phone, actionSummary string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "New draft for %s\n\n%s\n", phone, m.Draft)
	if actionSummary != "" {
		fmt.Fprintf(&b, "\nPending action: %s\n", actionSummary)
	}
	fmt.Fprintf(&b, "\nReply to this message to edit.\nID: %s", m.ID)

	keyboard := &InlineKeyboard{
		InlineKeyboard: [][]InlineButton{
			{
				{Text: "Approve", CallbackData: callbackApprove + m.ID},
				{Text: "Reject", CallbackData: callbackReject + m.ID},
			},
			{
				{Text: "Open form", URL: fmt.Sprintf("%s/approve/%s", n.baseURL, m.ID)},
			},
		},
	}

	if _, err := n.client.SendMessage(ctx, b.String(), keyboard); err != nil {
		return fmt.Errorf("notify pending: %w", err)
	}
	return nil
}

// NotifyResult posts a decision outcome. Best effort: failures are
// logged and swallowed, the decision already happened.
func (n *Notifier) NotifyResult(ctx context.Context, messageID, text string) {
	if _, err := n.client.SendMessage(ctx, fmt.Sprintf("%s\nID: %s", text, messageID), nil); err != nil {
		logger.Warn("telegram result notification failed", "message_id", messageID, "error", err.Error())
	}
}
