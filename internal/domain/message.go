package domain

import "time"

// MessageDirection distinguishes inbound client texts from outbound replies.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageStatus enumerates the lifecycle states of a message.
//
// Inbound messages are stored as "received" and never transition.
// Outbound messages move pending_approval -> {approved, rejected} and
// approved -> {sent, failed}; no state ever re-enters pending_approval.
type MessageStatus string

const (
	MessageReceived        MessageStatus = "received"
	MessagePendingApproval MessageStatus = "pending_approval"
	MessageApproved        MessageStatus = "approved"
	MessageSent            MessageStatus = "sent"
	MessageRejected        MessageStatus = "rejected"
	MessageFailed          MessageStatus = "failed"
)

// IsTerminal returns true if the status is a final outbound state.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageSent || s == MessageRejected || s == MessageFailed
}

// Message represents one inbound or outbound unit of conversation.
//
// For outbound messages, Draft holds the text as originally generated and
// Body holds what was (or will be) actually sent; they differ only when a
// reviewer edited the draft. ProviderSID doubles as the inbound dedup key
// and the outbound delivery identifier.
type Message struct {
	ID             string           `json:"id" db:"id"`
	ConversationID string           `json:"conversation_id" db:"conversation_id"`
	Direction      MessageDirection `json:"direction" db:"direction"`
	Body           string           `json:"body" db:"body"`
	Draft          string           `json:"draft,omitempty" db:"draft"`
	Status         MessageStatus    `json:"status" db:"status"`
	ProviderSID    *string          `json:"provider_sid" db:"provider_sid"`
	DeliveryState  *string          `json:"delivery_state" db:"delivery_state"`
	Media          []string         `json:"media,omitempty" db:"media"`
	ArchivedMedia  []string         `json:"archived_media,omitempty" db:"archived_media"`
	ReplyTo        *string          `json:"reply_to" db:"reply_to"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	ApprovedAt     *time.Time       `json:"approved_at" db:"approved_at"`
	SentAt         *time.Time       `json:"sent_at" db:"sent_at"`
}

// Edited reports whether the sent body diverged from the original draft.
func (m *Message) Edited() bool {
	return m.Direction == DirectionOutbound && m.Draft != "" && m.Body != m.Draft
}
