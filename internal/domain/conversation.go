package domain

import (
	"strings"
	"time"
	"unicode"
)

// ConversationStatus enumerates the lifecycle states of a conversation.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// Conversation is the per-phone-number thread. One row per normalized
// number; created on first inbound message and never deleted.
type Conversation struct {
	ID            string             `json:"id" db:"id"`
	Phone         string             `json:"phone" db:"phone"`
	Name          *string            `json:"name" db:"name"`
	MessageCount  int                `json:"message_count" db:"message_count"`
	LastMessageAt time.Time          `json:"last_message_at" db:"last_message_at"`
	Status        ConversationStatus `json:"status" db:"status"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
}

// NormalizePhone canonicalizes a phone number to E.164-ish form so the
// same caller always maps to the same conversation. Ten-digit numbers
// are assumed to be US. Anything unparseable is returned stripped of
// formatting so lookups at least stay deterministic.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) == 10:
		return "+1" + d
	case len(d) == 11 && strings.HasPrefix(d, "1"):
		return "+" + d
	case strings.HasPrefix(strings.TrimSpace(raw), "+") && len(d) > 0:
		return "+" + d
	case len(d) > 0:
		return "+" + d
	default:
		return strings.TrimSpace(raw)
	}
}
