package domain

import (
	"encoding/json"
	"time"
)

// ActionType enumerates the deferred mutations the menu service understands.
type ActionType string

const (
	ActionNone       ActionType = "none"
	ActionUpdateMenu ActionType = "update_menu"
	ActionAddMenu    ActionType = "add_menu"
	ActionRemoveMenu ActionType = "remove_menu"
)

// ActionVerdict is the outcome of a dry-run evaluation of an inbound text
// against the menu service's state.
type ActionVerdict string

const (
	VerdictNoAction  ActionVerdict = "no_action"
	VerdictReady     ActionVerdict = "ready"
	VerdictAmbiguous ActionVerdict = "ambiguous"
	VerdictNotFound  ActionVerdict = "not_found"
)

// Evaluation is the tagged result of the action evaluator. Payload and
// Summary are set only for VerdictReady; Candidates only for
// VerdictAmbiguous.
type Evaluation struct {
	Verdict    ActionVerdict   `json:"verdict"`
	Action     ActionType      `json:"action,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Summary    string          `json:"summary,omitempty"`
	Candidates []string        `json:"candidates,omitempty"`
}

// PendingAction is a deferred, apply-on-approval mutation keyed by the
// outbound message awaiting review. It lives only in the registry (memory
// or Redis), never in Postgres: written once at draft time, consumed
// exactly once at approval time, or silently expired.
type PendingAction struct {
	MessageID string          `json:"message_id"`
	Type      ActionType      `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Summary   string          `json:"summary"`
	CreatedAt time.Time       `json:"created_at"`
}
