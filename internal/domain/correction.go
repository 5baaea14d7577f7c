package domain

import "time"

// CorrectionAction distinguishes the two kinds of human override.
type CorrectionAction string

const (
	CorrectionEdit   CorrectionAction = "edit"
	CorrectionReject CorrectionAction = "reject"
)

// RuleCategory classifies an extracted correction rule.
type RuleCategory string

const (
	RulePricing        RuleCategory = "pricing"
	RuleTone           RuleCategory = "tone"
	RuleServiceDetails RuleCategory = "service_details"
	RuleWorkflow       RuleCategory = "workflow"
	RuleLanguage       RuleCategory = "language"
	RuleOther          RuleCategory = "other"
)

// ValidRuleCategory reports whether c is one of the known categories.
// Model output is untrusted; anything else is coerced to RuleOther.
func ValidRuleCategory(c RuleCategory) bool {
	switch c {
	case RulePricing, RuleTone, RuleServiceDetails, RuleWorkflow, RuleLanguage, RuleOther:
		return true
	}
	return false
}

// CorrectionRecord is the append-only audit of a human override. Created
// synchronously on edit/reject; RuleText, RuleCategory and Promoted are
// filled later by the best-effort learner and reconciler. No other path
// mutates a record.
type CorrectionRecord struct {
	ID            string           `json:"id" db:"id"`
	Channel       string           `json:"channel" db:"channel"`
	Action        CorrectionAction `json:"action" db:"action"`
	OriginalDraft string           `json:"original_draft" db:"original_draft"`
	CorrectedText *string          `json:"corrected_text" db:"corrected_text"`
	MessageID     string           `json:"message_id" db:"message_id"`
	RuleText      *string          `json:"rule_text" db:"rule_text"`
	RuleCategory  *RuleCategory    `json:"rule_category" db:"rule_category"`
	Promoted      bool             `json:"promoted" db:"promoted"`
	// PromoteAttempts bounds the reconciler's retries; it is not part of
	// the audit itself.
	PromoteAttempts int       `json:"promote_attempts" db:"promote_attempts"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
