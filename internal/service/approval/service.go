package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/menu"
	"github.com/copperline/barback/internal/pending"
	"github.com/copperline/barback/internal/pkg/logger"
)

// Action is a reviewer's decision on a pending draft.
type Action string

const (
	ActionApprove Action = "approve"
	ActionEdit    Action = "edit"
	ActionReject  Action = "reject"
)

// Sender delivers the final text to the client.
type Sender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// ActionApplier commits a deferred menu mutation.
type ActionApplier interface {
	Apply(ctx context.Context, payload json.RawMessage) (*menu.ApplyResult, error)
}

// Notifier reaches the human reviewer. NotifyResult is best-effort and
// must not fail the decision.
type Notifier interface {
	NotifyPending(ctx context.Context, m *domain.Message, phone, actionSummary string) error
	NotifyResult(ctx context.Context, messageID, text string)
}

// CorrectionCapturer records a human override for rule learning. The
// implementation runs its model work asynchronously; Capture must never
// block the decision path for long.
type CorrectionCapturer interface {
	Capture(ctx context.Context, m *domain.Message, action domain.CorrectionAction, correctedText *string)
}

// Alerter emails the operator about noteworthy events.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// Result reports where a decision left the message.
type Result struct {
	Status        domain.MessageStatus `json:"status"`
	FinalText     string               `json:"final_text,omitempty"`
	ProviderSID   string               `json:"provider_sid,omitempty"`
	ActionApplied bool                 `json:"action_applied,omitempty"`
}

// Service drives the approval state machine. Both decision front-ends
// (bot callback and web form) funnel into Decide; Submit is the entry
// from the intake pipeline.
type Service struct {
	messages      MessageStore
	conversations ConversationStore
	registry      pending.Registry
	applier       ActionApplier
	sender        Sender
	notifier      Notifier
	corrections   CorrectionCapturer
	alerter       Alerter
}

// NewService wires the approval flow. notifier, corrections, and alerter
// may be nil; applier may be nil only when no pending actions are ever
// registered.
func NewService(
	messages MessageStore,
	conversations ConversationStore,
	registry pending.Registry,
	applier ActionApplier,
	sender Sender,
	notifier Notifier,
	corrections CorrectionCapturer,
	alerter Alerter,
) *Service {
	return &Service{
		messages:      messages,
		conversations: conversations,
		registry:      registry,
		applier:       applier,
		sender:        sender,
		notifier:      notifier,
		corrections:   corrections,
		alerter:       alerter,
	}
}

// Submit notifies the reviewer about a new pending draft. When the
// notification channel is down the draft is auto-approved with its text
// unmodified: delivery continuity outranks manual review. Auto-approval
// raises an operator alert.
func (s *Service) Submit(ctx context.Context, m *domain.Message, phone, actionSummary string) error {
	if s.notifier != nil {
		err := s.notifier.NotifyPending(ctx, m, phone, actionSummary)
		if err == nil {
			return nil
		}
		logger.Warn("approval notification failed, auto-approving",
			"message_id", m.ID, "error", err.Error())
	}

	result, err := s.Decide(ctx, m.ID, ActionApprove, "")
	if err != nil {
		return fmt.Errorf("auto-approve: %w", err)
	}

	if s.alerter != nil {
		subject := "Draft auto-approved without review"
		body := fmt.Sprintf(
			"The approval channel was unreachable, so this draft went out without review.\n\nTo: %s\nStatus: %s\n\n%s\n",
			phone, result.Status, m.Draft)
		go func() {
			if err := s.alerter.Alert(context.Background(), subject, body); err != nil {
				logger.Warn("auto-approval alert failed", "message_id", m.ID, "error", err.Error())
			}
		}()
	}
	return nil
}

// Decide applies one reviewer decision. Once a message has left
// pending_approval every further decision returns ErrAlreadyProcessed;
// the conditional status UPDATE is the authoritative guard, the early
// read just gives a cleaner error for the common case.
//
// Approve/edit order matters: the registered pending action is applied
// before the message is approved and sent. If the apply fails the message
// stays in pending_approval with its action registered, so the reviewer
// can retry once the menu service recovers.
func (s *Service) Decide(ctx context.Context, id string, action Action, editedText string) (*Result, error) {
	m, err := s.messages.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != domain.MessagePendingApproval {
		return nil, ErrAlreadyProcessed
	}

	switch action {
	case ActionApprove, ActionEdit:
		return s.approve(ctx, m, action, editedText)
	case ActionReject:
		return s.reject(ctx, m)
	default:
		return nil, fmt.Errorf("unknown decision action %q", action)
	}
}

func (s *Service) approve(ctx context.Context, m *domain.Message, action Action, editedText string) (*Result, error) {
	finalText := m.Draft
	if action == ActionEdit && strings.TrimSpace(editedText) != "" {
		finalText = strings.TrimSpace(editedText)
	}

	applied, err := s.applyPendingAction(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	if err := s.messages.MarkApproved(ctx, m.ID, finalText); err != nil {
		return nil, err
	}

	if finalText != m.Draft && s.corrections != nil {
		s.corrections.Capture(ctx, m, domain.CorrectionEdit, &finalText)
	}

	phone, err := s.conversations.Phone(ctx, m.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("resolving recipient: %w", err)
	}

	sid, err := s.sender.SendSMS(ctx, phone, finalText)
	if err != nil {
		logger.Error("send failed", "message_id", m.ID, "phone", logger.RedactPhone(phone), "error", err.Error())
		if markErr := s.messages.MarkFailed(ctx, m.ID); markErr != nil {
			logger.Error("marking message failed errored", "message_id", m.ID, "error", markErr.Error())
		}
		s.notifyResult(ctx, m.ID, fmt.Sprintf("Send failed: %v. The message is marked failed and can be resent manually.", err))
		return &Result{Status: domain.MessageFailed, FinalText: finalText, ActionApplied: applied}, nil
	}

	if err := s.messages.MarkSent(ctx, m.ID, sid); err != nil {
		logger.Error("marking message sent errored", "message_id", m.ID, "error", err.Error())
	}
	s.notifyResult(ctx, m.ID, fmt.Sprintf("Sent to %s.", phone))

	return &Result{
		Status:        domain.MessageSent,
		FinalText:     finalText,
		ProviderSID:   sid,
		ActionApplied: applied,
	}, nil
}

// applyPendingAction consumes the registered action, if any. On apply
// failure the action stays registered and ErrApplyFailed comes back; the
// send must not happen when the side effect it references didn't commit.
func (s *Service) applyPendingAction(ctx context.Context, messageID string) (bool, error) {
	act, err := s.registry.Get(ctx, messageID)
	if err != nil {
		return false, fmt.Errorf("reading pending action: %w", err)
	}
	if act == nil {
		return false, nil
	}

	if s.applier == nil {
		s.notifyResult(ctx, messageID, "This draft has a staged menu change but applying is not configured; rejecting is the only safe option.")
		return false, ErrApplyFailed
	}

	result, err := s.applier.Apply(ctx, act.Payload)
	if err != nil || !result.Applied {
		detail := "the menu service reported it was not applied"
		if err != nil {
			detail = err.Error()
		}
		logger.Error("pending action apply failed", "message_id", messageID, "error", detail)
		s.notifyResult(ctx, messageID, fmt.Sprintf("Menu change failed (%s). The message was NOT sent; approve again to retry.", detail))
		return false, fmt.Errorf("%w: %s", ErrApplyFailed, detail)
	}

	if err := s.registry.Delete(ctx, messageID); err != nil {
		logger.Warn("pending action cleanup failed", "message_id", messageID, "error", err.Error())
	}
	logger.Info("pending action applied", "message_id", messageID, "summary", act.Summary)
	return true, nil
}

func (s *Service) reject(ctx context.Context, m *domain.Message) (*Result, error) {
	if err := s.messages.MarkRejected(ctx, m.ID); err != nil {
		return nil, err
	}

	if err := s.registry.Delete(ctx, m.ID); err != nil {
		logger.Warn("pending action cleanup failed", "message_id", m.ID, "error", err.Error())
	}

	if s.corrections != nil {
		s.corrections.Capture(ctx, m, domain.CorrectionReject, nil)
	}
	s.notifyResult(ctx, m.ID, "Draft rejected, nothing was sent.")

	return &Result{Status: domain.MessageRejected}, nil
}

func (s *Service) notifyResult(ctx context.Context, messageID, text string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyResult(ctx, messageID, text)
}
