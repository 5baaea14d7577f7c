package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/pkg/logger"
)

// Alerter emails the operator when a reminder exhausts its attempts.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// CreateInput is the shape of an API create request.
type CreateInput struct {
	Phone          string    `json:"phone"`
	Message        string    `json:"message"`
	RemindAt       time.Time `json:"remind_at"`
	ConversationID string    `json:"conversation_id,omitempty"`
}

// Service implements reminder scheduling and lifecycle. The dispatcher
// worker drives the due/claim/call cycle against the Store directly;
// this service is the API and callback surface.
type Service struct {
	store   Store
	alerter Alerter
}

// NewService creates a reminder service. alerter may be nil.
func NewService(store Store, alerter Alerter) *Service {
	return &Service{store: store, alerter: alerter}
}

// Create validates and schedules a reminder call.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Reminder, error) {
	if strings.TrimSpace(input.Phone) == "" {
		return nil, fmt.Errorf("phone is required")
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, fmt.Errorf("message is required")
	}
	if input.RemindAt.IsZero() {
		return nil, fmt.Errorf("remind_at is required")
	}

	rem := &domain.Reminder{
		Phone:    domain.NormalizePhone(input.Phone),
		Message:  strings.TrimSpace(input.Message),
		RemindAt: input.RemindAt,
		Status:   domain.ReminderPending,
	}
	if input.ConversationID != "" {
		rem.ConversationID = &input.ConversationID
	}

	id, err := s.store.Create(ctx, rem)
	if err != nil {
		return nil, err
	}
	rem.ID = id
	return rem, nil
}

// Get returns a single reminder.
func (s *Service) Get(ctx context.Context, id string) (*domain.Reminder, error) {
	return s.store.Get(ctx, id)
}

// List returns reminders matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Reminder, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return s.store.List(ctx, f)
}

// Cancel stops a pending reminder. Reminders already calling or resolved
// return ErrTerminal.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.store.Cancel(ctx, id)
}

// Finalize resolves a claimed reminder from the provider's voice status
// callback. Transitional statuses are ignored; a failed call retries
// until the attempt cap, then the reminder fails for good and the
// operator is alerted.
func (s *Service) Finalize(ctx context.Context, id, callStatus string) error {
	switch callStatus {
	case "completed":
		return s.store.Complete(ctx, id)
	case "busy", "no-answer", "failed", "canceled":
		rem, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if rem.Attempts >= domain.ReminderMaxAttempts {
			if err := s.store.Fail(ctx, id, callStatus); err != nil {
				return err
			}
			logger.Error("reminder exhausted its attempts",
				"reminder_id", id, "phone", logger.RedactPhone(rem.Phone), "last_status", callStatus)
			s.alertExhausted(rem, callStatus)
			return nil
		}
		return s.store.Retry(ctx, id, callStatus)
	default:
		// ringing, in-progress, answered: not final, nothing to record.
		return nil
	}
}

func (s *Service) alertExhausted(rem *domain.Reminder, callStatus string) {
	if s.alerter == nil {
		return
	}
	subject := "Reminder call gave up"
	body := fmt.Sprintf(
		"A reminder call could not be completed after %d attempts.\n\nPhone: %s\nScheduled for: %s\nLast call status: %s\n\nMessage:\n%s\n",
		rem.Attempts, rem.Phone, rem.RemindAt.Format(time.RFC1123), callStatus, rem.Message)
	go func() {
		if err := s.alerter.Alert(context.Background(), subject, body); err != nil {
			logger.Warn("reminder exhaustion alert failed", "reminder_id", rem.ID, "error", err.Error())
		}
	}()
}
