package inbound

import (
	"context"
	"sync"
	"time"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/draft"
	"github.com/copperline/barback/internal/pending"
	"github.com/copperline/barback/internal/pkg/logger"
)

// Enricher assembles the context bundle for a draft.
type Enricher interface {
	Aggregate(ctx context.Context, conversationID, phone, text string) domain.ContextBundle
}

// Evaluator runs the dry-run menu classification.
type Evaluator interface {
	Evaluate(ctx context.Context, phone, text string) (*domain.Evaluation, error)
}

// Drafter produces the reply draft.
type Drafter interface {
	Generate(ctx context.Context, req draft.Request) *draft.Result
}

// ApprovalGate hands a pending draft to the review flow: notify the
// reviewer, or auto-approve when the channel is down.
type ApprovalGate interface {
	Submit(ctx context.Context, m *domain.Message, phone, actionSummary string) error
}

// Mirror forwards message copies to the menu service, fire and forget.
type Mirror interface {
	Mirror(ctx context.Context, direction, phone, body string) error
}

// MediaArchiver copies inbound MMS media to durable storage.
type MediaArchiver interface {
	Archive(ctx context.Context, messageID string, urls []string) error
}

// Request is one inbound webhook event after parsing.
type Request struct {
	From        string
	To          string
	Body        string
	ProviderSID string
	Media       []string
}

// Outcome reports what the pipeline did with one inbound message.
type Outcome struct {
	Duplicate      bool               `json:"duplicate"`
	ConversationID string             `json:"conversation_id,omitempty"`
	InboundID      string             `json:"inbound_id,omitempty"`
	DraftID        string             `json:"draft_id,omitempty"`
	Draft          string             `json:"draft,omitempty"`
	Language       string             `json:"language,omitempty"`
	Inquiry        string             `json:"inquiry,omitempty"`
	Source         string             `json:"source,omitempty"`
	Evaluation     *domain.Evaluation `json:"evaluation,omitempty"`
}

// Service runs the intake pipeline.
type Service struct {
	conversations ConversationStore
	messages      MessageStore
	enricher      Enricher
	evaluator     Evaluator
	drafter       Drafter
	registry      pending.Registry
	gate          ApprovalGate
	mirror        Mirror
	archiver      MediaArchiver
}

// NewService wires the pipeline. evaluator, mirror, and archiver may be
// nil when the corresponding integration is disabled.
func NewService(
	conversations ConversationStore,
	messages MessageStore,
	enricher Enricher,
	evaluator Evaluator,
	drafter Drafter,
	registry pending.Registry,
	gate ApprovalGate,
	mirror Mirror,
	archiver MediaArchiver,
) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		enricher:      enricher,
		evaluator:     evaluator,
		drafter:       drafter,
		registry:      registry,
		gate:          gate,
		mirror:        mirror,
		archiver:      archiver,
	}
}

// Process takes one inbound message through dedup, persistence,
// enrichment, drafting, and hand-off to approval. The returned Outcome
// has Duplicate set when the provider redelivered a known message;
// nothing else happens in that case.
func (s *Service) Process(ctx context.Context, req Request) (*Outcome, error) {
	if req.ProviderSID != "" {
		exists, err := s.messages.ExistsByProviderSID(ctx, req.ProviderSID)
		if err != nil {
			return nil, err
		}
		if exists {
			logger.Info("duplicate webhook delivery ignored", "provider_sid", req.ProviderSID)
			return &Outcome{Duplicate: true}, nil
		}
	}

	phone := domain.NormalizePhone(req.From)
	name := draft.ExtractName(req.Body)

	conv, err := s.conversations.Upsert(ctx, phone, name)
	if err != nil {
		return nil, err
	}

	inbound := &domain.Message{
		ConversationID: conv.ID,
		Direction:      domain.DirectionInbound,
		Body:           req.Body,
		Status:         domain.MessageReceived,
		Media:          req.Media,
	}
	if req.ProviderSID != "" {
		inbound.ProviderSID = &req.ProviderSID
	}
	inboundID, err := s.messages.Create(ctx, inbound)
	if err != nil {
		return nil, err
	}

	if s.mirror != nil {
		go func() {
			if err := s.mirror.Mirror(context.Background(), string(domain.DirectionInbound), phone, req.Body); err != nil {
				logger.Warn("inbound mirror failed", "error", err.Error())
			}
		}()
	}
	if s.archiver != nil && len(req.Media) > 0 {
		go func() {
			if err := s.archiver.Archive(context.Background(), inboundID, req.Media); err != nil {
				logger.Warn("media archival failed", "message_id", inboundID, "error", err.Error())
			}
		}()
	}

	bundle, eval := s.enrichAndEvaluate(ctx, conv.ID, phone, req.Body)

	displayName := ""
	if conv.Name != nil {
		displayName = *conv.Name
	}
	result := s.drafter.Generate(ctx, draft.Request{
		Text:       req.Body,
		Name:       displayName,
		History:    bundle.History,
		Bundle:     bundle,
		Evaluation: eval,
	})

	outbound := &domain.Message{
		ConversationID: conv.ID,
		Direction:      domain.DirectionOutbound,
		Body:           result.Text,
		Draft:          result.Text,
		Status:         domain.MessagePendingApproval,
		ReplyTo:        &inboundID,
	}
	draftID, err := s.messages.Create(ctx, outbound)
	if err != nil {
		return nil, err
	}
	outbound.ID = draftID

	actionSummary := ""
	if eval != nil && eval.Verdict == domain.VerdictReady && eval.Action != domain.ActionNone {
		actionSummary = eval.Summary
		action := &domain.PendingAction{
			MessageID: draftID,
			Type:      eval.Action,
			Payload:   eval.Payload,
			Summary:   eval.Summary,
			CreatedAt: time.Now(),
		}
		if err := s.registry.Put(ctx, action); err != nil {
			logger.Warn("pending action registration failed", "message_id", draftID, "error", err.Error())
			actionSummary = ""
		}
	}

	if err := s.gate.Submit(ctx, outbound, phone, actionSummary); err != nil {
		logger.Error("approval hand-off failed", "message_id", draftID, "error", err.Error())
	}

	return &Outcome{
		ConversationID: conv.ID,
		InboundID:      inboundID,
		DraftID:        draftID,
		Draft:          result.Text,
		Language:       string(result.Language),
		Inquiry:        string(result.Inquiry),
		Source:         string(result.Source),
		Evaluation:     eval,
	}, nil
}

// Simulate runs the read-only half of the pipeline: enrichment, dry-run
// evaluation, and draft generation. Nothing is persisted, registered, or
// notified, so the caller sees what the system would have drafted.
func (s *Service) Simulate(ctx context.Context, from, body string) (*Outcome, error) {
	phone := domain.NormalizePhone(from)

	conversationID := ""
	displayName := draft.ExtractName(body)
	conv, err := s.conversations.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		conversationID = conv.ID
		if conv.Name != nil {
			displayName = *conv.Name
		}
	}

	bundle, eval := s.enrichAndEvaluate(ctx, conversationID, phone, body)

	// The real pipeline stores the inbound message before aggregating, so
	// history includes it. Append a stand-in to keep mode selection honest.
	history := append(bundle.History, &domain.Message{Direction: domain.DirectionInbound, Body: body})

	result := s.drafter.Generate(ctx, draft.Request{
		Text:       body,
		Name:       displayName,
		History:    history,
		Bundle:     bundle,
		Evaluation: eval,
	})

	return &Outcome{
		ConversationID: conversationID,
		Draft:          result.Text,
		Language:       string(result.Language),
		Inquiry:        string(result.Inquiry),
		Source:         string(result.Source),
		Evaluation:     eval,
	}, nil
}

// enrichAndEvaluate runs context aggregation and the menu dry-run in
// parallel. Evaluator failure degrades to no_action.
func (s *Service) enrichAndEvaluate(ctx context.Context, conversationID, phone, text string) (domain.ContextBundle, *domain.Evaluation) {
	var (
		bundle domain.ContextBundle
		eval   *domain.Evaluation
		wg     sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		bundle = s.enricher.Aggregate(ctx, conversationID, phone, text)
	}()

	if s.evaluator != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.evaluator.Evaluate(ctx, phone, text)
			if err != nil {
				logger.Warn("action evaluation failed", "phone", logger.RedactPhone(phone), "error", err.Error())
				result = &domain.Evaluation{Verdict: domain.VerdictNoAction, Action: domain.ActionNone}
			}
			eval = result
		}()
	}

	wg.Wait()

	if eval == nil {
		eval = &domain.Evaluation{Verdict: domain.VerdictNoAction, Action: domain.ActionNone}
	}
	return bundle, eval
}
