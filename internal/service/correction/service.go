package correction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/llm"
	"github.com/copperline/barback/internal/pkg/logger"
)

const (
	// ruleScope and ruleCategory tag promoted rules in semantic memory.
	ruleScope      = "rules"
	ruleCategory   = "correction_rule"
	ruleImportance = 0.9

	extractMaxTokens   = 200
	extractTemperature = 0.2
)

// MemoryWriter promotes an extracted rule into semantic memory.
type MemoryWriter interface {
	Write(ctx context.Context, text, scope, category string, importance float64, source string) error
}

// Service records human overrides and learns rules from them.
type Service struct {
	store     Store
	completer llm.Completer
	memory    MemoryWriter
	wg        sync.WaitGroup
}

// NewService creates the correction service. completer and memory may be
// nil; capture still works, extraction and promotion are skipped.
func NewService(store Store, completer llm.Completer, memory MemoryWriter) *Service {
	return &Service{store: store, completer: completer, memory: memory}
}

// Capture persists the override record and kicks off rule extraction in
// the background. It never returns an error: a lost correction must not
// disturb the approval flow that triggered it.
func (s *Service) Capture(ctx context.Context, m *domain.Message, action domain.CorrectionAction, correctedText *string) {
	rec := &domain.CorrectionRecord{
		Channel:       "sms",
		Action:        action,
		OriginalDraft: m.Draft,
		CorrectedText: correctedText,
		MessageID:     m.ID,
	}

	id, err := s.store.Create(ctx, rec)
	if err != nil {
		logger.Error("correction capture failed", "message_id", m.ID, "error", err.Error())
		return
	}
	rec.ID = id

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.learn(context.Background(), rec)
	}()
}

// Wait blocks until all background extractions finished. Used on shutdown
// and in tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

const extractSystemPrompt = `You review corrections a business owner made to drafted SMS replies. Extract one reusable rule the drafting assistant should follow next time. Respond with JSON only: {"rule": "<one imperative sentence>", "category": "<pricing|tone|service_details|workflow|language|other>"}. If the correction teaches nothing reusable, respond {"rule": ""}.`

// learn asks the model for a reusable rule, persists it, and promotes it
// into semantic memory. Every step is best-effort.
func (s *Service) learn(ctx context.Context, rec *domain.CorrectionRecord) {
	if s.completer == nil {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Original draft:\n%s\n\n", rec.OriginalDraft)
	if rec.Action == domain.CorrectionReject {
		b.WriteString("The owner rejected this draft outright.")
	} else if rec.CorrectedText != nil {
		fmt.Fprintf(&b, "The owner rewrote it as:\n%s", *rec.CorrectedText)
	}

	raw, err := s.completer.Complete(ctx, llm.Request{
		System:      extractSystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: b.String()}},
		MaxTokens:   extractMaxTokens,
		Temperature: extractTemperature,
	})
	if err != nil {
		logger.Warn("rule extraction failed", "correction_id", rec.ID, "error", err.Error())
		return
	}

	rule, category := parseExtraction(raw)
	if rule == "" {
		logger.Debug("no reusable rule extracted", "correction_id", rec.ID)
		return
	}

	if err := s.store.SetRule(ctx, rec.ID, rule, category); err != nil {
		logger.Error("storing extracted rule failed", "correction_id", rec.ID, "error", err.Error())
		return
	}

	s.promote(ctx, rec.ID, rule)
}

// parseExtraction pulls {rule, category} out of the model reply, which may
// wrap the JSON in prose or code fences. Unknown categories coerce to
// other.
func parseExtraction(raw string) (string, domain.RuleCategory) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", domain.RuleOther
	}

	var parsed struct {
		Rule     string `json:"rule"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return "", domain.RuleOther
	}

	category := domain.RuleCategory(parsed.Category)
	if !domain.ValidRuleCategory(category) {
		category = domain.RuleOther
	}
	return strings.TrimSpace(parsed.Rule), category
}

// promote writes the rule into semantic memory and flags the record. A
// failed write bumps the attempt counter so the reconciler can retry.
func (s *Service) promote(ctx context.Context, id, rule string) bool {
	if s.memory == nil {
		return false
	}

	if err := s.memory.Write(ctx, rule, ruleScope, ruleCategory, ruleImportance, "correction_learner"); err != nil {
		logger.Warn("rule promotion failed", "correction_id", id, "error", err.Error())
		if bumpErr := s.store.BumpPromoteAttempts(ctx, id); bumpErr != nil {
			logger.Error("bumping promote attempts failed", "correction_id", id, "error", bumpErr.Error())
		}
		return false
	}

	if err := s.store.MarkPromoted(ctx, id); err != nil {
		logger.Error("marking rule promoted failed", "correction_id", id, "error", err.Error())
		return false
	}
	return true
}

// Reconcile retries promotion for records whose rule never made it into
// memory, oldest first, bounded per cycle and per record.
func (s *Service) Reconcile(ctx context.Context, batchSize, maxAttempts int) (int, error) {
	records, err := s.store.Unpromoted(ctx, batchSize, maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("listing unpromoted corrections: %w", err)
	}

	promoted := 0
	for _, rec := range records {
		if rec.RuleText == nil {
			continue
		}
		if s.promote(ctx, rec.ID, *rec.RuleText) {
			promoted++
		}
	}
	return promoted, nil
}
