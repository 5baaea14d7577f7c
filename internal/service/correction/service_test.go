package correction_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/llm"
	"github.com/copperline/barback/internal/service/correction"
)

type memStore struct {
	mu      sync.Mutex
	order   []string
	records map[string]*domain.CorrectionRecord
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*domain.CorrectionRecord)}
}

func (m *memStore) Create(_ context.Context, rec *domain.CorrectionRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cp := *rec
	cp.ID = fmt.Sprintf("cor-%d", m.nextID)
	m.records[cp.ID] = &cp
	m.order = append(m.order, cp.ID)
	return cp.ID, nil
}

func (m *memStore) SetRule(_ context.Context, id, rule string, category domain.RuleCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return correction.ErrNotFound
	}
	rec.RuleText = &rule
	rec.RuleCategory = &category
	return nil
}

func (m *memStore) MarkPromoted(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return correction.ErrNotFound
	}
	rec.Promoted = true
	return nil
}

func (m *memStore) BumpPromoteAttempts(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return correction.ErrNotFound
	}
	rec.PromoteAttempts++
	return nil
}

func (m *memStore) Unpromoted(_ context.Context, limit, maxAttempts int) ([]domain.CorrectionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CorrectionRecord
	for _, id := range m.order {
		rec := m.records[id]
		if rec.RuleText == nil || rec.Promoted || rec.PromoteAttempts >= maxAttempts {
			continue
		}
		out = append(out, *rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) RecentRules(_ context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		rec := m.records[m.order[i]]
		if rec.RuleText != nil {
			out = append(out, *rec.RuleText)
		}
	}
	return out, nil
}

func (m *memStore) get(id string) domain.CorrectionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.records[id]
}

func (m *memStore) firstID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order[0]
}

type stubCompleter struct {
	mu     sync.Mutex
	reply  string
	err    error
	prompt string
}

func (s *stubCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(req.Messages) > 0 {
		s.prompt = req.Messages[0].Content
	}
	return s.reply, s.err
}

func (s *stubCompleter) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

type stubMemory struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (s *stubMemory) Write(_ context.Context, text, scope, category string, importance float64, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.texts = append(s.texts, text)
	return nil
}

func (s *stubMemory) written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func draftMessage() *domain.Message {
	return &domain.Message{
		ID:        "msg-1",
		Direction: domain.DirectionOutbound,
		Draft:     "We charge $50 per hour per bartender.",
		Body:      "We charge $50 per hour per bartender.",
		Status:    domain.MessageApproved,
	}
}

func TestCaptureStoresEditRecord(t *testing.T) {
	store := newMemStore()
	svc := correction.NewService(store, nil, nil)

	edited := "Our rate starts at $65 per hour per bartender."
	svc.Capture(context.Background(), draftMessage(), domain.CorrectionEdit, &edited)
	svc.Wait()

	rec := store.get(store.firstID())
	if rec.Action != domain.CorrectionEdit {
		t.Errorf("action = %q, want edit", rec.Action)
	}
	if rec.OriginalDraft != "We charge $50 per hour per bartender." {
		t.Errorf("original draft = %q", rec.OriginalDraft)
	}
	if rec.CorrectedText == nil || *rec.CorrectedText != edited {
		t.Errorf("corrected text = %v", rec.CorrectedText)
	}
	if rec.RuleText != nil {
		t.Error("no rule may be extracted without a completer")
	}
}

func TestCaptureRejectHasNoCorrectedText(t *testing.T) {
	store := newMemStore()
	completer := &stubCompleter{reply: `{"rule": "Do not quote prices without confirming the date first.", "category": "pricing"}`}
	svc := correction.NewService(store, completer, nil)

	svc.Capture(context.Background(), draftMessage(), domain.CorrectionReject, nil)
	svc.Wait()

	rec := store.get(store.firstID())
	if rec.CorrectedText != nil {
		t.Errorf("reject must have NULL corrected text, got %v", rec.CorrectedText)
	}
	if !strings.Contains(completer.lastPrompt(), "rejected this draft") {
		t.Errorf("extraction prompt should mention the rejection:\n%s", completer.lastPrompt())
	}
}

func TestCaptureExtractsAndPromotes(t *testing.T) {
	store := newMemStore()
	completer := &stubCompleter{reply: "Here you go:\n```json\n{\"rule\": \"Always state that rates start at $65 per hour.\", \"category\": \"pricing\"}\n```"}
	mem := &stubMemory{}
	svc := correction.NewService(store, completer, mem)

	edited := "Our rate starts at $65 per hour per bartender."
	svc.Capture(context.Background(), draftMessage(), domain.CorrectionEdit, &edited)
	svc.Wait()

	rec := store.get(store.firstID())
	if rec.RuleText == nil || *rec.RuleText != "Always state that rates start at $65 per hour." {
		t.Fatalf("rule text = %v", rec.RuleText)
	}
	if rec.RuleCategory == nil || *rec.RuleCategory != domain.RulePricing {
		t.Errorf("rule category = %v", rec.RuleCategory)
	}
	if !rec.Promoted {
		t.Error("record should be promoted after a successful memory write")
	}
	if w := mem.written(); len(w) != 1 || w[0] != "Always state that rates start at $65 per hour." {
		t.Errorf("memory writes = %v", w)
	}
}

func TestCaptureUnknownCategoryCoerced(t *testing.T) {
	store := newMemStore()
	completer := &stubCompleter{reply: `{"rule": "Use fewer exclamation marks.", "category": "sarcasm"}`}
	svc := correction.NewService(store, completer, &stubMemory{})

	edited := "ok"
	svc.Capture(context.Background(), draftMessage(), domain.CorrectionEdit, &edited)
	svc.Wait()

	rec := store.get(store.firstID())
	if rec.RuleCategory == nil || *rec.RuleCategory != domain.RuleOther {
		t.Errorf("category = %v, want other", rec.RuleCategory)
	}
}

func TestCaptureModelGarbageLeavesRecordBare(t *testing.T) {
	store := newMemStore()
	completer := &stubCompleter{reply: "sorry, I cannot help with that"}
	svc := correction.NewService(store, completer, &stubMemory{})

	edited := "ok"
	svc.Capture(context.Background(), draftMessage(), domain.CorrectionEdit, &edited)
	svc.Wait()

	rec := store.get(store.firstID())
	if rec.RuleText != nil {
		t.Errorf("no rule should be stored from garbage output, got %v", rec.RuleText)
	}
}

func TestCaptureEmptyRuleSkipsPromotion(t *testing.T) {
	store := newMemStore()
	completer := &stubCompleter{reply: `{"rule": ""}`}
	mem := &stubMemory{}
	svc := correction.NewService(store, completer, mem)

	edited := "ok"
	svc.Capture(context.Background(), draftMessage(), domain.CorrectionEdit, &edited)
	svc.Wait()

	if len(mem.written()) != 0 {
		t.Errorf("nothing should reach memory, got %v", mem.written())
	}
}

func TestPromotionFailureBumpsAttempts(t *testing.T) {
	store := newMemStore()
	completer := &stubCompleter{reply: `{"rule": "Mention the travel fee.", "category": "pricing"}`}
	mem := &stubMemory{err: errors.New("vector store down")}
	svc := correction.NewService(store, completer, mem)

	edited := "ok"
	svc.Capture(context.Background(), draftMessage(), domain.CorrectionEdit, &edited)
	svc.Wait()

	rec := store.get(store.firstID())
	if rec.Promoted {
		t.Error("record must not be promoted when the write failed")
	}
	if rec.PromoteAttempts != 1 {
		t.Errorf("promote attempts = %d, want 1", rec.PromoteAttempts)
	}
	if rec.RuleText == nil {
		t.Error("the extracted rule must survive the failed promotion")
	}
}

func TestReconcilePromotesPending(t *testing.T) {
	store := newMemStore()
	mem := &stubMemory{err: errors.New("vector store down")}
	completer := &stubCompleter{reply: `{"rule": "Mention the travel fee.", "category": "pricing"}`}
	svc := correction.NewService(store, completer, mem)

	edited := "ok"
	svc.Capture(context.Background(), draftMessage(), domain.CorrectionEdit, &edited)
	svc.Wait()

	// Store recovers; the reconciler should pick the record up.
	mem.mu.Lock()
	mem.err = nil
	mem.mu.Unlock()

	promoted, err := svc.Reconcile(context.Background(), 10, 5)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if promoted != 1 {
		t.Fatalf("promoted = %d, want 1", promoted)
	}
	if rec := store.get(store.firstID()); !rec.Promoted {
		t.Error("record should be promoted after reconcile")
	}
}

func TestReconcileRespectsAttemptCap(t *testing.T) {
	store := newMemStore()
	svc := correction.NewService(store, nil, &stubMemory{})

	rule := "Mention the travel fee."
	category := domain.RulePricing
	id, err := store.Create(context.Background(), &domain.CorrectionRecord{
		Action:        domain.CorrectionEdit,
		OriginalDraft: "draft",
		MessageID:     "msg-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetRule(context.Background(), id, rule, category); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := store.BumpPromoteAttempts(context.Background(), id); err != nil {
			t.Fatal(err)
		}
	}

	promoted, err := svc.Reconcile(context.Background(), 10, 3)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if promoted != 0 {
		t.Errorf("a record at the attempt cap must be skipped, promoted = %d", promoted)
	}
}
