package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/copperline/barback/internal/calendar"
	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/memory"
)

type fakeMemory struct {
	byScope map[string][]memory.Result
	err     error
	delay   time.Duration
}

func (f *fakeMemory) Search(ctx context.Context, query, scope string, limit int) ([]memory.Result, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.byScope[scope], nil
}

type fakeCalendar struct {
	events []calendar.Event
	err    error
	called bool
}

func (f *fakeCalendar) EventsOn(ctx context.Context, day time.Time) ([]calendar.Event, error) {
	f.called = true
	return f.events, f.err
}

type fakeHistory struct {
	msgs []*domain.Message
	err  error
}

func (f *fakeHistory) History(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	return f.msgs, f.err
}

type fakeRules struct {
	rules []string
	err   error
}

func (f *fakeRules) RecentRules(ctx context.Context, limit int) ([]string, error) {
	return f.rules, f.err
}

func TestAggregateMergesAllLookups(t *testing.T) {
	mem := &fakeMemory{byScope: map[string][]memory.Result{
		"sender:+15551234567": {{Text: "prefers mezcal", Score: 0.9}},
		"business":            {{Text: "we quote within a day", Score: 0.8}},
	}}
	cal := &fakeCalendar{events: []calendar.Event{{
		ID: "ev-1", Title: "Corporate tasting",
		Start: time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 6, 15, 21, 0, 0, 0, time.UTC),
	}}}
	hist := &fakeHistory{msgs: []*domain.Message{{Body: "hi", Direction: domain.DirectionInbound}}}
	rules := &fakeRules{rules: []string{"Always mention the travel fee."}}

	agg := NewAggregator(mem, cal, hist, rules)
	agg.now = func() time.Time { return time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC) }

	bundle := agg.Aggregate(context.Background(), "conv-1", "+15551234567", "is June 15 open?")

	if len(bundle.Memories) != 1 || bundle.Memories[0] != "prefers mezcal" {
		t.Errorf("unexpected memories: %v", bundle.Memories)
	}
	if len(bundle.BusinessFacts) != 1 || bundle.BusinessFacts[0] != "we quote within a day" {
		t.Errorf("unexpected business facts: %v", bundle.BusinessFacts)
	}
	if len(bundle.CalendarLines) != 1 || !strings.Contains(bundle.CalendarLines[0], "Corporate tasting") {
		t.Errorf("unexpected calendar lines: %v", bundle.CalendarLines)
	}
	if len(bundle.History) != 1 {
		t.Errorf("unexpected history: %v", bundle.History)
	}
	if len(bundle.Rules) != 1 {
		t.Errorf("unexpected rules: %v", bundle.Rules)
	}
	if !cal.called {
		t.Error("expected calendar lookup for a message with a date")
	}
}

func TestAggregatePartialFailure(t *testing.T) {
	mem := &fakeMemory{err: errors.New("store down")}
	hist := &fakeHistory{msgs: []*domain.Message{{Body: "hi"}, {Body: "there"}}}
	rules := &fakeRules{rules: []string{"rule one"}}

	agg := NewAggregator(mem, nil, hist, rules)

	bundle := agg.Aggregate(context.Background(), "conv-1", "+15551234567", "no dates here")

	if len(bundle.Memories) != 0 {
		t.Errorf("expected no memories on failure, got %v", bundle.Memories)
	}
	// Business facts degrade to the hardcoded fallback, not to nothing.
	if len(bundle.BusinessFacts) != len(memory.DefaultFacts) {
		t.Errorf("expected fallback facts, got %v", bundle.BusinessFacts)
	}
	if len(bundle.History) != 2 {
		t.Errorf("history should be unaffected by memory failure, got %v", bundle.History)
	}
	if len(bundle.Rules) != 1 {
		t.Errorf("rules should be unaffected by memory failure, got %v", bundle.Rules)
	}
}

func TestAggregateWaitsForSlowLookup(t *testing.T) {
	mem := &fakeMemory{
		delay: 50 * time.Millisecond,
		byScope: map[string][]memory.Result{
			"sender:+15550000000": {{Text: "slow but present"}},
			"business":            {{Text: "fact"}},
		},
	}

	agg := NewAggregator(mem, nil, &fakeHistory{}, &fakeRules{})

	bundle := agg.Aggregate(context.Background(), "conv-1", "+15550000000", "hello")

	if len(bundle.Memories) != 1 {
		t.Errorf("expected aggregator to wait for the slow lookup, got %v", bundle.Memories)
	}
}

func TestAggregateNoDateSkipsCalendar(t *testing.T) {
	cal := &fakeCalendar{}
	agg := NewAggregator(nil, cal, nil, nil)

	bundle := agg.Aggregate(context.Background(), "conv-1", "+15551234567", "can we swap margarita for paloma")

	if cal.called {
		t.Error("calendar should not be queried without a date expression")
	}
	if len(bundle.CalendarLines) != 0 {
		t.Errorf("expected no calendar lines, got %v", bundle.CalendarLines)
	}
	if len(bundle.BusinessFacts) != len(memory.DefaultFacts) {
		t.Errorf("expected fallback facts with no memory source, got %v", bundle.BusinessFacts)
	}
}

func TestAggregateEmptyCalendarDayNoted(t *testing.T) {
	cal := &fakeCalendar{}
	agg := NewAggregator(nil, cal, nil, nil)
	agg.now = func() time.Time { return time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC) }

	bundle := agg.Aggregate(context.Background(), "conv-1", "+15551234567", "how about June 15?")

	if len(bundle.CalendarLines) != 1 || !strings.Contains(bundle.CalendarLines[0], "no events booked") {
		t.Errorf("expected explicit free-day line, got %v", bundle.CalendarLines)
	}
}
