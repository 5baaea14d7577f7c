// Package enrich assembles the context bundle for a draft: semantic
// memory, business facts, calendar availability, conversation history,
// and learned correction rules, fetched concurrently. A lookup that
// fails contributes an empty result and a warning log; it never aborts
// the others. The aggregator waits for every lookup to settle.
package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/copperline/barback/internal/calendar"
	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/memory"
	"github.com/copperline/barback/internal/pkg/logger"
)

const (
	defaultTimeout = 20 * time.Second
	memoryLimit    = 5
	historyLimit   = 10
	rulesLimit     = 10
)

const businessFactsQuery = "services packages policies pricing booking"

// MemorySearcher is the slice of the memory client the aggregator needs.
type MemorySearcher interface {
	Search(ctx context.Context, query, scope string, limit int) ([]memory.Result, error)
}

// CalendarSource lists events for one day.
type CalendarSource interface {
	EventsOn(ctx context.Context, day time.Time) ([]calendar.Event, error)
}

// HistorySource returns a conversation's messages in chronological order.
type HistorySource interface {
	History(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)
}

// RuleSource returns learned correction rules, newest first.
type RuleSource interface {
	RecentRules(ctx context.Context, limit int) ([]string, error)
}

// Aggregator fans out the context lookups. Any source may be nil when
// the feature is disabled; its slot stays empty.
type Aggregator struct {
	memory   MemorySearcher
	calendar CalendarSource
	history  HistorySource
	rules    RuleSource
	timeout  time.Duration
	now      func() time.Time
}

// NewAggregator wires the lookup sources. Nil sources are skipped.
func NewAggregator(mem MemorySearcher, cal CalendarSource, hist HistorySource, rules RuleSource) *Aggregator {
	return &Aggregator{
		memory:   mem,
		calendar: cal,
		history:  hist,
		rules:    rules,
		timeout:  defaultTimeout,
		now:      time.Now,
	}
}

// Aggregate runs all lookups concurrently and merges whatever succeeded
// into one bundle. It always returns a bundle, possibly empty.
func (a *Aggregator) Aggregate(ctx context.Context, conversationID, phone, text string) domain.ContextBundle {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var bundle domain.ContextBundle
	var wg sync.WaitGroup

	if a.memory != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := a.memory.Search(ctx, text, "sender:"+phone, memoryLimit)
			if err != nil {
				logger.Warn("memory lookup failed", "phone", logger.RedactPhone(phone), "error", err.Error())
				return
			}
			for _, r := range results {
				bundle.Memories = append(bundle.Memories, r.Text)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := a.memory.Search(ctx, businessFactsQuery, "business", memoryLimit)
			if err != nil || len(results) == 0 {
				if err != nil {
					logger.Warn("business facts lookup failed", "error", err.Error())
				}
				bundle.BusinessFacts = append([]string(nil), memory.DefaultFacts...)
				return
			}
			for _, r := range results {
				bundle.BusinessFacts = append(bundle.BusinessFacts, r.Text)
			}
		}()
	} else {
		bundle.BusinessFacts = append([]string(nil), memory.DefaultFacts...)
	}

	if a.calendar != nil {
		if day, ok := calendar.ResolveDate(text, a.now()); ok {
			wg.Add(1)
			go func() {
				defer wg.Done()
				events, err := a.calendar.EventsOn(ctx, day)
				if err != nil {
					logger.Warn("calendar lookup failed", "error", err.Error())
					return
				}
				bundle.CalendarLines = formatEvents(day, events)
			}()
		}
	}

	if a.history != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msgs, err := a.history.History(ctx, conversationID, historyLimit)
			if err != nil {
				logger.Warn("history lookup failed", "conversation_id", conversationID, "error", err.Error())
				return
			}
			bundle.History = msgs
		}()
	}

	if a.rules != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rules, err := a.rules.RecentRules(ctx, rulesLimit)
			if err != nil {
				logger.Warn("rules lookup failed", "error", err.Error())
				return
			}
			bundle.Rules = rules
		}()
	}

	wg.Wait()
	return bundle
}

// formatEvents renders a day's events as prompt lines. An empty day gets
// an explicit free line so the model knows the date is open.
func formatEvents(day time.Time, events []calendar.Event) []string {
	if len(events) == 0 {
		return []string{fmt.Sprintf("%s: no events booked", day.Format("Mon Jan 2"))}
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.AllDay {
			lines = append(lines, fmt.Sprintf("%s: %s (all day)", ev.Start.Format("Mon Jan 2"), ev.Title))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s (%s to %s)",
			ev.Start.Format("Mon Jan 2"), ev.Title,
			ev.Start.Format("3:04 PM"), ev.End.Format("3:04 PM")))
	}
	return lines
}
