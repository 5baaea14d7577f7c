// Package draft produces outbound reply text. First-contact messages get
// a deterministic Liquid template keyed by detected language and inquiry
// type; follow-ups go through the model with assembled context. The
// generator never fails to produce a draft: model errors fall back to
// canned replies.
package draft

import (
	"context"
	"fmt"
	"strings"

	"github.com/copperline/barback/internal/config"
	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/llm"
	"github.com/copperline/barback/internal/pkg/logger"
)

const (
	maxDraftTokens = 300
	historyTurns   = 5
)

// Source records which path produced a draft.
type Source string

const (
	SourceTemplate Source = "template"
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Request carries everything the generator needs for one draft.
type Request struct {
	Text       string
	Name       string
	History    []*domain.Message
	Bundle     domain.ContextBundle
	Evaluation *domain.Evaluation
}

// Result is the produced draft plus what the detectors decided.
type Result struct {
	Text     string
	Language Language
	Inquiry  Inquiry
	Source   Source
}

// Generator turns an enriched inbound message into a reply draft.
type Generator struct {
	completer llm.Completer
	business  config.BusinessConfig
}

// NewGenerator creates a draft generator. completer may be nil; every
// follow-up then takes the fallback path.
func NewGenerator(completer llm.Completer, business config.BusinessConfig) *Generator {
	return &Generator{completer: completer, business: business}
}

// Generate drafts a reply. First contact means the history holds at most
// the just-stored inbound message.
func (g *Generator) Generate(ctx context.Context, req Request) *Result {
	lang := DetectLanguage(req.Text)
	inquiry := DetectInquiry(req.Text)

	if len(req.History) <= 1 {
		text, err := renderFirstContact(req.Text, req.Name, lang, inquiry, g.business.Name, g.business.Signoff)
		if err == nil {
			return &Result{Text: StripWrapping(text), Language: lang, Inquiry: inquiry, Source: SourceTemplate}
		}
		logger.Error("first-contact template failed", "inquiry", string(inquiry), "error", err.Error())
		return &Result{Text: g.fallback(req.Text, lang), Language: lang, Inquiry: inquiry, Source: SourceFallback}
	}

	if g.completer != nil {
		text, err := g.completer.Complete(ctx, llm.Request{
			System:    g.systemPrompt(lang, req.Bundle, req.Evaluation),
			Messages:  g.conversation(req.History, req.Text),
			MaxTokens: maxDraftTokens,
		})
		if err == nil && strings.TrimSpace(text) != "" {
			return &Result{Text: StripWrapping(text), Language: lang, Inquiry: inquiry, Source: SourceModel}
		}
		if err != nil {
			logger.Warn("model draft failed, using fallback", "error", err.Error())
		}
	}

	return &Result{Text: g.fallback(req.Text, lang), Language: lang, Inquiry: inquiry, Source: SourceFallback}
}

// conversation formats the last turns plus the new inbound as the user
// message. The model sees who said what but replies as us.
func (g *Generator) conversation(history []*domain.Message, text string) []llm.Message {
	turns := history
	if len(turns) > historyTurns {
		turns = turns[len(turns)-historyTurns:]
	}

	var b strings.Builder
	for _, m := range turns {
		if m.Direction == domain.DirectionInbound {
			fmt.Fprintf(&b, "Client: %s\n", m.Body)
		} else {
			fmt.Fprintf(&b, "You: %s\n", m.Body)
		}
	}
	fmt.Fprintf(&b, "Client: %s\n\nWrite your reply text only.", text)

	return []llm.Message{{Role: "user", Content: b.String()}}
}

// Canned replies for when the model is down. Keyed by the most common
// intents; anything else gets the generic acknowledgment.
var cannedReplies = []struct {
	keywords []string
	en       string
	es       string
}{
	{
		keywords: []string{"price", "cost", "quote", "how much", "precio", "cotizacion", "cuanto"},
		en:       "Thanks for asking! Pricing depends on the date, guest count, and package. Let me pull the details together and get right back to you.",
		es:       "¡Gracias por preguntar! El precio depende de la fecha, el número de invitados y el paquete. Déjeme revisar los detalles y le respondo en breve.",
	},
	{
		keywords: []string{"cancel", "cancelled", "cancelar"},
		en:       "Got it, thanks for letting me know. I'll update the booking and follow up shortly to confirm.",
		es:       "Entendido, gracias por avisar. Actualizo la reservación y le confirmo en breve.",
	},
	{
		keywords: []string{"thank", "thanks", "gracias"},
		en:       "You're very welcome! Let me know if there's anything else you need.",
		es:       "¡Con mucho gusto! Avíseme si necesita algo más.",
	},
}

const (
	genericAckEN = "Thanks for your message! Let me check on that and get back to you shortly."
	genericAckES = "¡Gracias por su mensaje! Déjeme revisarlo y le respondo en breve."
)

func (g *Generator) fallback(text string, lang Language) string {
	lower := strings.ToLower(text)
	for _, canned := range cannedReplies {
		for _, kw := range canned.keywords {
			if strings.Contains(lower, kw) {
				if lang == LanguageSpanish {
					return canned.es
				}
				return canned.en
			}
		}
	}
	if lang == LanguageSpanish {
		return genericAckES
	}
	return genericAckEN
}

// StripWrapping removes quote characters a model tends to wrap replies in,
// plus surrounding whitespace. Only matched pairs are stripped.
func StripWrapping(text string) string {
	out := strings.TrimSpace(text)
	pairs := [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}, {"‘", "’"}, {"`", "`"}}
	for changed := true; changed; {
		changed = false
		for _, p := range pairs {
			if len(out) >= len(p[0])+len(p[1]) && strings.HasPrefix(out, p[0]) && strings.HasSuffix(out, p[1]) {
				out = strings.TrimSpace(out[len(p[0]) : len(out)-len(p[1])])
				changed = true
			}
		}
	}
	return out
}
