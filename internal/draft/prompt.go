package draft

import (
	"fmt"
	"strings"

	"github.com/copperline/barback/internal/domain"
)

// systemPrompt assembles the follow-up prompt: persona, mandatory reply
// language, context bundle, evaluator summary, and the correction rules
// as a numbered strict-compliance list.
func (g *Generator) systemPrompt(lang Language, bundle domain.ContextBundle, eval *domain.Evaluation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the owner of %s, a mobile cocktail catering business, replying to a client over SMS. ", g.business.Name)
	b.WriteString("Be warm, direct, and brief. One to three sentences unless the client asked for details. ")
	b.WriteString("Never invent prices, dates, or availability; if you do not know, say you will check and follow up. ")
	b.WriteString("No emojis, no sign-off block.\n\n")

	if lang == LanguageSpanish {
		b.WriteString("Reply in Spanish. The client writes in Spanish.\n\n")
	} else {
		b.WriteString("Reply in English.\n\n")
	}

	writeSection(&b, "Business facts", bundle.BusinessFacts)
	writeSection(&b, "What we know about this client", bundle.Memories)
	writeSection(&b, "Calendar", bundle.CalendarLines)

	if eval != nil {
		switch eval.Verdict {
		case domain.VerdictReady:
			fmt.Fprintf(&b, "A menu change is staged from this message: %s. Confirm it in your reply; it is applied once your reply is approved and sent.\n\n", eval.Summary)
		case domain.VerdictAmbiguous:
			fmt.Fprintf(&b, "The client asked for a menu change but it matches several items (%s). Ask which one they mean.\n\n", strings.Join(eval.Candidates, ", "))
		case domain.VerdictNotFound:
			b.WriteString("The client asked for a menu change but nothing on their current menu matches. Ask them to clarify what to change.\n\n")
		}
	}

	if len(bundle.Rules) > 0 {
		b.WriteString("Follow these standing rules without exception:\n")
		for i, rule := range bundle.Rules {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString(title + ":\n")
	for _, line := range lines {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("\n")
}
