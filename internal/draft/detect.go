package draft

import (
	"regexp"
	"strings"
)

// Language is the reply language for a draft.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageSpanish Language = "es"
)

// Inquiry is the detected event type for a first-contact message.
type Inquiry string

const (
	InquiryBarService    Inquiry = "bar_service"
	InquiryCocktailClass Inquiry = "cocktail_class"
	InquiryWedding       Inquiry = "wedding"
	InquiryCorporate     Inquiry = "corporate"
	InquiryGeneral       Inquiry = "general"
)

var spanishDiacritics = regexp.MustCompile(`[áéíóúüñ¿¡]`)

var spanishKeywords = []string{
	"hola", "gracias", "necesito", "quiero", "fiesta", "boda", "evento para",
	"cotizacion", "precio", "cuanto", "por favor", "buenos dias", "buenas tardes",
}

// DetectLanguage returns Spanish when the text carries Spanish diacritics
// or keywords, English otherwise. English is the default for anything
// ambiguous.
func DetectLanguage(text string) Language {
	lower := strings.ToLower(text)
	if spanishDiacritics.MatchString(lower) {
		return LanguageSpanish
	}
	for _, kw := range spanishKeywords {
		if strings.Contains(lower, kw) {
			return LanguageSpanish
		}
	}
	return LanguageEnglish
}

// inquiryKeywords is checked in order; the first category with a hit wins.
// Wedding and corporate outrank bar_service so "bartenders for our wedding"
// lands on the wedding template.
var inquiryKeywords = []struct {
	inquiry  Inquiry
	keywords []string
}{
	{InquiryWedding, []string{"wedding", "bride", "groom", "reception", "boda", "novia"}},
	{InquiryCorporate, []string{"corporate", "office", "company", "team event", "holiday party", "empresa", "oficina"}},
	{InquiryCocktailClass, []string{"class", "lesson", "workshop", "mixology", "learn", "clase", "taller"}},
	{InquiryBarService, []string{"bartender", "bar service", "quote", "party", "event", "birthday", "drinks", "cocktails", "cantinero", "cotizacion", "fiesta"}},
}

// DetectInquiry classifies a first-contact message into the fixed taxonomy.
func DetectInquiry(text string) Inquiry {
	lower := strings.ToLower(text)
	for _, group := range inquiryKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.inquiry
			}
		}
	}
	return InquiryGeneral
}

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bthis is ([A-Za-zÁÉÍÓÚÑáéíóúñ]+)`),
	regexp.MustCompile(`(?i)\bmy name is ([A-Za-zÁÉÍÓÚÑáéíóúñ]+)`),
	regexp.MustCompile(`(?i)\bme llamo ([A-Za-zÁÉÍÓÚÑáéíóúñ]+)`),
	regexp.MustCompile(`(?i)\bi'?m ([A-Z][a-zÁÉÍÓÚÑáéíóúñ]+)\b`),
	regexp.MustCompile(`(?i)\bit'?s ([A-Z][a-zÁÉÍÓÚÑáéíóúñ]+)\b`),
}

// Words that follow the name patterns but are never names.
var notNames = map[string]bool{
	"looking": true, "interested": true, "wondering": true, "trying": true,
	"hoping": true, "planning": true, "reaching": true, "texting": true,
	"calling": true, "just": true, "not": true, "so": true, "about": true,
	"for": true, "the": true, "a": true, "regarding": true, "urgent": true,
	"gonna": true, "going": true, "sure": true, "happy": true, "still": true,
	"also": true, "really": true, "getting": true, "having": true,
	"thinking": true, "checking": true, "curious": true, "sorry": true,
	"glad": true, "good": true, "okay": true, "ok": true, "available": true,
	"flexible": true, "excited": true, "confirming": true, "following": true,
}

// ExtractName pulls a self-introduced first name out of a message, or ""
// when none is found. "Hi, this is Sarah, need a quote" yields "Sarah".
func ExtractName(text string) string {
	for _, pattern := range namePatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := strings.Trim(m[1], ".,!?")
		if candidate == "" || notNames[strings.ToLower(candidate)] {
			continue
		}
		runes := []rune(candidate)
		return strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
	return ""
}

var headcountPattern = regexp.MustCompile(`(?i)\b(\d{1,4})\s*(?:people|guests|persons|ppl|pax|heads|attendees|personas|invitados)\b|\bparty of\s+\d{1,4}\b`)

// MentionsHeadcount reports whether the text states a group size.
func MentionsHeadcount(text string) bool {
	return headcountPattern.MatchString(text)
}

var locationKeywords = []string{
	"venue", "address", "located", "location", "backyard", "rooftop",
	"warehouse", "brewery", "winery", "hotel", "office", "our house",
	"our home", "our place", "downtown", "salon", "en casa", "direccion",
}

// MentionsLocation reports whether the text names where the event happens.
func MentionsLocation(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range locationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
