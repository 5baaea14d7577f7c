package draft

import (
	"fmt"
	"strings"

	"github.com/osteele/liquid"

	"github.com/copperline/barback/internal/calendar"
)

// question is one intake question a first-contact template may ask. Key
// names the heuristic that can prune it; a question with no matching
// heuristic is always asked.
type question struct {
	key string
	en  string
	es  string
}

// Intake questions in ask order. Date, headcount, and venue get pruned
// when the sender's message already answers them.
var intakeQuestions = []question{
	{key: "date", en: "What date is your event?", es: "¿Para qué fecha es su evento?"},
	{key: "headcount", en: "Roughly how many guests?", es: "¿Aproximadamente cuántos invitados?"},
	{key: "venue", en: "Where will it be held?", es: "¿Dónde se llevará a cabo?"},
	{key: "rentals", en: "Will you need our portable bar setup?", es: "¿Necesitará nuestra barra portátil?"},
	{key: "glassware", en: "Should we bring glassware, or does the venue provide it?", es: "¿Llevamos cristalería o la proporciona el lugar?"},
	{key: "alcohol", en: "Are you supplying the alcohol, or should we quote it?", es: "¿Usted pone el alcohol o lo incluimos en la cotización?"},
}

// pruneQuestions drops questions the inbound text already answers.
func pruneQuestions(text string, lang Language) []string {
	var out []string
	for _, q := range intakeQuestions {
		switch q.key {
		case "date":
			if calendar.MentionsDate(text) {
				continue
			}
		case "headcount":
			if MentionsHeadcount(text) {
				continue
			}
		case "venue":
			if MentionsLocation(text) {
				continue
			}
		}
		if lang == LanguageSpanish {
			out = append(out, q.es)
		} else {
			out = append(out, q.en)
		}
	}
	return out
}

// First-contact templates, one per (language, inquiry). Bodies are Liquid;
// the render context supplies name, business, signoff, and the pruned
// questions list.
var firstContactTemplates = map[Language]map[Inquiry]string{
	LanguageEnglish: {
		InquiryBarService: `Hi{% if name != "" %} {{ name }}{% endif %}! Thanks for reaching out to {{ business }}. We'd love to bartend your event.{% if questions.size > 0 %} A few quick questions so I can put together an accurate quote: {% for q in questions %}{{ forloop.index }}) {{ q }} {% endfor %}{% endif %}{{ signoff }}`,
		InquiryWedding:    `Hi{% if name != "" %} {{ name }}{% endif %}! Congratulations, and thanks for thinking of {{ business }} for your wedding. We do full bar service for receptions of all sizes.{% if questions.size > 0 %} To get you a quote: {% for q in questions %}{{ forloop.index }}) {{ q }} {% endfor %}{% endif %}{{ signoff }}`,
		InquiryCorporate:  `Hi{% if name != "" %} {{ name }}{% endif %}! Thanks for contacting {{ business }}. We handle corporate events regularly and can work within most office and venue rules.{% if questions.size > 0 %} A few details to quote you: {% for q in questions %}{{ forloop.index }}) {{ q }} {% endfor %}{% endif %}{{ signoff }}`,
		InquiryCocktailClass: `Hi{% if name != "" %} {{ name }}{% endif %}! Thanks for reaching out to {{ business }}. Our cocktail classes are hands-on and run about two hours.{% if questions.size > 0 %} To set one up: {% for q in questions %}{{ forloop.index }}) {{ q }} {% endfor %}{% endif %}{{ signoff }}`,
		InquiryGeneral:    `Hi{% if name != "" %} {{ name }}{% endif %}! Thanks for reaching out to {{ business }}. Happy to help.{% if questions.size > 0 %} Could you tell me a bit more? {% for q in questions %}{{ forloop.index }}) {{ q }} {% endfor %}{% endif %}{{ signoff }}`,
	},
	LanguageSpanish: {
		InquiryBarService: `¡Hola{% if name != "" %} {{ name }}{% endif %}! Gracias por contactar a {{ business }}. Nos encantaría atender el bar de su evento.{% if questions.size > 0 %} Unas preguntas rápidas para darle una cotización exacta: {% for q in questions %}{{ forloop.index }}) {{ q }} {% endfor %}{% endif %}{{ signoff }}`,
		InquiryWedding:    `¡Hola{% if name != "" %} {{ name }}{% endif %}! Felicidades, y gracias por pensar en {{ business }} para su boda. Ofrecemos servicio completo de bar para recepciones.{% if questions.size > 0 %} Para cotizarle: {% for q in questions %}{{ forloop.index }}) {{ q }} {% endfor %}{% endif %}{{ signoff }}`,
		InquiryCorporate:  `¡Hola{% if name != "" %} {{ name }}{% endif %}! Gracias por contactar a {{ business }}. Atendemos eventos de empresa con regularidad.{% if questions.size > 0 %} Unos detalles para cotizarle: {% for q in questions %}{{ forloop.index }}) {{ q }} {% endfor %}{% endif %}{{ signoff }}`,
		InquiryCocktailClass: `¡Hola{% if name != "" %} {{ name }}{% endif %}! Gracias por contactar a {{ business }}. Nuestras clases de coctelería son prácticas y duran unas dos horas.{% if questions.size > 0 %} Para organizarla: {% for q in questions %}{{ forloop.index }}) {{ q }} {% endfor %}{% endif %}{{ signoff }}`,
		InquiryGeneral:    `¡Hola{% if name != "" %} {{ name }}{% endif %}! Gracias por contactar a {{ business }}. Con gusto le ayudamos.{% if questions.size > 0 %} ¿Me puede contar un poco más? {% for q in questions %}{{ forloop.index }}) {{ q }} {% endfor %}{% endif %}{{ signoff }}`,
	},
}

var templateEngine = liquid.NewEngine()

var parsedTemplates = mustParseTemplates()

func mustParseTemplates() map[Language]map[Inquiry]*liquid.Template {
	out := make(map[Language]map[Inquiry]*liquid.Template, len(firstContactTemplates))
	for lang, byInquiry := range firstContactTemplates {
		out[lang] = make(map[Inquiry]*liquid.Template, len(byInquiry))
		for inquiry, body := range byInquiry {
			tpl, err := templateEngine.ParseString(body)
			if err != nil {
				panic(fmt.Sprintf("draft: bad template %s/%s: %v", lang, inquiry, err))
			}
			out[lang][inquiry] = tpl
		}
	}
	return out
}

// renderFirstContact renders the template for (lang, inquiry) with the
// pruned question list. Reproducible for a given input pair.
func renderFirstContact(text, name string, lang Language, inquiry Inquiry, business, signoff string) (string, error) {
	byInquiry, ok := parsedTemplates[lang]
	if !ok {
		byInquiry = parsedTemplates[LanguageEnglish]
	}
	tpl, ok := byInquiry[inquiry]
	if !ok {
		tpl = byInquiry[InquiryGeneral]
	}

	rendered, err := tpl.RenderString(map[string]interface{}{
		"name":      name,
		"business":  business,
		"signoff":   signoff,
		"questions": pruneQuestions(text, lang),
	})
	if err != nil {
		return "", fmt.Errorf("rendering template: %w", err)
	}
	return strings.Join(strings.Fields(rendered), " "), nil
}
