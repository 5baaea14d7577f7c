package api

import (
	"fmt"
	"strings"

	"github.com/osteele/liquid"

	"github.com/copperline/barback/internal/domain"
)

var templateEngine = liquid.NewEngine()

// callScriptTemplate is the spoken text for a reminder call. Kept short;
// text-to-speech reads every word.
const callScriptTemplate = `Hello. This is a reminder from {{ business }}. {{ message }} Thank you, goodbye.`

// approvePageTemplate is the web approval form. One page covers both a
// pending draft (editable form) and a resolved message (read-only state).
const approvePageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Draft review</title>
<style>
body { font-family: -apple-system, Helvetica, Arial, sans-serif; max-width: 640px; margin: 2rem auto; padding: 0 1rem; color: #222; }
textarea { width: 100%; min-height: 8rem; font-size: 1rem; padding: .5rem; box-sizing: border-box; }
.meta { color: #666; font-size: .9rem; }
.notice { padding: .75rem 1rem; border-radius: 6px; margin: 1rem 0; background: #f2f4f7; }
.notice.error { background: #fdecec; }
.actions { margin-top: 1rem; display: flex; gap: .5rem; }
button { font-size: 1rem; padding: .5rem 1.25rem; border-radius: 6px; border: 1px solid #bbb; background: #fff; cursor: pointer; }
button.primary { background: #1a7f37; border-color: #1a7f37; color: #fff; }
button.danger { border-color: #b42318; color: #b42318; }
</style>
</head>
<body>
<h1>Draft review</h1>
<p class="meta">Message {{ id }}{% if phone != "" %} &middot; to {{ phone }}{% endif %} &middot; status: {{ status }}</p>
{% if notice != "" %}<div class="notice{% if notice_error %} error{% endif %}">{{ notice }}</div>{% endif %}
{% if pending %}
{% if action_summary != "" %}<div class="notice">Pending action: {{ action_summary | escape }}</div>{% endif %}
<form method="post">
<textarea name="text">{{ draft | escape }}</textarea>
<div class="actions">
<button class="primary" type="submit" name="action" value="approve">Approve as written</button>
<button type="submit" name="action" value="edit">Send edited text</button>
<button class="danger" type="submit" name="action" value="reject">Reject</button>
</div>
</form>
{% else %}
<p>{{ final_text | escape }}</p>
{% endif %}
</body>
</html>`

var (
	parsedCallScript  = mustParse("call script", callScriptTemplate)
	parsedApprovePage = mustParse("approve page", approvePageTemplate)
)

func mustParse(name, body string) *liquid.Template {
	tpl, err := templateEngine.ParseString(body)
	if err != nil {
		panic(fmt.Sprintf("api: bad %s template: %v", name, err))
	}
	return tpl
}

// renderCallScript renders the spoken reminder text.
func renderCallScript(business, message string) string {
	out, err := parsedCallScript.RenderString(map[string]interface{}{
		"business": business,
		"message":  message,
	})
	if err != nil {
		return fmt.Sprintf("Hello. This is a reminder from %s. %s Thank you, goodbye.", business, message)
	}
	return strings.Join(strings.Fields(out), " ")
}

// approvePageData is the binding set for the approval form.
type approvePageData struct {
	m             *domain.Message
	phone         string
	actionSummary string
	notice        string
	noticeError   bool
}

// renderApprovePage renders the review page for a draft in any state.
func renderApprovePage(d approvePageData) (string, error) {
	finalText := d.m.Body
	if d.m.Status == domain.MessageRejected {
		finalText = "Rejected. Nothing was sent."
	}
	return parsedApprovePage.RenderString(map[string]interface{}{
		"id":             d.m.ID,
		"phone":          d.phone,
		"status":         string(d.m.Status),
		"pending":        d.m.Status == domain.MessagePendingApproval,
		"draft":          d.m.Draft,
		"final_text":     finalText,
		"action_summary": d.actionSummary,
		"notice":         d.notice,
		"notice_error":   d.noticeError,
	})
}
