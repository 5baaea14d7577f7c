package twilio

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// TwiML builders for the voice webhook answers. Layouts are fixed per
// routing mode, so these are plain string assembly over escaped text
// rather than a full document model.

const twimlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

func xmlEscape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// TwiMLSay speaks text and hangs up. Used for the announce routing mode
// and reminder calls.
func TwiMLSay(text string) string {
	return fmt.Sprintf(`%s<Response><Say voice="alice">%s</Say><Hangup/></Response>`,
		twimlHeader, xmlEscape(text))
}

// TwiMLForward bridges the caller to the operator number.
func TwiMLForward(number string) string {
	return fmt.Sprintf(`%s<Response><Dial>%s</Dial></Response>`,
		twimlHeader, xmlEscape(number))
}

// TwiMLVoicemail plays a greeting and records up to two minutes.
func TwiMLVoicemail(greeting string) string {
	return fmt.Sprintf(`%s<Response><Say voice="alice">%s</Say><Record maxLength="120" playBeep="true"/></Response>`,
		twimlHeader, xmlEscape(greeting))
}

// TwiMLReject declines the call without answering.
func TwiMLReject() string {
	return twimlHeader + `<Response><Reject/></Response>`
}
