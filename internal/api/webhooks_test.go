package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/service/approval"
	"github.com/copperline/barback/internal/telegram"
)

func postForm(t *testing.T, handler http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func smsForm(sid, from, body string) url.Values {
	form := url.Values{}
	form.Set("MessageSid", sid)
	form.Set("From", from)
	form.Set("To", "+15550001111")
	form.Set("Body", body)
	return form
}

func TestInboundSMSRunsPipelineAndAcks(t *testing.T) {
	env := newTestEnv()
	router := env.router()

	form := smsForm("SM100", "+15551234567", "Hi, this is Sarah, need a quote for June 15 for 80 people")
	form.Set("NumMedia", "1")
	form.Set("MediaUrl0", "https://api.example.com/media/0")

	rec := postForm(t, router, "/webhook/sms", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "xml")
	assert.Contains(t, rec.Body.String(), "<Response>")

	require.Len(t, env.pipeline.processed, 1)
	got := env.pipeline.processed[0]
	assert.Equal(t, "+15551234567", got.From)
	assert.Equal(t, "SM100", got.ProviderSID)
	assert.Equal(t, []string{"https://api.example.com/media/0"}, got.Media)
}

func TestInboundSMSAcksOnPipelineFailure(t *testing.T) {
	env := newTestEnv()
	env.pipeline.err = assert.AnError

	rec := postForm(t, env.router(), "/webhook/sms", smsForm("SM101", "+15551234567", "hello"))

	// The provider must not retry a message we already stored or failed on.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Response>")
}

func TestInboundSMSIgnoresEmptyDeliveries(t *testing.T) {
	env := newTestEnv()

	rec := postForm(t, env.router(), "/webhook/sms", smsForm("SM102", "", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.pipeline.processed)
}

func TestSMSStatusRecordsOnlyFinalStates(t *testing.T) {
	tests := []struct {
		status   string
		recorded bool
	}{
		{"delivered", true},
		{"undelivered", true},
		{"failed", true},
		{"queued", false},
		{"sent", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			env := newTestEnv()
			env.messages.store["SM200"] = pendingMessage("msg-1")

			form := url.Values{}
			form.Set("MessageSid", "SM200")
			form.Set("MessageStatus", tt.status)
			rec := postForm(t, env.router(), "/webhook/sms/status", form)

			assert.Equal(t, http.StatusOK, rec.Code)
			if tt.recorded {
				assert.Equal(t, tt.status, env.messages.delivery["SM200"])
			} else {
				assert.Empty(t, env.messages.delivery)
			}
		})
	}
}

func TestSMSStatusUnknownSIDStillAcks(t *testing.T) {
	env := newTestEnv()

	form := url.Values{}
	form.Set("MessageSid", "SM-unknown")
	form.Set("MessageStatus", "delivered")
	rec := postForm(t, env.router(), "/webhook/sms/status", form)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInboundVoiceRouting(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]string
		want     string
	}{
		{
			name:     "default forwards to operator",
			settings: nil,
			want:     "<Dial>+15550001111</Dial>",
		},
		{
			name:     "voicemail mode records",
			settings: map[string]string{"voice_routing_mode": "voicemail"},
			want:     "<Record",
		},
		{
			name: "voicemail custom greeting",
			settings: map[string]string{
				"voice_routing_mode": "voicemail",
				"voicemail_greeting": "Leave it after the beep.",
			},
			want: "Leave it after the beep.",
		},
		{
			name:     "announce mode speaks",
			settings: map[string]string{"voice_routing_mode": "announce"},
			want:     "Please text this number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			for k, v := range tt.settings {
				env.settings.values[k] = v
			}

			form := url.Values{}
			form.Set("CallSid", "CA100")
			form.Set("From", "+15551234567")
			rec := postForm(t, env.router(), "/webhook/voice", form)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestInboundVoiceRejectsWithoutOperator(t *testing.T) {
	env := newTestEnv()
	env.handlers.SetOperatorNumber("")

	form := url.Values{}
	form.Set("CallSid", "CA101")
	form.Set("From", "+15551234567")
	rec := postForm(t, env.router(), "/webhook/voice", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Reject/>")
}

func TestVoiceStatusFinalizesReminder(t *testing.T) {
	env := newTestEnv()

	form := url.Values{}
	form.Set("CallSid", "CA200")
	form.Set("CallStatus", "no-answer")
	rec := postForm(t, env.router(), "/webhook/voice/status?reminder_id=rem-9", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-answer", env.reminders.finalized["rem-9"])
}

func TestVoiceStatusWithoutReminderIDIsPlainAck(t *testing.T) {
	env := newTestEnv()

	form := url.Values{}
	form.Set("CallSid", "CA201")
	form.Set("CallStatus", "completed")
	rec := postForm(t, env.router(), "/webhook/voice/status", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.reminders.finalized)
}

func TestReminderCallSpeaksScript(t *testing.T) {
	env := newTestEnv()
	env.reminders.store["rem-1"] = &domain.Reminder{
		ID:      "rem-1",
		Phone:   "+15551234567",
		Message: "Your tasting is tomorrow at 6pm.",
		Status:  domain.ReminderPending,
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook/voice/reminder/rem-1", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Copperline Bar Co")
	assert.Contains(t, body, "Your tasting is tomorrow at 6pm.")
	assert.Contains(t, body, "<Say")
}

func TestReminderCallUnknownIDStaysPolite(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/webhook/voice/reminder/rem-gone", nil)
	rec := httptest.NewRecorder()
	env.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "no longer active")
}

func postBotUpdate(t *testing.T, handler http.Handler, update telegram.Update) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(update)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhook/bot", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestBotCallbackApproves(t *testing.T) {
	env := newTestEnv()

	rec := postBotUpdate(t, env.router(), telegram.Update{
		UpdateID: 1,
		CallbackQuery: &telegram.CallbackQuery{
			ID:   "cb-1",
			Data: "approve:msg-1",
		},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.approver.decisions, 1)
	assert.Equal(t, decided{id: "msg-1", action: approval.ActionApprove}, env.approver.decisions[0])
	require.Len(t, env.bot.answers, 1)
	assert.Equal(t, "Sent.", env.bot.answers[0])
}

func TestBotCallbackRejects(t *testing.T) {
	env := newTestEnv()
	env.approver.result = &approval.Result{Status: "rejected"}

	rec := postBotUpdate(t, env.router(), telegram.Update{
		UpdateID: 2,
		CallbackQuery: &telegram.CallbackQuery{
			ID:   "cb-2",
			Data: "reject:msg-1",
		},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.approver.decisions, 1)
	assert.Equal(t, approval.ActionReject, env.approver.decisions[0].action)
	require.Len(t, env.bot.answers, 1)
	assert.Equal(t, "Rejected.", env.bot.answers[0])
}

func TestBotCallbackAlreadyProcessed(t *testing.T) {
	env := newTestEnv()
	env.approver.err = approval.ErrAlreadyProcessed

	rec := postBotUpdate(t, env.router(), telegram.Update{
		UpdateID: 3,
		CallbackQuery: &telegram.CallbackQuery{
			ID:   "cb-3",
			Data: "approve:msg-1",
		},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.bot.answers, 1)
	assert.Equal(t, "Already handled.", env.bot.answers[0])
}

func TestBotReplyEditsDraft(t *testing.T) {
	env := newTestEnv()

	rec := postBotUpdate(t, env.router(), telegram.Update{
		UpdateID: 4,
		Message: &telegram.BotMessage{
			MessageID: 77,
			Text:      "We are booked Saturday, how about Sunday?",
			ReplyToMessage: &telegram.BotMessage{
				MessageID: 70,
				Text:      "New draft for +1555...\nID: msg-1\n\nWe have Saturday open.",
			},
		},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.approver.decisions, 1)
	assert.Equal(t, decided{
		id:     "msg-1",
		action: approval.ActionEdit,
		text:   "We are booked Saturday, how about Sunday?",
	}, env.approver.decisions[0])
}

func TestBotReplyWithoutDraftReferenceIgnored(t *testing.T) {
	env := newTestEnv()

	rec := postBotUpdate(t, env.router(), telegram.Update{
		UpdateID: 5,
		Message: &telegram.BotMessage{
			MessageID: 78,
			Text:      "ok",
			ReplyToMessage: &telegram.BotMessage{
				MessageID: 71,
				Text:      "no identifier in here",
			},
		},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.approver.decisions)
}
