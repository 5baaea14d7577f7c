package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/copperline/barback/internal/pkg/httputil"
	"github.com/copperline/barback/internal/pkg/logger"
	"github.com/copperline/barback/internal/service/approval"
	"github.com/copperline/barback/internal/service/inbound"
	"github.com/copperline/barback/internal/telegram"
	"github.com/copperline/barback/internal/twilio"
)

// emptyTwiML acks a webhook without instructing the provider to do
// anything. The draft reply goes out later through the approval flow.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// HandleInboundSMS runs the intake pipeline for one delivered message.
// The webhook always acks 200 once the form parses; a processing failure
// must not make the provider redeliver and double-process.
//
//	POST /webhook/sms
func (h *Handlers) HandleInboundSMS(w http.ResponseWriter, r *http.Request) {
	msg, err := twilio.ParseInboundSMS(r)
	if err != nil {
		httputil.BadRequest(w, "malformed webhook payload")
		return
	}
	if msg.From == "" || msg.Body == "" && len(msg.Media) == 0 {
		httputil.XML(w, http.StatusOK, emptyTwiML)
		return
	}

	outcome, err := h.pipeline.Process(r.Context(), inbound.Request{
		From:        msg.From,
		To:          msg.To,
		Body:        msg.Body,
		ProviderSID: msg.MessageSID,
		Media:       msg.Media,
	})
	if err != nil {
		logger.Error("inbound processing failed", "provider_sid", msg.MessageSID, "error", err.Error())
	} else if outcome.Duplicate {
		logger.Debug("duplicate webhook delivery acked", "provider_sid", msg.MessageSID)
	}

	httputil.XML(w, http.StatusOK, emptyTwiML)
}

// HandleSMSStatus records provider delivery-state refinements for sent
// messages. Only the provider's final words are kept; queueing noise is
// acked and dropped.
//
//	POST /webhook/sms/status
func (h *Handlers) HandleSMSStatus(w http.ResponseWriter, r *http.Request) {
	cb, err := twilio.ParseStatusCallback(r)
	if err != nil {
		httputil.BadRequest(w, "malformed status payload")
		return
	}

	switch cb.Status {
	case "delivered", "undelivered", "failed":
		if err := h.messages.SetDeliveryState(r.Context(), cb.MessageSID, cb.Status); err != nil {
			logger.Warn("delivery state not recorded", "provider_sid", cb.MessageSID, "status", cb.Status, "error", err.Error())
		}
	}

	w.WriteHeader(http.StatusOK)
}

// HandleInboundVoice answers an inbound call according to the
// voice_routing_mode setting: forward to the operator, take a voicemail,
// or play an announcement.
//
//	POST /webhook/voice
func (h *Handlers) HandleInboundVoice(w http.ResponseWriter, r *http.Request) {
	call, err := twilio.ParseInboundCall(r)
	if err != nil {
		httputil.BadRequest(w, "malformed voice payload")
		return
	}
	logger.Info("inbound call", "from", logger.RedactPhone(call.From), "call_sid", call.CallSID)

	mode := h.setting(r.Context(), "voice_routing_mode", "forward")
	switch mode {
	case "voicemail":
		greeting := h.setting(r.Context(), "voicemail_greeting",
			"You have reached "+h.business.Name+". Please leave a message after the tone.")
		httputil.XML(w, http.StatusOK, twilio.TwiMLVoicemail(greeting))
	case "announce":
		text := h.setting(r.Context(), "announce_text",
			"You have reached "+h.business.Name+". Please text this number and we will get right back to you.")
		httputil.XML(w, http.StatusOK, twilio.TwiMLSay(text))
	default:
		if h.operatorNumber == "" {
			httputil.XML(w, http.StatusOK, twilio.TwiMLReject())
			return
		}
		httputil.XML(w, http.StatusOK, twilio.TwiMLForward(h.operatorNumber))
	}
}

// HandleVoiceStatus finalizes reminder call attempts. The reminder ID
// rides the callback URL, so plain operator-call callbacks (no
// reminder_id) are just acked.
//
//	POST /webhook/voice/status?reminder_id=...
func (h *Handlers) HandleVoiceStatus(w http.ResponseWriter, r *http.Request) {
	cb, err := twilio.ParseStatusCallback(r)
	if err != nil {
		httputil.BadRequest(w, "malformed status payload")
		return
	}

	if id := r.URL.Query().Get("reminder_id"); id != "" {
		if err := h.reminders.Finalize(r.Context(), id, cb.Status); err != nil {
			logger.Warn("reminder not finalized", "reminder_id", id, "call_status", cb.Status, "error", err.Error())
		}
	}

	w.WriteHeader(http.StatusOK)
}

// HandleReminderCall returns the TwiML spoken when a reminder call
// connects. A reminder cancelled after origination still gets a polite
// line rather than dead air.
//
//	GET|POST /webhook/voice/reminder/{id}
func (h *Handlers) HandleReminderCall(w http.ResponseWriter, r *http.Request) {
	rem, err := h.reminders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.XML(w, http.StatusOK, twilio.TwiMLSay("Sorry, this reminder is no longer active. Goodbye."))
		return
	}
	httputil.XML(w, http.StatusOK, twilio.TwiMLSay(renderCallScript(h.business.Name, rem.Message)))
}

// HandleBotWebhook receives approval decisions from the operator chat:
// inline-button callbacks approve or reject, replies to a draft
// notification edit it. Always acks 200; the bot API redelivers updates
// on anything else.
//
//	POST /webhook/bot
func (h *Handlers) HandleBotWebhook(w http.ResponseWriter, r *http.Request) {
	var update telegram.Update
	if !httputil.Decode(w, r, &update) {
		return
	}

	switch {
	case update.CallbackQuery != nil:
		h.handleBotCallback(r.Context(), update.CallbackQuery)
	case update.Message != nil && update.Message.ReplyToMessage != nil:
		h.handleBotEdit(r.Context(), update.Message)
	}

	httputil.OK(w, map[string]bool{"ok": true})
}

func (h *Handlers) handleBotCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	action, messageID, ok := telegram.ParseCallback(cb.Data)
	if !ok {
		logger.Warn("unrecognized bot callback", "data", cb.Data)
		return
	}

	decision := approval.ActionApprove
	if action == "reject" {
		decision = approval.ActionReject
	}

	result, err := h.approvals.Decide(ctx, messageID, decision, "")
	h.answerCallback(ctx, cb.ID, decisionSummary(result, err))
}

func (h *Handlers) handleBotEdit(ctx context.Context, msg *telegram.BotMessage) {
	messageID, ok := telegram.ExtractMessageID(msg.ReplyToMessage.Text)
	if !ok {
		logger.Debug("bot reply without a draft reference ignored")
		return
	}

	if _, err := h.approvals.Decide(ctx, messageID, approval.ActionEdit, msg.Text); err != nil {
		logger.Warn("bot edit decision failed", "message_id", messageID, "error", err.Error())
	}
}

func (h *Handlers) answerCallback(ctx context.Context, callbackID, text string) {
	if h.bot == nil {
		return
	}
	if err := h.bot.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		logger.Warn("callback answer failed", "error", err.Error())
	}
}

// setting reads one runtime setting, falling back when unset or when the
// settings store is unavailable.
func (h *Handlers) setting(ctx context.Context, key, fallback string) string {
	if h.settings == nil {
		return fallback
	}
	value, found, err := h.settings.Get(ctx, key)
	if err != nil {
		logger.Warn("setting lookup failed", "key", key, "error", err.Error())
		return fallback
	}
	if !found || value == "" {
		return fallback
	}
	return value
}

// decisionSummary turns a decision outcome into one line for the
// reviewer.
func decisionSummary(result *approval.Result, err error) string {
	switch {
	case errors.Is(err, approval.ErrAlreadyProcessed):
		return "Already handled."
	case errors.Is(err, approval.ErrApplyFailed):
		return "Menu change failed; draft still pending."
	case errors.Is(err, approval.ErrNotFound):
		return "Draft not found."
	case err != nil:
		return "Something went wrong."
	}

	switch result.Status {
	case "sent":
		return "Sent."
	case "failed":
		return "Approved, but the send failed."
	case "rejected":
		return "Rejected."
	default:
		return "Recorded."
	}
}
