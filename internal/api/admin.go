package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/pkg/httputil"
	"github.com/copperline/barback/internal/pkg/logger"
	"github.com/copperline/barback/internal/service/reminder"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// knownSettings are the runtime knobs the API will store. A nil
// validator accepts any non-empty value.
var knownSettings = map[string]func(string) bool{
	"voice_routing_mode": func(v string) bool {
		return v == "forward" || v == "voicemail" || v == "announce"
	},
	"voicemail_greeting": nil,
	"announce_text":      nil,
}

// HandleSearch looks up conversations and messages matching a query.
//
//	GET /api/search?q=...&limit=...
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		httputil.BadRequest(w, "q is required")
		return
	}
	limit := queryLimit(r, defaultSearchLimit)

	conversations, err := h.conversations.Search(r.Context(), query, limit)
	if err != nil {
		logger.Error("conversation search failed", "error", err.Error())
		httputil.InternalError(w, errors.New("search failed"))
		return
	}
	messages, err := h.messages.Search(r.Context(), query, limit)
	if err != nil {
		logger.Error("message search failed", "error", err.Error())
		httputil.InternalError(w, errors.New("search failed"))
		return
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	httputil.OK(w, map[string]interface{}{
		"query":         query,
		"conversations": conversations,
		"messages":      messages,
	})
}

// HandleSimulate runs the full inbound pipeline for a made-up message
// without touching the SMS provider. Useful for trying prompts and
// corrections against real history.
//
//	POST /api/simulate
func (h *Handlers) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
		Body string `json:"body"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.From) == "" || strings.TrimSpace(req.Body) == "" {
		httputil.BadRequest(w, "from and body are required")
		return
	}

	outcome, err := h.pipeline.Simulate(r.Context(), req.From, req.Body)
	if err != nil {
		logger.Error("simulate failed", "error", err.Error())
		httputil.InternalError(w, errors.New("simulate failed"))
		return
	}

	httputil.OK(w, outcome)
}

// HandleCreateReminder schedules a reminder call.
//
//	POST /api/reminders
func (h *Handlers) HandleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var input reminder.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}

	rem, err := h.reminders.Create(r.Context(), input)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	httputil.Created(w, rem)
}

// HandleListReminders lists reminders, optionally filtered by status.
//
//	GET /api/reminders?status=...&limit=...
func (h *Handlers) HandleListReminders(w http.ResponseWriter, r *http.Request) {
	filter := reminder.ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  queryLimit(r, 50),
	}

	reminders, err := h.reminders.List(r.Context(), filter)
	if err != nil {
		logger.Error("reminder list failed", "error", err.Error())
		httputil.InternalError(w, errors.New("could not list reminders"))
		return
	}
	if reminders == nil {
		reminders = []domain.Reminder{}
	}

	httputil.OK(w, map[string]interface{}{
		"reminders": reminders,
		"count":     len(reminders),
	})
}

// HandleGetReminder returns one reminder.
//
//	GET /api/reminders/{id}
func (h *Handlers) HandleGetReminder(w http.ResponseWriter, r *http.Request) {
	rem, err := h.reminders.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, reminder.ErrNotFound) {
		httputil.NotFound(w, "reminder not found")
		return
	}
	if err != nil {
		logger.Error("reminder load failed", "error", err.Error())
		httputil.InternalError(w, errors.New("could not load reminder"))
		return
	}

	httputil.OK(w, rem)
}

// HandleCancelReminder cancels a pending reminder. Reminders already
// calling or resolved stay as they are.
//
//	DELETE /api/reminders/{id}
func (h *Handlers) HandleCancelReminder(w http.ResponseWriter, r *http.Request) {
	err := h.reminders.Cancel(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, reminder.ErrNotFound):
		httputil.NotFound(w, "reminder not found")
	case errors.Is(err, reminder.ErrTerminal):
		httputil.Conflict(w, "reminder is not pending")
	case err != nil:
		logger.Error("reminder cancel failed", "error", err.Error())
		httputil.InternalError(w, errors.New("could not cancel reminder"))
	default:
		httputil.NoContent(w)
	}
}

// HandleGetSetting returns a runtime setting.
//
//	GET /api/settings/{key}
func (h *Handlers) HandleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, known := knownSettings[key]; !known {
		httputil.NotFound(w, "unknown setting")
		return
	}

	value, found, err := h.settings.Get(r.Context(), key)
	if err != nil {
		logger.Error("setting load failed", "key", key, "error", err.Error())
		httputil.InternalError(w, errors.New("could not load setting"))
		return
	}
	if !found {
		httputil.NotFound(w, "setting not set")
		return
	}

	httputil.OK(w, map[string]string{"key": key, "value": value})
}

// HandleSetSetting stores a runtime setting after validating the value.
//
//	PUT /api/settings/{key}
func (h *Handlers) HandleSetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	validate, known := knownSettings[key]
	if !known {
		httputil.BadRequest(w, "unknown setting")
		return
	}

	var req struct {
		Value string `json:"value"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	req.Value = strings.TrimSpace(req.Value)
	if req.Value == "" {
		httputil.BadRequest(w, "value is required")
		return
	}
	if validate != nil && !validate(req.Value) {
		httputil.BadRequest(w, "invalid value for "+key)
		return
	}

	if err := h.settings.Set(r.Context(), key, req.Value); err != nil {
		logger.Error("setting save failed", "key", key, "error", err.Error())
		httputil.InternalError(w, errors.New("could not save setting"))
		return
	}

	logger.Info("Setting updated", "key", key, "value", req.Value)
	httputil.OK(w, map[string]string{"key": key, "value": req.Value})
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > maxSearchLimit {
		return maxSearchLimit
	}
	return n
}
