package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/pkg/httputil"
	"github.com/copperline/barback/internal/pkg/logger"
	"github.com/copperline/barback/internal/service/approval"
)

// HandleApproveForm renders the browser fallback for reviewing a draft.
// The link is included in every approval notification, so it must work
// for already-decided drafts too.
//
//	GET /approve/{id}
func (h *Handlers) HandleApproveForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m, err := h.messages.Get(r.Context(), id)
	if errors.Is(err, approval.ErrNotFound) {
		httputil.HTML(w, http.StatusNotFound, notFoundPage)
		return
	}
	if err != nil {
		logger.Error("approve page load failed", "message_id", id, "error", err.Error())
		httputil.InternalError(w, errors.New("could not load message"))
		return
	}

	h.renderApprove(r.Context(), w, m, "", false)
}

// HandleApproveSubmit applies the reviewer's decision and re-renders the
// page with the outcome.
//
//	POST /approve/{id}
func (h *Handlers) HandleApproveSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := r.ParseForm(); err != nil {
		httputil.BadRequest(w, "malformed form body")
		return
	}

	action, ok := formAction(r.PostForm.Get("action"))
	if !ok {
		httputil.BadRequest(w, "unknown action")
		return
	}

	result, err := h.approvals.Decide(r.Context(), id, action, r.PostForm.Get("text"))
	if errors.Is(err, approval.ErrNotFound) {
		httputil.HTML(w, http.StatusNotFound, notFoundPage)
		return
	}
	notice, noticeError := submitNotice(result, err)

	// Re-read so the page reflects the post-decision status.
	m, loadErr := h.messages.Get(r.Context(), id)
	if loadErr != nil {
		logger.Error("approve page reload failed", "message_id", id, "error", loadErr.Error())
		httputil.InternalError(w, errors.New("could not load message"))
		return
	}

	h.renderApprove(r.Context(), w, m, notice, noticeError)
}

func (h *Handlers) renderApprove(ctx context.Context, w http.ResponseWriter, m *domain.Message, notice string, noticeError bool) {
	data := approvePageData{m: m, notice: notice, noticeError: noticeError}

	if h.conversations != nil {
		if phone, err := h.conversations.Phone(ctx, m.ConversationID); err == nil {
			data.phone = phone
		}
	}
	if h.registry != nil && m.Status == domain.MessagePendingApproval {
		if a, err := h.registry.Get(ctx, m.ID); err == nil && a != nil {
			data.actionSummary = a.Summary
		}
	}

	page, err := renderApprovePage(data)
	if err != nil {
		logger.Error("approve page render failed", "message_id", m.ID, "error", err.Error())
		httputil.InternalError(w, errors.New("could not render page"))
		return
	}
	httputil.HTML(w, http.StatusOK, page)
}

func formAction(value string) (approval.Action, bool) {
	switch value {
	case "approve":
		return approval.ActionApprove, true
	case "edit":
		return approval.ActionEdit, true
	case "reject":
		return approval.ActionReject, true
	}
	return "", false
}

func submitNotice(result *approval.Result, err error) (string, bool) {
	switch {
	case errors.Is(err, approval.ErrAlreadyProcessed):
		return "This draft was already handled.", false
	case errors.Is(err, approval.ErrApplyFailed):
		return "The menu change failed to apply. The draft is still pending, try again.", true
	case err != nil:
		return "Something went wrong. The draft was left untouched.", true
	}

	switch result.Status {
	case domain.MessageSent:
		if result.ActionApplied {
			return "Sent, and the menu change was applied.", false
		}
		return "Sent.", false
	case domain.MessageFailed:
		return "Approved, but the send failed. The message is marked failed.", true
	case domain.MessageRejected:
		return "Rejected. Nothing was sent.", false
	}
	return "Recorded.", false
}

const notFoundPage = `<!DOCTYPE html>
<html>
<head><title>Not found</title></head>
<body><p>No such message. The link may be stale.</p></body>
</html>`
