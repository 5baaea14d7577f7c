package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/service/approval"
)

func TestApproveFormShowsPendingDraft(t *testing.T) {
	env := newTestEnv()
	env.messages.store["msg-1"] = pendingMessage("msg-1")
	require.NoError(t, env.registry.Put(context.Background(), &domain.PendingAction{
		MessageID: "msg-1",
		Summary:   "swap margarita for paloma",
		CreatedAt: time.Now(),
	}))

	req := httptest.NewRequest(http.MethodGet, "/approve/msg-1", nil)
	rec := httptest.NewRecorder()
	env.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "<textarea")
	assert.Contains(t, body, "We have Saturday open. What headcount?")
	assert.Contains(t, body, "+15551234567")
	assert.Contains(t, body, "swap margarita for paloma")
	assert.Contains(t, body, `value="approve"`)
	assert.Contains(t, body, `value="edit"`)
	assert.Contains(t, body, `value="reject"`)
}

func TestApproveFormUnknownMessage(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/approve/msg-missing", nil)
	rec := httptest.NewRecorder()
	env.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No such message")
}

func TestApproveFormResolvedMessage(t *testing.T) {
	env := newTestEnv()
	m := pendingMessage("msg-1")
	m.Status = domain.MessageSent
	m.Body = "We have Saturday open, final version."
	env.messages.store["msg-1"] = m

	req := httptest.NewRequest(http.MethodGet, "/approve/msg-1", nil)
	rec := httptest.NewRecorder()
	env.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "<textarea")
	assert.Contains(t, body, "We have Saturday open, final version.")
}

func TestApproveFormRejectedMessage(t *testing.T) {
	env := newTestEnv()
	m := pendingMessage("msg-1")
	m.Status = domain.MessageRejected
	env.messages.store["msg-1"] = m

	req := httptest.NewRequest(http.MethodGet, "/approve/msg-1", nil)
	rec := httptest.NewRecorder()
	env.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Rejected. Nothing was sent.")
}

func TestApproveSubmitApprove(t *testing.T) {
	env := newTestEnv()
	env.messages.store["msg-1"] = pendingMessage("msg-1")

	form := url.Values{}
	form.Set("action", "approve")
	form.Set("text", "We have Saturday open. What headcount?")
	rec := postForm(t, env.router(), "/approve/msg-1", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.approver.decisions, 1)
	assert.Equal(t, approval.ActionApprove, env.approver.decisions[0].action)
	assert.Contains(t, rec.Body.String(), "Sent.")
}

func TestApproveSubmitEdit(t *testing.T) {
	env := newTestEnv()
	env.messages.store["msg-1"] = pendingMessage("msg-1")

	form := url.Values{}
	form.Set("action", "edit")
	form.Set("text", "Sunday works better for us.")
	rec := postForm(t, env.router(), "/approve/msg-1", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.approver.decisions, 1)
	assert.Equal(t, decided{
		id:     "msg-1",
		action: approval.ActionEdit,
		text:   "Sunday works better for us.",
	}, env.approver.decisions[0])
}

func TestApproveSubmitReject(t *testing.T) {
	env := newTestEnv()
	env.messages.store["msg-1"] = pendingMessage("msg-1")
	env.approver.result = &approval.Result{Status: domain.MessageRejected}

	form := url.Values{}
	form.Set("action", "reject")
	rec := postForm(t, env.router(), "/approve/msg-1", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.approver.decisions, 1)
	assert.Equal(t, approval.ActionReject, env.approver.decisions[0].action)
	assert.Contains(t, rec.Body.String(), "Rejected. Nothing was sent.")
}

func TestApproveSubmitUnknownAction(t *testing.T) {
	env := newTestEnv()
	env.messages.store["msg-1"] = pendingMessage("msg-1")

	form := url.Values{}
	form.Set("action", "escalate")
	rec := postForm(t, env.router(), "/approve/msg-1", form)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.approver.decisions)
}

func TestApproveSubmitAlreadyProcessed(t *testing.T) {
	env := newTestEnv()
	m := pendingMessage("msg-1")
	m.Status = domain.MessageSent
	env.messages.store["msg-1"] = m
	env.approver.err = approval.ErrAlreadyProcessed

	form := url.Values{}
	form.Set("action", "approve")
	rec := postForm(t, env.router(), "/approve/msg-1", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "already handled")
}

func TestApproveSubmitApplyFailureKeepsForm(t *testing.T) {
	env := newTestEnv()
	env.messages.store["msg-1"] = pendingMessage("msg-1")
	env.approver.err = approval.ErrApplyFailed

	form := url.Values{}
	form.Set("action", "approve")
	rec := postForm(t, env.router(), "/approve/msg-1", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "menu change failed")
	assert.Contains(t, body, "notice error")
	// Still pending, so the form stays usable.
	assert.Contains(t, body, "<textarea")
}

func TestApproveSubmitUnknownMessage(t *testing.T) {
	env := newTestEnv()
	env.approver.err = approval.ErrNotFound

	form := url.Values{}
	form.Set("action", "approve")
	rec := postForm(t, env.router(), "/approve/msg-missing", form)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
