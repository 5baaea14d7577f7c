package menu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/copperline/barback/internal/config"
	"github.com/copperline/barback/internal/domain"
)

func testClient(serverURL string) *Client {
	return NewClient(config.MenuConfig{
		BaseURL:        serverURL,
		APIKey:         "menu-key",
		TimeoutSeconds: 5,
	})
}

func TestClient_Evaluate_Ready(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/menu/evaluate" {
			t.Errorf("URL.Path = %q", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "menu-key" {
			t.Errorf("missing api key header")
		}
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["dry_run"] != true {
			t.Error("evaluate must always be a dry run")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "ready",
			"action": "update_menu",
			"payload": {"old": "margarita", "new": "paloma"},
			"summary": "swap margarita for paloma"
		}`))
	}))
	defer server.Close()

	ev, err := testClient(server.URL).Evaluate(context.Background(), "+15551234567", "can we swap margarita for paloma")
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if ev.Verdict != domain.VerdictReady {
		t.Errorf("Verdict = %q, want ready", ev.Verdict)
	}
	if ev.Action != domain.ActionUpdateMenu {
		t.Errorf("Action = %q, want update_menu", ev.Action)
	}
	if ev.Summary != "swap margarita for paloma" {
		t.Errorf("Summary = %q", ev.Summary)
	}
	var payload map[string]string
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatalf("payload not preserved: %v", err)
	}
	if payload["old"] != "margarita" || payload["new"] != "paloma" {
		t.Errorf("payload = %v", payload)
	}
}

func TestClient_Evaluate_UnknownStatusMeansNoAction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "nothing_here"}`))
	}))
	defer server.Close()

	ev, err := testClient(server.URL).Evaluate(context.Background(), "+15551234567", "thanks!")
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if ev.Verdict != domain.VerdictNoAction || ev.Action != domain.ActionNone {
		t.Errorf("unknown status should map to no_action, got %+v", ev)
	}
}

func TestClient_Apply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/menu/apply" {
			t.Errorf("URL.Path = %q", r.URL.Path)
		}
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["apply"] != true {
			t.Error("apply must set apply=true")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"applied": true, "summary": "menu updated"}`))
	}))
	defer server.Close()

	res, err := testClient(server.URL).Apply(context.Background(), json.RawMessage(`{"old":"margarita","new":"paloma"}`))
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if !res.Applied || res.Summary != "menu updated" {
		t.Errorf("ApplyResult = %+v", res)
	}
}

func TestClient_Apply_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": "item gone"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Apply(context.Background(), json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected error on non-2xx apply")
	}
}
