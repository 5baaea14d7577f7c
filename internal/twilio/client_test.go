package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/copperline/barback/internal/config"
)

func testClient(serverURL string) *Client {
	return NewClient(config.TwilioConfig{
		AccountSID:     "AC123",
		AuthToken:      "token",
		FromNumber:     "+15550001111",
		BaseURL:        serverURL,
		TimeoutSeconds: 5,
	})
}

func TestClient_SendSMS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != "AC123" || password != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("URL.Path = %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostFormValue("To"); got != "+15557654321" {
			t.Errorf("To = %q", got)
		}
		if got := r.PostFormValue("From"); got != "+15550001111" {
			t.Errorf("From = %q", got)
		}
		if got := r.PostFormValue("Body"); got != "see you at 6" {
			t.Errorf("Body = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid": "SM900", "status": "queued"}`))
	}))
	defer server.Close()

	sid, err := testClient(server.URL).SendSMS(context.Background(), "+15557654321", "see you at 6")
	if err != nil {
		t.Fatalf("SendSMS() error: %v", err)
	}
	if sid != "SM900" {
		t.Errorf("sid = %q, want SM900", sid)
	}
}

func TestClient_SendSMS_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_message": "invalid number"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).SendSMS(context.Background(), "bogus", "hi")
	if err == nil {
		t.Fatal("expected error on 400 response")
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Errorf("error %q should carry the status", err)
	}
}

func TestClient_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Calls.json" {
			t.Errorf("URL.Path = %q", r.URL.Path)
		}
		r.ParseForm()
		if got := r.PostFormValue("Url"); got != "https://barback.example.com/webhook/voice/reminder/r1" {
			t.Errorf("Url = %q", got)
		}
		if got := r.PostFormValue("StatusCallback"); got != "https://barback.example.com/webhook/voice/status" {
			t.Errorf("StatusCallback = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid": "CA555", "status": "queued"}`))
	}))
	defer server.Close()

	sid, err := testClient(server.URL).Call(context.Background(), "+15557654321",
		"https://barback.example.com/webhook/voice/reminder/r1",
		"https://barback.example.com/webhook/voice/status")
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	if sid != "CA555" {
		t.Errorf("sid = %q, want CA555", sid)
	}
}
