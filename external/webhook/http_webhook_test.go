package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/kikitori/internal/webhook"
)

func TestSendTranscriptDisabledWithoutURL(t *testing.T) {
	sender := NewHTTPSender("", 0)
	if err := sender.SendTranscript(context.Background(), webhook.TranscriptWebhookPayload{SessionID: "s1"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendTranscriptPostsJSON(t *testing.T) {
	var got webhook.TranscriptWebhookPayload
	var sessionHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		sessionHeader = r.Header.Get(sessionIDHeader)
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL, time.Second)
	payload := webhook.TranscriptWebhookPayload{
		SchemaVersion: webhook.TranscriptWebhookSchemaVersion,
		SessionID:     "s1",
		State:         "complete",
		AudioSeconds:  12.5,
		Transcript:    "おはようございます",
	}
	if err := sender.SendTranscript(context.Background(), payload); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.SessionID != "s1" || got.Transcript != "おはようございます" || got.AudioSeconds != 12.5 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if sessionHeader != "s1" {
		t.Fatalf("session header = %q", sessionHeader)
	}
}

func TestSendTranscriptReportsStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "schema mismatch", http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL, time.Second)
	err := sender.SendTranscript(context.Background(), webhook.TranscriptWebhookPayload{SessionID: "s1"})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "schema mismatch") {
		t.Fatalf("error should carry status and body, got %v", err)
	}
}

func TestSendTranscriptTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	sender := NewHTTPSender(server.URL, 20*time.Millisecond)
	if err := sender.SendTranscript(context.Background(), webhook.TranscriptWebhookPayload{SessionID: "s1"}); err == nil {
		t.Fatal("expected timeout error")
	}
}
