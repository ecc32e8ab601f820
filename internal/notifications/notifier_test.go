package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(context.Context, Message) error {
	f.calls++
	return errors.New("boom")
}

func TestWebhookNotifierPostsJSON(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Notification-Event") != EventFollowUpFailed {
			t.Errorf("unexpected event header %q", r.Header.Get("X-Notification-Event"))
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(server.URL, server.Client())
	if err != nil {
		t.Fatalf("new webhook notifier: %v", err)
	}
	err = notifier.Notify(context.Background(), Message{
		Event:   EventFollowUpFailed,
		Title:   "Queue follow-up failed",
		Body:    "fetch failed",
		Context: map[string]any{"mangaId": "abc"},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	if received.Event != EventFollowUpFailed || received.Context["mangaId"] != "abc" || received.SentAt.IsZero() {
		t.Fatalf("unexpected payload %+v", received)
	}
	if received.Text != "[queue.follow_up_failed] Queue follow-up failed: fetch failed" {
		t.Fatalf("unexpected text %q", received.Text)
	}
}

func TestWebhookNotifierReportsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(server.URL, server.Client())
	if err != nil {
		t.Fatalf("new webhook notifier: %v", err)
	}
	err = notifier.Notify(context.Background(), Message{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "502: upstream down") {
		t.Fatalf("expected status error with body, got %v", err)
	}
}

func TestMultiNotifierContinuesAfterFailure(t *testing.T) {
	first := &failingNotifier{}
	second := &failingNotifier{}

	err := NewMultiNotifier(first, nil, second).Notify(context.Background(), Message{Title: "x"})
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("expected both notifiers to run, got %d and %d", first.calls, second.calls)
	}
}

func TestFromConfigWithoutWebhookLogsOnly(t *testing.T) {
	notifier, err := FromConfig("", nil)
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if _, ok := notifier.(*LogNotifier); !ok {
		t.Fatalf("expected log notifier, got %T", notifier)
	}
}
