package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	EventFollowUpFailed  = "queue.follow_up_failed"
	EventScheduledFailed = "queue.scheduled_run_failed"
)

type Message struct {
	Event   string         `json:"event"`
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Context map[string]any `json:"context,omitempty"`
	SentAt  time.Time      `json:"sentAt"`
}

// Summary renders the message as "[event] title: body".
func (m Message) Summary() string {
	text := m.Title
	if m.Body != "" {
		text += ": " + m.Body
	}
	if m.Event != "" {
		text = "[" + m.Event + "] " + text
	}
	return text
}

type Notifier interface {
	Notify(ctx context.Context, message Message) error
}

type NoopNotifier struct{}

func (n NoopNotifier) Notify(_ context.Context, _ Message) error {
	return nil
}

// LogNotifier writes messages to the structured log so failures stay visible
// when no webhook is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, message Message) error {
	l.logger.Warn("notification", "event", message.Event, "title", message.Title, "body", message.Body, "context", message.Context)
	return nil
}

// WebhookNotifier posts each message as JSON. The payload also carries a
// one-line "text" field so chat webhooks can show it without a template.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	Message
	Text string `json:"text"`
}

func NewWebhookNotifier(webhookURL string, client *http.Client) (*WebhookNotifier, error) {
	trimmed := strings.TrimSpace(webhookURL)
	if trimmed == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: trimmed, client: client}, nil
}

func (w *WebhookNotifier) Notify(ctx context.Context, message Message) error {
	if message.SentAt.IsZero() {
		message.SentAt = time.Now().UTC()
	}
	payload, err := json.Marshal(webhookPayload{Message: message, Text: message.Summary()})
	if err != nil {
		return fmt.Errorf("marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notification-Event", message.Event)

	res, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s notification: %w", message.Event, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 256))
		return fmt.Errorf("webhook returned status %d: %s", res.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// MultiNotifier fans a message out to every notifier; one failing target
// does not stop the others.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(items ...Notifier) *MultiNotifier {
	filtered := make([]Notifier, 0, len(items))
	for _, item := range items {
		if item != nil {
			filtered = append(filtered, item)
		}
	}
	return &MultiNotifier{notifiers: filtered}
}

func (m *MultiNotifier) Notify(ctx context.Context, message Message) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Notify(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig always logs and additionally posts to webhookURL when set.
func FromConfig(webhookURL string, logger *slog.Logger) (Notifier, error) {
	logNotifier := NewLogNotifier(logger)
	if strings.TrimSpace(webhookURL) == "" {
		return logNotifier, nil
	}
	webhook, err := NewWebhookNotifier(webhookURL, nil)
	if err != nil {
		return nil, err
	}
	return NewMultiNotifier(logNotifier, webhook), nil
}
