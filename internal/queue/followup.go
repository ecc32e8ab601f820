package queue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ssanime/manga-nexus-hub/internal/fetcher"
	"github.com/ssanime/manga-nexus-hub/internal/notifications"
)

const (
	DefaultFollowUpDelay = 3 * time.Second
	followUpBacklog      = 16
)

type batchRunner interface {
	Run(ctx context.Context, mangaID string) (Summary, error)
}

type FollowUpStats struct {
	Scheduled int64      `json:"scheduled"`
	Dropped   int64      `json:"dropped"`
	Completed int64      `json:"completed"`
	Failed    int64      `json:"failed"`
	LastError string     `json:"lastError,omitempty"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
}

// FollowUpRunner executes self-chained queue runs in one supervised
// goroutine. Requests are queued without blocking the caller; failures are
// logged, counted and sent to the notifier instead of being lost.
type FollowUpRunner struct {
	runner   batchRunner
	notifier notifications.Notifier
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *slog.Logger
	requests chan string
	stopCh   chan struct{}

	scheduled atomic.Int64
	dropped   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	mu        sync.Mutex
	lastError string
	lastRunAt *time.Time
}

func NewFollowUpRunner(runner batchRunner, notifier notifications.Notifier, delay time.Duration, logger *slog.Logger) *FollowUpRunner {
	if delay <= 0 {
		delay = DefaultFollowUpDelay
	}
	if notifier == nil {
		notifier = notifications.NoopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FollowUpRunner{
		runner:   runner,
		notifier: notifier,
		delay:    delay,
		sleep:    fetcher.SleepContext,
		logger:   logger,
		requests: make(chan string, followUpBacklog),
		stopCh:   make(chan struct{}),
	}
}

func (f *FollowUpRunner) Start(ctx context.Context) {
	f.logger.Info("queue follow-up runner started", "delay", f.delay.String())
	go func() {
		for {
			select {
			case <-ctx.Done():
				f.logger.Info("queue follow-up runner stopped")
				close(f.stopCh)
				return
			case mangaID := <-f.requests:
				f.runOne(ctx, mangaID)
			}
		}
	}()
}

func (f *FollowUpRunner) StopWait(timeout time.Duration) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	select {
	case <-f.stopCh:
	case <-time.After(timeout):
	}
}

// Schedule asks for another queue run after the follow-up delay. It never
// blocks and reports false when the backlog is full.
func (f *FollowUpRunner) Schedule(mangaID string) bool {
	select {
	case f.requests <- mangaID:
		f.scheduled.Add(1)
		return true
	default:
		f.dropped.Add(1)
		f.logger.Warn("queue follow-up dropped, backlog full", "mangaId", mangaID)
		return false
	}
}

func (f *FollowUpRunner) Stats() FollowUpStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FollowUpStats{
		Scheduled: f.scheduled.Load(),
		Dropped:   f.dropped.Load(),
		Completed: f.completed.Load(),
		Failed:    f.failed.Load(),
		LastError: f.lastError,
		LastRunAt: f.lastRunAt,
	}
}

func (f *FollowUpRunner) runOne(ctx context.Context, mangaID string) {
	if err := f.sleep(ctx, f.delay); err != nil {
		return
	}

	summary, err := f.runner.Run(ctx, mangaID)
	now := time.Now().UTC()

	f.mu.Lock()
	f.lastRunAt = &now
	if err != nil {
		f.lastError = err.Error()
	}
	f.mu.Unlock()

	if err != nil {
		f.failed.Add(1)
		f.logger.Warn("queue follow-up run failed", "mangaId", mangaID, "error", err)
		notifyErr := f.notifier.Notify(ctx, notifications.Message{
			Event: notifications.EventFollowUpFailed,
			Title: "Download queue follow-up failed",
			Body:  err.Error(),
			Context: map[string]any{
				"mangaId": mangaID,
			},
		})
		if notifyErr != nil {
			f.logger.Warn("queue follow-up notification failed", "error", notifyErr)
		}
		return
	}

	f.completed.Add(1)
	f.logger.Info("queue follow-up run finished", "mangaId", mangaID, "message", summary.Message)
}
