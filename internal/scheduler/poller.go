package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ssanime/manga-nexus-hub/internal/notifications"
	"github.com/ssanime/manga-nexus-hub/internal/queue"
)

type queueRunner interface {
	Run(ctx context.Context, mangaID string) (queue.Summary, error)
}

type PollerConfig struct {
	Interval time.Duration
	// Schedule is a standard cron expression or descriptor; when empty the
	// poller runs "@every Interval".
	Schedule string
}

// Poller triggers download queue runs on a cron schedule for deployments
// that have no external trigger. Overlapping runs are skipped.
type Poller struct {
	runner   queueRunner
	notifier notifications.Notifier
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
	running  atomic.Bool
	stopCh   chan struct{}
}

func NewPoller(runner queueRunner, notifier notifications.Notifier, cfg PollerConfig, logger *slog.Logger) (*Poller, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	schedule := strings.TrimSpace(cfg.Schedule)
	if schedule == "" {
		schedule = "@every " + cfg.Interval.String()
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid queue schedule %q: %w", schedule, err)
	}
	if notifier == nil {
		notifier = notifications.NoopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		runner:   runner,
		notifier: notifier,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

func (p *Poller) Start(ctx context.Context) error {
	_, err := p.cron.AddFunc(p.schedule, func() {
		if err := p.RunOnce(ctx); err != nil {
			p.logger.Warn("queue poller cycle failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule queue poller: %w", err)
	}

	p.logger.Info("queue poller started", "schedule", p.schedule)
	p.cron.Start()
	go func() {
		if err := p.RunOnce(ctx); err != nil {
			p.logger.Warn("queue poller initial run failed", "error", err)
		}
		<-ctx.Done()
		<-p.cron.Stop().Done()
		p.logger.Info("queue poller stopped")
		close(p.stopCh)
	}()
	return nil
}

func (p *Poller) StopWait(timeout time.Duration) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	select {
	case <-p.stopCh:
	case <-time.After(timeout):
	}
}

// RunOnce processes one queue batch across all manga. A failed run is
// reported to the notifier before the error is returned.
func (p *Poller) RunOnce(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Info("queue poller run skipped, previous run still active")
		return nil
	}
	defer p.running.Store(false)

	summary, err := p.runner.Run(ctx, "")
	if err != nil {
		notifyErr := p.notifier.Notify(ctx, notifications.Message{
			Event: notifications.EventScheduledFailed,
			Title: "Scheduled download queue run failed",
			Body:  err.Error(),
			Context: map[string]any{
				"schedule": p.schedule,
			},
		})
		if notifyErr != nil {
			p.logger.Warn("queue poller notification failed", "error", notifyErr)
		}
		return fmt.Errorf("run download queue: %w", err)
	}

	p.logger.Info("queue poller cycle finished", "processed", summary.Processed, "failed", summary.Failed, "remaining", summary.Remaining)
	return nil
}
