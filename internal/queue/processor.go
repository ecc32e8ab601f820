package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ssanime/manga-nexus-hub/internal/fetcher"
	"github.com/ssanime/manga-nexus-hub/internal/models"
	"github.com/ssanime/manga-nexus-hub/internal/scrape"
)

const (
	DefaultTimeBudget = 45 * time.Second
	DefaultStaleAfter = 5 * time.Minute
	DefaultBatchSize  = 3
	DefaultItemDelay  = 1500 * time.Millisecond

	noPagesMessage = "No pages extracted"
)

type queueStore interface {
	ResetStale(cutoff time.Time) (int64, error)
	ListPending(mangaID string, limit int) ([]models.DownloadQueueItem, error)
	MarkProcessing(id string) (bool, error)
	MarkCompleted(id string) error
	MarkPending(id string, message string) error
	MarkFailed(id string, message string) error
	CountPending(mangaID string) (int, error)
}

type pageCounter interface {
	CountByChapter(chapterID string) (int, error)
}

type pageScraper interface {
	Run(ctx context.Context, req scrape.Request) (*scrape.Result, error)
}

type followUpScheduler interface {
	Schedule(mangaID string) bool
}

type Config struct {
	TimeBudget time.Duration
	StaleAfter time.Duration
	BatchSize  int
	ItemDelay  time.Duration
	SelfChain  bool
}

type Summary struct {
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Remaining int    `json:"remaining"`
	Message   string `json:"message"`
	Recovered int64  `json:"recovered"`
	Chained   bool   `json:"chained"`
}

type itemOutcome int

const (
	outcomeSkipped itemOutcome = iota
	outcomeCompleted
	outcomeFailed
)

// Processor drains the background download queue in small bounded batches.
// Each Run recovers stalled items, works through at most one batch within
// the time budget and, when work is left, asks for a follow-up run.
type Processor struct {
	queue     queueStore
	pages     pageCounter
	scraper   pageScraper
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	followUps followUpScheduler
}

func NewProcessor(queue queueStore, pages pageCounter, scraper pageScraper, cfg Config, logger *slog.Logger) *Processor {
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = DefaultTimeBudget
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ItemDelay <= 0 {
		cfg.ItemDelay = DefaultItemDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		queue:   queue,
		pages:   pages,
		scraper: scraper,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		sleep:   fetcher.SleepContext,
	}
}

// SetFollowUps installs the scheduler used for self-chaining. Without one,
// or with SelfChain disabled, remaining work waits for the next external run.
func (p *Processor) SetFollowUps(scheduler followUpScheduler) {
	p.followUps = scheduler
}

func (p *Processor) Run(ctx context.Context, mangaID string) (Summary, error) {
	mangaID = strings.TrimSpace(mangaID)
	start := p.now()
	summary := Summary{}

	recovered, err := p.queue.ResetStale(start.Add(-p.cfg.StaleAfter))
	if err != nil {
		return summary, err
	}
	summary.Recovered = recovered
	if recovered > 0 {
		p.logger.Info("queue stale items reset", "count", recovered)
	}

	items, err := p.queue.ListPending(mangaID, p.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	budgetExceeded := false
	for index, item := range items {
		if index > 0 {
			if err := p.sleep(ctx, p.cfg.ItemDelay); err != nil {
				break
			}
		}
		if p.now().Sub(start) >= p.cfg.TimeBudget {
			budgetExceeded = true
			p.logger.Warn("queue time budget exceeded", "elapsed", p.now().Sub(start).String(), "left", len(items)-index)
			break
		}

		switch p.processItem(ctx, item) {
		case outcomeCompleted:
			summary.Processed++
		case outcomeFailed:
			summary.Failed++
		}
	}

	remaining, err := p.queue.CountPending(mangaID)
	if err != nil {
		return summary, err
	}
	summary.Remaining = remaining
	summary.Message = fmt.Sprintf("Processed %d chapters, %d failed, %d remaining", summary.Processed, summary.Failed, summary.Remaining)

	if remaining > 0 && !budgetExceeded && ctx.Err() == nil && p.cfg.SelfChain && p.followUps != nil {
		summary.Chained = p.followUps.Schedule(mangaID)
	}

	p.logger.Info("queue run finished", "mangaId", mangaID, "processed", summary.Processed, "failed", summary.Failed, "remaining", summary.Remaining, "chained", summary.Chained)
	return summary, nil
}

func (p *Processor) processItem(ctx context.Context, item models.DownloadQueueItem) itemOutcome {
	logger := p.logger.With("queueId", item.ID, "chapterId", item.ChapterID)

	claimed, err := p.queue.MarkProcessing(item.ID)
	if err != nil {
		logger.Warn("queue claim failed", "error", err)
		return outcomeSkipped
	}
	if !claimed {
		logger.Info("queue item already claimed")
		return outcomeSkipped
	}
	attempts := item.Attempts + 1

	existing, err := p.pages.CountByChapter(item.ChapterID)
	if err != nil {
		logger.Warn("queue page count failed", "error", err)
	}
	if existing > 0 {
		if err := p.queue.MarkCompleted(item.ID); err != nil {
			logger.Warn("queue bookkeeping failed", "error", err)
		}
		logger.Info("queue item already has pages", "pages", existing)
		return outcomeCompleted
	}

	source := ""
	if item.Source != nil {
		source = *item.Source
	}
	result, err := p.scraper.Run(ctx, scrape.Request{
		URL:       item.SourceURL,
		JobType:   models.JobTypePages,
		ChapterID: item.ChapterID,
		Source:    source,
	})
	if err != nil {
		p.markAttemptFailed(logger, item, attempts, err.Error())
		return outcomeFailed
	}
	if result.PagesCount == 0 {
		if err := p.queue.MarkFailed(item.ID, noPagesMessage); err != nil {
			logger.Warn("queue bookkeeping failed", "error", err)
		}
		logger.Warn("queue item produced no pages")
		return outcomeFailed
	}

	if err := p.queue.MarkCompleted(item.ID); err != nil {
		logger.Warn("queue bookkeeping failed", "error", err)
	}
	logger.Info("queue item completed", "pages", result.PagesCount)
	return outcomeCompleted
}

func (p *Processor) markAttemptFailed(logger *slog.Logger, item models.DownloadQueueItem, attempts int, message string) {
	retryable := attempts < item.MaxAttempts

	var err error
	if retryable {
		err = p.queue.MarkPending(item.ID, message)
	} else {
		err = p.queue.MarkFailed(item.ID, message)
	}
	if err != nil {
		logger.Warn("queue bookkeeping failed", "error", err)
	}
	logger.Warn("queue item failed", "attempts", attempts, "maxAttempts", item.MaxAttempts, "retry", retryable, "error", message)
}
