package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ssanime/manga-nexus-hub/internal/extractor"
	"github.com/ssanime/manga-nexus-hub/internal/models"
	"github.com/ssanime/manga-nexus-hub/internal/repository"
	"github.com/ssanime/manga-nexus-hub/internal/sources"
	"github.com/ssanime/manga-nexus-hub/internal/textutil"
)

type pageFetcher interface {
	Fetch(ctx context.Context, rawURL string, profile sources.Profile) (string, error)
}

type profileLookup interface {
	Get(key string) (sources.Profile, bool)
}

type mangaStore interface {
	UpsertScraped(input repository.MangaUpsert) (*models.Manga, error)
	GetBySlug(slug string) (*models.Manga, error)
	RefreshChapterCount(id string) error
}

type chapterStore interface {
	UpsertMany(mangaID string, chapters []repository.ChapterUpsert) ([]models.Chapter, error)
	GetByID(id string) (*models.Chapter, error)
}

type pageStore interface {
	ReplaceForChapter(chapterID string, pages []repository.PageUpsert) ([]models.ChapterPage, error)
}

type jobStore interface {
	Create(input repository.ScrapeJobCreate) (*models.ScrapeJob, error)
	LinkChapter(id string, chapter models.Chapter) error
	MarkCompleted(id string, mangaID string, chapterID string) error
	MarkFailed(id string, message string) error
	MarkFailure(id string, message string) (string, error)
}

type Stores struct {
	Manga    mangaStore
	Chapters chapterStore
	Pages    pageStore
	Jobs     jobStore
}

type Request struct {
	URL       string
	JobType   string
	ChapterID string
	Source    string
}

type Result struct {
	JobID      string               `json:"jobId"`
	JobType    string               `json:"jobType"`
	Manga      *models.Manga        `json:"manga,omitempty"`
	Chapters   []models.Chapter     `json:"chapters,omitempty"`
	Pages      []models.ChapterPage `json:"pages,omitempty"`
	PagesCount int                  `json:"pagesCount"`
	// TotalFound counts the chapter rows seen on the page; Partial is set when
	// fewer than that were saved. A partial save still completes the job.
	TotalFound int    `json:"totalFound,omitempty"`
	Partial    bool   `json:"partial,omitempty"`
	Warning    string `json:"warning,omitempty"`
}

// Orchestrator runs one scrape job end to end: it records the job, fetches
// and extracts the page, persists the result and settles the job row with
// exactly one final status update.
type Orchestrator struct {
	profiles profileLookup
	fetcher  pageFetcher
	stores   Stores
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrchestrator(profiles profileLookup, fetcher pageFetcher, stores Stores, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		profiles: profiles,
		fetcher:  fetcher,
		stores:   stores,
		logger:   logger,
		now:      time.Now,
	}
}

func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	req.URL = strings.TrimSpace(req.URL)
	req.JobType = strings.TrimSpace(req.JobType)
	req.ChapterID = strings.TrimSpace(req.ChapterID)
	req.Source = strings.TrimSpace(req.Source)

	switch req.JobType {
	case models.JobTypeMangaInfo, models.JobTypeChapters:
		if req.URL == "" {
			return nil, fmt.Errorf("%w for %s jobs", ErrURLMissing, req.JobType)
		}
	case models.JobTypePages:
		if req.ChapterID == "" {
			return nil, ErrChapterIDMissing
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobType, req.JobType)
	}

	job, err := o.stores.Jobs.Create(repository.ScrapeJobCreate{
		JobType:   req.JobType,
		SourceURL: req.URL,
		Source:    req.Source,
	})
	if err != nil {
		return nil, err
	}
	logger := o.logger.With("jobId", job.ID, "jobType", req.JobType)
	logger.Info("scrape job started", "url", req.URL, "chapterId", req.ChapterID, "source", req.Source)

	result, chapter, runErr := o.execute(ctx, job.ID, req)
	if runErr != nil {
		o.settleFailure(logger, job.ID, runErr)
		return nil, runErr
	}
	result.JobID = job.ID
	result.JobType = req.JobType

	mangaID, chapterID := "", ""
	if result.Manga != nil {
		mangaID = result.Manga.ID
	}
	if chapter != nil {
		chapterID = chapter.ID
	}
	if err := o.stores.Jobs.MarkCompleted(job.ID, mangaID, chapterID); err != nil {
		logger.Error("scrape job bookkeeping failed", "error", err)
	}
	if result.Partial {
		logger.Warn("scrape job saved a partial result", "saved", len(result.Chapters), "total", result.TotalFound)
	}
	logger.Info("scrape job completed", "chapters", len(result.Chapters), "pages", result.PagesCount)

	return result, nil
}

// settleFailure ends the job: lookups and configuration errors fail it
// outright, anything else spends one retry.
func (o *Orchestrator) settleFailure(logger *slog.Logger, jobID string, runErr error) {
	if isPermanent(runErr) {
		if err := o.stores.Jobs.MarkFailed(jobID, runErr.Error()); err != nil {
			logger.Error("scrape job bookkeeping failed", "error", err)
		}
		logger.Warn("scrape job failed", "status", models.StatusFailed, "error", runErr)
		return
	}

	status, err := o.stores.Jobs.MarkFailure(jobID, runErr.Error())
	if err != nil {
		logger.Error("scrape job bookkeeping failed", "error", err)
	}
	logger.Warn("scrape job failed", "status", status, "error", runErr)
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrMangaNotFound) ||
		errors.Is(err, ErrChapterNotFound) ||
		errors.Is(err, ErrUnknownSource) ||
		errors.Is(err, ErrNoSlug)
}

func (o *Orchestrator) execute(ctx context.Context, jobID string, req Request) (*Result, *models.Chapter, error) {
	var chapter *models.Chapter
	if req.JobType == models.JobTypePages {
		found, err := o.stores.Chapters.GetByID(req.ChapterID)
		if err != nil {
			return nil, nil, err
		}
		if found == nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrChapterNotFound, req.ChapterID)
		}
		chapter = found
		if err := o.stores.Jobs.LinkChapter(jobID, *chapter); err != nil {
			return nil, nil, err
		}
		if chapter.SourceURL != nil && strings.TrimSpace(*chapter.SourceURL) != "" {
			req.URL = strings.TrimSpace(*chapter.SourceURL)
		}
		if req.URL == "" {
			return nil, nil, fmt.Errorf("chapter %s has no source url", chapter.ID)
		}
	}

	profile, err := o.resolveProfile(req)
	if err != nil {
		return nil, nil, err
	}

	var result *Result
	switch req.JobType {
	case models.JobTypeMangaInfo:
		result, err = o.scrapeMangaInfo(ctx, req.URL, profile)
	case models.JobTypeChapters:
		result, err = o.scrapeChapters(ctx, req.URL, profile)
	default:
		result, err = o.scrapePages(ctx, chapter, req.URL, profile)
	}
	return result, chapter, err
}

func (o *Orchestrator) resolveProfile(req Request) (sources.Profile, error) {
	key := req.Source
	if key == "" {
		key = req.URL
	}
	profile, ok := o.profiles.Get(key)
	if !ok {
		return sources.Profile{}, fmt.Errorf("%w: %q", ErrUnknownSource, key)
	}
	if !profile.IsEnabled() {
		return sources.Profile{}, fmt.Errorf("%w: %q is disabled", ErrUnknownSource, profile.Name)
	}
	return profile, nil
}

func (o *Orchestrator) scrapeMangaInfo(ctx context.Context, rawURL string, profile sources.Profile) (*Result, error) {
	slug := SlugFromURL(rawURL)
	if slug == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoSlug, rawURL)
	}

	html, err := o.fetcher.Fetch(ctx, rawURL, profile)
	if err != nil {
		return nil, err
	}
	doc, err := extractor.Parse(html)
	if err != nil {
		return nil, err
	}

	info := extractor.ExtractMangaInfo(doc, profile)
	if info.Title == "" {
		return nil, ErrNoTitle
	}

	manga, err := o.stores.Manga.UpsertScraped(repository.MangaUpsert{
		Slug:        slug,
		Title:       info.Title,
		Description: info.Description,
		CoverURL:    info.Cover,
		Status:      info.Status,
		Genres:      textutil.UniqueNonEmpty(info.Genres),
		Author:      info.Author,
		Artist:      info.Artist,
		Source:      profile.Name,
		SourceURL:   rawURL,
		ScrapedAt:   o.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	return &Result{Manga: manga}, nil
}

func (o *Orchestrator) scrapeChapters(ctx context.Context, rawURL string, profile sources.Profile) (*Result, error) {
	slug := SlugFromURL(rawURL)
	if slug == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoSlug, rawURL)
	}
	manga, err := o.stores.Manga.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if manga == nil {
		return nil, fmt.Errorf("%w: %s", ErrMangaNotFound, slug)
	}

	html, err := o.fetcher.Fetch(ctx, rawURL, profile)
	if err != nil {
		return nil, err
	}
	doc, err := extractor.Parse(html)
	if err != nil {
		return nil, err
	}

	stubs := extractor.ExtractChapterList(doc, profile)
	now := o.now()
	upserts := make([]repository.ChapterUpsert, 0, len(stubs))
	for _, stub := range stubs {
		upserts = append(upserts, repository.ChapterUpsert{
			Number:      stub.Number,
			Title:       stub.Title,
			SourceURL:   stub.URL,
			ReleaseDate: extractor.ParseReleaseDate(stub.DateText, now),
		})
	}

	saved, upsertErr := o.stores.Chapters.UpsertMany(manga.ID, upserts)
	if upsertErr != nil && len(saved) == 0 {
		return nil, upsertErr
	}
	if err := o.stores.Manga.RefreshChapterCount(manga.ID); err != nil {
		o.logger.Warn("refresh chapter count failed", "mangaId", manga.ID, "error", err)
	}

	result := &Result{Manga: manga, Chapters: saved, TotalFound: len(stubs)}
	if upsertErr != nil {
		result.Partial = true
		result.Warning = fmt.Sprintf("saved %d of %d chapters: %v", len(saved), len(stubs), upsertErr)
	}
	return result, nil
}

func (o *Orchestrator) scrapePages(ctx context.Context, chapter *models.Chapter, rawURL string, profile sources.Profile) (*Result, error) {
	html, err := o.fetcher.Fetch(ctx, rawURL, profile)
	if err != nil {
		return nil, err
	}
	doc, err := extractor.Parse(html)
	if err != nil {
		return nil, err
	}

	stubs := extractor.ExtractPageImages(doc, profile)
	if len(stubs) == 0 {
		// keep previously stored pages when the reader came back empty
		return &Result{}, nil
	}
	upserts := make([]repository.PageUpsert, 0, len(stubs))
	for _, stub := range stubs {
		upserts = append(upserts, repository.PageUpsert{PageNumber: stub.PageNumber, ImageURL: stub.ImageURL})
	}

	pages, err := o.stores.Pages.ReplaceForChapter(chapter.ID, upserts)
	if err != nil {
		return nil, err
	}

	return &Result{Pages: pages, PagesCount: len(pages)}, nil
}
