package scrape

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ssanime/manga-nexus-hub/internal/database"
	"github.com/ssanime/manga-nexus-hub/internal/models"
	"github.com/ssanime/manga-nexus-hub/internal/repository"
	"github.com/ssanime/manga-nexus-hub/internal/sources"
)

const (
	seriesURL  = "https://lekmanga.net/manga/solo-leveling/"
	chapterURL = "https://lekmanga.net/manga/solo-leveling/chapter-2/"

	seriesHTML = `<html><body>
		<div class="post-title"><h1> Solo Leveling </h1></div>
		<div class="summary_image"><img src="https://lekmanga.net/cover.jpg"></div>
		<div class="post-status"><div class="summary-content">مستمر</div></div>
		<div class="genres-content"><a>Action</a><a>Fantasy</a><a>Action</a></div>
		<ul>
			<li class="wp-manga-chapter"><a href="/manga/solo-leveling/chapter-2/">Chapter 2</a><span class="chapter-release-date">March 4, 2024</span></li>
			<li class="wp-manga-chapter"><a href="/manga/solo-leveling/chapter-1/">Chapter 1</a></li>
		</ul>
	</body></html>`

	chapterHTML = `<html><body><div class="reading-content">
		<img src="https://cdn.lekmanga.net/2/01.jpg">
		<img src="https://lekmanga.net/placeholder.png">
		<img data-src="https://cdn.lekmanga.net/2/02.jpg">
	</div></body></html>`
)

type fakeFetcher struct {
	pages map[string]string
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, _ sources.Profile) (string, error) {
	f.calls++
	html, ok := f.pages[rawURL]
	if !ok {
		return "", fmt.Errorf("unexpected status 503")
	}
	return html, nil
}

type testEnv struct {
	db           *sql.DB
	registry     *sources.Registry
	orchestrator *Orchestrator
	fetcher      *fakeFetcher
	jobs         *repository.ScrapeJobRepository
	manga        *repository.MangaRepository
}

func setupOrchestrator(t *testing.T) testEnv {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "scrape.sqlite"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.ApplyMigrations(db, ""); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	registry, err := sources.LoadRegistry("")
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}

	fetcher := &fakeFetcher{pages: map[string]string{seriesURL: seriesHTML, chapterURL: chapterHTML}}
	jobs := repository.NewScrapeJobRepository(db)
	manga := repository.NewMangaRepository(db)
	orchestrator := NewOrchestrator(registry, fetcher, Stores{
		Manga:    manga,
		Chapters: repository.NewChapterRepository(db),
		Pages:    repository.NewPageRepository(db),
		Jobs:     jobs,
	}, nil)

	return testEnv{db: db, registry: registry, orchestrator: orchestrator, fetcher: fetcher, jobs: jobs, manga: manga}
}

// withChapters rebuilds the orchestrator around a different chapter store.
func (env testEnv) withChapters(chapters chapterStore) *Orchestrator {
	return NewOrchestrator(env.registry, env.fetcher, Stores{
		Manga:    env.manga,
		Chapters: chapters,
		Pages:    repository.NewPageRepository(env.db),
		Jobs:     env.jobs,
	}, nil)
}

// flakyChapters saves only the first chapter of a batch and then fails.
type flakyChapters struct {
	*repository.ChapterRepository
}

func (f flakyChapters) UpsertMany(mangaID string, chapters []repository.ChapterUpsert) ([]models.Chapter, error) {
	saved, err := f.ChapterRepository.UpsertMany(mangaID, chapters[:1])
	if err != nil {
		return nil, err
	}
	return saved, errors.New("database is locked")
}

type brokenChapters struct {
	*repository.ChapterRepository
}

func (brokenChapters) GetByID(string) (*models.Chapter, error) {
	return nil, errors.New("database is locked")
}

func onlyJob(t *testing.T, env testEnv) models.ScrapeJob {
	t.Helper()
	jobs, err := env.jobs.List("", 10)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	return jobs[0]
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var count int
	if err := db.QueryRow(`SELECT COUNT(1) FROM ` + table).Scan(&count); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func TestRunScrapesMangaChaptersAndPages(t *testing.T) {
	env := setupOrchestrator(t)
	ctx := context.Background()

	info, err := env.orchestrator.Run(ctx, Request{URL: seriesURL, JobType: models.JobTypeMangaInfo, Source: "lekmanga"})
	if err != nil {
		t.Fatalf("manga_info: %v", err)
	}
	if info.Manga == nil || info.Manga.Slug != "solo-leveling" || info.Manga.Title != "Solo Leveling" {
		t.Fatalf("unexpected manga %+v", info.Manga)
	}
	if info.Manga.Status != models.MangaStatusOngoing || len(info.Manga.Genres) != 2 {
		t.Fatalf("expected ongoing status and de-duplicated genres, got %+v", info.Manga)
	}
	if info.Manga.LastScrapedAt == nil {
		t.Fatalf("expected last_scraped_at to be set")
	}

	listing, err := env.orchestrator.Run(ctx, Request{URL: seriesURL, JobType: models.JobTypeChapters})
	if err != nil {
		t.Fatalf("chapters: %v", err)
	}
	if len(listing.Chapters) != 2 || listing.TotalFound != 2 || listing.Partial {
		t.Fatalf("unexpected chapters result %+v", listing)
	}

	refreshed, err := env.manga.GetBySlug("solo-leveling")
	if err != nil || refreshed == nil || refreshed.ChapterCount != 2 {
		t.Fatalf("expected chapter_count 2, got %+v (%v)", refreshed, err)
	}

	var chapterTwo models.Chapter
	for _, chapter := range listing.Chapters {
		if chapter.ChapterNumber == 2 {
			chapterTwo = chapter
		}
	}
	if chapterTwo.ID == "" || chapterTwo.ReleaseDate == nil {
		t.Fatalf("expected chapter 2 with a release date, got %+v", chapterTwo)
	}

	pages, err := env.orchestrator.Run(ctx, Request{JobType: models.JobTypePages, ChapterID: chapterTwo.ID})
	if err != nil {
		t.Fatalf("pages: %v", err)
	}
	if pages.PagesCount != 2 || pages.Pages[1].PageNumber != 2 || pages.Pages[1].ImageURL != "https://cdn.lekmanga.net/2/02.jpg" {
		t.Fatalf("unexpected pages %+v", pages.Pages)
	}

	job, err := env.jobs.GetByID(pages.JobID)
	if err != nil || job == nil {
		t.Fatalf("load pages job: %v", err)
	}
	if job.Status != models.StatusCompleted || job.ChapterID == nil || *job.ChapterID != chapterTwo.ID {
		t.Fatalf("expected completed job linked to chapter, got %+v", job)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	env := setupOrchestrator(t)
	ctx := context.Background()

	for run := 0; run < 2; run++ {
		if _, err := env.orchestrator.Run(ctx, Request{URL: seriesURL, JobType: models.JobTypeMangaInfo}); err != nil {
			t.Fatalf("manga_info run %d: %v", run, err)
		}
		if _, err := env.orchestrator.Run(ctx, Request{URL: seriesURL, JobType: models.JobTypeChapters}); err != nil {
			t.Fatalf("chapters run %d: %v", run, err)
		}
	}

	if got := countRows(t, env.db, "manga"); got != 1 {
		t.Fatalf("expected 1 manga row, got %d", got)
	}
	if got := countRows(t, env.db, "chapters"); got != 2 {
		t.Fatalf("expected 2 chapter rows, got %d", got)
	}
	if got := countRows(t, env.db, "scrape_jobs"); got != 4 {
		t.Fatalf("expected 4 job rows, got %d", got)
	}
}

func TestRunChaptersBeforeMangaInfoFails(t *testing.T) {
	env := setupOrchestrator(t)

	_, err := env.orchestrator.Run(context.Background(), Request{URL: seriesURL, JobType: models.JobTypeChapters, Source: "lekmanga"})
	if !errors.Is(err, ErrMangaNotFound) {
		t.Fatalf("expected ErrMangaNotFound, got %v", err)
	}
	if env.fetcher.calls != 0 {
		t.Fatalf("expected no fetch before the manga exists, got %d", env.fetcher.calls)
	}

	job := onlyJob(t, env)
	if job.Status != models.StatusFailed || job.RetryCount != 0 || job.ErrorMessage == nil {
		t.Fatalf("expected a failed job without a retry spent, got %+v", job)
	}
}

func TestRunPagesUnknownChapter(t *testing.T) {
	env := setupOrchestrator(t)

	_, err := env.orchestrator.Run(context.Background(), Request{JobType: models.JobTypePages, ChapterID: "missing"})
	if !errors.Is(err, ErrChapterNotFound) {
		t.Fatalf("expected ErrChapterNotFound, got %v", err)
	}
	job := onlyJob(t, env)
	if job.Status != models.StatusFailed || job.ChapterID != nil {
		t.Fatalf("expected a failed job with no chapter link, got %+v", job)
	}
}

func TestRunRecordsChapterLookupErrors(t *testing.T) {
	env := setupOrchestrator(t)
	orchestrator := env.withChapters(brokenChapters{repository.NewChapterRepository(env.db)})

	_, err := orchestrator.Run(context.Background(), Request{JobType: models.JobTypePages, ChapterID: "c1"})
	if err == nil || !strings.Contains(err.Error(), "database is locked") {
		t.Fatalf("expected store error, got %v", err)
	}

	job := onlyJob(t, env)
	if job.Status != models.StatusPending || job.RetryCount != 1 {
		t.Fatalf("expected retryable job for a store error, got %+v", job)
	}
}

func TestRunPartialChapterSaveCompletesJob(t *testing.T) {
	env := setupOrchestrator(t)
	ctx := context.Background()

	if _, err := env.orchestrator.Run(ctx, Request{URL: seriesURL, JobType: models.JobTypeMangaInfo}); err != nil {
		t.Fatalf("manga_info: %v", err)
	}

	orchestrator := env.withChapters(flakyChapters{repository.NewChapterRepository(env.db)})
	result, err := orchestrator.Run(ctx, Request{URL: seriesURL, JobType: models.JobTypeChapters})
	if err != nil {
		t.Fatalf("chapters: %v", err)
	}
	if !result.Partial || len(result.Chapters) != 1 || result.TotalFound != 2 || !strings.Contains(result.Warning, "saved 1 of 2") {
		t.Fatalf("unexpected partial result %+v", result)
	}

	job, err := env.jobs.GetByID(result.JobID)
	if err != nil || job == nil {
		t.Fatalf("load job: %v", err)
	}
	if job.Status != models.StatusCompleted || job.MangaID == nil {
		t.Fatalf("expected completed job linked to the manga, got %+v", job)
	}
}

func TestRunRejectsInvalidJobTypeWithoutJobRow(t *testing.T) {
	env := setupOrchestrator(t)

	_, err := env.orchestrator.Run(context.Background(), Request{URL: seriesURL, JobType: "covers"})
	if !errors.Is(err, ErrInvalidJobType) {
		t.Fatalf("expected ErrInvalidJobType, got %v", err)
	}
	if got := countRows(t, env.db, "scrape_jobs"); got != 0 {
		t.Fatalf("expected no job rows, got %d", got)
	}
}

func TestRunFetchFailureLeavesJobRetryable(t *testing.T) {
	env := setupOrchestrator(t)

	_, err := env.orchestrator.Run(context.Background(), Request{URL: "https://lekmanga.net/manga/broken/", JobType: models.JobTypeMangaInfo})
	if err == nil {
		t.Fatalf("expected fetch failure")
	}

	jobs, err := env.jobs.List("", 10)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	job := jobs[0]
	if job.Status != models.StatusPending || job.RetryCount != 1 {
		t.Fatalf("expected pending job with one retry used, got %+v", job)
	}
	if job.ErrorMessage == nil || !strings.Contains(*job.ErrorMessage, "503") {
		t.Fatalf("expected fetch error recorded, got %v", job.ErrorMessage)
	}
}

func TestRunUnknownSource(t *testing.T) {
	env := setupOrchestrator(t)

	_, err := env.orchestrator.Run(context.Background(), Request{URL: "https://unknown.example/manga/x/", JobType: models.JobTypeMangaInfo})
	if !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
	if job := onlyJob(t, env); job.Status != models.StatusFailed {
		t.Fatalf("expected unknown source to fail the job, got %+v", job)
	}
}

func TestSlugFromURL(t *testing.T) {
	tests := map[string]string{
		"https://lekmanga.net/manga/solo-leveling/":           "solo-leveling",
		"https://lekmanga.net/manga/solo-leveling/chapter-3/": "solo-leveling",
		"https://azoramoon.com/series/Tower_of_God":           "tower-of-god",
		"https://example.com/one-piece":                       "one-piece",
		"https://lekmanga.net/manga/%D8%B3%D9%88%D9%84%D9%88/": "سولو",
		"https://example.com/":                                "",
	}
	for input, want := range tests {
		if got := SlugFromURL(input); got != want {
			t.Fatalf("SlugFromURL(%q): expected %q, got %q", input, want, got)
		}
	}
}
