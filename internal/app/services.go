package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ssanime/manga-nexus-hub/internal/aiextract"
	"github.com/ssanime/manga-nexus-hub/internal/bypass"
	"github.com/ssanime/manga-nexus-hub/internal/config"
	"github.com/ssanime/manga-nexus-hub/internal/fetcher"
	"github.com/ssanime/manga-nexus-hub/internal/notifications"
	"github.com/ssanime/manga-nexus-hub/internal/queue"
	"github.com/ssanime/manga-nexus-hub/internal/repository"
	"github.com/ssanime/manga-nexus-hub/internal/scrape"
	"github.com/ssanime/manga-nexus-hub/internal/sources"
)

// Options override the pieces tests and tools need to control.
type Options struct {
	Fetcher fetcher.Options
	// Bypass tunes the direct strategy; the browser switch always comes
	// from config.
	Bypass     bypass.Config
	HTTPClient *http.Client
	Notifier   notifications.Notifier
	Logger     *slog.Logger
}

// Services holds every long-lived component, built once per process and
// shared by the HTTP server, the scheduler and the CLI.
type Services struct {
	DB             *sql.DB
	Profiles       *sources.Registry
	ProfileStore   *repository.SourceProfileRepository
	Manga          *repository.MangaRepository
	Chapters       *repository.ChapterRepository
	Pages          *repository.PageRepository
	Jobs           *repository.ScrapeJobRepository
	Queue          *repository.DownloadQueueRepository
	Scraper        *scrape.Orchestrator
	QueueProcessor *queue.Processor
	FollowUps      *queue.FollowUpRunner
	Bypass         *bypass.Service
	Extractor      *aiextract.Extractor
	Notifier       notifications.Notifier
}

func New(cfg config.Config, db *sql.DB, opts Options) (*Services, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	notifier := opts.Notifier
	if notifier == nil {
		configured, err := notifications.FromConfig(cfg.NotifyWebhookURL, logger)
		if err != nil {
			return nil, fmt.Errorf("configure notifications: %w", err)
		}
		notifier = configured
	}

	profileStore := repository.NewSourceProfileRepository(db)
	profiles, err := LoadProfiles(cfg.SourceProfilesPath, profileStore, logger)
	if err != nil {
		return nil, err
	}

	services := &Services{
		DB:           db,
		Profiles:     profiles,
		ProfileStore: profileStore,
		Manga:        repository.NewMangaRepository(db),
		Chapters:     repository.NewChapterRepository(db),
		Pages:        repository.NewPageRepository(db),
		Jobs:         repository.NewScrapeJobRepository(db),
		Queue:        repository.NewDownloadQueueRepository(db),
		Notifier:     notifier,
	}

	fetcherOpts := opts.Fetcher
	if fetcherOpts.Logger == nil {
		fetcherOpts.Logger = logger
	}
	services.Scraper = scrape.NewOrchestrator(profiles, fetcher.New(fetcherOpts), scrape.Stores{
		Manga:    services.Manga,
		Chapters: services.Chapters,
		Pages:    services.Pages,
		Jobs:     services.Jobs,
	}, logger)

	services.QueueProcessor = queue.NewProcessor(services.Queue, services.Pages, services.Scraper, queue.Config{
		SelfChain: cfg.QueueSelfChain,
	}, logger)
	services.FollowUps = queue.NewFollowUpRunner(services.QueueProcessor, notifier, queue.DefaultFollowUpDelay, logger)
	services.QueueProcessor.SetFollowUps(services.FollowUps)

	hosted := bypass.NewScrapingAPI(cfg.ScrapingAPIURL, cfg.ScrapingAPIKey, opts.HTTPClient)
	bypassCfg := opts.Bypass
	bypassCfg.BrowserEnabled = cfg.BrowserBypass
	services.Bypass = bypass.NewService(hosted, bypassCfg, logger)
	services.Extractor = aiextract.NewExtractor(aiextract.Config{
		APIURL: cfg.LLMAPIURL,
		APIKey: cfg.LLMAPIKey,
		Model:  cfg.LLMModel,
	}, hosted, services.Manga, opts.HTTPClient, logger)

	return services, nil
}

// LoadProfiles layers the built-in profiles, the YAML directory and the
// stored rows; each layer replaces profiles of the same name. YAML problems
// are logged because the valid files still load.
func LoadProfiles(yamlPath string, store *repository.SourceProfileRepository, logger *slog.Logger) (*sources.Registry, error) {
	registry, err := sources.LoadRegistry(yamlPath)
	if err != nil {
		logger.Warn("source profiles loaded with warnings", "path", yamlPath, "error", err)
	}

	stored, err := store.List(true)
	if err != nil {
		return nil, fmt.Errorf("load stored source profiles: %w", err)
	}
	for _, profile := range stored {
		if err := registry.Put(profile); err != nil {
			logger.Warn("stored source profile skipped", "name", profile.Name, "error", err)
		}
	}

	logger.Info("source profiles loaded", "count", len(registry.List()), "stored", len(stored))
	return registry, nil
}
