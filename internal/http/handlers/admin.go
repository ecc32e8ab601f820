package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/ssanime/manga-nexus-hub/internal/models"
	"github.com/ssanime/manga-nexus-hub/internal/queue"
	"github.com/ssanime/manga-nexus-hub/internal/repository"
	"github.com/ssanime/manga-nexus-hub/internal/sources"
)

var validJobStatuses = map[string]bool{
	models.StatusPending:    true,
	models.StatusProcessing: true,
	models.StatusCompleted:  true,
	models.StatusFailed:     true,
}

type SourcesHandler struct {
	registry *sources.Registry
	store    *repository.SourceProfileRepository
}

func NewSourcesHandler(registry *sources.Registry, store *repository.SourceProfileRepository) *SourcesHandler {
	return &SourcesHandler{registry: registry, store: store}
}

func (h *SourcesHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"items": h.registry.List()})
}

// Put stores the profile and swaps it into the live registry so the next
// scrape uses it without a restart.
func (h *SourcesHandler) Put(c *fiber.Ctx) error {
	var profile sources.Profile
	if err := c.BodyParser(&profile); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid json body"})
	}
	profile.Name = c.Params("name")

	saved, err := h.store.Upsert(profile)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if err := h.registry.Put(*saved); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to activate source profile"})
	}

	return c.JSON(saved)
}

type JobsHandler struct {
	repo *repository.ScrapeJobRepository
}

func NewJobsHandler(repo *repository.ScrapeJobRepository) *JobsHandler {
	return &JobsHandler{repo: repo}
}

func (h *JobsHandler) List(c *fiber.Ctx) error {
	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	if status != "" && !validJobStatuses[status] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid status filter"})
	}

	jobs, err := h.repo.List(status, c.QueryInt("limit", 100))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to list scrape jobs"})
	}

	return c.JSON(fiber.Map{"items": jobs})
}

type enqueueRequest struct {
	MangaID    string   `json:"mangaId"`
	ChapterIDs []string `json:"chapterIds"`
	Priority   int      `json:"priority"`
}

type QueueHandler struct {
	queue     *repository.DownloadQueueRepository
	manga     *repository.MangaRepository
	followUps *queue.FollowUpRunner
}

func NewQueueHandler(queueRepo *repository.DownloadQueueRepository, manga *repository.MangaRepository, followUps *queue.FollowUpRunner) *QueueHandler {
	return &QueueHandler{queue: queueRepo, manga: manga, followUps: followUps}
}

func (h *QueueHandler) Enqueue(c *fiber.Ctx) error {
	var req enqueueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid json body"})
	}
	mangaID := strings.TrimSpace(req.MangaID)
	if mangaID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "mangaId is required"})
	}

	manga, err := h.manga.GetByID(mangaID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to load manga"})
	}
	if manga == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "manga not found"})
	}

	source := ""
	if manga.Source != nil {
		source = *manga.Source
	}
	queued, err := h.queue.EnqueueChapters(manga.ID, req.ChapterIDs, source, req.Priority)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to enqueue chapters"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"mangaId": manga.ID, "queued": queued})
}

func (h *QueueHandler) Stats(c *fiber.Ctx) error {
	counts, err := h.queue.CountByStatus()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to count queue items"})
	}

	return c.JSON(fiber.Map{
		"counts":    counts,
		"followUps": h.followUps.Stats(),
	})
}
