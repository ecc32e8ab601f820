package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/ssanime/manga-nexus-hub/internal/aiextract"
	"github.com/ssanime/manga-nexus-hub/internal/app"
	"github.com/ssanime/manga-nexus-hub/internal/bypass"
	"github.com/ssanime/manga-nexus-hub/internal/queue"
	"github.com/ssanime/manga-nexus-hub/internal/scrape"
)

type scrapeRequest struct {
	URL       string `json:"url"`
	JobType   string `json:"jobType"`
	ChapterID string `json:"chapterId"`
	Source    string `json:"source"`
}

type processQueueRequest struct {
	MangaID string `json:"mangaId"`
}

type bypassRequest struct {
	URL             string `json:"url"`
	WaitForSelector string `json:"waitForSelector"`
	Timeout         int    `json:"timeout"`
}

// FunctionsHandler serves the four job endpoints. Every response carries a
// success flag; failures answer with the error text for the admin UI.
type FunctionsHandler struct {
	scraper   *scrape.Orchestrator
	processor *queue.Processor
	bypass    *bypass.Service
	extractor *aiextract.Extractor
	logger    *slog.Logger
}

func NewFunctionsHandler(services *app.Services, logger *slog.Logger) *FunctionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FunctionsHandler{
		scraper:   services.Scraper,
		processor: services.QueueProcessor,
		bypass:    services.Bypass,
		extractor: services.Extractor,
		logger:    logger,
	}
}

func (h *FunctionsHandler) Scrape(c *fiber.Ctx) error {
	var req scrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid json body"})
	}

	result, err := h.scraper.Run(c.UserContext(), scrape.Request{
		URL:       req.URL,
		JobType:   req.JobType,
		ChapterID: req.ChapterID,
		Source:    req.Source,
	})
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, scrape.ErrInvalidJobType) || errors.Is(err, scrape.ErrURLMissing) || errors.Is(err, scrape.ErrChapterIDMissing) {
			status = fiber.StatusBadRequest
		}
		h.logger.Warn("scrape request failed", "jobType", req.JobType, "url", req.URL, "error", err)
		return c.Status(status).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	return c.JSON(fiber.Map{"success": true, "data": result})
}

func (h *FunctionsHandler) ProcessDownloadQueue(c *fiber.Ctx) error {
	var req processQueueRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid json body"})
		}
	}

	summary, err := h.processor.Run(c.UserContext(), strings.TrimSpace(req.MangaID))
	if err != nil {
		h.logger.Error("download queue run failed", "mangaId", req.MangaID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	return c.JSON(summary)
}

func (h *FunctionsHandler) CloudflareBypass(c *fiber.Ctx) error {
	var req bypassRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid json body", "method": bypass.MethodFailed})
	}
	if strings.TrimSpace(req.URL) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "url is required", "method": bypass.MethodFailed})
	}

	result, err := h.bypass.Bypass(c.UserContext(), bypass.Request{
		URL:             req.URL,
		WaitForSelector: req.WaitForSelector,
		TimeoutMs:       req.Timeout,
	})
	if err != nil {
		status := fiber.StatusInternalServerError
		var failure *bypass.FailureError
		if errors.As(err, &failure) && failure.Challenged {
			status = fiber.StatusForbidden
		}
		return c.Status(status).JSON(fiber.Map{"success": false, "error": err.Error(), "method": bypass.MethodFailed})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"html":    result.HTML,
		"status":  result.Status,
		"method":  result.Method,
	})
}

func (h *FunctionsHandler) ExtractMangaInfo(c *fiber.Ctx) error {
	var req aiextract.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid json body"})
	}

	result, err := h.extractor.Extract(c.UserContext(), req)
	if err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, aiextract.ErrURLRequired), errors.Is(err, aiextract.ErrMangaNotFound):
			status = fiber.StatusBadRequest
		case errors.Is(err, aiextract.ErrRateLimited):
			status = fiber.StatusTooManyRequests
		}
		h.logger.Warn("metadata extraction failed", "url", req.URL, "error", err)
		return c.Status(status).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	response := fiber.Map{"success": true, "data": result.Metadata}
	if result.Manga != nil {
		response["manga"] = result.Manga
	}
	return c.JSON(response)
}
