package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/ssanime/manga-nexus-hub/internal/app"
	"github.com/ssanime/manga-nexus-hub/internal/config"
	"github.com/ssanime/manga-nexus-hub/internal/http/handlers"
)

const corsAllowHeaders = "authorization, x-client-info, apikey, content-type"

func NewServer(cfg config.Config, services *app.Services) *fiber.App {
	server := fiber.New(fiber.Config{
		AppName: cfg.AppName,
	})

	server.Use(recover.New())
	server.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: corsAllowHeaders,
	}))

	logger := slog.Default()
	health := handlers.NewHealthHandler(services.DB, services.Profiles)
	functions := handlers.NewFunctionsHandler(services, logger)
	sourceHandlers := handlers.NewSourcesHandler(services.Profiles, services.ProfileStore)
	jobs := handlers.NewJobsHandler(services.Jobs)
	queueHandlers := handlers.NewQueueHandler(services.Queue, services.Manga, services.FollowUps)

	server.Get("/health", health.Check)
	server.Get("/v1/health", health.Check)

	auth := RequireJWT(cfg.JWTSecret)

	fn := server.Group("/functions/v1", auth)
	fn.Post("/scrape", functions.Scrape)
	fn.Post("/process-download-queue", functions.ProcessDownloadQueue)
	fn.Post("/cloudflare-bypass", functions.CloudflareBypass)
	fn.Post("/extract-manga-info", functions.ExtractMangaInfo)

	v1 := server.Group("/v1", auth)
	v1.Get("/sources", sourceHandlers.List)
	v1.Put("/sources/:name", sourceHandlers.Put)
	v1.Get("/jobs", jobs.List)
	v1.Post("/queue", queueHandlers.Enqueue)
	v1.Get("/queue/stats", queueHandlers.Stats)

	return server
}
