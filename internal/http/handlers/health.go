package handlers

import (
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ssanime/manga-nexus-hub/internal/sources"
)

type HealthHandler struct {
	db       *sql.DB
	registry *sources.Registry
}

func NewHealthHandler(db *sql.DB, registry *sources.Registry) *HealthHandler {
	return &HealthHandler{db: db, registry: registry}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	now := time.Now().UTC().Format(time.RFC3339)
	sourceCount := len(h.registry.List())

	if err := h.db.PingContext(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "degraded",
			"db":      "down",
			"sources": sourceCount,
			"time":    now,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "ok",
		"db":      "up",
		"sources": sourceCount,
		"time":    now,
	})
}
