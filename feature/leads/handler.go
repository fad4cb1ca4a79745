package leads

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"leadsync/core/logger"
)

// Handler handles HTTP requests for the leads feature.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the leads routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/leads")
	group.Post("/sync/:table", h.HandleSyncTable)
	group.Post("/refresh/:table", h.HandleRefreshTable)
	group.Get("/conflicts", h.HandleListConflicts)
	group.Post("/conflicts/:id/resolve", h.HandleResolveConflict)
}

// HandleSyncTable triggers one reconciliation cycle for a table.
func (h *Handler) HandleSyncTable(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	name := c.Params("table")

	table, ok := h.service.Table(name)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown table: " + name,
		})
	}

	l.Info("sync cycle triggered", zap.String("table", table.Name))
	h.service.SyncTable(table)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"table":  table.Name,
		"status": "started",
	})
}

// HandleRefreshTable triggers a stale-record refresh for a table.
func (h *Handler) HandleRefreshTable(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	name := c.Params("table")

	table, ok := h.service.Table(name)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown table: " + name,
		})
	}

	l.Info("stale refresh triggered", zap.String("table", table.Name))
	h.service.RefreshStale(table)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"table":  table.Name,
		"status": "started",
	})
}

// HandleListConflicts returns the unresolved identity collisions.
func (h *Handler) HandleListConflicts(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	conflicts, err := h.service.Conflicts(c.Context())
	if err != nil {
		l.Error("failed to list conflicts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"conflicts": conflicts})
}

// HandleResolveConflict marks one collision as handled.
func (h *Handler) HandleResolveConflict(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid conflict id",
		})
	}

	if err := h.service.ResolveConflict(c.Context(), uint(id)); err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "conflict not found",
			})
		}
		l.Error("failed to resolve conflict", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
