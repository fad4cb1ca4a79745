package feeds

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"leadsync/core/logger"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	enabled bool
}

// NewFeature creates the feeds feature.
func NewFeature(service *Service, enabled bool) *Feature {
	return &Feature{service: service, enabled: enabled}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "feeds"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return f.enabled
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	group := app.Group("/feeds")
	group.Post("/scan", f.handleScan)
	return nil
}

// handleScan triggers one discovery pass in the background.
func (f *Feature) handleScan(c *fiber.Ctx) error {
	l := logger.WithRayID(f.service.logger, c)
	l.Info("feed discovery triggered")

	go func() {
		if _, err := f.service.Run(context.Background()); err != nil {
			f.service.logger.Error("triggered discovery failed", zap.Error(err))
		}
	}()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "started"})
}
