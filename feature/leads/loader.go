package leads

import (
	"go.uber.org/zap"

	"leadsync/feature/leads/store"
	"leadsync/feature/leads/sync"

	"github.com/gofiber/fiber/v2"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates the leads feature.
func NewFeature(logger *zap.Logger, st *store.Store, orch *sync.Orchestrator) *Feature {
	svc := NewService(logger, st, orch)
	h := NewHandler(svc)
	return &Feature{service: svc, handler: h}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "leads"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
