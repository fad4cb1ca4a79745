package leads

import (
	"context"

	"go.uber.org/zap"

	"leadsync/feature/leads/models"
	"leadsync/feature/leads/store"
	"leadsync/feature/leads/sync"
)

// Service exposes the reconciliation engine to the HTTP layer.
type Service struct {
	logger *zap.Logger
	store  *store.Store
	orch   *sync.Orchestrator
}

// NewService creates a leads service.
func NewService(logger *zap.Logger, st *store.Store, orch *sync.Orchestrator) *Service {
	return &Service{logger: logger, store: st, orch: orch}
}

// Table resolves a synchronized table by remote name.
func (s *Service) Table(name string) (*models.Table, bool) {
	return s.orch.Table(name)
}

// SyncTable runs one reconciliation cycle in the background. The HTTP
// request only triggers it; the cycle outlives the request context.
func (s *Service) SyncTable(table *models.Table) {
	go func() {
		if _, err := s.orch.Cycle(context.Background(), table); err != nil {
			s.logger.Error("triggered cycle failed",
				zap.String("table", table.Name), zap.Error(err))
		}
	}()
}

// RefreshStale re-fetches stale records of one table in the background.
func (s *Service) RefreshStale(table *models.Table) {
	go func() {
		if _, err := s.orch.RefreshStale(context.Background(), table); err != nil {
			s.logger.Error("triggered refresh failed",
				zap.String("table", table.Name), zap.Error(err))
		}
	}()
}

// Conflicts lists unresolved identity collisions.
func (s *Service) Conflicts(ctx context.Context) ([]models.Conflict, error) {
	return s.store.ListConflicts(ctx)
}

// ResolveConflict marks one collision as handled by an operator.
func (s *Service) ResolveConflict(ctx context.Context, id uint) error {
	return s.store.ResolveConflict(ctx, id)
}
