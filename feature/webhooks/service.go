package webhooks

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"leadsync/core/notify"
	"leadsync/core/remote"
	"leadsync/feature/leads/fieldmap"
	"leadsync/feature/leads/models"
	"leadsync/feature/leads/store"
)

// SchemaSource provides per-table schema snapshots.
type SchemaSource interface {
	Get(ctx context.Context, tableName string) (*remote.SchemaTable, error)
	Refresh(ctx context.Context) error
}

// Service ingests incremental change payloads pushed by the remote service.
type Service struct {
	logger  *zap.Logger
	db      *gorm.DB
	store   *store.Store
	schemas SchemaSource
	remote  remote.Client
	sink    notify.Sink
	baseID  string
	tables  map[string]*models.Table
}

// NewService creates a webhooks service. baseID is the remote base the
// subscriptions belong to; pings for any other base are rejected.
func NewService(logger *zap.Logger, db *gorm.DB, st *store.Store, schemas SchemaSource, rc remote.Client, sink notify.Sink, baseID string, tables map[string]*models.Table) *Service {
	return &Service{
		logger:  logger,
		db:      db,
		store:   st,
		schemas: schemas,
		remote:  rc,
		sink:    sink,
		baseID:  baseID,
		tables:  tables,
	}
}

// EnsureSchema migrates the webhook registry table.
func (s *Service) EnsureSchema() error {
	if err := s.db.AutoMigrate(&Webhook{}); err != nil {
		return fmt.Errorf("migrate remote_webhooks: %w", err)
	}
	return nil
}

// FindByRemoteHook loads the registration behind an incoming ping. Both the
// remote hook id and the base id must match; a ping for another base is
// indistinguishable from an unknown hook.
func (s *Service) FindByRemoteHook(ctx context.Context, remoteHookID, baseID string) (*Webhook, error) {
	var hook Webhook
	err := s.db.WithContext(ctx).
		Where("remote_hook_id = ? AND base_id = ?", remoteHookID, baseID).
		First(&hook).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("find webhook: %w", err)
	}
	return &hook, nil
}

// EnsureWebhooks refreshes the schema snapshots and registers a change
// subscription for every synchronized table that does not have one yet.
func (s *Service) EnsureWebhooks(ctx context.Context, publicURL string) error {
	if err := s.schemas.Refresh(ctx); err != nil {
		return err
	}
	notifyURL := publicURL + "/webhooks/notify"

	for _, table := range s.tables {
		snap, err := s.schemas.Get(ctx, table.Name)
		if err != nil {
			return fmt.Errorf("schema for %s: %w", table.Name, err)
		}
		table.RemoteTableID = snap.ID

		var existing Webhook
		err = s.db.WithContext(ctx).Where("table_name = ?", table.Name).First(&existing).Error
		if err == nil {
			if existing.TableID != snap.ID || existing.BaseID != s.baseID {
				existing.TableID = snap.ID
				existing.BaseID = s.baseID
				if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
					return fmt.Errorf("update webhook %s: %w", table.Name, err)
				}
			}
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("lookup webhook %s: %w", table.Name, err)
		}

		info, err := s.remote.CreateWebhook(ctx, notifyURL, snap.ID)
		if err != nil {
			return fmt.Errorf("register webhook %s: %w", table.Name, err)
		}
		hook := Webhook{
			Table:        table.Name,
			TableID:      snap.ID,
			BaseID:       s.baseID,
			RemoteHookID: info.ID,
			MACSecret:    info.MACSecret,
			Cursor:       1,
			ExpiresAt:    info.ExpirationTime,
		}
		if err := s.db.WithContext(ctx).Create(&hook).Error; err != nil {
			return fmt.Errorf("save webhook %s: %w", table.Name, err)
		}
		s.logger.Info("webhook registered",
			zap.String("table", table.Name),
			zap.String("remote_hook_id", info.ID))
	}
	return nil
}

// ProcessPing drains the payload stream of one webhook, applying each page
// and advancing the cursor. A page at or behind the stored cursor is a
// replay and is dropped before any record is touched.
func (s *Service) ProcessPing(ctx context.Context, hook *Webhook) error {
	table, ok := s.tables[hook.Table]
	if !ok {
		return fmt.Errorf("webhook for unknown table %s", hook.Table)
	}
	snap, err := s.schemas.Get(ctx, table.Name)
	if err != nil {
		// Without a snapshot the field ids in the payload are opaque;
		// applying anything would corrupt records.
		s.logger.Error("missing schema snapshot, aborting payload processing",
			zap.String("table", table.Name))
		s.sink.Critical(ctx, "webhook processing aborted",
			fmt.Sprintf("no schema snapshot for %s", table.Name))
		return err
	}
	fieldNames := FieldNames(snap)

	for {
		page, err := s.remote.ListPayloads(ctx, hook.RemoteHookID, hook.Cursor)
		if err != nil {
			return fmt.Errorf("list payloads: %w", err)
		}
		if page.Cursor <= hook.Cursor {
			// A replayed or stale page must not touch any record.
			if len(page.Payloads) > 0 {
				s.logger.Warn("stale payload page, skipping",
					zap.String("table", table.Name),
					zap.Int("page_cursor", page.Cursor),
					zap.Int("stored_cursor", hook.Cursor))
			}
			return nil
		}
		for i := range page.Payloads {
			s.applyPayload(ctx, table, fieldNames, &page.Payloads[i])
		}
		if err := s.advanceCursor(ctx, hook, page.Cursor); err != nil {
			return err
		}
		if !page.MightHaveMore {
			return nil
		}
	}
}

// advanceCursor persists a forward cursor move. The guard in the WHERE
// clause keeps concurrent pings from ever moving it backwards.
func (s *Service) advanceCursor(ctx context.Context, hook *Webhook, cursor int) error {
	err := s.db.WithContext(ctx).Model(&Webhook{}).
		Where("id = ? AND cursor < ?", hook.ID, cursor).
		Update("cursor", cursor).Error
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	hook.Cursor = cursor
	return nil
}

// applyPayload folds the changed cells of one payload into local records.
// Changed cells of unknown records become new rows only when the payload
// carries the identity url; otherwise they are logged and skipped.
func (s *Service) applyPayload(ctx context.Context, table *models.Table, fieldNames map[string]string, payload *remote.Payload) {
	changes, ok := payload.ChangedTablesByID[table.RemoteTableID]
	if !ok {
		return
	}
	for remoteID, change := range changes.ChangedRecordsByID {
		if change.Current == nil {
			continue
		}
		named := make(map[string]any, len(change.Current.CellValuesByFieldID))
		for fieldID, value := range change.Current.CellValuesByFieldID {
			if name, known := fieldNames[fieldID]; known {
				named[name] = value
			}
		}
		incoming := fieldmap.Decode(table.Mapping, named)

		rec, err := s.store.FindByRemoteID(ctx, table, remoteID)
		if err != nil {
			s.logger.Error("failed to look up record for payload",
				zap.String("remote_id", remoteID), zap.Error(err))
			continue
		}
		if rec != nil {
			changed, any := fieldmap.ApplyChanges(table.Registry, rec, incoming)
			if !any {
				continue
			}
			if err := s.store.UpdateFields(ctx, table, rec, changed); err != nil {
				s.logger.Error("failed to apply payload change",
					zap.String("remote_id", remoteID), zap.Error(err))
			}
			continue
		}

		url, _ := named[table.IdentityField].(string)
		if url == "" {
			s.logger.Warn("payload for unknown record without identity url, skipping",
				zap.String("table", table.Name),
				zap.String("remote_id", remoteID))
			continue
		}
		id := remoteID
		fresh := &models.Record{RemoteID: &id, IdentityURL: url}
		fieldmap.ApplyChanges(table.Registry, fresh, incoming)
		if created, failed := s.store.BulkCreate(ctx, table, []*models.Record{fresh}, 1); failed > 0 || created == 0 {
			s.logger.Error("failed to create record from payload",
				zap.String("table", table.Name),
				zap.String("remote_id", remoteID))
		}
	}
}
