package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"leadsync/core/utils"
	"leadsync/feature/leads/models"
)

// flagColumns are the record fields that live as real columns rather than
// inside the serialized fields blob. Any other changed field name dirties
// the blob as a whole.
var flagColumns = map[string]struct{}{
	"remote_id":    {},
	"identity_url": {},
	"keyword":      {},
	"invalid":      {},
	"removed":      {},
	"private":      {},
	"enriched":     {},
	"duplicate":    {},
	"removed_date": {},
}

// Store persists lead records, one relational table per variant, plus the
// shared conflict queue.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// New creates a store over an open database handle.
func New(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

// EnsureSchema migrates every variant table and the conflict queue.
func (s *Store) EnsureSchema(tables map[string]*models.Table) error {
	for _, t := range tables {
		if err := s.db.Table(t.LocalTable).AutoMigrate(&models.Record{}); err != nil {
			return fmt.Errorf("migrate %s: %w", t.LocalTable, err)
		}
	}
	if err := s.db.AutoMigrate(&models.Conflict{}); err != nil {
		return fmt.Errorf("migrate sync_conflicts: %w", err)
	}
	return nil
}

// LoadSnapshot reads every row of a variant table and indexes it by both
// join keys.
func (s *Store) LoadSnapshot(ctx context.Context, table *models.Table) (*models.Snapshot, error) {
	var records []*models.Record
	if err := s.db.WithContext(ctx).Table(table.LocalTable).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load %s snapshot: %w", table.LocalTable, err)
	}
	snap := &models.Snapshot{
		ByIdentityURL: make(map[string]*models.Record, len(records)),
		ByRemoteID:    make(map[string]*models.Record, len(records)),
	}
	for _, rec := range records {
		snap.ByIdentityURL[rec.IdentityURL] = rec
		if rec.RemoteID != nil {
			snap.ByRemoteID[*rec.RemoteID] = rec
		}
	}
	return snap, nil
}

// BulkCreate inserts new records in chunks. A failing chunk falls back to
// row-at-a-time inserts so one constraint violation cannot sink its
// neighbors; violating rows are logged and skipped.
func (s *Store) BulkCreate(ctx context.Context, table *models.Table, records []*models.Record, chunkSize int) (created, failed int) {
	for _, chunk := range utils.Chunk(records, chunkSize) {
		if err := s.db.WithContext(ctx).Table(table.LocalTable).Create(&chunk).Error; err == nil {
			created += len(chunk)
			continue
		}
		for _, rec := range chunk {
			if err := s.db.WithContext(ctx).Table(table.LocalTable).Create(rec).Error; err != nil {
				s.log.Error("failed to insert record, skipping",
					zap.String("table", table.LocalTable),
					zap.String("url", rec.IdentityURL),
					zap.Error(err))
				failed++
				continue
			}
			created++
		}
	}
	return created, failed
}

// UpdateFields writes only the named changed fields of a record. Flag fields
// map to their columns; any registered domain field rewrites the serialized
// fields blob.
func (s *Store) UpdateFields(ctx context.Context, table *models.Table, rec *models.Record, changed map[string]struct{}) error {
	if len(changed) == 0 {
		return nil
	}
	values := map[string]any{}
	fieldsDirty := false
	for name := range changed {
		if _, isFlag := flagColumns[name]; !isFlag {
			fieldsDirty = true
			continue
		}
		switch name {
		case "remote_id":
			values["remote_id"] = rec.RemoteID
		case "identity_url":
			values["identity_url"] = rec.IdentityURL
		case "keyword":
			values["keyword"] = rec.Keyword
		case "invalid":
			values["invalid"] = rec.Invalid
		case "removed":
			values["removed"] = rec.Removed
		case "private":
			values["private"] = rec.Private
		case "enriched":
			values["enriched"] = rec.Enriched
		case "duplicate":
			values["duplicate"] = rec.Duplicate
		case "removed_date":
			values["removed_date"] = rec.RemovedDate
		}
	}
	if fieldsDirty {
		// Map-based Updates bypasses the struct serializer, so the blob
		// has to be marshalled by hand.
		blob, err := json.Marshal(rec.Fields)
		if err != nil {
			return fmt.Errorf("encode %s record %d fields: %w", table.LocalTable, rec.ID, err)
		}
		values["fields"] = string(blob)
	}
	err := s.db.WithContext(ctx).Table(table.LocalTable).
		Where("id = ?", rec.ID).
		Updates(values).Error
	if err != nil {
		return fmt.Errorf("update %s record %d: %w", table.LocalTable, rec.ID, err)
	}
	return nil
}

// DetachRemoteIDs nulls the remote id of the given records.
func (s *Store) DetachRemoteIDs(ctx context.Context, table *models.Table, records []*models.Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	err := s.db.WithContext(ctx).Table(table.LocalTable).
		Where("id IN ?", ids).
		Update("remote_id", nil).Error
	if err != nil {
		return fmt.Errorf("detach remote ids in %s: %w", table.LocalTable, err)
	}
	return nil
}

// PendingPush returns records awaiting remote creation: no remote id, not
// flagged as duplicates or invalid.
func (s *Store) PendingPush(ctx context.Context, table *models.Table) ([]*models.Record, error) {
	var records []*models.Record
	err := s.db.WithContext(ctx).Table(table.LocalTable).
		Where("remote_id IS NULL AND duplicate = ? AND invalid = ?", false, false).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load %s push candidates: %w", table.LocalTable, err)
	}
	return records, nil
}

// PrivatePending returns private records not yet known to the remote table.
func (s *Store) PrivatePending(ctx context.Context, table *models.Table) ([]*models.Record, error) {
	var records []*models.Record
	err := s.db.WithContext(ctx).Table(table.LocalTable).
		Where("private = ? AND remote_id IS NULL AND duplicate = ?", true, false).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load %s private candidates: %w", table.LocalTable, err)
	}
	return records, nil
}

// PrivateLinked returns private records that already have a remote row.
func (s *Store) PrivateLinked(ctx context.Context, table *models.Table) ([]*models.Record, error) {
	var records []*models.Record
	err := s.db.WithContext(ctx).Table(table.LocalTable).
		Where("private = ? AND remote_id IS NOT NULL", true).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load %s linked private records: %w", table.LocalTable, err)
	}
	return records, nil
}

// StaleCandidates returns enriched, still-live records untouched for longer
// than the staleness window, oldest first.
func (s *Store) StaleCandidates(ctx context.Context, table *models.Table, staleAfter time.Duration, limit int) ([]*models.Record, error) {
	cutoff := time.Now().Add(-staleAfter)
	var records []*models.Record
	q := s.db.WithContext(ctx).Table(table.LocalTable).
		Where("enriched = ? AND removed = ? AND invalid = ? AND private = ?", true, false, false, false).
		Where("modified_at < ?", cutoff).
		Order("modified_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load %s stale candidates: %w", table.LocalTable, err)
	}
	return records, nil
}

// TouchModified bumps the modification timestamp of the given rows without
// changing anything else.
func (s *Store) TouchModified(ctx context.Context, table *models.Table, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Table(table.LocalTable).
		Where("id IN ?", ids).
		Update("modified_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("touch %s records: %w", table.LocalTable, err)
	}
	return nil
}

// FindByURL loads one record by identity url.
func (s *Store) FindByURL(ctx context.Context, table *models.Table, url string) (*models.Record, error) {
	var rec models.Record
	err := s.db.WithContext(ctx).Table(table.LocalTable).
		Where("identity_url = ?", url).
		First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s by url: %w", table.LocalTable, err)
	}
	return &rec, nil
}

// FindByRemoteID loads one record by remote id.
func (s *Store) FindByRemoteID(ctx context.Context, table *models.Table, remoteID string) (*models.Record, error) {
	var rec models.Record
	err := s.db.WithContext(ctx).Table(table.LocalTable).
		Where("remote_id = ?", remoteID).
		First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s by remote id: %w", table.LocalTable, err)
	}
	return &rec, nil
}

// ExistingURLs reports which of the given urls already have rows.
func (s *Store) ExistingURLs(ctx context.Context, table *models.Table, urls []string) (map[string]struct{}, error) {
	if len(urls) == 0 {
		return map[string]struct{}{}, nil
	}
	var found []string
	err := s.db.WithContext(ctx).Table(table.LocalTable).
		Where("identity_url IN ?", urls).
		Pluck("identity_url", &found).Error
	if err != nil {
		return nil, fmt.Errorf("check %s urls: %w", table.LocalTable, err)
	}
	out := make(map[string]struct{}, len(found))
	for _, url := range found {
		out[url] = struct{}{}
	}
	return out, nil
}

// MonthKeys returns the (title, country, project type) triples of records
// created in the month of the reference time. Feed discovery uses them to
// flag probable duplicates of already-seen postings.
func (s *Store) MonthKeys(ctx context.Context, table *models.Table, ref time.Time) (map[[3]string]struct{}, error) {
	start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	var records []*models.Record
	err := s.db.WithContext(ctx).Table(table.LocalTable).
		Where("created_at >= ?", start).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load %s month keys: %w", table.LocalTable, err)
	}
	keys := make(map[[3]string]struct{}, len(records))
	for _, rec := range records {
		keys[MonthKey(rec)] = struct{}{}
	}
	return keys, nil
}

// MonthKey builds the duplicate-detection key of a record.
func MonthKey(rec *models.Record) [3]string {
	var key [3]string
	if v, ok := rec.Get("title"); ok {
		key[0] = utils.ToString(v)
	}
	if v, ok := rec.Get("country"); ok {
		key[1] = utils.ToString(v)
	}
	if v, ok := rec.Get("project_type"); ok {
		key[2] = utils.ToString(v)
	}
	return key
}

// SaveConflict appends one collision to the conflict queue.
func (s *Store) SaveConflict(ctx context.Context, conflict *models.Conflict) error {
	if err := s.db.WithContext(ctx).Create(conflict).Error; err != nil {
		return fmt.Errorf("save conflict: %w", err)
	}
	return nil
}

// ListConflicts returns unresolved conflicts, newest first.
func (s *Store) ListConflicts(ctx context.Context) ([]models.Conflict, error) {
	var conflicts []models.Conflict
	err := s.db.WithContext(ctx).
		Where("resolved = ?", false).
		Order("created_at DESC").
		Find(&conflicts).Error
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	return conflicts, nil
}

// ResolveConflict marks one conflict as handled.
func (s *Store) ResolveConflict(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Conflict{}).
		Where("id = ?", id).
		Update("resolved", true)
	if res.Error != nil {
		return fmt.Errorf("resolve conflict %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
