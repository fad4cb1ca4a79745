package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"leadsync/feature/leads/models"
)

func strptr(s string) *string { return &s }

func setupStore(t *testing.T) (*Store, *models.Table) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	table := models.Proposals()
	s := New(db, zap.NewNop())
	require.NoError(t, s.EnsureSchema(map[string]*models.Table{table.Name: table}))
	return s, table
}

func TestBulkCreateAndSnapshot(t *testing.T) {
	s, table := setupStore(t)
	ctx := context.Background()

	records := []*models.Record{
		{RemoteID: strptr("rec001"), IdentityURL: "https://jobs.example/a", Fields: models.FieldValues{"title": "Backend engineer"}},
		{IdentityURL: "https://jobs.example/b", Fields: models.FieldValues{"title": "Data engineer"}},
	}
	created, failed := s.BulkCreate(ctx, table, records, 10)
	assert.Equal(t, 2, created)
	assert.Zero(t, failed)

	snap, err := s.LoadSnapshot(ctx, table)
	require.NoError(t, err)
	require.Len(t, snap.ByIdentityURL, 2)
	assert.Len(t, snap.ByRemoteID, 1)

	rec := snap.ByIdentityURL["https://jobs.example/a"]
	require.NotNil(t, rec)
	got, _ := rec.Get("title")
	assert.Equal(t, "Backend engineer", got)
}

func TestBulkCreateSkipsConstraintViolations(t *testing.T) {
	s, table := setupStore(t)
	ctx := context.Background()

	first := []*models.Record{{IdentityURL: "https://jobs.example/a"}}
	created, failed := s.BulkCreate(ctx, table, first, 10)
	require.Equal(t, 1, created)
	require.Zero(t, failed)

	// Same chunk mixes a duplicate url with a fresh record; only the
	// duplicate is dropped.
	second := []*models.Record{
		{IdentityURL: "https://jobs.example/a"},
		{IdentityURL: "https://jobs.example/b"},
	}
	created, failed = s.BulkCreate(ctx, table, second, 10)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, failed)

	snap, err := s.LoadSnapshot(ctx, table)
	require.NoError(t, err)
	assert.Len(t, snap.ByIdentityURL, 2)
}

func TestUpdateFields(t *testing.T) {
	s, table := setupStore(t)
	ctx := context.Background()

	rec := &models.Record{IdentityURL: "https://jobs.example/a", Fields: models.FieldValues{"title": "old"}}
	_, failed := s.BulkCreate(ctx, table, []*models.Record{rec}, 10)
	require.Zero(t, failed)

	snap, err := s.LoadSnapshot(ctx, table)
	require.NoError(t, err)
	loaded := snap.ByIdentityURL["https://jobs.example/a"]
	require.NotNil(t, loaded)

	loaded.Set("title", "new")
	loaded.Enriched = true
	err = s.UpdateFields(ctx, table, loaded, map[string]struct{}{
		"title":    {},
		"enriched": {},
	})
	require.NoError(t, err)

	snap, err = s.LoadSnapshot(ctx, table)
	require.NoError(t, err)
	reloaded := snap.ByIdentityURL["https://jobs.example/a"]
	got, _ := reloaded.Get("title")
	assert.Equal(t, "new", got)
	assert.True(t, reloaded.Enriched)
}

func TestUpdateFieldsWithNoChangesIsNoop(t *testing.T) {
	s, table := setupStore(t)
	err := s.UpdateFields(context.Background(), table, &models.Record{ID: 1}, nil)
	assert.NoError(t, err)
}

func TestDetachRemoteIDs(t *testing.T) {
	s, table := setupStore(t)
	ctx := context.Background()

	rec := &models.Record{RemoteID: strptr("rec001"), IdentityURL: "https://jobs.example/a"}
	_, failed := s.BulkCreate(ctx, table, []*models.Record{rec}, 10)
	require.Zero(t, failed)

	snap, _ := s.LoadSnapshot(ctx, table)
	loaded := snap.ByIdentityURL["https://jobs.example/a"]
	require.NoError(t, s.DetachRemoteIDs(ctx, table, []*models.Record{loaded}))

	snap, _ = s.LoadSnapshot(ctx, table)
	assert.Nil(t, snap.ByIdentityURL["https://jobs.example/a"].RemoteID)
	assert.Empty(t, snap.ByRemoteID)
}

func TestPendingPush(t *testing.T) {
	s, table := setupStore(t)
	ctx := context.Background()

	records := []*models.Record{
		{IdentityURL: "https://jobs.example/push-me"},
		{RemoteID: strptr("rec001"), IdentityURL: "https://jobs.example/synced"},
		{IdentityURL: "https://jobs.example/dup", Duplicate: true},
		{IdentityURL: "https://jobs.example/bad", Invalid: true},
	}
	_, failed := s.BulkCreate(ctx, table, records, 10)
	require.Zero(t, failed)

	pending, err := s.PendingPush(ctx, table)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://jobs.example/push-me", pending[0].IdentityURL)
}

func TestStaleCandidates(t *testing.T) {
	s, table := setupStore(t)
	ctx := context.Background()

	records := []*models.Record{
		{IdentityURL: "https://jobs.example/fresh", Enriched: true},
		{IdentityURL: "https://jobs.example/stale", Enriched: true},
		{IdentityURL: "https://jobs.example/removed", Enriched: true, Removed: true},
		{IdentityURL: "https://jobs.example/unenriched"},
	}
	_, failed := s.BulkCreate(ctx, table, records, 10)
	require.Zero(t, failed)

	// Backdate the stale and removed rows past the staleness window.
	old := time.Now().Add(-10 * 24 * time.Hour)
	for _, url := range []string{"https://jobs.example/stale", "https://jobs.example/removed", "https://jobs.example/unenriched"} {
		err := s.db.Table(table.LocalTable).
			Where("identity_url = ?", url).
			Update("modified_at", old).Error
		require.NoError(t, err)
	}

	stale, err := s.StaleCandidates(ctx, table, 7*24*time.Hour, 0)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "https://jobs.example/stale", stale[0].IdentityURL)
}

func TestExistingURLs(t *testing.T) {
	s, table := setupStore(t)
	ctx := context.Background()

	_, failed := s.BulkCreate(ctx, table, []*models.Record{{IdentityURL: "https://jobs.example/a"}}, 10)
	require.Zero(t, failed)

	found, err := s.ExistingURLs(ctx, table, []string{"https://jobs.example/a", "https://jobs.example/b"})
	require.NoError(t, err)
	assert.Contains(t, found, "https://jobs.example/a")
	assert.NotContains(t, found, "https://jobs.example/b")
}

func TestConflictQueue(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	conflict := &models.Conflict{
		TableRef:    "Proposals",
		IdentityURL: "https://jobs.example/a",
		RemoteID:    "rec999",
		OldSnapshot: `{"remote_id":"rec001"}`,
		NewSnapshot: `{"Title":"intruder"}`,
	}
	require.NoError(t, s.SaveConflict(ctx, conflict))

	open, err := s.ListConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "rec999", open[0].RemoteID)

	require.NoError(t, s.ResolveConflict(ctx, open[0].ID))
	open, err = s.ListConflicts(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	err = s.ResolveConflict(ctx, 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
