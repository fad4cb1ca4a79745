package webhooks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"leadsync/core/notify"
	"leadsync/core/remote"
	"leadsync/feature/leads/models"
	"leadsync/feature/leads/store"
)

type fakeSchemaSource struct {
	tables map[string]*remote.SchemaTable
}

func (f *fakeSchemaSource) Get(_ context.Context, name string) (*remote.SchemaTable, error) {
	snap, ok := f.tables[name]
	if !ok {
		return nil, ErrNoSchema
	}
	return snap, nil
}

func (f *fakeSchemaSource) Refresh(context.Context) error { return nil }

type fakeRemote struct {
	pages     map[int]*remote.PayloadPage
	created   []remote.Record
	hookInfo  *remote.WebhookInfo
	listCalls []int
}

func (f *fakeRemote) ListRecords(context.Context, string) ([]remote.Record, error) { return nil, nil }
func (f *fakeRemote) BatchCreate(_ context.Context, _ string, records []remote.Record) ([]remote.Record, error) {
	f.created = append(f.created, records...)
	return records, nil
}
func (f *fakeRemote) BatchUpdate(context.Context, string, []remote.Record) error { return nil }
func (f *fakeRemote) BaseSchema(context.Context) (*remote.Schema, error) {
	return &remote.Schema{}, nil
}
func (f *fakeRemote) CreateWebhook(context.Context, string, string) (*remote.WebhookInfo, error) {
	return f.hookInfo, nil
}
func (f *fakeRemote) ListPayloads(_ context.Context, _ string, cursor int) (*remote.PayloadPage, error) {
	f.listCalls = append(f.listCalls, cursor)
	page, ok := f.pages[cursor]
	if !ok {
		return &remote.PayloadPage{Cursor: cursor, MightHaveMore: false}, nil
	}
	return page, nil
}

type recordingSink struct {
	criticals []string
}

func (r *recordingSink) Enqueue(context.Context, notify.Level, string, string) {}
func (r *recordingSink) Flush(context.Context)                                 {}
func (r *recordingSink) Critical(_ context.Context, header string, _ ...string) {
	r.criticals = append(r.criticals, header)
}

type svcFixture struct {
	svc    *Service
	db     *gorm.DB
	store  *store.Store
	remote *fakeRemote
	sink   *recordingSink
	table  *models.Table
}

func setupService(t *testing.T, schemas SchemaSource) *svcFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	log := zap.NewNop()
	table := models.Proposals()
	table.RemoteTableID = "tbl001"
	tables := map[string]*models.Table{table.Name: table}

	st := store.New(db, log)
	require.NoError(t, st.EnsureSchema(tables))

	rc := &fakeRemote{pages: map[int]*remote.PayloadPage{}}
	sink := &recordingSink{}
	svc := NewService(log, db, st, schemas, rc, sink, "app001", tables)
	require.NoError(t, svc.EnsureSchema())
	return &svcFixture{svc: svc, db: db, store: st, remote: rc, sink: sink, table: table}
}

func proposalsSchema() *fakeSchemaSource {
	return &fakeSchemaSource{tables: map[string]*remote.SchemaTable{
		"Proposals": {
			ID:   "tbl001",
			Name: "Proposals",
			Fields: []remote.SchemaField{
				{ID: "fld001", Name: "URL"},
				{ID: "fld002", Name: "Title"},
				{ID: "fld003", Name: "Budget"},
			},
		},
	}}
}

func payloadFor(remoteID string, cells map[string]any) remote.Payload {
	return remote.Payload{
		ChangedTablesByID: map[string]remote.TableChanges{
			"tbl001": {
				ChangedRecordsByID: map[string]remote.RecordChange{
					remoteID: {Current: &remote.CellValues{CellValuesByFieldID: cells}},
				},
			},
		},
	}
}

func TestProcessPingAppliesChanges(t *testing.T) {
	f := setupService(t, proposalsSchema())
	ctx := context.Background()

	id := "rec001"
	local := &models.Record{RemoteID: &id, IdentityURL: "https://jobs.example/a", Enriched: true}
	local.Set("title", "old title")
	_, failed := f.store.BulkCreate(ctx, f.table, []*models.Record{local}, 10)
	require.Zero(t, failed)

	hook := &Webhook{Table: "Proposals", TableID: "tbl001", RemoteHookID: "ach001", Cursor: 1}
	require.NoError(t, f.db.Create(hook).Error)

	f.remote.pages[1] = &remote.PayloadPage{
		Cursor: 2,
		Payloads: []remote.Payload{
			payloadFor("rec001", map[string]any{"fld002": "new title"}),
		},
	}

	require.NoError(t, f.svc.ProcessPing(ctx, hook))

	snap, _ := f.store.LoadSnapshot(ctx, f.table)
	got, _ := snap.ByIdentityURL["https://jobs.example/a"].Get("title")
	assert.Equal(t, "new title", got)
	assert.Equal(t, 2, hook.Cursor)
}

func TestProcessPingDrainsAllPages(t *testing.T) {
	f := setupService(t, proposalsSchema())
	ctx := context.Background()

	hook := &Webhook{Table: "Proposals", TableID: "tbl001", RemoteHookID: "ach001", Cursor: 1}
	require.NoError(t, f.db.Create(hook).Error)

	f.remote.pages[1] = &remote.PayloadPage{Cursor: 2, MightHaveMore: true}
	f.remote.pages[2] = &remote.PayloadPage{Cursor: 3, MightHaveMore: false}

	require.NoError(t, f.svc.ProcessPing(ctx, hook))
	assert.Equal(t, []int{1, 2}, f.remote.listCalls)
	assert.Equal(t, 3, hook.Cursor)
}

func TestProcessPingRejectsStalePage(t *testing.T) {
	f := setupService(t, proposalsSchema())
	ctx := context.Background()

	hook := &Webhook{Table: "Proposals", TableID: "tbl001", RemoteHookID: "ach001", Cursor: 5}
	require.NoError(t, f.db.Create(hook).Error)

	// A replayed page behind the stored cursor carries record changes.
	f.remote.pages[5] = &remote.PayloadPage{
		Cursor: 3,
		Payloads: []remote.Payload{
			payloadFor("rec900", map[string]any{
				"fld001": "https://jobs.example/stale",
				"fld002": "Stale posting",
			}),
		},
	}

	require.NoError(t, f.svc.ProcessPing(ctx, hook))

	// Nothing was applied and the cursor did not move.
	snap, _ := f.store.LoadSnapshot(ctx, f.table)
	assert.Empty(t, snap.ByIdentityURL)
	var reloaded Webhook
	require.NoError(t, f.db.First(&reloaded, hook.ID).Error)
	assert.Equal(t, 5, reloaded.Cursor)
}

func TestCursorNeverMovesBackwards(t *testing.T) {
	f := setupService(t, proposalsSchema())
	ctx := context.Background()

	hook := &Webhook{Table: "Proposals", TableID: "tbl001", RemoteHookID: "ach001", Cursor: 5}
	require.NoError(t, f.db.Create(hook).Error)

	require.NoError(t, f.svc.advanceCursor(ctx, hook, 7))
	var reloaded Webhook
	require.NoError(t, f.db.First(&reloaded, hook.ID).Error)
	assert.Equal(t, 7, reloaded.Cursor)

	// A stale move is silently skipped by the guard.
	stale := &Webhook{ID: hook.ID, Cursor: 3}
	require.NoError(t, f.svc.advanceCursor(ctx, stale, 4))
	require.NoError(t, f.db.First(&reloaded, hook.ID).Error)
	assert.Equal(t, 7, reloaded.Cursor)
}

func TestProcessPingAbortsWithoutSchema(t *testing.T) {
	f := setupService(t, &fakeSchemaSource{tables: map[string]*remote.SchemaTable{}})
	ctx := context.Background()

	hook := &Webhook{Table: "Proposals", TableID: "tbl001", RemoteHookID: "ach001", Cursor: 1}
	require.NoError(t, f.db.Create(hook).Error)

	err := f.svc.ProcessPing(ctx, hook)
	assert.ErrorIs(t, err, ErrNoSchema)
	assert.NotEmpty(t, f.sink.criticals)
	// No payloads were listed and the cursor did not move.
	assert.Empty(t, f.remote.listCalls)
	var reloaded Webhook
	require.NoError(t, f.db.First(&reloaded, hook.ID).Error)
	assert.Equal(t, 1, reloaded.Cursor)
}

func TestProcessPingCreatesRecordWithURL(t *testing.T) {
	f := setupService(t, proposalsSchema())
	ctx := context.Background()

	hook := &Webhook{Table: "Proposals", TableID: "tbl001", RemoteHookID: "ach001", Cursor: 1}
	require.NoError(t, f.db.Create(hook).Error)

	f.remote.pages[1] = &remote.PayloadPage{
		Cursor: 2,
		Payloads: []remote.Payload{
			payloadFor("rec777", map[string]any{
				"fld001": "https://jobs.example/new",
				"fld002": "Fresh posting",
			}),
		},
	}

	require.NoError(t, f.svc.ProcessPing(ctx, hook))

	snap, _ := f.store.LoadSnapshot(ctx, f.table)
	rec := snap.ByIdentityURL["https://jobs.example/new"]
	require.NotNil(t, rec)
	assert.Equal(t, "rec777", *rec.RemoteID)
	got, _ := rec.Get("title")
	assert.Equal(t, "Fresh posting", got)
}

func TestProcessPingSkipsUnknownRecordWithoutURL(t *testing.T) {
	f := setupService(t, proposalsSchema())
	ctx := context.Background()

	hook := &Webhook{Table: "Proposals", TableID: "tbl001", RemoteHookID: "ach001", Cursor: 1}
	require.NoError(t, f.db.Create(hook).Error)

	f.remote.pages[1] = &remote.PayloadPage{
		Cursor: 2,
		Payloads: []remote.Payload{
			payloadFor("rec777", map[string]any{"fld002": "No identity"}),
		},
	}

	require.NoError(t, f.svc.ProcessPing(ctx, hook))

	snap, _ := f.store.LoadSnapshot(ctx, f.table)
	assert.Empty(t, snap.ByIdentityURL)
}

func TestEnsureWebhooksRegistersOnce(t *testing.T) {
	f := setupService(t, proposalsSchema())
	ctx := context.Background()
	f.remote.hookInfo = &remote.WebhookInfo{ID: "ach001", MACSecret: "c2VjcmV0", ExpirationTime: "2026-09-05T00:00:00Z"}

	require.NoError(t, f.svc.EnsureWebhooks(ctx, "https://sync.example"))

	var hooks []Webhook
	require.NoError(t, f.db.Find(&hooks).Error)
	require.Len(t, hooks, 1)
	assert.Equal(t, "Proposals", hooks[0].Table)
	assert.Equal(t, "tbl001", hooks[0].TableID)
	assert.Equal(t, "app001", hooks[0].BaseID)
	assert.Equal(t, 1, hooks[0].Cursor)

	// Second run is a no-op.
	require.NoError(t, f.svc.EnsureWebhooks(ctx, "https://sync.example"))
	require.NoError(t, f.db.Find(&hooks).Error)
	assert.Len(t, hooks, 1)
}
