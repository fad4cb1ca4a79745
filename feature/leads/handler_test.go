package leads

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"leadsync/core/notify"
	"leadsync/core/remote"
	"leadsync/feature/leads/models"
	"leadsync/feature/leads/resolve"
	"leadsync/feature/leads/store"
	"leadsync/feature/leads/sync"
)

type stubRemote struct{}

func (stubRemote) ListRecords(context.Context, string) ([]remote.Record, error) { return nil, nil }
func (stubRemote) BatchCreate(_ context.Context, _ string, records []remote.Record) ([]remote.Record, error) {
	return records, nil
}
func (stubRemote) BatchUpdate(context.Context, string, []remote.Record) error { return nil }
func (stubRemote) BaseSchema(context.Context) (*remote.Schema, error) {
	return &remote.Schema{}, nil
}
func (stubRemote) CreateWebhook(context.Context, string, string) (*remote.WebhookInfo, error) {
	return &remote.WebhookInfo{}, nil
}
func (stubRemote) ListPayloads(context.Context, string, int) (*remote.PayloadPage, error) {
	return &remote.PayloadPage{}, nil
}

type nopSink struct{}

func (nopSink) Enqueue(context.Context, notify.Level, string, string) {}
func (nopSink) Flush(context.Context)                                 {}
func (nopSink) Critical(context.Context, string, ...string)           {}

func setupApp(t *testing.T) (*fiber.App, *store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	log := zap.NewNop()
	tables := models.DefaultTables()
	st := store.New(db, log)
	require.NoError(t, st.EnsureSchema(tables))

	orch := sync.New(log, st, stubRemote{}, resolve.New(log, nil), nil, nil,
		nopSink{}, nil, tables, sync.Config{}, remote.Config{})

	app := fiber.New()
	feature := NewFeature(log, st, orch)
	require.NoError(t, feature.Load(app))
	return app, st
}

func TestHandleSyncTableUnknown(t *testing.T) {
	app, _ := setupApp(t)

	req := httptest.NewRequest("POST", "/leads/sync/Nonsense", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandleSyncTableAccepted(t *testing.T) {
	app, _ := setupApp(t)

	req := httptest.NewRequest("POST", "/leads/sync/Proposals", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "started")
}

func TestHandleListConflicts(t *testing.T) {
	app, st := setupApp(t)

	conflict := &models.Conflict{TableRef: "Proposals", IdentityURL: "https://jobs.example/a", RemoteID: "rec999"}
	require.NoError(t, st.SaveConflict(context.Background(), conflict))

	req := httptest.NewRequest("GET", "/leads/conflicts", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "rec999")
}

func TestHandleResolveConflict(t *testing.T) {
	app, st := setupApp(t)

	conflict := &models.Conflict{TableRef: "Proposals", IdentityURL: "https://jobs.example/a", RemoteID: "rec999"}
	require.NoError(t, st.SaveConflict(context.Background(), conflict))

	req := httptest.NewRequest("POST", "/leads/conflicts/1/resolve", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	req = httptest.NewRequest("POST", "/leads/conflicts/999/resolve", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	req = httptest.NewRequest("POST", "/leads/conflicts/abc/resolve", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
