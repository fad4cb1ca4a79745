package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"leadsync/core/cache"
	"leadsync/core/config"
	"leadsync/core/database"
	"leadsync/core/logger"
	"leadsync/core/notify"
	"leadsync/core/remote"
	"leadsync/core/storage"
	"leadsync/feature/feeds"
	"leadsync/feature/leads/enrich"
	"leadsync/feature/leads/identity"
	"leadsync/feature/leads/models"
	"leadsync/feature/leads/resolve"
	"leadsync/feature/leads/store"
	"leadsync/feature/leads/sync"
	"leadsync/feature/webhooks"
)

// app bundles the wired subsystems every command starts from.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *gorm.DB
	kv     *cache.Store
	remote remote.Client
	sink   notify.Sink
	tables map[string]*models.Table

	store    *store.Store
	orch     *sync.Orchestrator
	webhooks *webhooks.Service
	feeds    *feeds.Service
}

// buildApp loads configuration and wires the full engine. Every command
// calls this, so a misconfigured environment fails identically everywhere.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	zap.ReplaceGlobals(log)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	kv, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("connect cache: %w", err)
	}

	remoteClient := remote.NewHTTPClient(cfg.Remote)
	sink := notify.NewQueue(kv, notify.NewWebhookPoster(cfg.Notify), log)

	var archive *storage.Archive
	if cfg.Storage.Enabled {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		archive, err = storage.NewArchive(ctx, client, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("prepare report archive: %w", err)
		}
	}

	tables := models.DefaultTables()
	st := store.New(db, log)
	if err := st.EnsureSchema(tables); err != nil {
		return nil, err
	}

	ids := identity.NewCache(kv, 0)
	resolver := resolve.New(log, ids)
	enricher := enrich.New(log,
		enrich.NewHTTPClient(cfg.Enrich),
		enrich.NewTokenSource(cfg.Enrich.Tokens),
		cfg.Enrich)

	orch := sync.New(log, st, remoteClient, resolver, enricher, ids, sink,
		archive, tables, cfg.Sync, cfg.Remote)

	schemas := webhooks.NewSchemaCache(kv, remoteClient)
	webhooksSvc := webhooks.NewService(log, db, st, schemas, remoteClient, sink, cfg.Remote.BaseID, tables)
	if err := webhooksSvc.EnsureSchema(); err != nil {
		return nil, err
	}

	discovery, ok := tables[cfg.Feeds.Table]
	if !ok {
		return nil, fmt.Errorf("feeds: unknown discovery table %q", cfg.Feeds.Table)
	}
	feedsSvc := feeds.NewService(log, st,
		feeds.NewScraper(log, cfg.Feeds),
		feeds.NewHTTPFetcher(cfg.Feeds),
		sink, discovery, cfg.Feeds)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		kv:       kv,
		remote:   remoteClient,
		sink:     sink,
		tables:   tables,
		store:    st,
		orch:     orch,
		webhooks: webhooksSvc,
		feeds:    feedsSvc,
	}, nil
}

// close releases the shared connections.
func (a *app) close() {
	if err := a.kv.Close(); err != nil {
		a.log.Warn("failed to close cache connection", zap.Error(err))
	}
	_ = a.log.Sync()
}
