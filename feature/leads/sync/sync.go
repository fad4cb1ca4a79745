package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"leadsync/core/notify"
	"leadsync/core/remote"
	"leadsync/core/storage"
	"leadsync/feature/leads/enrich"
	"leadsync/feature/leads/fieldmap"
	"leadsync/feature/leads/identity"
	"leadsync/feature/leads/models"
	"leadsync/feature/leads/resolve"
	"leadsync/feature/leads/store"
)

// Report summarizes one reconciliation cycle of one table.
type Report struct {
	Table        string    `json:"table"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Pulled       int       `json:"pulled"`
	Created      int       `json:"created"`
	CreateFailed int       `json:"create_failed"`
	Updated      int       `json:"updated"`
	Detached     int       `json:"detached"`
	Enriched     int       `json:"enriched"`
	EnrichFailed int       `json:"enrich_failed"`
	Conflicts    int       `json:"conflicts"`
	Dropped      int       `json:"dropped"`
	Pushed       int       `json:"pushed"`
	PushFailed   int       `json:"push_failed"`
}

// Orchestrator drives the pull, classify, enrich, write, push sequence for
// every synchronized table.
type Orchestrator struct {
	log      *zap.Logger
	store    *store.Store
	remote   remote.Client
	resolver *resolve.Resolver
	enricher *enrich.Enricher
	identity *identity.Cache
	sink     notify.Sink
	archive  *storage.Archive
	tables   map[string]*models.Table
	cfg      Config

	retries   int
	backoff   time.Duration
	batchSize int
}

// New creates an orchestrator. The archive may be nil when report archiving
// is disabled.
func New(
	log *zap.Logger,
	st *store.Store,
	rc remote.Client,
	resolver *resolve.Resolver,
	enricher *enrich.Enricher,
	ids *identity.Cache,
	sink notify.Sink,
	archive *storage.Archive,
	tables map[string]*models.Table,
	cfg Config,
	remoteCfg remote.Config,
) *Orchestrator {
	batch := remoteCfg.BatchSize
	if batch <= 0 {
		batch = 10
	}
	return &Orchestrator{
		log:       log,
		store:     st,
		remote:    rc,
		resolver:  resolver,
		enricher:  enricher,
		identity:  ids,
		sink:      sink,
		archive:   archive,
		tables:    tables,
		cfg:       cfg,
		retries:   remoteCfg.MaxRetries,
		backoff:   time.Duration(remoteCfg.RetryBackoffMillis) * time.Millisecond,
		batchSize: batch,
	}
}

// Table returns a synchronized table by remote name.
func (o *Orchestrator) Table(name string) (*models.Table, bool) {
	t, ok := o.tables[name]
	return t, ok
}

// Tables returns every synchronized table keyed by remote name.
func (o *Orchestrator) Tables() map[string]*models.Table {
	return o.tables
}

// CycleAll runs one cycle per table, then flushes the accumulated
// notifications in one batch.
func (o *Orchestrator) CycleAll(ctx context.Context) {
	for _, table := range o.tables {
		if _, err := o.Cycle(ctx, table); err != nil {
			o.log.Error("cycle failed",
				zap.String("table", table.Name), zap.Error(err))
			o.sink.Enqueue(ctx, notify.LevelError, "sync cycle failed",
				fmt.Sprintf("%s: %v", table.Name, err))
		}
	}
	o.sink.Flush(ctx)
}

// Cycle reconciles one table: pull the remote rows, classify them against
// the local snapshot, enrich what needs it behind a barrier, write local
// outcomes, then push locally-discovered records.
func (o *Orchestrator) Cycle(ctx context.Context, table *models.Table) (*Report, error) {
	report := &Report{Table: table.Name, StartedAt: time.Now()}
	log := o.log.With(zap.String("table", table.Name))

	var batch []remote.Record
	err := remote.WithRetry(ctx, log, o.retries, o.backoff, "list records", func() error {
		var err error
		batch, err = o.remote.ListRecords(ctx, table.Name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", table.Name, err)
	}
	report.Pulled = len(batch)

	snap, err := o.store.LoadSnapshot(ctx, table)
	if err != nil {
		return nil, err
	}

	res := o.resolver.Classify(ctx, table, snap, batch)
	report.Dropped = res.Dropped

	enrichChanged := o.runEnrichment(ctx, log, table, res.NeedsEnrichment, report)

	if err := o.writeLocal(ctx, log, table, res, enrichChanged, report); err != nil {
		return nil, err
	}

	o.pushChanged(ctx, log, table, batch, report)
	o.pushPending(ctx, log, table, report)
	o.pushPrivate(ctx, log, table, report)

	report.FinishedAt = time.Now()
	log.Info("cycle finished",
		zap.Int("pulled", report.Pulled),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("enriched", report.Enriched),
		zap.Int("pushed", report.Pushed),
		zap.Int("conflicts", report.Conflicts),
		zap.Int("dropped", report.Dropped))

	o.archiveReport(ctx, log, table, report)
	return report, nil
}

// runEnrichment fetches details for every scheduled record with bounded
// parallelism and waits for all of them before anything is written. Changed
// sets are collected per record so already-persisted rows can be updated
// field-by-field afterwards.
func (o *Orchestrator) runEnrichment(ctx context.Context, log *zap.Logger, table *models.Table, records []*models.Record, report *Report) map[*models.Record]map[string]struct{} {
	changedByRec := make(map[*models.Record]map[string]struct{}, len(records))
	if len(records) == 0 || o.enricher == nil {
		return changedByRec
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	workers := o.cfg.EnrichWorkers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)

	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			changed, err := o.enricher.Enrich(gctx, table, rec)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.EnrichFailed++
				if errors.Is(err, enrich.ErrNoTokens) {
					return err
				}
				log.Warn("enrichment failed",
					zap.String("url", rec.IdentityURL), zap.Error(err))
				o.sink.Enqueue(gctx, notify.LevelWarning, "enrichment failed",
					fmt.Sprintf("%s: %v", rec.IdentityURL, err))
				return nil
			}
			report.Enriched++
			changedByRec[rec] = changed
			return nil
		})
	}

	if err := g.Wait(); err != nil && errors.Is(err, enrich.ErrNoTokens) {
		log.Error("job board token pool exhausted")
		o.sink.Critical(ctx, "job board token pool exhausted",
			"enrichment is stalled until new tokens are configured")
	}
	return changedByRec
}

// writeLocal persists every classification outcome: detachments first, then
// new rows, field updates, enrichment results, and conflicts.
func (o *Orchestrator) writeLocal(ctx context.Context, log *zap.Logger, table *models.Table, res *resolve.Result, enrichChanged map[*models.Record]map[string]struct{}, report *Report) error {
	if err := o.store.DetachRemoteIDs(ctx, table, res.Detached); err != nil {
		return err
	}
	report.Detached = len(res.Detached)

	created, failed := o.store.BulkCreate(ctx, table, res.Creates, o.batchSize)
	report.Created = created
	report.CreateFailed = failed
	if failed > 0 {
		o.sink.Enqueue(ctx, notify.LevelWarning, "records skipped at insert",
			fmt.Sprintf("%s: %d rows violated constraints", table.Name, failed))
	}

	for _, upd := range res.Updates {
		// Enrichment may have touched the same record; merge the sets so
		// the row is written once.
		if extra, ok := enrichChanged[upd.Record]; ok {
			for name := range extra {
				upd.Changed[name] = struct{}{}
			}
			delete(enrichChanged, upd.Record)
		}
		if err := o.store.UpdateFields(ctx, table, upd.Record, upd.Changed); err != nil {
			log.Error("failed to update record", zap.Error(err))
			continue
		}
		report.Updated++
	}

	for rec, changed := range enrichChanged {
		if rec.ID == 0 || len(changed) == 0 {
			// Fresh records already carried their enrichment into the
			// bulk insert.
			continue
		}
		if err := o.store.UpdateFields(ctx, table, rec, changed); err != nil {
			log.Error("failed to save enrichment", zap.Error(err))
			continue
		}
		report.Updated++
	}

	for i := range res.Conflicts {
		conflict := res.Conflicts[i]
		if err := o.store.SaveConflict(ctx, &conflict); err != nil {
			log.Error("failed to queue conflict", zap.Error(err))
			continue
		}
		report.Conflicts++
		o.sink.Enqueue(ctx, notify.LevelError, "identity collision",
			fmt.Sprintf("%s: %s claimed by %s", table.Name, conflict.IdentityURL, conflict.RemoteID))
	}
	return nil
}

// pushChanged diffs every linked record against the remote row pulled this
// cycle and batch-updates only the fields that differ, so local edits and
// enrichment results flow back without rewriting whole rows.
func (o *Orchestrator) pushChanged(ctx context.Context, log *zap.Logger, table *models.Table, batch []remote.Record, report *Report) {
	remoteByID := make(map[string]map[string]any, len(batch))
	for _, row := range batch {
		if row.ID != "" {
			remoteByID[row.ID] = row.Fields
		}
	}
	if len(remoteByID) == 0 {
		return
	}

	// Reload so the diff sees the values this cycle just wrote.
	snap, err := o.store.LoadSnapshot(ctx, table)
	if err != nil {
		log.Error("failed to reload snapshot for push", zap.Error(err))
		return
	}

	var updates []remote.Record
	for id, rec := range snap.ByRemoteID {
		remoteFields, ok := remoteByID[id]
		if !ok {
			continue
		}
		diff := fieldmap.DiffRemote(table, o.encodeForPush(ctx, table, rec), remoteFields)
		if len(diff) == 0 {
			continue
		}
		updates = append(updates, remote.Record{ID: id, Fields: diff})
	}
	if len(updates) == 0 {
		return
	}

	err = remote.WithRetry(ctx, log, o.retries, o.backoff, "batch update", func() error {
		return o.remote.BatchUpdate(ctx, table.Name, updates)
	})
	if err != nil {
		report.PushFailed += len(updates)
		log.Error("changed-field push failed", zap.Error(err))
		o.sink.Enqueue(ctx, notify.LevelError, "remote push failed",
			fmt.Sprintf("%s: %v", table.Name, err))
		return
	}
	report.Pushed += len(updates)
}

// pushPending creates remote rows for locally-discovered records and
// attaches the returned remote ids.
func (o *Orchestrator) pushPending(ctx context.Context, log *zap.Logger, table *models.Table, report *Report) {
	pending, err := o.store.PendingPush(ctx, table)
	if err != nil {
		log.Error("failed to load push candidates", zap.Error(err))
		return
	}
	o.pushCreate(ctx, log, table, pending, report)
}

// pushPrivate mirrors access-restricted records to the remote table: unknown
// ones are created, already-linked ones get their owner cell refreshed so
// responsibility assignments survive the posting going private.
func (o *Orchestrator) pushPrivate(ctx context.Context, log *zap.Logger, table *models.Table, report *Report) {
	// Owner refresh runs before the creates so freshly mirrored rows are
	// not updated again in the same cycle.
	o.pushPrivateOwners(ctx, log, table, report)

	pending, err := o.store.PrivatePending(ctx, table)
	if err != nil {
		log.Error("failed to load private candidates", zap.Error(err))
		return
	}
	o.pushCreate(ctx, log, table, pending, report)
}

func (o *Orchestrator) pushPrivateOwners(ctx context.Context, log *zap.Logger, table *models.Table, report *Report) {
	if table.OwnerField == "" || o.identity == nil {
		return
	}
	linked, err := o.store.PrivateLinked(ctx, table)
	if err != nil {
		log.Error("failed to load linked private records", zap.Error(err))
		return
	}

	updates := make([]remote.Record, 0, len(linked))
	for _, rec := range linked {
		name := o.ownerName(table, rec)
		if name == "" {
			continue
		}
		id, ok, err := o.identity.Lookup(ctx, name)
		if err != nil || !ok {
			continue
		}
		updates = append(updates, remote.Record{
			ID:     *rec.RemoteID,
			Fields: map[string]any{table.OwnerField: map[string]any{"id": id}},
		})
	}
	if len(updates) == 0 {
		return
	}

	err = remote.WithRetry(ctx, log, o.retries, o.backoff, "batch update", func() error {
		return o.remote.BatchUpdate(ctx, table.Name, updates)
	})
	if err != nil {
		log.Error("private owner push failed", zap.Error(err))
		o.sink.Enqueue(ctx, notify.LevelError, "remote push failed",
			fmt.Sprintf("%s: %v", table.Name, err))
		return
	}
	report.Pushed += len(updates)
}

// pushCreate encodes records for the remote table, creates them in batches
// and attaches the returned remote ids.
func (o *Orchestrator) pushCreate(ctx context.Context, log *zap.Logger, table *models.Table, pending []*models.Record, report *Report) {
	if len(pending) == 0 {
		return
	}

	outbound := make([]remote.Record, 0, len(pending))
	for _, rec := range pending {
		outbound = append(outbound, remote.Record{Fields: o.encodeForPush(ctx, table, rec)})
	}

	var created []remote.Record
	err := remote.WithRetry(ctx, log, o.retries, o.backoff, "batch create", func() error {
		var err error
		created, err = o.remote.BatchCreate(ctx, table.Name, outbound)
		return err
	})
	if err != nil {
		report.PushFailed += len(pending)
		log.Error("push failed", zap.Error(err))
		o.sink.Enqueue(ctx, notify.LevelError, "remote push failed",
			fmt.Sprintf("%s: %v", table.Name, err))
		return
	}

	for i, rec := range pending {
		if i >= len(created) || created[i].ID == "" {
			report.PushFailed++
			continue
		}
		id := created[i].ID
		rec.RemoteID = &id
		if err := o.store.UpdateFields(ctx, table, rec, map[string]struct{}{"remote_id": {}}); err != nil {
			log.Error("failed to attach remote id", zap.Error(err))
			report.PushFailed++
			continue
		}
		report.Pushed++
	}
}

// encodeForPush renders a record as remote fields: identity url always, the
// mapped fields minus the deny list, and the owner cell rebuilt as an {id}
// reference when the identity cache knows the name.
func (o *Orchestrator) encodeForPush(ctx context.Context, table *models.Table, rec *models.Record) map[string]any {
	fields := fieldmap.Encode(table, rec.Fields)
	for remoteField, target := range table.Mapping {
		if target.Field != "" && table.PushDenied(target.Field) {
			delete(fields, remoteField)
			continue
		}
		for _, local := range target.Nested {
			if table.PushDenied(local) {
				delete(fields, remoteField)
			}
		}
	}
	fields[table.IdentityField] = rec.IdentityURL

	if table.OwnerField != "" {
		// Compound owner cells are written by id, never by display name.
		delete(fields, table.OwnerField)
		if name := o.ownerName(table, rec); name != "" && o.identity != nil {
			if id, ok, err := o.identity.Lookup(ctx, name); err == nil && ok {
				fields[table.OwnerField] = map[string]any{"id": id}
			}
		}
	}
	return fields
}

func (o *Orchestrator) ownerName(table *models.Table, rec *models.Record) string {
	target, ok := table.Mapping[table.OwnerField]
	if !ok || target.Nested == nil {
		return ""
	}
	local, ok := target.Nested["name"]
	if !ok {
		return ""
	}
	v, _ := rec.Get(local)
	s, _ := v.(string)
	return s
}

// RefreshStale re-fetches the details of enriched records that have not been
// touched within the staleness window.
func (o *Orchestrator) RefreshStale(ctx context.Context, table *models.Table) (int, error) {
	if !table.EnrichmentEnabled() || o.enricher == nil {
		return 0, nil
	}
	staleAfter := time.Duration(o.cfg.StaleAfterDays) * 24 * time.Hour
	stale, err := o.store.StaleCandidates(ctx, table, staleAfter, o.cfg.StaleBatchSize)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	log := o.log.With(zap.String("table", table.Name))
	report := &Report{Table: table.Name}
	changedByRec := o.runEnrichment(ctx, log, table, stale, report)

	refreshed := 0
	var untouched []uint
	for _, rec := range stale {
		changed, ok := changedByRec[rec]
		if !ok {
			continue
		}
		if len(changed) == 0 {
			untouched = append(untouched, rec.ID)
			refreshed++
			continue
		}
		if err := o.store.UpdateFields(ctx, table, rec, changed); err != nil {
			log.Error("failed to save refresh", zap.Error(err))
			continue
		}
		refreshed++
	}
	if err := o.store.TouchModified(ctx, table, untouched); err != nil {
		log.Error("failed to touch refreshed records", zap.Error(err))
	}
	log.Info("stale refresh finished", zap.Int("refreshed", refreshed))
	return refreshed, nil
}

// archiveReport uploads the cycle report when archiving is configured.
func (o *Orchestrator) archiveReport(ctx context.Context, log *zap.Logger, table *models.Table, report *Report) {
	if !o.cfg.ArchiveReports || o.archive == nil {
		return
	}
	path, err := o.archive.StoreReport(ctx, table.LocalTable, report)
	if err != nil {
		log.Error("failed to archive cycle report", zap.Error(err))
		return
	}
	log.Debug("cycle report archived", zap.String("path", path))
}
