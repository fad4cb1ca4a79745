package resolve

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"leadsync/core/remote"
	"leadsync/core/utils"
	"leadsync/feature/leads/fieldmap"
	"leadsync/feature/leads/identity"
	"leadsync/feature/leads/models"
)

// Update pairs a matched local record with the set of fields the incoming
// remote row actually changed.
type Update struct {
	Record  *models.Record
	Changed map[string]struct{}
}

// Result is the outcome of classifying one pulled batch against the local
// snapshot of a table.
type Result struct {
	// Creates are remote rows with no local counterpart; they become new
	// local records.
	Creates []*models.Record
	// Updates are matched records whose fields changed.
	Updates []Update
	// Detached are local records whose remote id was cleared because the
	// identity behind it moved to a different url.
	Detached []*models.Record
	// NeedsEnrichment are records (new or matched) still awaiting the
	// detail fetch.
	NeedsEnrichment []*models.Record
	// Conflicts are same-url-different-remote-id collisions queued for
	// manual resolution.
	Conflicts []models.Conflict
	// Dropped counts remote rows discarded as in-batch duplicates or for
	// missing identity.
	Dropped int
}

// Resolver classifies pulled remote batches against local snapshots.
type Resolver struct {
	log      *zap.Logger
	identity *identity.Cache
}

// New creates a resolver. The identity cache may be nil when owner capture
// is not wanted, such as in classification tests.
func New(log *zap.Logger, ids *identity.Cache) *Resolver {
	return &Resolver{log: log, identity: ids}
}

// Classify walks the pulled batch strictly in order and sorts each remote
// row into exactly one class. Earlier rows win ties: an in-batch duplicate
// of an already-seen remote id or identity url is dropped with a warning,
// never merged.
func (r *Resolver) Classify(ctx context.Context, table *models.Table, snap *models.Snapshot, batch []remote.Record) *Result {
	res := &Result{}
	seenIDs := make(map[string]struct{}, len(batch))
	seenURLs := make(map[string]struct{}, len(batch))

	for _, row := range batch {
		url := identityURL(table, row)
		if url == "" {
			r.log.Warn("remote row has no identity url, dropping",
				zap.String("table", table.Name),
				zap.String("remote_id", row.ID))
			res.Dropped++
			continue
		}
		if _, dup := seenIDs[row.ID]; dup {
			r.log.Warn("duplicate remote id in batch, dropping",
				zap.String("table", table.Name),
				zap.String("remote_id", row.ID),
				zap.String("url", url))
			res.Dropped++
			continue
		}
		if _, dup := seenURLs[url]; dup {
			r.log.Warn("duplicate identity url in batch, dropping",
				zap.String("table", table.Name),
				zap.String("remote_id", row.ID),
				zap.String("url", url))
			res.Dropped++
			continue
		}
		seenIDs[row.ID] = struct{}{}
		seenURLs[url] = struct{}{}

		r.captureOwner(ctx, table, row)
		incoming := fieldmap.Decode(table.Mapping, row.Fields)

		if local, ok := snap.ByRemoteID[row.ID]; ok {
			if local.IdentityURL == url {
				r.applyMatched(table, res, local, incoming)
				continue
			}
			// The remote row behind this id now points at a different
			// url: the identity moved. Detach the stale local record
			// and take the row in as new.
			r.log.Warn("remote identity moved, detaching local record",
				zap.String("table", table.Name),
				zap.String("remote_id", row.ID),
				zap.String("old_url", local.IdentityURL),
				zap.String("new_url", url))
			local.RemoteID = nil
			res.Detached = append(res.Detached, local)
			delete(snap.ByRemoteID, row.ID)
			r.create(table, res, row, url, incoming)
			continue
		}

		if local, ok := snap.ByIdentityURL[url]; ok {
			if local.RemoteID == nil {
				// The url-holder has no competing remote binding, so
				// re-linking is unambiguous. This is how locally
				// discovered records adopt the id the remote side
				// assigned them when the attach after a push was lost.
				id := row.ID
				local.RemoteID = &id
				snap.ByRemoteID[id] = local
				changed := map[string]struct{}{"remote_id": {}}
				if table.EnrichmentEnabled() && !local.Enriched && !local.Invalid {
					res.NeedsEnrichment = append(res.NeedsEnrichment, local)
				} else if more, _ := fieldmap.ApplyChanges(table.Registry, local, incoming); len(more) > 0 {
					for name := range more {
						changed[name] = struct{}{}
					}
				}
				res.Updates = append(res.Updates, Update{Record: local, Changed: changed})
				continue
			}
			// Same url, different non-null remote id on both sides.
			// Ambiguous identity is never silently resolved.
			r.log.Error("identity collision, queuing conflict",
				zap.String("table", table.Name),
				zap.String("url", url),
				zap.String("local_remote_id", *local.RemoteID),
				zap.String("incoming_remote_id", row.ID))
			res.Conflicts = append(res.Conflicts, buildConflict(table, local, row, url))
			continue
		}

		r.create(table, res, row, url, incoming)
	}
	return res
}

// applyMatched folds incoming fields into a matched record. Records still
// awaiting enrichment are only scheduled for it; enriched records get the
// minimal change set applied.
func (r *Resolver) applyMatched(table *models.Table, res *Result, local *models.Record, incoming models.FieldValues) {
	if table.EnrichmentEnabled() && !local.Enriched && !local.Invalid {
		res.NeedsEnrichment = append(res.NeedsEnrichment, local)
		return
	}
	changed, any := fieldmap.ApplyChanges(table.Registry, local, incoming)
	if any {
		res.Updates = append(res.Updates, Update{Record: local, Changed: changed})
	}
}

func (r *Resolver) create(table *models.Table, res *Result, row remote.Record, url string, incoming models.FieldValues) {
	id := row.ID
	rec := &models.Record{RemoteID: &id, IdentityURL: url}
	fieldmap.ApplyChanges(table.Registry, rec, incoming)
	res.Creates = append(res.Creates, rec)
	if table.EnrichmentEnabled() {
		res.NeedsEnrichment = append(res.NeedsEnrichment, rec)
	}
}

// captureOwner records the {name, id} association from a compound owner cell
// into the identity cache.
func (r *Resolver) captureOwner(ctx context.Context, table *models.Table, row remote.Record) {
	if r.identity == nil || table.OwnerField == "" {
		return
	}
	compound, ok := row.Fields[table.OwnerField].(map[string]any)
	if !ok {
		return
	}
	name := utils.ToString(compound["name"])
	id := utils.ToString(compound["id"])
	if name == "" || id == "" || compound["name"] == nil || compound["id"] == nil {
		return
	}
	if err := r.identity.Put(ctx, name, id); err != nil {
		r.log.Warn("failed to cache owner identity",
			zap.String("name", name), zap.Error(err))
	}
}

func identityURL(table *models.Table, row remote.Record) string {
	raw, ok := row.Fields[table.IdentityField]
	if !ok || raw == nil {
		return ""
	}
	s, _ := raw.(string)
	return s
}

func buildConflict(table *models.Table, local *models.Record, row remote.Record, url string) models.Conflict {
	oldSnap, _ := json.Marshal(local.Snapshot())
	newSnap, _ := json.Marshal(row.Fields)
	return models.Conflict{
		TableRef:    table.Name,
		IdentityURL: url,
		RemoteID:    row.ID,
		OldSnapshot: string(oldSnap),
		NewSnapshot: string(newSnap),
	}
}
