package webhooks

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"leadsync/core/cache"
	"leadsync/core/remote"
)

// ErrNoSchema is returned when no schema snapshot exists for a table.
// Payload processing cannot translate field ids without one, so the caller
// must abort rather than guess.
var ErrNoSchema = errors.New("webhooks: no schema snapshot for table")

const schemaKeyPrefix = "schema:"

// SchemaCache holds per-table schema snapshots in the shared key-value
// store. Concurrent refreshes collapse into one remote call.
type SchemaCache struct {
	store  *cache.Store
	remote remote.Client
	group  singleflight.Group
}

// NewSchemaCache creates a schema cache.
func NewSchemaCache(store *cache.Store, rc remote.Client) *SchemaCache {
	return &SchemaCache{store: store, remote: rc}
}

// Get returns the cached schema snapshot of one table.
func (sc *SchemaCache) Get(ctx context.Context, tableName string) (*remote.SchemaTable, error) {
	var snap remote.SchemaTable
	found, err := sc.store.GetJSON(ctx, schemaKeyPrefix+tableName, &snap)
	if err != nil {
		return nil, fmt.Errorf("read schema snapshot: %w", err)
	}
	if !found {
		return nil, ErrNoSchema
	}
	return &snap, nil
}

// Refresh pulls the base schema and rewrites every table snapshot.
func (sc *SchemaCache) Refresh(ctx context.Context) error {
	_, err, _ := sc.group.Do("refresh", func() (any, error) {
		schema, err := sc.remote.BaseSchema(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch base schema: %w", err)
		}
		for i := range schema.Tables {
			table := schema.Tables[i]
			if err := sc.store.SetJSON(ctx, schemaKeyPrefix+table.Name, table, 0); err != nil {
				return nil, fmt.Errorf("store schema snapshot %s: %w", table.Name, err)
			}
		}
		return nil, nil
	})
	return err
}

// FieldNames builds the field-id to field-name translation of a snapshot.
func FieldNames(snap *remote.SchemaTable) map[string]string {
	names := make(map[string]string, len(snap.Fields))
	for _, f := range snap.Fields {
		names[f.ID] = f.Name
	}
	return names
}
