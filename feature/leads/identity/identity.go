package identity

import (
	"context"
	"errors"
	"time"

	"leadsync/core/cache"
)

const keyPrefix = "identity:owner:"

// Cache maps user display names to their opaque remote user ids. The ids
// only ever appear inside compound owner cells pulled from the remote
// service, so every pull records them here and the push path reads them back
// to rebuild {id} owner payloads.
type Cache struct {
	store *cache.Store
	ttl   time.Duration
}

// NewCache creates an owner-identity cache over the shared key-value store.
// A zero ttl keeps entries until explicitly deleted.
func NewCache(store *cache.Store, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl}
}

// Put records a name-to-id association. First write wins; a name already
// cached keeps its original id.
func (c *Cache) Put(ctx context.Context, name, id string) error {
	if name == "" || id == "" {
		return nil
	}
	_, err := c.store.SetIfNotExists(ctx, keyPrefix+name, id, c.ttl)
	return err
}

// Lookup returns the remote user id for a display name, or false when the
// name was never observed in a pull.
func (c *Cache) Lookup(ctx context.Context, name string) (string, bool, error) {
	id, err := c.store.Get(ctx, keyPrefix+name)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return id, true, nil
}
