package sourcecache

import "context"

// ItemsStore is the id-to-entity persistence contract a LocalSource glues together
// with a RequestCacheStore. Implementations may be synchronous (in-memory) or
// asynchronous (durable); every method takes a context so the core can program
// against one uniform, potentially-suspending interface regardless of backend.
type ItemsStore[T any] interface {
	// Clear removes every entity.
	Clear(ctx context.Context) error

	// Get returns the entity for id, or None if absent.
	Get(ctx context.Context, id string) (Option[T], error)

	// GetMany returns every entity found among ids, keyed by id. Ids not found are
	// simply absent from the result map.
	GetMany(ctx context.Context, ids []string) (map[string]T, error)

	// Put inserts or overwrites the entity at id. When overwrite is false, Put is a
	// no-op if id is already present.
	Put(ctx context.Context, id string, item T, overwrite bool) error

	// PutMany is the bulk form of Put.
	PutMany(ctx context.Context, items map[string]T, overwrite bool) error

	// DeleteMany removes every entity in ids. Ids not present are ignored.
	DeleteMany(ctx context.Context, ids []string) error

	// All returns every entity currently held, keyed by id. Used to satisfy the
	// AllLocal request type, which bypasses the request cache entirely.
	All(ctx context.Context) (map[string]T, error)
}

// RequestCacheStore is the request-fingerprint-to-id-set persistence contract. It
// holds two disjoint maps: an unpaginated one keyed directly by cache key, and a
// paginated one keyed by (outer, inner) where outer groups every page of one logical
// request. The empty set is never stored: an absent key means "never observed," not
// "observed empty."
type RequestCacheStore interface {
	// Set records the id set for an unpaginated cache key.
	Set(ctx context.Context, key string, ids []string) error
	// Get returns the id set for an unpaginated cache key, or None if never observed.
	Get(ctx context.Context, key string) (Option[[]string], error)
	// Clear removes the unpaginated entry at key.
	Clear(ctx context.Context, key string) error
	// Keys returns every unpaginated cache key currently stored.
	Keys(ctx context.Context) ([]string, error)

	// SetPaginated records the id set for one page (inner) of a logical request (outer).
	SetPaginated(ctx context.Context, outer, inner string, ids []string) error
	// GetPaginated returns the id set for one page, or None if never observed.
	GetPaginated(ctx context.Context, outer, inner string) (Option[[]string], error)
	// ClearPaginated removes every page of the logical request grouped under outer.
	ClearPaginated(ctx context.Context, outer string) error
	// ClearPaginatedPage removes a single page without disturbing its sibling pages.
	// Needed so the per-id invalidation sweep on delete/delete_ids can drop one
	// emptied page of a multi-page group while leaving other pages intact —
	// ClearPaginated alone only removes an entire group at once.
	ClearPaginatedPage(ctx context.Context, outer, inner string) error
	// OuterKeys returns every outer (logical-request) key currently stored.
	OuterKeys(ctx context.Context) ([]string, error)
	// InnerKeys returns every inner (page) key stored under outer.
	InnerKeys(ctx context.Context, outer string) ([]string, error)

	// ClearAll removes every entry from both maps.
	ClearAll(ctx context.Context) error
}
