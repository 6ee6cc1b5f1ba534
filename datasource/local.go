package datasource

import (
	"context"
	"sync"

	"github.com/nodeware/go-datasource/sourcecache"
)

// LocalSource is the principal caching engine: it glues an ItemsStore and a
// RequestCacheStore together and enforces request-scoped caching, id generation on
// write, and deletion-invalidation across every cache entry. Operations are
// serialized with a mutex so a caller may share one LocalSource across goroutines.
type LocalSource[T any] struct {
	mu       sync.Mutex
	bindings sourcecache.Bindings[T]
	items    sourcecache.ItemsStore[T]
	cache    sourcecache.RequestCacheStore
}

// NewLocalSource builds a LocalSource over the given stores. Bindings may be left
// zero-valued and injected later by a SourceList.
func NewLocalSource[T any](items sourcecache.ItemsStore[T], cache sourcecache.RequestCacheStore) *LocalSource[T] {
	return &LocalSource[T]{items: items, cache: cache}
}

func (s *LocalSource[T]) Kind() SourceKind { return KindLocal }

func (s *LocalSource[T]) Bindings() sourcecache.Bindings[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindings
}

func (s *LocalSource[T]) SetBindings(b sourcecache.Bindings[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings = b
}

// GetByID requires an empty RequestDetails. It returns Success(None) when absent,
// Success(Some(entity)) when present, and a failure only for a non-empty
// RequestDetails (Unexpected) or an items-store read error (ServerError).
func (s *LocalSource[T]) GetByID(ctx context.Context, id string, details sourcecache.RequestDetails) sourcecache.ReadResult[T] {
	if err := details.AssertEmpty("LocalSource.GetByID"); err != nil {
		return sourcecache.Failed[sourcecache.Option[T]](err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	opt, err := s.items.Get(ctx, id)
	if err != nil {
		return sourcecache.Failed[sourcecache.Option[T]](sourcecache.Wrap(sourcecache.ServerError, "items store get failed", err))
	}
	return sourcecache.Ok(opt)
}

// GetByIDs requires an empty RequestDetails. It returns the subset found plus the
// complementary missing ids.
func (s *LocalSource[T]) GetByIDs(ctx context.Context, ids []string, details sourcecache.RequestDetails) sourcecache.ReadManyResult[T] {
	if err := details.AssertEmpty("LocalSource.GetByIDs"); err != nil {
		return sourcecache.Failed[sourcecache.ManyPayload[T]](err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return sourcecache.Failed[sourcecache.ManyPayload[T]](sourcecache.Wrap(sourcecache.ServerError, "items store get_many failed", err))
	}

	items := make([]T, 0, len(found))
	missing := make([]string, 0)
	for _, id := range ids {
		if item, ok := found[id]; ok {
			items = append(items, item)
		} else {
			missing = append(missing, id)
		}
	}
	return sourcecache.Ok(sourcecache.ManyPayload[T]{Items: items, Missing: missing})
}

// GetItems looks up the id set for details (paginated or not), then loads the
// corresponding entities. A never-observed cache key yields an empty success.
func (s *LocalSource[T]) GetItems(ctx context.Context, details sourcecache.RequestDetails) sourcecache.ReadManyResult[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if details.RequestType() == sourcecache.AllLocal {
		all, err := s.items.All(ctx)
		if err != nil {
			return sourcecache.Failed[sourcecache.ManyPayload[T]](sourcecache.Wrap(sourcecache.ServerError, "items store all failed", err))
		}
		items := make([]T, 0, len(all))
		for _, item := range all {
			items = append(items, item)
		}
		return sourcecache.Ok(sourcecache.ManyPayload[T]{Items: items})
	}

	idsOpt, err := s.lookupIDsLocked(ctx, details)
	if err != nil {
		return sourcecache.Failed[sourcecache.ManyPayload[T]](sourcecache.Wrap(sourcecache.ServerError, "request cache lookup failed", err))
	}

	ids, ok := idsOpt.Get()
	if !ok {
		return sourcecache.Ok(sourcecache.ManyPayload[T]{})
	}
	// Invariant: the empty set is never stored, so a present entry is never empty.

	found, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return sourcecache.Failed[sourcecache.ManyPayload[T]](sourcecache.Wrap(sourcecache.ServerError, "items store get_many failed", err))
	}

	items := make([]T, 0, len(ids))
	for _, id := range ids {
		if item, ok := found[id]; ok {
			items = append(items, item)
		}
	}
	return sourcecache.Ok(sourcecache.ManyPayload[T]{Items: items})
}

func (s *LocalSource[T]) lookupIDsLocked(ctx context.Context, details sourcecache.RequestDetails) (sourcecache.Option[[]string], error) {
	if details.Pagination() == nil {
		return s.cache.Get(ctx, details.CacheKey())
	}
	return s.cache.GetPaginated(ctx, details.NoPaginationCacheKey(), details.CacheKey())
}

// SetItem mints an id via CreationBindings when absent, writes the item into the
// items store honoring ShouldOverwrite, and deliberately never touches the request
// cache: a single-item write has no coherent cache-key semantics of its own.
func (s *LocalSource[T]) SetItem(ctx context.Context, item T, details sourcecache.RequestDetails) sourcecache.WriteResult[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.bindings.IDOf(item)
	if !ok {
		if !s.bindings.CanAssignID() {
			return sourcecache.Failed[T](sourcecache.NewBadRequest("item has no id and bindings cannot assign one"))
		}
		item = s.bindings.AssignID(item)
		id, ok = s.bindings.IDOf(item)
		if !ok {
			return sourcecache.Failed[T](sourcecache.NewServerError("assign_id did not produce an id"))
		}
	}

	if err := s.items.Put(ctx, id, item, details.ShouldOverwrite()); err != nil {
		return sourcecache.Failed[T](sourcecache.Wrap(sourcecache.ServerError, "items store put failed", err))
	}
	return sourcecache.Ok(item)
}

// SetItems populates the request cache at details's keys and persists every item.
// An empty items slice is how "known-empty" is expressed: it delegates to
// ClearForRequest and returns success.
func (s *LocalSource[T]) SetItems(ctx context.Context, items []T, details sourcecache.RequestDetails) sourcecache.WriteListResult {
	if len(items) == 0 {
		return s.ClearForRequest(ctx, details)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(items))
	itemsByID := make(map[string]T, len(items))
	for _, item := range items {
		id, ok := s.bindings.IDOf(item)
		if !ok {
			panic("datasource: SetItems requires every item to already have an id")
		}
		ids = append(ids, id)
		itemsByID[id] = item
	}

	var err error
	if details.Pagination() == nil {
		err = s.cache.Set(ctx, details.CacheKey(), ids)
	} else {
		err = s.cache.SetPaginated(ctx, details.NoPaginationCacheKey(), details.CacheKey(), ids)
	}
	if err != nil {
		return sourcecache.FailedList(sourcecache.Wrap(sourcecache.ServerError, "request cache set failed", err))
	}

	if err := s.items.PutMany(ctx, itemsByID, details.ShouldOverwrite()); err != nil {
		return sourcecache.FailedList(sourcecache.Wrap(sourcecache.ServerError, "items store put_many failed", err))
	}
	return sourcecache.OkList()
}

// Delete removes id from the items store and from every cache entry referencing it,
// dropping any cache entry that becomes empty as a result.
func (s *LocalSource[T]) Delete(ctx context.Context, id string, details sourcecache.RequestDetails) sourcecache.DeleteResult {
	if !details.RequestType().PermitsLocal() {
		return sourcecache.Failed[struct{}](sourcecache.NewUnexpected("LocalSource.Delete called with a request type that excludes local sources"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteIDsLocked(ctx, []string{id}); err != nil {
		return sourcecache.Failed[struct{}](err)
	}
	return sourcecache.OkList()
}

// DeleteIDs is the bulk form of Delete: the same invalidation sweep over both cache maps.
func (s *LocalSource[T]) DeleteIDs(ctx context.Context, ids []string) sourcecache.DeleteResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteIDsLocked(ctx, ids); err != nil {
		return sourcecache.Failed[struct{}](err)
	}
	return sourcecache.OkList()
}

// deleteIDsLocked assumes the caller already holds s.mu. It performs a
// snapshot-copy-mutate-rewrite pass over both cache maps so no reader ever observes a
// half-invalidated entry.
func (s *LocalSource[T]) deleteIDsLocked(ctx context.Context, ids []string) error {
	if err := s.items.DeleteMany(ctx, ids); err != nil {
		return sourcecache.Wrap(sourcecache.ServerError, "items store delete_many failed", err)
	}

	doomed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}

	keys, err := s.cache.Keys(ctx)
	if err != nil {
		return sourcecache.Wrap(sourcecache.ServerError, "request cache keys failed", err)
	}
	for _, key := range keys {
		current, err := s.cache.Get(ctx, key)
		if err != nil {
			return sourcecache.Wrap(sourcecache.ServerError, "request cache get failed", err)
		}
		set, ok := current.Get()
		if !ok {
			continue
		}
		filtered := filterOut(set, doomed)
		if len(filtered) == 0 {
			if err := s.cache.Clear(ctx, key); err != nil {
				return sourcecache.Wrap(sourcecache.ServerError, "request cache clear failed", err)
			}
		} else if len(filtered) != len(set) {
			if err := s.cache.Set(ctx, key, filtered); err != nil {
				return sourcecache.Wrap(sourcecache.ServerError, "request cache set failed", err)
			}
		}
	}

	outers, err := s.cache.OuterKeys(ctx)
	if err != nil {
		return sourcecache.Wrap(sourcecache.ServerError, "request cache outer_keys failed", err)
	}
	for _, outer := range outers {
		inners, err := s.cache.InnerKeys(ctx, outer)
		if err != nil {
			return sourcecache.Wrap(sourcecache.ServerError, "request cache inner_keys failed", err)
		}
		for _, inner := range inners {
			current, err := s.cache.GetPaginated(ctx, outer, inner)
			if err != nil {
				return sourcecache.Wrap(sourcecache.ServerError, "request cache get_paginated failed", err)
			}
			set, ok := current.Get()
			if !ok {
				continue
			}
			filtered := filterOut(set, doomed)
			if len(filtered) == 0 {
				if err := s.cache.ClearPaginatedPage(ctx, outer, inner); err != nil {
					return sourcecache.Wrap(sourcecache.ServerError, "request cache clear_paginated_page failed", err)
				}
			} else if len(filtered) != len(set) {
				if err := s.cache.SetPaginated(ctx, outer, inner, filtered); err != nil {
					return sourcecache.Wrap(sourcecache.ServerError, "request cache set_paginated failed", err)
				}
			}
		}
	}

	return nil
}

func filterOut(set []string, doomed map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for _, id := range set {
		if _, dead := doomed[id]; !dead {
			out = append(out, id)
		}
	}
	return out
}

// ClearForRequest clears the unpaginated entry at details's cache key, or the entire
// paginated group (every page of the logical request) when details carries pagination.
func (s *LocalSource[T]) ClearForRequest(ctx context.Context, details sourcecache.RequestDetails) sourcecache.DeleteResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if details.Pagination() == nil {
		err = s.cache.Clear(ctx, details.CacheKey())
	} else {
		err = s.cache.ClearPaginated(ctx, details.NoPaginationCacheKey())
	}
	if err != nil {
		return sourcecache.Failed[struct{}](sourcecache.Wrap(sourcecache.ServerError, "clear_for_request failed", err))
	}
	return sourcecache.OkList()
}

// Clear wipes the items store and every cache entry.
func (s *LocalSource[T]) Clear(ctx context.Context) sourcecache.DeleteResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.items.Clear(ctx); err != nil {
		return sourcecache.Failed[struct{}](sourcecache.Wrap(sourcecache.ServerError, "items store clear failed", err))
	}
	if err := s.cache.ClearAll(ctx); err != nil {
		return sourcecache.Failed[struct{}](sourcecache.Wrap(sourcecache.ServerError, "request cache clear_all failed", err))
	}
	return sourcecache.OkList()
}

var _ Source[any] = (*LocalSource[any])(nil)
