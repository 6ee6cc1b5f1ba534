// Package storeinfra provides the persistence engines LocalSource glues together: an
// in-memory ItemsStore/RequestCacheStore pair, a read-through accelerator sitting in
// front of a remote.Source, and a durable SQL-backed pair.
package storeinfra

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nodeware/go-datasource/sourcecache"
)

const shardCount = 16

// shardedMap is a small fixed-shard concurrent map: xxhash picks the shard, each shard
// is an xsync.MapOf. This is the same sharding idea sturdyc itself uses internally
// (see readthrough.go's lineage), applied directly here because ItemsStore and
// RequestCacheStore need raw get/set/delete primitives that sturdyc's
// GetOrFetch-centric API doesn't expose.
type shardedMap[V any] struct {
	shards [shardCount]*xsync.MapOf[string, V]
}

func newShardedMap[V any]() *shardedMap[V] {
	sm := &shardedMap[V]{}
	for i := range sm.shards {
		sm.shards[i] = xsync.NewMapOf[string, V]()
	}
	return sm
}

func (sm *shardedMap[V]) shard(key string) *xsync.MapOf[string, V] {
	return sm.shards[xxhash.Sum64String(key)%shardCount]
}

func (sm *shardedMap[V]) Load(key string) (V, bool) { return sm.shard(key).Load(key) }
func (sm *shardedMap[V]) Store(key string, v V)     { sm.shard(key).Store(key, v) }
func (sm *shardedMap[V]) Delete(key string)         { sm.shard(key).Delete(key) }

func (sm *shardedMap[V]) Range(f func(key string, v V) bool) {
	for _, shard := range sm.shards {
		keepGoing := true
		shard.Range(func(k string, v V) bool {
			if !f(k, v) {
				keepGoing = false
				return false
			}
			return true
		})
		if !keepGoing {
			return
		}
	}
}

func (sm *shardedMap[V]) Clear() {
	for _, shard := range sm.shards {
		var keys []string
		shard.Range(func(k string, _ V) bool { keys = append(keys, k); return true })
		for _, k := range keys {
			shard.Delete(k)
		}
	}
}

// MemItemsStore is an in-memory sourcecache.ItemsStore[T].
type MemItemsStore[T any] struct {
	m *shardedMap[T]
}

// NewMemItemsStore builds an empty in-memory items store.
func NewMemItemsStore[T any]() *MemItemsStore[T] {
	return &MemItemsStore[T]{m: newShardedMap[T]()}
}

func (s *MemItemsStore[T]) Clear(ctx context.Context) error {
	s.m.Clear()
	return nil
}

func (s *MemItemsStore[T]) Get(ctx context.Context, id string) (sourcecache.Option[T], error) {
	if v, ok := s.m.Load(id); ok {
		return sourcecache.Some(v), nil
	}
	return sourcecache.None[T](), nil
}

func (s *MemItemsStore[T]) GetMany(ctx context.Context, ids []string) (map[string]T, error) {
	out := make(map[string]T, len(ids))
	for _, id := range ids {
		if v, ok := s.m.Load(id); ok {
			out[id] = v
		}
	}
	return out, nil
}

func (s *MemItemsStore[T]) Put(ctx context.Context, id string, item T, overwrite bool) error {
	if !overwrite {
		if _, exists := s.m.Load(id); exists {
			return nil
		}
	}
	s.m.Store(id, item)
	return nil
}

func (s *MemItemsStore[T]) PutMany(ctx context.Context, items map[string]T, overwrite bool) error {
	for id, item := range items {
		if err := s.Put(ctx, id, item, overwrite); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemItemsStore[T]) DeleteMany(ctx context.Context, ids []string) error {
	for _, id := range ids {
		s.m.Delete(id)
	}
	return nil
}

func (s *MemItemsStore[T]) All(ctx context.Context) (map[string]T, error) {
	out := map[string]T{}
	s.m.Range(func(k string, v T) bool {
		out[k] = v
		return true
	})
	return out, nil
}

var _ sourcecache.ItemsStore[int] = (*MemItemsStore[int])(nil)

// MemRequestCacheStore is an in-memory sourcecache.RequestCacheStore. The unpaginated
// half uses the same sharded map as MemItemsStore; the paginated half needs its inner
// group enumerable and atomically mutated as a unit (OuterKeys/InnerKeys/
// ClearPaginatedPage), so it's a single mutex-guarded nested map instead.
type MemRequestCacheStore struct {
	unpag *shardedMap[[]string]

	pagMu sync.Mutex
	pag   map[string]map[string][]string
}

// NewMemRequestCacheStore builds an empty in-memory request cache store.
func NewMemRequestCacheStore() *MemRequestCacheStore {
	return &MemRequestCacheStore{
		unpag: newShardedMap[[]string](),
		pag:   map[string]map[string][]string{},
	}
}

func (s *MemRequestCacheStore) Set(ctx context.Context, key string, ids []string) error {
	s.unpag.Store(key, append([]string(nil), ids...))
	return nil
}

func (s *MemRequestCacheStore) Get(ctx context.Context, key string) (sourcecache.Option[[]string], error) {
	if v, ok := s.unpag.Load(key); ok {
		return sourcecache.Some(append([]string(nil), v...)), nil
	}
	return sourcecache.None[[]string](), nil
}

func (s *MemRequestCacheStore) Clear(ctx context.Context, key string) error {
	s.unpag.Delete(key)
	return nil
}

func (s *MemRequestCacheStore) Keys(ctx context.Context) ([]string, error) {
	var out []string
	s.unpag.Range(func(k string, _ []string) bool {
		out = append(out, k)
		return true
	})
	return out, nil
}

func (s *MemRequestCacheStore) SetPaginated(ctx context.Context, outer, inner string, ids []string) error {
	s.pagMu.Lock()
	defer s.pagMu.Unlock()
	group, ok := s.pag[outer]
	if !ok {
		group = map[string][]string{}
		s.pag[outer] = group
	}
	group[inner] = append([]string(nil), ids...)
	return nil
}

func (s *MemRequestCacheStore) GetPaginated(ctx context.Context, outer, inner string) (sourcecache.Option[[]string], error) {
	s.pagMu.Lock()
	defer s.pagMu.Unlock()
	group, ok := s.pag[outer]
	if !ok {
		return sourcecache.None[[]string](), nil
	}
	v, ok := group[inner]
	if !ok {
		return sourcecache.None[[]string](), nil
	}
	return sourcecache.Some(append([]string(nil), v...)), nil
}

func (s *MemRequestCacheStore) ClearPaginated(ctx context.Context, outer string) error {
	s.pagMu.Lock()
	defer s.pagMu.Unlock()
	delete(s.pag, outer)
	return nil
}

func (s *MemRequestCacheStore) ClearPaginatedPage(ctx context.Context, outer, inner string) error {
	s.pagMu.Lock()
	defer s.pagMu.Unlock()
	group, ok := s.pag[outer]
	if !ok {
		return nil
	}
	delete(group, inner)
	if len(group) == 0 {
		delete(s.pag, outer)
	}
	return nil
}

func (s *MemRequestCacheStore) OuterKeys(ctx context.Context) ([]string, error) {
	s.pagMu.Lock()
	defer s.pagMu.Unlock()
	out := make([]string, 0, len(s.pag))
	for k := range s.pag {
		out = append(out, k)
	}
	return out, nil
}

func (s *MemRequestCacheStore) InnerKeys(ctx context.Context, outer string) ([]string, error) {
	s.pagMu.Lock()
	defer s.pagMu.Unlock()
	group, ok := s.pag[outer]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(group))
	for k := range group {
		out = append(out, k)
	}
	return out, nil
}

func (s *MemRequestCacheStore) ClearAll(ctx context.Context) error {
	s.unpag.Clear()
	s.pagMu.Lock()
	s.pag = map[string]map[string][]string{}
	s.pagMu.Unlock()
	return nil
}

var _ sourcecache.RequestCacheStore = (*MemRequestCacheStore)(nil)
