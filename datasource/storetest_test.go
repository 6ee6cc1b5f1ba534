package datasource

import (
	"context"
	"sync"

	"github.com/nodeware/go-datasource/sourcecache"
)

// memItemsStore and memRequestCacheStore are minimal, synchronous, test-only
// implementations of the two persistence contracts — a stand-in for
// internal/storeinfra's real backends, kept local to this package's own tests rather
// than imported (internal/storeinfra imports datasource, so doing otherwise would
// create an import cycle for the in-package test binary).

type memItemsStore[T any] struct {
	mu    sync.Mutex
	items map[string]T
}

func newMemItemsStore[T any]() *memItemsStore[T] {
	return &memItemsStore[T]{items: map[string]T{}}
}

func (m *memItemsStore[T]) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = map[string]T{}
	return nil
}

func (m *memItemsStore[T]) Get(ctx context.Context, id string) (sourcecache.Option[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.items[id]; ok {
		return sourcecache.Some(v), nil
	}
	return sourcecache.None[T](), nil
}

func (m *memItemsStore[T]) GetMany(ctx context.Context, ids []string) (map[string]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]T{}
	for _, id := range ids {
		if v, ok := m.items[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (m *memItemsStore[T]) Put(ctx context.Context, id string, item T, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !overwrite {
		if _, exists := m.items[id]; exists {
			return nil
		}
	}
	m.items[id] = item
	return nil
}

func (m *memItemsStore[T]) PutMany(ctx context.Context, items map[string]T, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, item := range items {
		if !overwrite {
			if _, exists := m.items[id]; exists {
				continue
			}
		}
		m.items[id] = item
	}
	return nil
}

func (m *memItemsStore[T]) DeleteMany(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.items, id)
	}
	return nil
}

func (m *memItemsStore[T]) All(ctx context.Context) (map[string]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]T, len(m.items))
	for k, v := range m.items {
		out[k] = v
	}
	return out, nil
}

func (m *memItemsStore[T]) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[id]
	return ok
}

type memRequestCacheStore struct {
	mu        sync.Mutex
	unpag     map[string][]string
	paginated map[string]map[string][]string
}

func newMemRequestCacheStore() *memRequestCacheStore {
	return &memRequestCacheStore{
		unpag:     map[string][]string{},
		paginated: map[string]map[string][]string{},
	}
}

func (m *memRequestCacheStore) Set(ctx context.Context, key string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unpag[key] = append([]string(nil), ids...)
	return nil
}

func (m *memRequestCacheStore) Get(ctx context.Context, key string) (sourcecache.Option[[]string], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.unpag[key]; ok {
		return sourcecache.Some(append([]string(nil), v...)), nil
	}
	return sourcecache.None[[]string](), nil
}

func (m *memRequestCacheStore) Clear(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.unpag, key)
	return nil
}

func (m *memRequestCacheStore) Keys(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.unpag))
	for k := range m.unpag {
		out = append(out, k)
	}
	return out, nil
}

func (m *memRequestCacheStore) SetPaginated(ctx context.Context, outer, inner string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	group, ok := m.paginated[outer]
	if !ok {
		group = map[string][]string{}
		m.paginated[outer] = group
	}
	group[inner] = append([]string(nil), ids...)
	return nil
}

func (m *memRequestCacheStore) GetPaginated(ctx context.Context, outer, inner string) (sourcecache.Option[[]string], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	group, ok := m.paginated[outer]
	if !ok {
		return sourcecache.None[[]string](), nil
	}
	v, ok := group[inner]
	if !ok {
		return sourcecache.None[[]string](), nil
	}
	return sourcecache.Some(append([]string(nil), v...)), nil
}

func (m *memRequestCacheStore) ClearPaginated(ctx context.Context, outer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.paginated, outer)
	return nil
}

func (m *memRequestCacheStore) ClearPaginatedPage(ctx context.Context, outer, inner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	group, ok := m.paginated[outer]
	if !ok {
		return nil
	}
	delete(group, inner)
	if len(group) == 0 {
		delete(m.paginated, outer)
	}
	return nil
}

func (m *memRequestCacheStore) OuterKeys(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.paginated))
	for k := range m.paginated {
		out = append(out, k)
	}
	return out, nil
}

func (m *memRequestCacheStore) InnerKeys(ctx context.Context, outer string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	group, ok := m.paginated[outer]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(group))
	for k := range group {
		out = append(out, k)
	}
	return out, nil
}

func (m *memRequestCacheStore) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unpag = map[string][]string{}
	m.paginated = map[string]map[string][]string{}
	return nil
}

var (
	_ sourcecache.ItemsStore[int]   = (*memItemsStore[int])(nil)
	_ sourcecache.RequestCacheStore = (*memRequestCacheStore)(nil)
)

// fakeEntity is the shared test entity for datasource's tests.
type fakeEntity struct {
	ID  string
	Msg string
}

func fakeBindings() sourcecache.Bindings[fakeEntity] {
	return sourcecache.Bindings[fakeEntity]{
		IDOf: func(e fakeEntity) (string, bool) {
			if e.ID == "" {
				return "", false
			}
			return e.ID, true
		},
		FromWire: func(data []byte) (fakeEntity, error) { return fakeEntity{}, nil },
		ToWire:   func(e fakeEntity) ([]byte, error) { return nil, nil },
		DetailURL: func(id string) string { return "/fakes/" + id },
		ListURL:   func() string { return "/fakes" },
	}
}
