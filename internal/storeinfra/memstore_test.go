package storeinfra

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestMemItemsStorePutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemItemsStore[string]()

	if err := s.Put(ctx, "a", "alpha", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opt, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := opt.Get()
	if !ok || v != "alpha" {
		t.Fatalf("expected (alpha, true), got (%v, %v)", v, ok)
	}

	opt, err = s.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := opt.Get(); ok {
		t.Fatalf("expected miss for an absent id")
	}
}

func TestMemItemsStorePutNoOverwrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemItemsStore[string]()

	if err := s.Put(ctx, "a", "first", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Put(ctx, "a", "second", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opt, _ := s.Get(ctx, "a")
	v, _ := opt.Get()
	if v != "first" {
		t.Fatalf("expected overwrite=false to preserve the original value, got %q", v)
	}

	if err := s.Put(ctx, "a", "second", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opt, _ = s.Get(ctx, "a")
	v, _ = opt.Get()
	if v != "second" {
		t.Fatalf("expected overwrite=true to replace the value, got %q", v)
	}
}

func TestMemItemsStoreGetManyAndDeleteMany(t *testing.T) {
	ctx := context.Background()
	s := NewMemItemsStore[int]()
	if err := s.PutMany(ctx, map[string]int{"a": 1, "b": 2, "c": 3}, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetMany(ctx, []string{"a", "b", "z"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got["a"] != 1 || got["b"] != 2 {
		t.Fatalf("unexpected result: %+v", got)
	}

	if err := s.DeleteMany(ctx, []string{"a", "z"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 || all["b"] != 2 || all["c"] != 3 {
		t.Fatalf("unexpected remaining entries: %+v", all)
	}
}

func TestMemItemsStoreClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemItemsStore[int]()
	if err := s.PutMany(ctx, map[string]int{"a": 1, "b": 2}, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all, _ := s.All(ctx)
	if len(all) != 0 {
		t.Fatalf("expected empty store after Clear, got %+v", all)
	}
}

// Stress many keys across the shard boundary to make sure hashing fans entries out
// across shards without losing any of them.
func TestMemItemsStoreShardsCoverAllKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemItemsStore[int]()
	const n = 500
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("id-%d", i)
		if err := s.Put(ctx, id, i, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != n {
		t.Fatalf("expected %d entries, got %d", n, len(all))
	}
}

func TestMemItemsStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemItemsStore[int]()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("id-%d", i%10)
			_ = s.Put(ctx, id, i, true)
			_, _ = s.Get(ctx, id)
		}(i)
	}
	wg.Wait()
}

func TestMemRequestCacheStoreUnpaginated(t *testing.T) {
	ctx := context.Background()
	s := NewMemRequestCacheStore()

	opt, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := opt.Get(); ok {
		t.Fatalf("expected a never-observed key to be None")
	}

	if err := s.Set(ctx, "k1", []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opt, _ = s.Get(ctx, "k1")
	ids, ok := opt.Get()
	if !ok || len(ids) != 2 {
		t.Fatalf("unexpected result: %v, %v", ids, ok)
	}

	keys, err := s.Keys(ctx)
	if err != nil || len(keys) != 1 || keys[0] != "k1" {
		t.Fatalf("unexpected keys: %v, %v", keys, err)
	}

	if err := s.Clear(ctx, "k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opt, _ = s.Get(ctx, "k1")
	if _, ok := opt.Get(); ok {
		t.Fatalf("expected k1 to be gone after Clear")
	}
}

func TestMemRequestCacheStorePaginated(t *testing.T) {
	ctx := context.Background()
	s := NewMemRequestCacheStore()

	if err := s.SetPaginated(ctx, "outer", "page1", []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetPaginated(ctx, "outer", "page2", []string{"c"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opt, err := s.GetPaginated(ctx, "outer", "page1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, ok := opt.Get()
	if !ok || len(ids) != 2 {
		t.Fatalf("unexpected page1: %v, %v", ids, ok)
	}

	inner, err := s.InnerKeys(ctx, "outer")
	if err != nil || len(inner) != 2 {
		t.Fatalf("unexpected inner keys: %v, %v", inner, err)
	}

	if err := s.ClearPaginatedPage(ctx, "outer", "page1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opt, _ = s.GetPaginated(ctx, "outer", "page1")
	if _, ok := opt.Get(); ok {
		t.Fatalf("expected page1 to be gone")
	}
	opt, _ = s.GetPaginated(ctx, "outer", "page2")
	if _, ok := opt.Get(); !ok {
		t.Fatalf("expected page2 to survive clearing page1")
	}

	outer, err := s.OuterKeys(ctx)
	if err != nil || len(outer) != 1 || outer[0] != "outer" {
		t.Fatalf("unexpected outer keys: %v, %v", outer, err)
	}

	if err := s.ClearPaginatedPage(ctx, "outer", "page2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outer, _ = s.OuterKeys(ctx)
	if len(outer) != 0 {
		t.Fatalf("expected outer group to be dropped once its last page clears, got %v", outer)
	}
}

func TestMemRequestCacheStoreClearPaginatedDropsWholeGroup(t *testing.T) {
	ctx := context.Background()
	s := NewMemRequestCacheStore()
	_ = s.SetPaginated(ctx, "outer", "page1", []string{"a"})
	_ = s.SetPaginated(ctx, "outer", "page2", []string{"b"})

	if err := s.ClearPaginated(ctx, "outer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outer, _ := s.OuterKeys(ctx)
	if len(outer) != 0 {
		t.Fatalf("expected ClearPaginated to drop the entire group, got %v", outer)
	}
}

func TestMemRequestCacheStoreClearAll(t *testing.T) {
	ctx := context.Background()
	s := NewMemRequestCacheStore()
	_ = s.Set(ctx, "k1", []string{"a"})
	_ = s.SetPaginated(ctx, "outer", "page1", []string{"b"})

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keys, _ := s.Keys(ctx)
	outer, _ := s.OuterKeys(ctx)
	if len(keys) != 0 || len(outer) != 0 {
		t.Fatalf("expected both maps empty after ClearAll, got keys=%v outer=%v", keys, outer)
	}
}
