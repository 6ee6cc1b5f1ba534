package datasource

import (
	"context"
	"testing"

	"github.com/nodeware/go-datasource/sourcecache"
)

func newTestLocalSource() *LocalSource[fakeEntity] {
	ls := NewLocalSource[fakeEntity](newMemItemsStore[fakeEntity](), newMemRequestCacheStore())
	ls.SetBindings(fakeBindings())
	return ls
}

func TestLocalSourceGetByIDMissAndHit(t *testing.T) {
	ctx := context.Background()
	ls := newTestLocalSource()

	res := ls.GetByID(ctx, "missing", sourcecache.NewReadDetails(sourcecache.Local, sourcecache.ReadOptions{}))
	if res.IsFailure() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}
	opt, _ := res.Value()
	if !opt.IsNone() {
		t.Fatalf("expected None for a missing id")
	}

	item := fakeEntity{ID: "a", Msg: "hello"}
	wres := ls.SetItem(ctx, item, sourcecache.NewWriteDetails(sourcecache.Local, sourcecache.WriteOptions{}))
	if wres.IsFailure() {
		t.Fatalf("unexpected failure: %v", wres.Err())
	}

	res = ls.GetByID(ctx, "a", sourcecache.NewReadDetails(sourcecache.Local, sourcecache.ReadOptions{}))
	opt, _ = res.Value()
	got, ok := opt.Get()
	if !ok || got != item {
		t.Fatalf("expected %+v, got %+v (ok=%v)", item, got, ok)
	}
}

func TestLocalSourceGetByIDRejectsNonEmptyDetails(t *testing.T) {
	ctx := context.Background()
	ls := newTestLocalSource()

	filtered := sourcecache.NewReadDetails(sourcecache.Local, sourcecache.ReadOptions{Filter: stringFilterFor(t)})
	res := ls.GetByID(ctx, "a", filtered)
	if !res.IsFailure() {
		t.Fatalf("expected failure for a filtered RequestDetails")
	}
	if kind, ok := sourcecache.KindOf(res.Err()); !ok || kind != sourcecache.Unexpected {
		t.Fatalf("expected Unexpected kind, got %v", kind)
	}
}

// stringFilterFor avoids a second filter type in this package; it reuses a trivial
// inline implementation.
type testFilter struct{ key string }

func (f testFilter) CacheKey() string            { return f.key }
func (f testFilter) ToParams() map[string]string { return map[string]string{"q": f.key} }
func stringFilterFor(t *testing.T) sourcecache.Filter {
	t.Helper()
	return testFilter{key: "x"}
}

func TestLocalSourceSetItemDoesNotTouchRequestCache(t *testing.T) {
	ctx := context.Background()
	ls := newTestLocalSource()

	details := sourcecache.NewReadDetails(sourcecache.Global, sourcecache.ReadOptions{})
	// Seed a known-empty marker via SetItems(empty) first, then SetItem, and confirm
	// the request cache entry is untouched by the SetItem call.
	if res := ls.SetItems(ctx, nil, details); res.IsFailure() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}

	before, err := ls.cache.Get(ctx, details.CacheKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wres := ls.SetItem(ctx, fakeEntity{ID: "a", Msg: "x"}, sourcecache.NewWriteDetails(sourcecache.Local, sourcecache.WriteOptions{}))
	if wres.IsFailure() {
		t.Fatalf("unexpected failure: %v", wres.Err())
	}

	after, err := ls.cache.Get(ctx, details.CacheKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if before.IsSome() != after.IsSome() {
		t.Fatalf("expected SetItem to leave the request cache entry untouched")
	}
}

func TestLocalSourceSetItemsEmptyEquivalentToClearForRequest(t *testing.T) {
	ctx := context.Background()
	ls := newTestLocalSource()
	details := sourcecache.NewReadDetails(sourcecache.Global, sourcecache.ReadOptions{})

	if res := ls.SetItems(ctx, []fakeEntity{{ID: "a", Msg: "x"}}, details); res.IsFailure() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}
	idsOpt, _ := ls.cache.Get(ctx, details.CacheKey())
	if !idsOpt.IsSome() {
		t.Fatalf("expected a cache entry after SetItems")
	}

	if res := ls.SetItems(ctx, nil, details); res.IsFailure() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}
	idsOpt, _ = ls.cache.Get(ctx, details.CacheKey())
	if idsOpt.IsSome() {
		t.Fatalf("expected SetItems(empty) to clear the entry entirely")
	}
}

func TestLocalSourceSetItemsPanicsOnMissingID(t *testing.T) {
	ctx := context.Background()
	ls := newTestLocalSource()
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for an item missing its id")
		}
	}()
	ls.SetItems(ctx, []fakeEntity{{Msg: "no id"}}, sourcecache.NewReadDetails(sourcecache.Global, sourcecache.ReadOptions{}))
}

func TestLocalSourceDeleteInvalidatesAcrossBothMaps(t *testing.T) {
	ctx := context.Background()
	ls := newTestLocalSource()

	unpaginated := sourcecache.NewReadDetails(sourcecache.Global, sourcecache.ReadOptions{})
	paginated := sourcecache.NewReadDetails(sourcecache.Global, sourcecache.ReadOptions{Pagination: &sourcecache.Pagination{Page: 1, PageSize: 20}})

	a := fakeEntity{ID: "a", Msg: "A"}
	b := fakeEntity{ID: "b", Msg: "B"}
	if res := ls.SetItems(ctx, []fakeEntity{a, b}, unpaginated); res.IsFailure() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}
	if res := ls.SetItems(ctx, []fakeEntity{a, b}, paginated); res.IsFailure() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}

	if res := ls.Delete(ctx, "a", sourcecache.NewReadDetails(sourcecache.Local, sourcecache.ReadOptions{})); res.IsFailure() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}

	uOpt, _ := ls.cache.Get(ctx, unpaginated.CacheKey())
	ids, _ := uOpt.Get()
	for _, id := range ids {
		if id == "a" {
			t.Fatalf("expected 'a' to be gone from the unpaginated entry, got %v", ids)
		}
	}
	if len(ids) != 1 || ids[0] != "b" {
		t.Fatalf("expected only 'b' to remain, got %v", ids)
	}

	pOpt, _ := ls.cache.GetPaginated(ctx, paginated.NoPaginationCacheKey(), paginated.CacheKey())
	pids, _ := pOpt.Get()
	if len(pids) != 1 || pids[0] != "b" {
		t.Fatalf("expected only 'b' to remain in the paginated entry, got %v", pids)
	}

	itemsStore := ls.items.(*memItemsStore[fakeEntity])
	if itemsStore.has("a") {
		t.Fatalf("expected 'a' to be gone from the items store")
	}
}

func TestLocalSourceEmptySetNeverStored(t *testing.T) {
	ctx := context.Background()
	ls := newTestLocalSource()
	details := sourcecache.NewReadDetails(sourcecache.Global, sourcecache.ReadOptions{})

	a := fakeEntity{ID: "a", Msg: "A"}
	if res := ls.SetItems(ctx, []fakeEntity{a}, details); res.IsFailure() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}
	if res := ls.Delete(ctx, "a", sourcecache.NewReadDetails(sourcecache.Local, sourcecache.ReadOptions{})); res.IsFailure() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}

	idsOpt, _ := ls.cache.Get(ctx, details.CacheKey())
	if idsOpt.IsSome() {
		t.Fatalf("expected the now-empty entry to be removed entirely, not stored as an empty set")
	}
}
