package datasource

import (
	"context"
	"sync"

	"github.com/nodeware/go-datasource/sourcecache"
)

// SourceList is the ordered coordinator over a stack of sources. It cascades reads
// (first eligible source that answers wins), backfills earlier-visited sources as a
// write-through cache, gates sources by request-type, resolves partial by-id hits
// with server-confirmed eviction of anything the network no longer vouches for, and
// forwards writes to every eligible source. It owns its sources and the shared
// Bindings: it injects the bindings into any source that doesn't already carry them.
//
// A SourceList has no persistent state of its own — every call is a fresh traversal —
// but it serializes its own calls with a mutex so a caller may share one SourceList
// across goroutines without its own locking.
type SourceList[T any] struct {
	mu                 sync.Mutex
	sources            []Source[T]
	bindings           sourcecache.Bindings[T]
	logger             sourcecache.Logger
	config             sourcecache.Config
	evictUnresolvedIDs bool
}

// Option configures a SourceList at construction time.
type Option[T any] func(*SourceList[T])

// WithEvictUnresolvedIDs toggles whether a non-local by-id probe's unresolved
// remainder is evicted from every local cache entry and the items store. Defaults to
// true.
func WithEvictUnresolvedIDs[T any](evict bool) Option[T] {
	return func(sl *SourceList[T]) { sl.evictUnresolvedIDs = evict }
}

// WithLogger supplies the Logger used for "log and continue" backfill failures.
func WithLogger[T any](logger sourcecache.Logger) Option[T] {
	return func(sl *SourceList[T]) { sl.logger = logger }
}

// WithConfig supplies the shared Config this SourceList consults for its own ambient
// behavior — currently whether a failed backfill write is logged at all. Defaults to
// sourcecache.DefaultConfig().
func WithConfig[T any](cfg sourcecache.Config) Option[T] {
	return func(sl *SourceList[T]) { sl.config = cfg }
}

// NewSourceList builds a SourceList over sources, in the given order, sharing
// bindings. Any source whose own Bindings() is not yet populated (IDOf is nil)
// receives bindings via SetBindings.
func NewSourceList[T any](bindings sourcecache.Bindings[T], sources []Source[T], opts ...Option[T]) *SourceList[T] {
	sl := &SourceList[T]{
		sources:            sources,
		bindings:           bindings,
		logger:             sourcecache.NopLogger{},
		config:             sourcecache.DefaultConfig(),
		evictUnresolvedIDs: true,
	}
	for _, opt := range opts {
		opt(sl)
	}
	for _, src := range sources {
		if src.Bindings().IDOf == nil {
			src.SetBindings(bindings)
		}
	}
	return sl
}

func (sl *SourceList[T]) logBackfillFailure(ctx context.Context, src Source[T], err error) {
	if !sl.config.LogBackfillFailures {
		return
	}
	fields := map[string]any{
		"error": err.Error(),
		"kind":  src.Kind(),
	}
	for k, v := range requestTagsFromContext(ctx) {
		fields[k] = v
	}
	sl.logger.Error(ctx, "backfill write failed", fields)
}

// GetByID walks sources in order; the first matched source to answer Some(item) wins,
// and every earlier-visited source (matched-but-empty or unmatched) that is a
// LocalSource is backfilled via SetItem before the call resolves.
func (sl *SourceList[T]) GetByID(ctx context.Context, id string, details sourcecache.RequestDetails) sourcecache.ReadResult[T] {
	if err := details.AssertEmpty("SourceList.GetByID"); err != nil {
		return sourcecache.Failed[sourcecache.Option[T]](err)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	var emptySources []Source[T]
	for _, src := range sl.sources {
		if !src.Kind().matches(details.RequestType()) {
			emptySources = append(emptySources, src)
			continue
		}

		res := src.GetByID(ctx, id, details)
		if res.IsFailure() {
			return res
		}
		opt, _ := res.Value()
		if item, ok := opt.Get(); ok {
			for _, prev := range emptySources {
				if prev.Kind() != KindLocal {
					continue
				}
				if br := prev.SetItem(ctx, item, details); br.IsFailure() {
					sl.logBackfillFailure(ctx, prev, br.Err())
				}
			}
			return sourcecache.Ok(sourcecache.Some(item))
		}
		emptySources = append(emptySources, src)
	}
	return sourcecache.Ok(sourcecache.None[T]())
}

// GetByIDs resolves a partial-hit cascade: each source is asked only about the ids
// still missing after earlier sources answered; newly-found items backfill every
// earlier-visited LocalSource, and — unless WithEvictUnresolvedIDs(false) was set —
// a non-local probe's unresolved remainder is evicted from every LocalSource visited.
func (sl *SourceList[T]) GetByIDs(ctx context.Context, ids []string, details sourcecache.RequestDetails) sourcecache.ReadManyResult[T] {
	if err := details.AssertEmpty("SourceList.GetByIDs"); err != nil {
		return sourcecache.Failed[sourcecache.ManyPayload[T]](err)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	missing := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		missing[id] = struct{}{}
	}
	found := make(map[string]T, len(ids))
	backfill := make([][]T, len(sl.sources))
	var visited []int

	for idx, src := range sl.sources {
		if len(missing) == 0 {
			break
		}
		if !src.Kind().matches(details.RequestType()) {
			visited = append(visited, idx)
			continue
		}

		pending := orderedSubset(ids, missing)
		res := src.GetByIDs(ctx, pending, details)
		if res.IsFailure() {
			return res
		}
		payload, _ := res.Value()
		for _, item := range payload.Items {
			itemID, ok := sl.bindings.IDOf(item)
			if !ok {
				continue
			}
			found[itemID] = item
			delete(missing, itemID)
			for _, prevIdx := range visited {
				backfill[prevIdx] = append(backfill[prevIdx], item)
			}
		}
		visited = append(visited, idx)
	}

	remaining := orderedSubset(ids, missing)
	for _, idx := range visited {
		src := sl.sources[idx]
		if src.Kind() != KindLocal {
			continue
		}
		for _, item := range backfill[idx] {
			if br := src.SetItem(ctx, item, details); br.IsFailure() {
				sl.logBackfillFailure(ctx, src, br.Err())
			}
		}
		if sl.evictUnresolvedIDs && details.RequestType() != sourcecache.Local && len(remaining) > 0 {
			if dr := src.DeleteIDs(ctx, remaining); dr.IsFailure() {
				sl.logBackfillFailure(ctx, src, dr.Err())
			}
		}
	}

	items := make([]T, 0, len(ids))
	for _, id := range ids {
		if item, ok := found[id]; ok {
			items = append(items, item)
		}
	}
	return sourcecache.Ok(sourcecache.ManyPayload[T]{Items: items, Missing: remaining})
}

// orderedSubset returns the elements of order that are present in set, preserving order.
func orderedSubset(order []string, set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for _, id := range order {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// GetItems walks sources; the first matched source to answer a non-empty result wins
// and backfills every earlier-visited (matched-but-empty or unmatched) LocalSource.
// If every source comes back empty and the request type permits remote consultation,
// every visited LocalSource is marked known-empty for this request.
func (sl *SourceList[T]) GetItems(ctx context.Context, details sourcecache.RequestDetails) sourcecache.ReadManyResult[T] {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	var empty []int
	for idx, src := range sl.sources {
		if !src.Kind().matches(details.RequestType()) {
			empty = append(empty, idx)
			continue
		}

		res := src.GetItems(ctx, details)
		if res.IsFailure() {
			return res
		}
		payload, _ := res.Value()
		if len(payload.Items) > 0 {
			for _, prevIdx := range empty {
				prev := sl.sources[prevIdx]
				if prev.Kind() != KindLocal {
					continue
				}
				if br := prev.SetItems(ctx, payload.Items, details); br.IsFailure() {
					sl.logBackfillFailure(ctx, prev, br.Err())
				}
			}
			return sourcecache.Ok(payload)
		}
		empty = append(empty, idx)
	}

	if details.RequestType() == sourcecache.Global || details.RequestType() == sourcecache.Refresh {
		for _, idx := range empty {
			src := sl.sources[idx]
			if src.Kind() != KindLocal {
				continue
			}
			if br := src.SetItems(ctx, nil, details); br.IsFailure() {
				sl.logBackfillFailure(ctx, src, br.Err())
			}
		}
	}
	return sourcecache.Ok(sourcecache.ManyPayload[T]{})
}

// SetItem walks sources in reverse (remote-first) when the item has no id, so a
// server assigns one before any local source persists it; otherwise it walks forward.
func (sl *SourceList[T]) SetItem(ctx context.Context, item T, details sourcecache.RequestDetails) sourcecache.WriteResult[T] {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	_, hasID := sl.bindings.IDOf(item)
	originalLacksID := !hasID

	order := make([]int, len(sl.sources))
	if originalLacksID {
		for i := range order {
			order[i] = len(sl.sources) - 1 - i
		}
	} else {
		for i := range order {
			order[i] = i
		}
	}

	current := item
	for _, idx := range order {
		src := sl.sources[idx]
		if !src.Kind().matches(details.RequestType()) {
			continue
		}
		res := src.SetItem(ctx, current, details)
		if res.IsFailure() {
			return res
		}
		result, _ := res.Value()
		if originalLacksID {
			if _, ok := sl.bindings.IDOf(result); !ok {
				return sourcecache.Failed[T](sourcecache.NewServerError("Failed to generate Id"))
			}
		}
		current = result
	}
	return sourcecache.Ok(current)
}

// SetItems requires RequestType Local: bulk writes cannot be pushed to a remote
// source, since a remote creation must mint an id one-by-one via SetItem. Calling
// this with any other request type is a programmer precondition violation.
func (sl *SourceList[T]) SetItems(ctx context.Context, items []T, details sourcecache.RequestDetails) sourcecache.WriteListResult {
	if details.RequestType() != sourcecache.Local {
		return sourcecache.FailedList(sourcecache.NewUnexpected("SourceList.SetItems requires RequestType Local"))
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	for _, src := range sl.sources {
		if !src.Kind().matches(details.RequestType()) {
			continue
		}
		if res := src.SetItems(ctx, items, details); res.IsFailure() {
			return res
		}
	}
	return sourcecache.OkList()
}

// Delete forwards to every matched source in order; the first failure aborts.
func (sl *SourceList[T]) Delete(ctx context.Context, id string, details sourcecache.RequestDetails) sourcecache.DeleteResult {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	for _, src := range sl.sources {
		if !src.Kind().matches(details.RequestType()) {
			continue
		}
		if res := src.Delete(ctx, id, details); res.IsFailure() {
			return res
		}
	}
	return sourcecache.OkList()
}

// Clear fans out to every local source in the list; remotes are never cleared.
func (sl *SourceList[T]) Clear(ctx context.Context) sourcecache.DeleteResult {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	for _, src := range sl.sources {
		if src.Kind() != KindLocal {
			continue
		}
		if res := src.Clear(ctx); res.IsFailure() {
			return res
		}
	}
	return sourcecache.OkList()
}

// ClearForRequest fans out to every local source in the list.
func (sl *SourceList[T]) ClearForRequest(ctx context.Context, details sourcecache.RequestDetails) sourcecache.DeleteResult {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	for _, src := range sl.sources {
		if src.Kind() != KindLocal {
			continue
		}
		if res := src.ClearForRequest(ctx, details); res.IsFailure() {
			return res
		}
	}
	return sourcecache.OkList()
}
