package remote

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// idBatcher implements a by-id coalescing optimization: a short debounce window
// accumulates individual get_by_id calls into a single id__in request.
// States are implicit in b.timer: nil is Idle, armed is Accumulating; flush() itself is
// Flushing for the duration of the request. singleflight guards against a timer race
// issuing the same batch twice.
type idBatcher[T any] struct {
	mu      sync.Mutex
	window  time.Duration
	fetch   func(ctx context.Context, ids []string) (map[string]T, error)
	waiters map[string][]chan idOutcome[T]
	timer   *time.Timer
	group   singleflight.Group
}

type idOutcome[T any] struct {
	item T
	ok   bool
	err  error
}

func newIDBatcher[T any](window time.Duration, fetch func(ctx context.Context, ids []string) (map[string]T, error)) *idBatcher[T] {
	return &idBatcher[T]{window: window, fetch: fetch, waiters: map[string][]chan idOutcome[T]{}}
}

// get queues id for the next flush (or joins an id already queued), (re)arming the
// window timer, and blocks until the batch resolves or ctx is done. A caller's own
// cancellation never affects other callers waiting on the same batch: the underlying
// fetch always runs to completion against a background context.
func (b *idBatcher[T]) get(ctx context.Context, id string) (T, bool, error) {
	ch := make(chan idOutcome[T], 1)

	b.mu.Lock()
	b.waiters[id] = append(b.waiters[id], ch)
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flush)
	} else {
		b.timer.Reset(b.window)
	}
	b.mu.Unlock()

	select {
	case out := <-ch:
		return out.item, out.ok, out.err
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// flush drains every currently-queued id into one request and resolves every waiter
// exactly once, even on failure.
func (b *idBatcher[T]) flush() {
	b.mu.Lock()
	if len(b.waiters) == 0 {
		b.timer = nil
		b.mu.Unlock()
		return
	}
	ids := make([]string, 0, len(b.waiters))
	for id := range b.waiters {
		ids = append(ids, id)
	}
	waiters := b.waiters
	b.waiters = map[string][]chan idOutcome[T]{}
	b.timer = nil
	b.mu.Unlock()

	sort.Strings(ids)
	key := strings.Join(ids, ",")

	result, err, _ := b.group.Do(key, func() (interface{}, error) {
		return b.fetch(context.Background(), ids)
	})

	var found map[string]T
	if err == nil {
		found, _ = result.(map[string]T)
	}

	for id, chans := range waiters {
		item, ok := found[id]
		outcome := idOutcome[T]{item: item, ok: ok && err == nil, err: err}
		for _, ch := range chans {
			ch <- outcome
		}
	}
}
