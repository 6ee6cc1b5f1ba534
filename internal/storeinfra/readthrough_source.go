package storeinfra

import (
	"context"

	"github.com/nodeware/go-datasource/datasource"
	"github.com/nodeware/go-datasource/sourcecache"
)

// ReadThroughSource wraps another datasource.Source[T] — typically a remote.Source[T]
// — with a pair of ReadThrough accelerators, one for by-id lookups and one for list
// reads, so repeated reads for the same request collapse into a single in-flight call
// and (depending on Config) refresh in the background instead of blocking on the
// network every time. Writes and deletes pass straight through to the underlying
// source and invalidate whatever they touch.
type ReadThroughSource[T any] struct {
	underlying datasource.Source[T]
	byID       *ReadThrough[sourcecache.Option[T]]
	lists      *ReadThrough[sourcecache.ManyPayload[T]]
}

// NewReadThroughSource builds a ReadThroughSource fronting underlying with two
// ReadThrough caches built from the same cfg.
func NewReadThroughSource[T any](underlying datasource.Source[T], cfg Config) (*ReadThroughSource[T], error) {
	byID, err := NewReadThrough[sourcecache.Option[T]](cfg)
	if err != nil {
		return nil, err
	}
	lists, err := NewReadThrough[sourcecache.ManyPayload[T]](cfg)
	if err != nil {
		return nil, err
	}
	return &ReadThroughSource[T]{underlying: underlying, byID: byID, lists: lists}, nil
}

func (s *ReadThroughSource[T]) Kind() datasource.SourceKind { return s.underlying.Kind() }

func (s *ReadThroughSource[T]) Bindings() sourcecache.Bindings[T] { return s.underlying.Bindings() }

func (s *ReadThroughSource[T]) SetBindings(b sourcecache.Bindings[T]) { s.underlying.SetBindings(b) }

// GetByID accelerates a single-entity lookup, keyed by id alone (RequestDetails must
// be empty for a by-id call, so the id is the whole cache identity).
func (s *ReadThroughSource[T]) GetByID(ctx context.Context, id string, details sourcecache.RequestDetails) sourcecache.ReadResult[T] {
	if err := details.AssertEmpty("storeinfra.ReadThroughSource.GetByID"); err != nil {
		return sourcecache.Failed[sourcecache.Option[T]](err)
	}
	opt, err := s.byID.GetOrFetch(ctx, id, func(ctx context.Context) (sourcecache.Option[T], error) {
		return s.underlying.GetByID(ctx, id, details).Value()
	})
	if err != nil {
		return sourcecache.Failed[sourcecache.Option[T]](err)
	}
	return sourcecache.Ok(opt)
}

// GetByIDs bypasses the accelerator: it is already a single explicit bulk request, and
// the underlying source's own by-id batcher (if any) already coalesces concurrent
// single lookups into the same shape of call.
func (s *ReadThroughSource[T]) GetByIDs(ctx context.Context, ids []string, details sourcecache.RequestDetails) sourcecache.ReadManyResult[T] {
	return s.underlying.GetByIDs(ctx, ids, details)
}

// GetItems accelerates a list read, keyed by the request's full cache key (filter plus
// pagination).
func (s *ReadThroughSource[T]) GetItems(ctx context.Context, details sourcecache.RequestDetails) sourcecache.ReadManyResult[T] {
	payload, err := s.lists.GetOrFetch(ctx, details.CacheKey(), func(ctx context.Context) (sourcecache.ManyPayload[T], error) {
		return s.underlying.GetItems(ctx, details).Value()
	})
	if err != nil {
		return sourcecache.Failed[sourcecache.ManyPayload[T]](err)
	}
	return sourcecache.Ok(payload)
}

// SetItem delegates to the underlying source, then evicts the written entity's by-id
// entry and every cached list read (a write may change which list queries it matches).
func (s *ReadThroughSource[T]) SetItem(ctx context.Context, item T, details sourcecache.RequestDetails) sourcecache.WriteResult[T] {
	res := s.underlying.SetItem(ctx, item, details)
	if result, err := res.Value(); err == nil {
		if id, hasID := s.underlying.Bindings().IDOf(result); hasID {
			_ = s.byID.Delete(ctx, id)
		}
	}
	_ = s.lists.DeleteByPrefix(ctx, "")
	return res
}

// SetItems delegates, then evicts every cached list read.
func (s *ReadThroughSource[T]) SetItems(ctx context.Context, items []T, details sourcecache.RequestDetails) sourcecache.WriteListResult {
	res := s.underlying.SetItems(ctx, items, details)
	_ = s.lists.DeleteByPrefix(ctx, "")
	return res
}

// Delete delegates, then evicts the deleted id's by-id entry and every cached list read.
func (s *ReadThroughSource[T]) Delete(ctx context.Context, id string, details sourcecache.RequestDetails) sourcecache.DeleteResult {
	res := s.underlying.Delete(ctx, id, details)
	_ = s.byID.Delete(ctx, id)
	_ = s.lists.DeleteByPrefix(ctx, "")
	return res
}

// DeleteIDs delegates, then evicts each deleted id's by-id entry and every cached list
// read.
func (s *ReadThroughSource[T]) DeleteIDs(ctx context.Context, ids []string) sourcecache.DeleteResult {
	res := s.underlying.DeleteIDs(ctx, ids)
	_ = s.byID.InvalidateKeys(ctx, ids)
	_ = s.lists.DeleteByPrefix(ctx, "")
	return res
}

// Clear delegates, then evicts every cache entry in both accelerators.
func (s *ReadThroughSource[T]) Clear(ctx context.Context) sourcecache.DeleteResult {
	res := s.underlying.Clear(ctx)
	_ = s.byID.DeleteByPrefix(ctx, "")
	_ = s.lists.DeleteByPrefix(ctx, "")
	return res
}

// ClearForRequest delegates, then evicts every cached list read.
func (s *ReadThroughSource[T]) ClearForRequest(ctx context.Context, details sourcecache.RequestDetails) sourcecache.DeleteResult {
	res := s.underlying.ClearForRequest(ctx, details)
	_ = s.lists.DeleteByPrefix(ctx, "")
	return res
}
