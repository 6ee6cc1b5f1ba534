// Package datasource implements the source-list coordinator and its local source:
// the cascade over an ordered stack of sources, write-through backfill, request-type
// gating, partial by-id gap-fill with server-confirmed eviction, and the glue between
// an ItemsStore and a RequestCacheStore that makes a LocalSource the principal
// caching engine.
package datasource

import (
	"context"

	"github.com/nodeware/go-datasource/sourcecache"
)

// SourceKind distinguishes a LocalSource from a remote collaborator for request-type
// gating and backfill eligibility: only local sources are ever backfill targets.
type SourceKind int

const (
	KindLocal SourceKind = iota
	KindRemote
)

// Source is the common contract every source in a SourceList satisfies — a
// LocalSource and a RemoteSource implement the same five operations.
type Source[T any] interface {
	// Kind reports whether this source is local or remote.
	Kind() SourceKind

	// Bindings returns the entity bindings currently in effect.
	Bindings() sourcecache.Bindings[T]

	// SetBindings injects the shared Bindings. A SourceList calls this on every
	// source that does not already carry bindings of its own.
	SetBindings(b sourcecache.Bindings[T])

	GetByID(ctx context.Context, id string, details sourcecache.RequestDetails) sourcecache.ReadResult[T]
	GetByIDs(ctx context.Context, ids []string, details sourcecache.RequestDetails) sourcecache.ReadManyResult[T]
	GetItems(ctx context.Context, details sourcecache.RequestDetails) sourcecache.ReadManyResult[T]

	SetItem(ctx context.Context, item T, details sourcecache.RequestDetails) sourcecache.WriteResult[T]
	SetItems(ctx context.Context, items []T, details sourcecache.RequestDetails) sourcecache.WriteListResult

	Delete(ctx context.Context, id string, details sourcecache.RequestDetails) sourcecache.DeleteResult
	DeleteIDs(ctx context.Context, ids []string) sourcecache.DeleteResult

	Clear(ctx context.Context) sourcecache.DeleteResult
	ClearForRequest(ctx context.Context, details sourcecache.RequestDetails) sourcecache.DeleteResult
}

// matches reports whether a source of this kind may answer a request of the given type.
func (k SourceKind) matches(rt sourcecache.RequestType) bool {
	if k == KindLocal {
		return rt.PermitsLocal()
	}
	return rt.PermitsRemote()
}
