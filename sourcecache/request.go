package sourcecache

import (
	"crypto/sha256"
	"sync"

	hex "github.com/tmthrgd/go-hex"
)

// RequestDetails is an immutable descriptor of a single read or write request. Its two
// derived cache keys depend only on filter and pagination, and are computed once and
// memoized (shared across copies of the same instance, since copying a struct copies
// its *cacheKeys pointer too). There is no field-wise equality method; because of that
// pointer, == reports two separately built RequestDetails as unequal even when every
// field matches.
type RequestDetails struct {
	requestType     RequestType
	filter          Filter
	pagination      *Pagination
	shouldOverwrite bool
	keys            *cacheKeys
}

type cacheKeys struct {
	once                 sync.Once
	cacheKey             string
	noPaginationCacheKey string
}

// ReadOptions configures NewReadDetails.
type ReadOptions struct {
	Filter     Filter
	Pagination *Pagination
}

// NewReadDetails builds a RequestDetails for a read operation.
func NewReadDetails(requestType RequestType, opts ReadOptions) RequestDetails {
	return RequestDetails{
		requestType:     requestType,
		filter:          opts.Filter,
		pagination:      opts.Pagination,
		shouldOverwrite: true,
		keys:            &cacheKeys{},
	}
}

// WriteOptions configures NewWriteDetails.
type WriteOptions struct {
	ShouldOverwrite *bool // nil defaults to true
	Pagination      *Pagination
}

// NewWriteDetails builds a RequestDetails for a write operation.
func NewWriteDetails(requestType RequestType, opts WriteOptions) RequestDetails {
	overwrite := true
	if opts.ShouldOverwrite != nil {
		overwrite = *opts.ShouldOverwrite
	}
	return RequestDetails{
		requestType:     requestType,
		pagination:      opts.Pagination,
		shouldOverwrite: overwrite,
		keys:            &cacheKeys{},
	}
}

// RequestType returns the request's type.
func (d RequestDetails) RequestType() RequestType { return d.requestType }

// Filter returns the request's filter, or nil.
func (d RequestDetails) Filter() Filter { return d.filter }

// Pagination returns the request's pagination, or nil.
func (d RequestDetails) Pagination() *Pagination { return d.pagination }

// ShouldOverwrite reports whether a write should overwrite an existing entry.
func (d RequestDetails) ShouldOverwrite() bool { return d.shouldOverwrite }

// IsEmpty reports whether both filter and pagination are absent.
func (d RequestDetails) IsEmpty() bool {
	return d.filter == nil && d.pagination == nil
}

// AssertEmpty returns an Unexpected-kind error unless IsEmpty, naming the caller for
// diagnostics. By-id operations and LocalSource item lookups must only ever be called
// with an empty RequestDetails; this is a programmer precondition, not a recoverable
// input error, but it is realized as a returned error (rather than a panic) so tests
// can exercise the path directly.
func (d RequestDetails) AssertEmpty(caller string) error {
	if d.IsEmpty() {
		return nil
	}
	return NewUnexpected(caller + ": RequestDetails must not carry a filter or pagination")
}

// LocalCopy clones the details with RequestType set to Local, preserving everything
// else — including the memoized cache keys, since request_type never contributes to
// either key.
func (d RequestDetails) LocalCopy() RequestDetails {
	d.requestType = Local
	return d
}

// filterKey renders the filter's contribution to both derived cache keys.
func (d RequestDetails) filterKey() string {
	if d.filter == nil {
		return "-cache-"
	}
	return d.filter.CacheKey()
}

func (d RequestDetails) keysOrDefault() *cacheKeys {
	if d.keys == nil {
		return &cacheKeys{}
	}
	return d.keys
}

// CacheKey is the SHA-256 digest of "{filterKey}-{paginationKey}", hex-encoded.
func (d RequestDetails) CacheKey() string {
	k := d.keysOrDefault()
	k.once.Do(func() {
		sum := sha256.Sum256([]byte(d.filterKey() + "-" + d.pagination.cacheKey()))
		k.cacheKey = hex.EncodeToString(sum[:])
		sumNoPage := sha256.Sum256([]byte(d.filterKey() + "--page-"))
		k.noPaginationCacheKey = hex.EncodeToString(sumNoPage[:])
	})
	return k.cacheKey
}

// NoPaginationCacheKey is the SHA-256 digest of the filter alone, grouping every page
// of one logical query under a single outer key.
func (d RequestDetails) NoPaginationCacheKey() string {
	if d.keys == nil {
		// A zero-value RequestDetails has no shared memo to fill; derive the key directly.
		sum := sha256.Sum256([]byte(d.filterKey() + "--page-"))
		return hex.EncodeToString(sum[:])
	}
	// Ensure the shared once has run; CacheKey and NoPaginationCacheKey are computed
	// together in a single pass.
	_ = d.CacheKey()
	return d.keys.noPaginationCacheKey
}
