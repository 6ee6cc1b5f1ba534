package sourcecache

// Filter is opaque to the core apart from these two methods. CacheKey feeds cache-key
// derivation; ToParams feeds remote query-string construction. The two are
// deliberately independent: a filter may serialize complex server-side logic into its
// wire params that has no bearing on its cache identity, or vice versa. Two filters
// with different ToParams but identical CacheKey alias in the cache — that is by
// design, not a bug, and implementers of custom filters should document it on their
// own types too.
type Filter interface {
	// CacheKey returns a stable string identifying this filter for cache purposes.
	CacheKey() string

	// ToParams returns the filter serialized as remote query parameters.
	ToParams() map[string]string
}

// RemoteIncompatibleFilter may additionally be implemented by a Filter that cannot be
// evaluated server-side at all (its logic is purely local). A remote source must check
// for this and fail with Unexpected rather than send a meaningless query.
type RemoteIncompatibleFilter interface {
	Filter
	RemoteIncompatible() bool
}

// RequestType gates which sources a request may be satisfied by.
type RequestType int

const (
	// Global accepts both local and remote sources.
	Global RequestType = iota
	// Refresh accepts only remote sources.
	Refresh
	// Local accepts only local sources.
	Local
	// AllLocal accepts only local sources and additionally bypasses the request
	// cache: a LocalSource answers it with every entity in its items store. A
	// SourceList returns the first local source's non-empty answer; entities held
	// only by later local sources are not merged in.
	AllLocal
)

func (rt RequestType) String() string {
	switch rt {
	case Global:
		return "Global"
	case Refresh:
		return "Refresh"
	case Local:
		return "Local"
	case AllLocal:
		return "AllLocal"
	default:
		return "Unknown"
	}
}

// PermitsLocal reports whether a local source may answer a request of this type.
func (rt RequestType) PermitsLocal() bool {
	return rt != Refresh
}

// PermitsRemote reports whether a remote source may answer a request of this type.
func (rt RequestType) PermitsRemote() bool {
	return rt == Global || rt == Refresh
}

// Pagination is an optional page/page-size pair attached to a read or write request.
type Pagination struct {
	Page     uint32
	PageSize uint32
}

// DefaultPageSize is used whenever a Pagination is constructed without an explicit size.
const DefaultPageSize = 20

// cacheKey renders the pagination's own contribution to the cache key formula.
func (p *Pagination) cacheKey() string {
	if p == nil {
		return "-page-"
	}
	pageSize := p.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	return fmtUint(pageSize) + "-" + fmtUint(p.Page)
}

func fmtUint(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
