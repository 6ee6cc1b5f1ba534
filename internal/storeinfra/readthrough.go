package storeinfra

import (
	"context"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// Config configures a ReadThrough accelerator.
type Config struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Higher values improve concurrency but increase memory overhead.
	// Must be greater than 0. Default: 256
	NumShards int

	// TTL is the default time-to-live for cached entries.
	// After this duration, entries are considered expired.
	// Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	// Default: 10 (evict 10% of entries)
	EvictionPercentage int

	// EarlyRefresh configures early refresh behavior for cached entries.
	// If nil, early refresh is disabled.
	EarlyRefresh *EarlyRefreshConfig

	// MissingRecordStorage enables storage for missing record flags.
	// When enabled, the cache will remember keys that returned no results
	// to prevent repeated remote round-trips for non-existent records.
	MissingRecordStorage bool

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig configures early refresh behavior.
// Early refresh prevents cache stampedes by refreshing entries
// before they expire when they're frequently accessed.
type EarlyRefreshConfig struct {
	// MinAsyncRefreshTime is the minimum time after which an async refresh can occur
	MinAsyncRefreshTime time.Duration

	// MaxAsyncRefreshTime is the maximum time after which an async refresh can occur
	MaxAsyncRefreshTime time.Duration

	// SyncRefreshTime is when a refresh becomes synchronous instead of async
	SyncRefreshTime time.Duration

	// RetryBaseDelay is the base delay for retry attempts when early refresh fails
	RetryBaseDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
		EarlyRefresh: &EarlyRefreshConfig{
			MinAsyncRefreshTime: 10 * time.Second,
			MaxAsyncRefreshTime: 20 * time.Second,
			SyncRefreshTime:     30 * time.Second,
			RetryBaseDelay:      100 * time.Millisecond,
		},
		MissingRecordStorage: true,
		EvictionInterval:     0, // Use default
	}
}

// ToSturdycOptions converts the Config to a sturdyc.Option slice.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	if c.EarlyRefresh != nil {
		if c.EarlyRefresh.MinAsyncRefreshTime < 0 {
			return &ConfigError{Field: "EarlyRefresh.MinAsyncRefreshTime", Message: "must be non-negative"}
		}
		if c.EarlyRefresh.MaxAsyncRefreshTime < 0 {
			return &ConfigError{Field: "EarlyRefresh.MaxAsyncRefreshTime", Message: "must be non-negative"}
		}
		if c.EarlyRefresh.SyncRefreshTime < 0 {
			return &ConfigError{Field: "EarlyRefresh.SyncRefreshTime", Message: "must be non-negative"}
		}
		if c.EarlyRefresh.RetryBaseDelay < 0 {
			return &ConfigError{Field: "EarlyRefresh.RetryBaseDelay", Message: "must be non-negative"}
		}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// ReadThrough sits in front of a remote network round-trip (a remote.Source[T] call),
// giving it stampede protection and, optionally, early background refresh. Unlike
// ItemsStore/RequestCacheStore, it is not part of LocalSource's persisted state: it is
// a pure accelerator a caller may place in front of the network hop, keyed by whatever
// cache key the caller derives from the request (e.g. a CacheKey()).
type ReadThrough[T any] struct {
	client *sturdyc.Client[any]
}

// NewReadThrough validates cfg and builds a ReadThrough for entity T.
func NewReadThrough[T any](cfg Config) (*ReadThrough[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)
	return &ReadThrough[T]{client: client}, nil
}

// GetOrFetch resolves key from the cache, calling fetch on a miss or expiry. Concurrent
// callers for the same key collapse into a single in-flight fetch.
func (r *ReadThrough[T]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	v, err := r.client.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	item, _ := v.(T)
	return item, nil
}

// Delete removes a single entry, forcing the next GetOrFetch for key to refetch.
func (r *ReadThrough[T]) Delete(ctx context.Context, key string) error {
	r.client.Delete(key)
	return nil
}

// DeleteByPrefix removes every entry whose key starts with prefix. An empty prefix
// matches every key, which is how ReadThroughSource clears its caches after a write.
func (r *ReadThrough[T]) DeleteByPrefix(ctx context.Context, prefix string) error {
	for _, key := range r.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			r.client.Delete(key)
		}
	}
	return nil
}

// InvalidateKeys removes every entry in keys.
func (r *ReadThrough[T]) InvalidateKeys(ctx context.Context, keys []string) error {
	for _, key := range keys {
		r.client.Delete(key)
	}
	return nil
}
