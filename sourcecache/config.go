package sourcecache

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config exposes the handful of tunables shared across every source in a SourceList:
// a default page size, and whether backfill-write failures are logged at all (they
// are never retried or surfaced as the read's own failure, but a caller may want them
// silent in tests). DefaultPageSize is checked by Validate and read nowhere else:
// cache keys and remote list queries fall back to the DefaultPageSize constant when a
// read omits Pagination.PageSize.
type Config struct {
	DefaultPageSize     uint32
	LogBackfillFailures bool
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultPageSize:     DefaultPageSize,
		LogBackfillFailures: true,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DefaultPageSize, validation.Required, validation.Min(uint32(1))),
	)
}
