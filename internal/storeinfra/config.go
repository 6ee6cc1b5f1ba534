package storeinfra

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Engine selects which persistence backend a Container wires up for one entity type.
type Engine int

const (
	// EngineMemory backs an entity with MemItemsStore/MemRequestCacheStore — volatile,
	// process-lifetime storage.
	EngineMemory Engine = iota
	// EngineSQL backs an entity with the bun-mapped SQLItemsStore/SQLRequestCacheStore
	// pair — durable, table-backed storage.
	EngineSQL
)

// SQLDialect selects the bun dialect the SQL-backed stores target.
type SQLDialect int

const (
	DialectSQLite SQLDialect = iota
	DialectPostgres
)

// SQLConfig configures the durable store for one entity type.
type SQLConfig struct {
	Dialect SQLDialect
	// DSN is the driver-specific data source name (a file path for sqlite, a
	// connection string for postgres).
	DSN string
	// EntityPath names the entity for table naming: it derives the items table, the
	// request-cache table, and the paginated-request-cache table name.
	EntityPath string
}

// Validate checks that c is usable to open the SQL-backed stores.
func (c SQLConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.EntityPath, validation.Required),
	)
}

// StoreConfig selects and tunes the ItemsStore/RequestCacheStore pair, plus the
// optional ReadThrough accelerator in front of the network hop, a Container wires up
// for one entity type.
type StoreConfig struct {
	Engine Engine
	// SQL is only consulted (and required) when Engine is EngineSQL.
	SQL SQLConfig
	// ReadThrough, when non-nil, wraps the remote round-trip in a stampede-protected
	// cache. Nil disables the accelerator entirely.
	ReadThrough *Config
}

// Validate checks that c is internally consistent: an EngineSQL config must carry a
// valid SQLConfig, and a configured ReadThrough must itself validate.
func (c StoreConfig) Validate() error {
	if c.Engine == EngineSQL {
		if err := c.SQL.Validate(); err != nil {
			return err
		}
	}
	if c.ReadThrough != nil {
		if err := c.ReadThrough.Validate(); err != nil {
			return err
		}
	}
	return nil
}
