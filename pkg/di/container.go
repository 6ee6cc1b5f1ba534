// Package di provides dependency injection for wiring a SourceList[T] cascade: a
// LocalSource[T] persistence tier (in-memory or SQL, per Container's StoreConfig)
// fronted by zero or more remote.Source[T] network tiers, each optionally accelerated
// by a ReadThrough cache, and coordinated by a SourceList sharing one Config and
// Logger across every entity-specific cascade the Container builds.
package di

import (
	"context"

	"github.com/nodeware/go-datasource/datasource"
	"github.com/nodeware/go-datasource/internal/storeinfra"
	"github.com/nodeware/go-datasource/remote"
	"github.com/nodeware/go-datasource/sourcecache"
)

// Container provides dependency injection for source-related components. It manages
// the store selection/tuning config and the remote transport config shared by every
// entity-specific source the caller builds through it, plus the shared source Config
// and Logger every SourceList built through it is wired with.
type Container struct {
	storeConfig  storeinfra.StoreConfig
	remoteConfig remote.Config
	sourceConfig sourcecache.Config
	logger       sourcecache.Logger
}

// Option configures a Container at construction time.
type Option func(*Container)

// WithSourceConfig overrides the shared sourcecache.Config every SourceList built
// through this container is wired with. Defaults to sourcecache.DefaultConfig().
func WithSourceConfig(cfg sourcecache.Config) Option {
	return func(c *Container) { c.sourceConfig = cfg }
}

// WithLogger overrides the Logger every SourceList built through this container is
// wired with. Defaults to sourcecache.NopLogger{}.
func WithLogger(logger sourcecache.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// NewContainer creates a new DI container with the provided store and remote
// configuration. The store config and the shared source config are validated up
// front so construction failures surface before any entity-specific source is built.
func NewContainer(storeConfig storeinfra.StoreConfig, remoteConfig remote.Config, opts ...Option) (*Container, error) {
	if err := storeConfig.Validate(); err != nil {
		return nil, err
	}
	c := &Container{
		storeConfig:  storeConfig,
		remoteConfig: remoteConfig,
		sourceConfig: sourcecache.DefaultConfig(),
		logger:       sourcecache.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.sourceConfig.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewContainerWithDefaults creates a new DI container using an in-memory store and a
// zero-value remote config. This is a convenience constructor for typical use cases
// where custom configuration is not required.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(storeinfra.StoreConfig{Engine: storeinfra.EngineMemory}, remote.Config{})
}

// StoreConfig returns a copy of the store configuration used by this container.
func (c *Container) StoreConfig() storeinfra.StoreConfig {
	return c.storeConfig
}

// RemoteConfig returns a copy of the remote transport configuration used by this
// container.
func (c *Container) RemoteConfig() remote.Config {
	return c.remoteConfig
}

// NewLocalSource builds a LocalSource[T] backed by whichever persistence engine
// container.StoreConfig() selects: an in-memory pair for EngineMemory, or a bun-backed
// pair opened against StoreConfig().SQL for EngineSQL.
//
// Since Go methods cannot have type parameters, this is provided as a package-level
// function. Example: NewLocalSource[User](ctx, container, userBindings)
func NewLocalSource[T any](ctx context.Context, container *Container, bindings sourcecache.Bindings[T]) (*datasource.LocalSource[T], error) {
	var items sourcecache.ItemsStore[T]
	var requests sourcecache.RequestCacheStore

	switch container.storeConfig.Engine {
	case storeinfra.EngineSQL:
		sqlCfg := container.storeConfig.SQL
		db, err := storeinfra.OpenSQLDB(sqlCfg)
		if err != nil {
			return nil, err
		}
		itemsStore, err := storeinfra.NewSQLItemsStore[T](ctx, db, sqlCfg.EntityPath)
		if err != nil {
			return nil, err
		}
		requestStore, err := storeinfra.NewSQLRequestCacheStore(ctx, db, sqlCfg.EntityPath)
		if err != nil {
			return nil, err
		}
		items, requests = itemsStore, requestStore
	default:
		items, requests = storeinfra.NewMemItemsStore[T](), storeinfra.NewMemRequestCacheStore()
	}

	local := datasource.NewLocalSource[T](items, requests)
	local.SetBindings(bindings)
	return local, nil
}

// NewRemoteSource builds a remote.Source[T] over container's remote transport config.
// When container.StoreConfig().ReadThrough is set, the remote source is fronted with a
// storeinfra.ReadThroughSource, giving its network round-trips stampede protection and
// (per that config) early background refresh.
//
// Example: NewRemoteSource[User](container, userBindings)
func NewRemoteSource[T any](container *Container, bindings sourcecache.Bindings[T]) (datasource.Source[T], error) {
	src := remote.New[T](container.remoteConfig)
	src.SetBindings(bindings)

	if container.storeConfig.ReadThrough == nil {
		return src, nil
	}
	return storeinfra.NewReadThroughSource[T](src, *container.storeConfig.ReadThrough)
}

// NewSourceList wires a LocalSource[T] and zero or more remote sources into the
// ordered cascade coordinator, sharing bindings across every source that doesn't
// already carry its own. The cascade is wired with container's shared source Config
// and Logger; opts may override either via datasource.WithConfig/datasource.WithLogger.
//
// Example: NewSourceList[User](container, userBindings, []datasource.Source[User]{local, remote})
func NewSourceList[T any](container *Container, bindings sourcecache.Bindings[T], sources []datasource.Source[T], opts ...datasource.Option[T]) *datasource.SourceList[T] {
	base := []datasource.Option[T]{
		datasource.WithConfig[T](container.sourceConfig),
		datasource.WithLogger[T](container.logger),
	}
	return datasource.NewSourceList[T](bindings, sources, append(base, opts...)...)
}
