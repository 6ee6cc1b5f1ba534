// Package sourcecache defines the entity-agnostic types shared by every source in a
// SourceList: per-entity bindings, request descriptors and their derived cache keys,
// sum-type results, the persistence contracts a LocalSource glues together, and the
// small set of ambient concerns (errors, config, logging) the rest of the module
// depends on.
package sourcecache

// Bindings is a value-record of pure function references that lets the core operate
// on an opaque entity type T without reflection. IDOf may report absent for
// locally-constructed, not-yet-persisted entities; every other field is total.
type Bindings[T any] struct {
	// IDOf extracts the entity's id, reporting false when the entity has none yet.
	IDOf func(item T) (id string, ok bool)

	// FromWire decodes a single wire payload into T.
	FromWire func(data []byte) (T, error)

	// ToWire encodes T into a wire payload.
	ToWire func(item T) ([]byte, error)

	// DetailURL returns the URL for a single entity by id.
	DetailURL func(id string) string

	// ListURL returns the URL for list/query operations.
	ListURL func() string

	// CreateURL returns the URL used for id-less creates. Defaults to ListURL when nil.
	CreateURL func() string

	// AssignID mints a client-side id for a locally-constructed entity. Nil means the
	// binding set has no CreationBindings capability: a write with a missing id must
	// fail with BadRequest rather than be minted locally.
	AssignID func(item T) T
}

// resolvedCreateURL returns CreateURL if set, else ListURL.
func (b Bindings[T]) resolvedCreateURL() string {
	if b.CreateURL != nil {
		return b.CreateURL()
	}
	return b.ListURL()
}

// CanAssignID reports whether this binding set can mint ids locally.
func (b Bindings[T]) CanAssignID() bool {
	return b.AssignID != nil
}
