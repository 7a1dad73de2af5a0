// interfaces.go
// Core contracts for the possync layer: Store, Notifier, TenantResolver, Remote.
// These are public and intended for use by callers and driver developers.

package possync

import "context"

// RawRecord is one serialized entity record as held by a Store: an id unique
// within its (entityType, tenantID) namespace plus the JSON document.
type RawRecord struct {
	ID   string
	Data []byte
}

// Store defines the durable local store contract consumed by the sync core.
// All records live under a (entityType, tenantID) namespace; implementations
// must never mix records from two tenants for the same entity type.
//
// Any operation may fail with a storage error (quota, corruption, store
// unavailable). The sync core never lets such an error become fatal: read
// failures degrade to cache misses, write-through failures are reported as
// SyncResult values.
type Store interface {
	// GetAll returns every record in the namespace, or an empty slice.
	GetAll(ctx context.Context, entityType, tenantID string) ([]RawRecord, error)
	// Put writes or overwrites a single record by id.
	Put(ctx context.Context, entityType, tenantID string, record RawRecord) error
	// PutAll atomically replaces the full snapshot for the namespace.
	// An empty records slice clears the snapshot: an empty server payload
	// is authoritative.
	PutAll(ctx context.Context, entityType, tenantID string, records []RawRecord) error
	// Delete removes a single record by id. Deleting a missing id is not an error.
	Delete(ctx context.Context, entityType, tenantID, id string) error
	// ClearTenant removes every record for the tenant across all entity types
	// (logout / explicit invalidation).
	ClearTenant(ctx context.Context, tenantID string) error

	GetStoreStats(ctx context.Context) StoreStats
}

// StoreStats holds store operation counters for monitoring.
type StoreStats struct {
	Counters map[string]int // Operation name to count
}

// Topic identifies one changed namespace for change notifications.
type Topic struct {
	EntityType string
	TenantID   string
}

// Handler is invoked when a topic the subscriber registered for changes.
// Delivery is best-effort and may duplicate; handlers must be idempotent —
// the intended reaction is "re-read from the Store", which naturally is.
type Handler func(topic Topic)

// Notifier broadcasts "local data changed" signals to sibling tabs/processes
// so they invalidate in-memory views without re-hitting the network. The
// transport (in-process fan-out, Redis pub/sub, browser storage events) is an
// implementation detail behind this contract.
type Notifier interface {
	Publish(ctx context.Context, topic Topic) error
	// Subscribe registers a handler for a topic and returns an unsubscribe func.
	Subscribe(topic Topic, handler Handler) (func(), error)
}

// TenantResolver extracts the current tenant (store) identifier from the
// active session credential. It is synchronous and fails closed: any decode
// problem yields ok=false, and the sync core then refuses all cache access
// for the call.
type TenantResolver interface {
	Resolve() (tenantID string, ok bool)
}

// TenantResolverFunc adapts a plain function to the TenantResolver interface.
type TenantResolverFunc func() (string, bool)

func (f TenantResolverFunc) Resolve() (string, bool) { return f() }

// Remote is the only capability the sync core needs from the server-side CRUD
// API for one entity type: list everything for the current tenant. Mutations
// go to the server directly from the caller; the sync layer merely mirrors
// their results.
type Remote[T Record] interface {
	List(ctx context.Context) ([]T, error)
}

// RemoteFunc adapts a plain list function to the Remote interface.
type RemoteFunc[T Record] func(ctx context.Context) ([]T, error)

func (f RemoteFunc[T]) List(ctx context.Context) ([]T, error) { return f(ctx) }
