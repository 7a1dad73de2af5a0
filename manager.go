package possync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"possync/common"
)

// DefaultCooldown is the minimum spacing between non-forced refresh attempts
// for the same tenant. It suppresses refresh storms from rapid repeated UI
// triggers (mount/remount, several components requesting the same data).
const DefaultCooldown = 1000 * time.Millisecond

// Manager is the entity sync manager for one entity type. It orchestrates
// read-through caching, refresh throttling, per-tenant refresh de-duplication,
// and write-through mirroring between a Remote source and the durable Store.
//
// One Manager is constructed per entity type at application start and shared;
// all methods are safe for concurrent use. The in-flight set and cooldown
// stamps are process-lifetime only — they intentionally reset on restart
// (a restart is allowed to refetch). Two processes can therefore refresh the
// same tenant at once; the Store's PutAll is the last-writer-wins convergence
// point and the Notifier catches the loser's view up afterwards.
type Manager[T Record] struct {
	entityType string
	remote     Remote[T]
	store      Store
	notifier   Notifier
	resolver   TenantResolver
	cooldown   time.Duration

	mu          sync.Mutex           // guards the two maps below
	inFlight    map[string]struct{}  // tenant ids currently refreshing
	lastAttempt map[string]time.Time // tenant id -> last refresh attempt
}

// NewManager creates a sync manager for one entity type with explicit
// dependencies. entityType names the store namespace (e.g. "brand").
func NewManager[T Record](entityType string, remote Remote[T], cfg Config) (*Manager[T], error) {
	if entityType == "" {
		return nil, fmt.Errorf("possync: entity type must be non-empty")
	}
	if remote == nil {
		return nil, common.ErrRemoteNotSet
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Manager[T]{
		entityType:  entityType,
		remote:      remote,
		store:       cfg.Store,
		notifier:    cfg.Notifier,
		resolver:    cfg.Resolver,
		cooldown:    cfg.cooldownOrDefault(),
		inFlight:    make(map[string]struct{}),
		lastAttempt: make(map[string]time.Time),
	}, nil
}

// EntityType returns the store namespace this manager owns.
func (m *Manager[T]) EntityType() string { return m.entityType }

// Sync answers "give me the current list of this entity for my tenant",
// either from the local snapshot or from the network.
//
// Terminal outcomes for a single call: served-from-cache, cooldown rejected,
// in-progress rejected, fetch succeeded, fetch failed. Each call is a fresh
// traversal; the manager holds no long-lived terminal state.
func (m *Manager[T]) Sync(ctx context.Context, forceRefresh bool) SyncResult[T] {
	tenantID, ok := m.resolver.Resolve()
	if !ok {
		return failResult[T](common.ErrNoTenant)
	}

	// Cache-hit short circuit: a non-empty snapshot satisfies a non-forced
	// call with no network involvement.
	if !forceRefresh {
		if records, found := m.readSnapshot(ctx, tenantID); found {
			return okResult(records, true)
		}
	}

	// Cooldown and in-flight guard. The check-and-mark must be atomic so two
	// concurrent callers cannot both pass the guard.
	now := time.Now()
	m.mu.Lock()
	if !forceRefresh {
		if last, seen := m.lastAttempt[tenantID]; seen && now.Sub(last) < m.cooldown {
			m.mu.Unlock()
			return failResult[T](common.ErrCooldownActive)
		}
	}
	if _, busy := m.inFlight[tenantID]; busy {
		m.mu.Unlock()
		// Rejected, never queued: exactly one refresh per tenant in flight.
		return failResult[T](common.ErrSyncInProgress)
	}
	m.inFlight[tenantID] = struct{}{}
	m.lastAttempt[tenantID] = now
	m.mu.Unlock()

	// The in-flight marker is always cleared, whatever the fetch does, so an
	// errored call can never leave the tenant permanently "in progress".
	defer func() {
		m.mu.Lock()
		delete(m.inFlight, tenantID)
		m.mu.Unlock()
	}()

	records, err := m.remote.List(ctx)
	if err != nil {
		// The previous snapshot (if any) is left untouched: a failed refresh
		// never destroys existing cached data.
		return failResult[T](fmt.Errorf("%w: %v", common.ErrRemoteFailure, err))
	}

	raw, err := encodeRecords(records)
	if err != nil {
		return failResult[T](fmt.Errorf("%w: %v", common.ErrRemoteFailure, err))
	}

	// An empty server payload is authoritative: PutAll with zero records
	// still replaces the snapshot.
	if err := m.store.PutAll(ctx, m.entityType, tenantID, raw); err != nil {
		// The network result is authoritative, so the caller still gets the
		// fresh records; only the local mirror is behind. Peers are not
		// notified — they would re-read the stale snapshot.
		log.Printf("WARN: possync: snapshot write failed for %s/%s: %v", m.entityType, tenantID, err)
		return okResult(records, false)
	}
	m.publish(ctx, tenantID)

	return okResult(records, false)
}

// RecordSaved mirrors a single created or updated record into the local store
// and notifies peers. It is optimistic: the caller already has a success
// response from the remote for the mutation itself, and no network call is
// made here. Only the local write can fail.
func (m *Manager[T]) RecordSaved(ctx context.Context, record T) SyncResult[T] {
	tenantID, ok := m.resolver.Resolve()
	if !ok {
		return failResult[T](common.ErrNoTenant)
	}
	id := record.GetID()
	if id == "" {
		return failResult[T](fmt.Errorf("%w: record has empty id", common.ErrStoreFailure))
	}
	data, err := json.Marshal(record)
	if err != nil {
		return failResult[T](fmt.Errorf("%w: encode record %q: %v", common.ErrStoreFailure, id, err))
	}
	if err := m.store.Put(ctx, m.entityType, tenantID, RawRecord{ID: id, Data: data}); err != nil {
		// Write-through failures are reported: suppressing one would mean a
		// local mutation silently fails to mirror.
		return failResult[T](fmt.Errorf("%w: %v", common.ErrStoreFailure, err))
	}
	m.publish(ctx, tenantID)
	return SyncResult[T]{Success: true, SyncedCount: 1, Records: []T{record}}
}

// RecordDeleted removes a single record from the local store after the caller
// deleted it remotely, then notifies peers.
func (m *Manager[T]) RecordDeleted(ctx context.Context, id string) SyncResult[T] {
	tenantID, ok := m.resolver.Resolve()
	if !ok {
		return failResult[T](common.ErrNoTenant)
	}
	if err := m.store.Delete(ctx, m.entityType, tenantID, id); err != nil {
		return failResult[T](fmt.Errorf("%w: %v", common.ErrStoreFailure, err))
	}
	m.publish(ctx, tenantID)
	return SyncResult[T]{Success: true}
}

// CachedOnly returns whatever the store currently holds for the tenant, with
// no network involvement and no cooldown gating — used for instant UI
// population before any round trip completes. An unresolved tenant or a store
// failure yields an empty slice, never an error.
func (m *Manager[T]) CachedOnly(ctx context.Context) []T {
	tenantID, ok := m.resolver.Resolve()
	if !ok {
		return []T{}
	}
	records, _ := m.readSnapshot(ctx, tenantID)
	if records == nil {
		return []T{}
	}
	return records
}

// Subscribe registers a handler for this manager's topic under the tenant
// currently resolved. It returns an unsubscribe func, or nil when no tenant
// is resolvable or the notifier rejects the subscription.
func (m *Manager[T]) Subscribe(handler Handler) func() {
	tenantID, ok := m.resolver.Resolve()
	if !ok {
		return nil
	}
	cancel, err := m.notifier.Subscribe(Topic{EntityType: m.entityType, TenantID: tenantID}, handler)
	if err != nil {
		log.Printf("WARN: possync: subscribe failed for %s/%s: %v", m.entityType, tenantID, err)
		return nil
	}
	return cancel
}

// readSnapshot loads and decodes the tenant's snapshot. found is true only
// when the snapshot is non-empty and fully decodable; every degraded path
// (store error, corrupt row) is treated as a cache miss.
func (m *Manager[T]) readSnapshot(ctx context.Context, tenantID string) ([]T, bool) {
	raw, err := m.store.GetAll(ctx, m.entityType, tenantID)
	if err != nil {
		log.Printf("WARN: possync: snapshot read failed for %s/%s, treating as miss: %v", m.entityType, tenantID, err)
		return nil, false
	}
	if len(raw) == 0 {
		return nil, false
	}
	records := make([]T, 0, len(raw))
	for _, r := range raw {
		var rec T
		if err := json.Unmarshal(r.Data, &rec); err != nil {
			log.Printf("WARN: possync: corrupt cached record %s/%s/%s, treating snapshot as miss: %v", m.entityType, tenantID, r.ID, err)
			return nil, false
		}
		records = append(records, rec)
	}
	return records, true
}

// publish sends the change signal for the tenant's namespace. Best-effort:
// a notifier failure is logged, never surfaced.
func (m *Manager[T]) publish(ctx context.Context, tenantID string) {
	topic := Topic{EntityType: m.entityType, TenantID: tenantID}
	if err := m.notifier.Publish(ctx, topic); err != nil {
		log.Printf("WARN: possync: publish failed for %s/%s: %v", m.entityType, tenantID, err)
	}
}

// encodeRecords marshals fetched records into store rows keyed by id.
func encodeRecords[T Record](records []T) ([]RawRecord, error) {
	raw := make([]RawRecord, 0, len(records))
	for _, rec := range records {
		id := rec.GetID()
		if id == "" {
			return nil, fmt.Errorf("record with empty id in remote payload")
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode record %q: %w", id, err)
		}
		raw = append(raw, RawRecord{ID: id, Data: data})
	}
	return raw, nil
}
