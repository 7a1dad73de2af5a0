package common

import "errors"

// ErrNotFound is returned when a requested item (e.g., store row, topic) is not found.
var ErrNotFound = errors.New("possync: requested item not found")

// Sync outcome taxonomy. Every Manager call resolves to a SyncResult carrying
// at most one of these; none of them crosses the Manager boundary as a panic.
var (
	// ErrNoTenant means the tenant resolver produced no tenant id. Callers
	// should treat this as "session invalid, redirect to auth".
	ErrNoTenant = errors.New("possync: no tenant resolved from session")
	// ErrCooldownActive means a non-forced refresh was attempted within the
	// cooldown window of the previous attempt for the same tenant.
	ErrCooldownActive = errors.New("possync: refresh cooldown active")
	// ErrSyncInProgress means another refresh for the same tenant is already
	// in flight. Attempts are rejected, never queued.
	ErrSyncInProgress = errors.New("possync: sync already in progress")
	// ErrRemoteFailure wraps any remote source failure (network, timeout,
	// non-success payload).
	ErrRemoteFailure = errors.New("possync: remote source failure")
	// ErrStoreFailure wraps a durable store failure on the write-through
	// path. Read-path store failures are degraded to cache misses instead.
	ErrStoreFailure = errors.New("possync: local store failure")

	ErrStoreNotSet    = errors.New("possync: store not set")
	ErrNotifierNotSet = errors.New("possync: notifier not set")
	ErrResolverNotSet = errors.New("possync: tenant resolver not set")
	ErrRemoteNotSet   = errors.New("possync: remote source not set")
	ErrNilContext     = errors.New("possync: nil context provided")
)
