package possync

// SyncResult is the value-typed outcome of every Manager operation. The sync
// layer never panics and never returns a bare error across its boundary: each
// call resolves to exactly one terminal outcome, carried here.
//
// Err is nil on success; otherwise it wraps one of the package sentinels
// (ErrNoTenant, ErrCooldownActive, ErrSyncInProgress, ErrRemoteFailure,
// ErrStoreFailure) and is classified with errors.Is.
type SyncResult[T Record] struct {
	Success     bool
	SyncedCount int
	Records     []T
	Err         error

	fromCache bool // set when served from the local snapshot
}

// FromCache reports whether the result was served from the local snapshot
// without a network round trip.
func (r SyncResult[T]) FromCache() bool {
	return r.Success && r.fromCache
}

// okResult builds a success outcome.
func okResult[T Record](records []T, fromCache bool) SyncResult[T] {
	return SyncResult[T]{
		Success:     true,
		SyncedCount: len(records),
		Records:     records,
		fromCache:   fromCache,
	}
}

// failResult builds a failure outcome.
func failResult[T Record](err error) SyncResult[T] {
	return SyncResult[T]{Err: err}
}
