package possync

import "possync/common"

// Re-exported sentinel errors so callers can classify SyncResult outcomes with
// errors.Is without importing possync/common directly.
var (
	ErrNotFound       = common.ErrNotFound
	ErrNoTenant       = common.ErrNoTenant
	ErrCooldownActive = common.ErrCooldownActive
	ErrSyncInProgress = common.ErrSyncInProgress
	ErrRemoteFailure  = common.ErrRemoteFailure
	ErrStoreFailure   = common.ErrStoreFailure

	ErrStoreNotSet    = common.ErrStoreNotSet
	ErrNotifierNotSet = common.ErrNotifierNotSet
	ErrResolverNotSet = common.ErrResolverNotSet
	ErrRemoteNotSet   = common.ErrRemoteNotSet
	ErrNilContext     = common.ErrNilContext
)
