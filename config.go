package possync

import (
	"time"

	"possync/common"
)

// Config holds the shared dependencies every sync manager is constructed
// with. Managers are explicit instances wired at application start — there is
// deliberately no package-level singleton to configure.
type Config struct {
	Store    Store          // durable local store, shared across managers
	Notifier Notifier       // change broadcast transport
	Resolver TenantResolver // current-tenant extraction from the session
	Cooldown time.Duration  // minimum refresh spacing; 0 means DefaultCooldown
}

func (c Config) validate() error {
	if c.Store == nil {
		return common.ErrStoreNotSet
	}
	if c.Notifier == nil {
		return common.ErrNotifierNotSet
	}
	if c.Resolver == nil {
		return common.ErrResolverNotSet
	}
	return nil
}

func (c Config) cooldownOrDefault() time.Duration {
	if c.Cooldown > 0 {
		return c.Cooldown
	}
	return DefaultCooldown
}
