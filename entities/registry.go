package entities

import (
	"context"
	"fmt"
	"log"

	"possync"
)

// Remotes bundles the per-entity remote sources the registry syncs from.
type Remotes struct {
	Brands     possync.Remote[Brand]
	Categories possync.Remote[Category]
	Units      possync.Remote[Unit]
	Customers  possync.Remote[Customer]
}

// Registry holds the sync managers for every synced entity type. It is
// constructed once at application start with explicit dependencies and
// threaded through to the callers that need it — there is no module-level
// singleton manager.
type Registry struct {
	Brands     *possync.Manager[Brand]
	Categories *possync.Manager[Category]
	Units      *possync.Manager[Unit]
	Customers  *possync.Manager[Customer]

	store    possync.Store
	notifier possync.Notifier
	resolver possync.TenantResolver
}

// NewRegistry builds the four entity sync managers over shared store,
// notifier, and resolver from cfg.
func NewRegistry(cfg possync.Config, remotes Remotes) (*Registry, error) {
	brands, err := possync.NewManager(TypeBrand, remotes.Brands, cfg)
	if err != nil {
		return nil, err
	}
	categories, err := possync.NewManager(TypeCategory, remotes.Categories, cfg)
	if err != nil {
		return nil, err
	}
	units, err := possync.NewManager(TypeUnit, remotes.Units, cfg)
	if err != nil {
		return nil, err
	}
	customers, err := possync.NewManager(TypeCustomer, remotes.Customers, cfg)
	if err != nil {
		return nil, err
	}
	return &Registry{
		Brands:     brands,
		Categories: categories,
		Units:      units,
		Customers:  customers,
		store:      cfg.Store,
		notifier:   cfg.Notifier,
		resolver:   cfg.Resolver,
	}, nil
}

// SyncAll refreshes every entity type for the current tenant, returning the
// per-type results keyed by entity type name. One type failing does not stop
// the others.
func (r *Registry) SyncAll(ctx context.Context, forceRefresh bool) map[string]error {
	errs := make(map[string]error)
	if res := r.Brands.Sync(ctx, forceRefresh); res.Err != nil {
		errs[TypeBrand] = res.Err
	}
	if res := r.Categories.Sync(ctx, forceRefresh); res.Err != nil {
		errs[TypeCategory] = res.Err
	}
	if res := r.Units.Sync(ctx, forceRefresh); res.Err != nil {
		errs[TypeUnit] = res.Err
	}
	if res := r.Customers.Sync(ctx, forceRefresh); res.Err != nil {
		errs[TypeCustomer] = res.Err
	}
	return errs
}

// InvalidateTenant clears every cached record for the current tenant across
// entity types (logout / explicit invalidation) and notifies peers per type.
// Snapshots are never cleared silently on error — only through this call or a
// successful refresh.
func (r *Registry) InvalidateTenant(ctx context.Context) error {
	tenantID, ok := r.resolver.Resolve()
	if !ok {
		return possync.ErrNoTenant
	}
	if err := r.store.ClearTenant(ctx, tenantID); err != nil {
		return fmt.Errorf("%w: %v", possync.ErrStoreFailure, err)
	}
	for _, entityType := range []string{TypeBrand, TypeCategory, TypeUnit, TypeCustomer} {
		topic := possync.Topic{EntityType: entityType, TenantID: tenantID}
		if err := r.notifier.Publish(ctx, topic); err != nil {
			log.Printf("WARN: possync: invalidate publish failed for %s/%s: %v", entityType, tenantID, err)
		}
	}
	return nil
}
