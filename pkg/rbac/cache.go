package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/permission"
)

// Cache serves resolutions persisted on the membership record. Reads never
// write; RefreshAndStore is the only operation that persists.
type Cache struct {
	store    Store
	resolver *Resolver
	ttl      time.Duration
	now      func() time.Time
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewCache wraps resolver with a TTL cache over store
func NewCache(store Store, resolver *Resolver, opts ...Option) *Cache {
	o := newOptions(opts)
	return &Cache{
		store:    store,
		resolver: resolver,
		ttl:      o.ttl,
		now:      o.now,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// TTL returns the freshness window
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Fresh reports whether m's persisted permissions are within the TTL
func (c *Cache) Fresh(m *Membership) bool {
	ts := m.PermissionsLastComputedAt
	return ts != nil && c.now().Sub(*ts) < c.ttl
}

// GetEffectivePermissions returns the persisted mask when fresh and a newly
// resolved one otherwise. A stale value is recomputed but not written back.
func (c *Cache) GetEffectivePermissions(ctx context.Context, userID, orgID string) (permission.Mask, error) {
	m, err := c.store.GetMembership(ctx, userID, orgID)
	if errors.Is(err, ErrNotFound) {
		c.metrics.CacheLookup("absent")
		return 0, nil
	}
	if err != nil {
		c.metrics.StoreError(SourceMembership)
		return 0, sourceErr(SourceMembership, err)
	}
	if !m.Active() {
		c.metrics.CacheLookup("inactive")
		return 0, nil
	}

	if c.Fresh(m) {
		c.metrics.CacheLookup("hit")
		return m.ComputedPermissions, nil
	}

	c.metrics.CacheLookup("stale")
	return c.resolver.ResolveMembership(ctx, m)
}

// RefreshAndStore recomputes a membership's permissions and persists them with
// the current time. Inactive memberships persist zero. Concurrent refreshes of
// the same membership are last-writer-wins.
func (c *Cache) RefreshAndStore(ctx context.Context, membershipID string) (permission.Mask, error) {
	m, err := c.store.GetMembershipByID(ctx, membershipID)
	if err != nil {
		c.metrics.Refresh("error")
		if errors.Is(err, ErrNotFound) {
			return 0, err
		}
		return 0, sourceErr(SourceMembership, err)
	}

	mask, err := c.resolver.ResolveMembership(ctx, m)
	if err != nil {
		c.metrics.Refresh("error")
		return 0, err
	}

	update := CacheUpdate{ComputedPermissions: mask, PermissionsLastComputedAt: c.now().UTC()}
	if err := c.store.PatchMembership(ctx, m.ID, update); err != nil {
		c.metrics.Refresh("error")
		return 0, fmt.Errorf("failed to persist permissions for membership %s: %w", m.ID, err)
	}

	c.metrics.Refresh("ok")
	c.logger.WithFields(map[string]interface{}{
		"membership_id": m.ID,
		"permissions":   mask.String(),
	}).Debug("Refreshed membership permissions")
	return mask, nil
}
