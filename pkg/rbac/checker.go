package rbac

import (
	"context"

	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/permission"
)

// Checker is the caller-facing permission API
type Checker interface {
	CheckPermission(ctx context.Context, userID, orgID, code string) (bool, error)
	GetAllPermissions(ctx context.Context, userID, orgID string) (map[string]bool, error)
	RefreshAndStore(ctx context.Context, membershipID string) (permission.Mask, error)
}

// PermissionChecker answers permission questions through the resolution cache
type PermissionChecker struct {
	registry *permission.Registry
	resolver *Resolver
	cache    *Cache
	logger   *observability.Logger
}

var _ Checker = (*PermissionChecker)(nil)

// NewPermissionChecker wires a resolver and cache over store
func NewPermissionChecker(store Store, registry *permission.Registry, opts ...Option) *PermissionChecker {
	o := newOptions(opts)
	resolver := NewResolver(store, registry, opts...)
	return &PermissionChecker{
		registry: registry,
		resolver: resolver,
		cache:    NewCache(store, resolver, opts...),
		logger:   o.logger,
	}
}

// Registry returns the permission registry
func (c *PermissionChecker) Registry() *permission.Registry { return c.registry }

// Resolver returns the uncached resolver
func (c *PermissionChecker) Resolver() *Resolver { return c.resolver }

// Cache returns the resolution cache
func (c *PermissionChecker) Cache() *Cache { return c.cache }

// GetEffectivePermissions returns the user's mask in orgID
func (c *PermissionChecker) GetEffectivePermissions(ctx context.Context, userID, orgID string) (permission.Mask, error) {
	if userID == "" {
		return 0, ErrNotAuthenticated
	}
	return c.cache.GetEffectivePermissions(ctx, userID, orgID)
}

// CheckPermission reports whether userID holds code in orgID. Codes missing from
// the registry are denied without resolving.
func (c *PermissionChecker) CheckPermission(ctx context.Context, userID, orgID, code string) (bool, error) {
	if userID == "" {
		return false, ErrNotAuthenticated
	}
	bit, ok := c.registry.Bit(code)
	if !ok {
		c.logger.WithField("code", code).Debug("Permission check for unknown code")
		return false, nil
	}

	mask, err := c.cache.GetEffectivePermissions(ctx, userID, orgID)
	if err != nil {
		return false, err
	}
	return mask.Has(bit), nil
}

// GetAllPermissions reports every registry code for userID in orgID
func (c *PermissionChecker) GetAllPermissions(ctx context.Context, userID, orgID string) (map[string]bool, error) {
	mask, err := c.GetEffectivePermissions(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	return c.registry.Expand(mask), nil
}

// RefreshAndStore recomputes and persists a membership's permissions
func (c *PermissionChecker) RefreshAndStore(ctx context.Context, membershipID string) (permission.Mask, error) {
	return c.cache.RefreshAndStore(ctx, membershipID)
}
