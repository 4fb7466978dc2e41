package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/entitle/pkg/permission"
)

// Source names, used in errors and metrics
const (
	SourceMembership   = "membership"
	SourceOrganization = "organization"
	SourceTier         = "tier"
	SourceAddons       = "addons"
	SourceRoles        = "roles"
	SourceOverrides    = "overrides"
)

// OverrideOp is one signed override operation on a bit
type OverrideOp struct {
	Bit   int
	Allow bool
}

// ApplyOverrides sets every allowed bit, then clears every denied bit, so a deny
// always wins regardless of the order ops arrive in.
func ApplyOverrides(mask permission.Mask, ops []OverrideOp) permission.Mask {
	for _, op := range ops {
		if op.Allow {
			mask = mask.Set(op.Bit)
		}
	}
	for _, op := range ops {
		if !op.Allow {
			mask = mask.Clear(op.Bit)
		}
	}
	return mask
}

// readOrganization loads the organization shared by the tier and custom readers.
// A missing organization is reported as nil, nil.
func (r *Resolver) readOrganization(ctx context.Context, orgID string) (*Organization, error) {
	org, err := r.store.GetOrganization(ctx, orgID)
	if errors.Is(err, ErrNotFound) {
		r.logger.WithField("organization_id", orgID).Warn("Membership references missing organization")
		return nil, nil
	}
	if err != nil {
		return nil, sourceErr(SourceOrganization, err)
	}
	return org, nil
}

func (r *Resolver) readTier(ctx context.Context, org *Organization) (permission.Mask, error) {
	tier, err := r.store.GetTier(ctx, org.SubscriptionTierID)
	if errors.Is(err, ErrNotFound) {
		r.logger.WithFields(map[string]interface{}{
			"organization_id": org.ID,
			"tier_id":         org.SubscriptionTierID,
		}).Warn("Organization references missing tier")
		return 0, nil
	}
	if err != nil {
		return 0, sourceErr(SourceTier, err)
	}
	return tier.BasePermissions, nil
}

func readCustom(org *Organization) permission.Mask {
	return org.CustomPermissions
}

func (r *Resolver) readAddons(ctx context.Context, orgID string, now time.Time) (permission.Mask, error) {
	grants, err := r.store.ListActiveAddons(ctx, orgID, now)
	if err != nil {
		return 0, sourceErr(SourceAddons, err)
	}

	var mask permission.Mask
	for i := range grants {
		if !grants[i].ActiveAt(now) {
			continue
		}
		bit, ok, err := r.permissionBit(ctx, grants[i].PermissionID)
		if err != nil {
			return 0, sourceErr(SourceAddons, err)
		}
		if ok {
			mask = mask.Set(bit)
		}
	}
	return mask, nil
}

func (r *Resolver) readRoles(ctx context.Context, m *Membership) (permission.Mask, error) {
	assignments, err := r.store.ListRoleAssignments(ctx, m.ID)
	if err != nil {
		return 0, sourceErr(SourceRoles, err)
	}

	var mask permission.Mask
	for _, ra := range assignments {
		role, err := r.store.GetRole(ctx, ra.RoleID)
		if errors.Is(err, ErrNotFound) {
			r.logger.WithField("role_id", ra.RoleID).Debug("Skipping assignment of deleted role")
			continue
		}
		if err != nil {
			return 0, sourceErr(SourceRoles, err)
		}
		if role.OrganizationID != m.OrganizationID {
			r.logger.WithFields(map[string]interface{}{
				"role_id":       role.ID,
				"membership_id": m.ID,
			}).Warn("Skipping role from another organization")
			continue
		}
		mask |= role.Permissions
	}
	return mask, nil
}

func (r *Resolver) readOverrides(ctx context.Context, membershipID string, now time.Time) ([]OverrideOp, error) {
	overrides, err := r.store.ListActiveOverrides(ctx, membershipID, now)
	if err != nil {
		return nil, sourceErr(SourceOverrides, err)
	}

	ops := make([]OverrideOp, 0, len(overrides))
	for i := range overrides {
		if !overrides[i].ActiveAt(now) {
			continue
		}
		bit, ok, err := r.permissionBit(ctx, overrides[i].PermissionID)
		if err != nil {
			return nil, sourceErr(SourceOverrides, err)
		}
		if ok {
			ops = append(ops, OverrideOp{Bit: bit, Allow: overrides[i].Allow})
		}
	}
	return ops, nil
}

// permissionBit maps a stored permission to its registry position. ok is false
// for dangling references: a deleted permission row or a code the registry no
// longer carries.
func (r *Resolver) permissionBit(ctx context.Context, permissionID string) (int, bool, error) {
	perm, err := r.store.GetPermission(ctx, permissionID)
	if errors.Is(err, ErrNotFound) {
		r.logger.WithField("permission_id", permissionID).Debug("Skipping dangling permission reference")
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	bit, ok := r.registry.Bit(perm.Code)
	if !ok {
		r.logger.WithField("code", perm.Code).Debug("Skipping permission absent from registry")
		return 0, false, nil
	}
	if bit != perm.BitPosition {
		r.logger.WithFields(map[string]interface{}{
			"code":         perm.Code,
			"stored_bit":   perm.BitPosition,
			"registry_bit": bit,
		}).Warn("Stored permission position disagrees with registry")
	}
	return bit, true, nil
}
