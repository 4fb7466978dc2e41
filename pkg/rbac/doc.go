// Package rbac resolves what a user may do inside an organization.
//
// # Overview
//
// A user's effective permissions in an organization are a permission.Mask built
// from five sources:
//
//	tier base | organization custom | active add-ons | assigned roles
//
// followed by the membership's unexpired overrides: allows are applied first and
// denies last, so a deny always clears its bit. Memberships that are not active
// resolve to zero, as do users without a membership.
//
// # Reading and refreshing
//
// Resolutions are persisted on the membership (ComputedPermissions and
// PermissionsLastComputedAt). PermissionChecker reads through Cache, which serves
// the persisted mask while it is younger than the TTL and recomputes otherwise.
// Reads never write. RefreshAndStore is the only operation that persists, and
// Service calls it after every mutation:
//
//	checker := rbac.NewPermissionChecker(store, registry, rbac.WithLogger(logger))
//	ok, err := checker.CheckPermission(ctx, userID, orgID, "crm.deals")
//
// # Failures
//
// Any failed store read aborts the resolution with a *SourceError that matches
// ErrStoreUnavailable. Callers must treat that as a denial. References to deleted
// roles, deleted permissions or codes absent from the registry contribute nothing
// and are not errors.
//
// # Administration
//
// Service creates organizations with their system roles, manages members, roles,
// overrides, add-ons and tiers, and records an audit.Entry for each change.
package rbac
