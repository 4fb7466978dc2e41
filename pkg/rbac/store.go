package rbac

import (
	"context"
	"time"

	"github.com/platinummonkey/entitle/pkg/audit"
)

// Store is the read contract the resolver depends on, plus the single write
// RefreshAndStore needs. Absent records are reported as ErrNotFound; any other
// error aborts resolution.
type Store interface {
	GetMembership(ctx context.Context, userID, orgID string) (*Membership, error)
	GetMembershipByID(ctx context.Context, id string) (*Membership, error)
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	GetTier(ctx context.Context, id string) (*SubscriptionTier, error)

	// ListActiveAddons returns grants of orgID that are active and unexpired at now.
	ListActiveAddons(ctx context.Context, orgID string, now time.Time) ([]AddonGrant, error)

	ListRoleAssignments(ctx context.Context, membershipID string) ([]RoleAssignment, error)
	GetRole(ctx context.Context, id string) (*Role, error)

	// ListActiveOverrides returns overrides of membershipID unexpired at now.
	ListActiveOverrides(ctx context.Context, membershipID string, now time.Time) ([]PermissionOverride, error)
	GetPermission(ctx context.Context, id string) (*Permission, error)

	PatchMembership(ctx context.Context, membershipID string, update CacheUpdate) error

	audit.Sink
}

// NewOrganization is everything written when an organization is created
type NewOrganization struct {
	Organization    *Organization
	Roles           []Role
	Owner           *Membership
	OwnerAssignment *RoleAssignment
}

// MutationStore adds the writes used by Service and the stale refresher.
type MutationStore interface {
	Store
	audit.Lister

	CreateTier(ctx context.Context, tier *SubscriptionTier) error
	GetTierBySlug(ctx context.Context, slug string) (*SubscriptionTier, error)
	UpsertPermission(ctx context.Context, perm *Permission) error
	GetPermissionByCode(ctx context.Context, code string) (*Permission, error)

	CreateOrganization(ctx context.Context, org *Organization) error
	// CreateOrganizationWithRoles stores every record of n or none of them.
	CreateOrganizationWithRoles(ctx context.Context, n *NewOrganization) error
	UpdateOrganizationTier(ctx context.Context, orgID, tierID string, updatedAt time.Time) error

	CreateMembership(ctx context.Context, m *Membership) error
	UpdateMembershipStatus(ctx context.Context, membershipID string, status MemberStatus, at time.Time) error
	ListMemberships(ctx context.Context, orgID string) ([]Membership, error)
	// ReinviteMembership atomically sets the membership back to invited and
	// replaces all of its role assignments and overrides with assignments.
	ReinviteMembership(ctx context.Context, membershipID, invitedBy string, at time.Time, assignments []RoleAssignment) error
	// ListStaleMemberships returns up to limit active memberships whose cache was
	// never computed or was computed before cutoff.
	ListStaleMemberships(ctx context.Context, cutoff time.Time, limit int) ([]Membership, error)

	CreateRole(ctx context.Context, role *Role) error
	ListRoles(ctx context.Context, orgID string) ([]Role, error)
	DeleteRole(ctx context.Context, roleID string) error

	CreateRoleAssignment(ctx context.Context, ra *RoleAssignment) error
	DeleteRoleAssignment(ctx context.Context, membershipID, roleID string) error

	CreateOverride(ctx context.Context, o *PermissionOverride) error
	DeleteOverride(ctx context.Context, membershipID, overrideID string) error

	CreateAddon(ctx context.Context, a *AddonGrant) error
	DeactivateAddon(ctx context.Context, orgID, addonID string) error

	Ping(ctx context.Context) error
	Close() error
}
