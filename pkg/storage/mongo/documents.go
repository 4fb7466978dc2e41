package mongo

import (
	"time"

	"github.com/platinummonkey/entitle/pkg/permission"
	"github.com/platinummonkey/entitle/pkg/rbac"
)

// Documents mirror the rbac types with bson field names. Masks are stored as
// int64 because BSON has no unsigned 64-bit integer.

type tierDoc struct {
	ID              string  `bson:"_id"`
	Name            string  `bson:"name"`
	Slug            string  `bson:"slug"`
	Description     string  `bson:"description,omitempty"`
	PriceEUR        float64 `bson:"price_eur"`
	IsCustom        bool    `bson:"is_custom"`
	BasePermissions int64   `bson:"base_permissions"`
	MaxMembers      *int    `bson:"max_members,omitempty"`
}

func toTierDoc(t *rbac.SubscriptionTier) tierDoc {
	return tierDoc{
		ID: t.ID, Name: t.Name, Slug: t.Slug, Description: t.Description,
		PriceEUR: t.PriceEUR, IsCustom: t.IsCustom,
		BasePermissions: t.BasePermissions.Int64(), MaxMembers: t.MaxMembers,
	}
}

func (d tierDoc) model() *rbac.SubscriptionTier {
	return &rbac.SubscriptionTier{
		ID: d.ID, Name: d.Name, Slug: d.Slug, Description: d.Description,
		PriceEUR: d.PriceEUR, IsCustom: d.IsCustom,
		BasePermissions: permission.FromInt64(d.BasePermissions), MaxMembers: d.MaxMembers,
	}
}

type organizationDoc struct {
	ID                 string    `bson:"_id"`
	Name               string    `bson:"name"`
	Slug               string    `bson:"slug"`
	OwnerID            string    `bson:"owner_id"`
	SubscriptionTierID string    `bson:"subscription_tier_id"`
	SubscriptionStatus string    `bson:"subscription_status"`
	CustomPermissions  int64     `bson:"custom_permissions"`
	CreatedAt          time.Time `bson:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at"`
}

func toOrganizationDoc(o *rbac.Organization) organizationDoc {
	return organizationDoc{
		ID: o.ID, Name: o.Name, Slug: o.Slug, OwnerID: o.OwnerID,
		SubscriptionTierID: o.SubscriptionTierID, SubscriptionStatus: string(o.SubscriptionStatus),
		CustomPermissions: o.CustomPermissions.Int64(),
		CreatedAt:         o.CreatedAt.UTC(), UpdatedAt: o.UpdatedAt.UTC(),
	}
}

func (d organizationDoc) model() *rbac.Organization {
	return &rbac.Organization{
		ID: d.ID, Name: d.Name, Slug: d.Slug, OwnerID: d.OwnerID,
		SubscriptionTierID: d.SubscriptionTierID, SubscriptionStatus: rbac.SubscriptionStatus(d.SubscriptionStatus),
		CustomPermissions: permission.FromInt64(d.CustomPermissions),
		CreatedAt:         d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type membershipDoc struct {
	ID                        string     `bson:"_id"`
	OrganizationID            string     `bson:"organization_id"`
	UserID                    string     `bson:"user_id"`
	Status                    string     `bson:"status"`
	InvitedBy                 string     `bson:"invited_by,omitempty"`
	InvitedAt                 *time.Time `bson:"invited_at,omitempty"`
	JoinedAt                  *time.Time `bson:"joined_at,omitempty"`
	ComputedPermissions       int64      `bson:"computed_permissions"`
	PermissionsLastComputedAt *time.Time `bson:"permissions_last_computed_at"`
}

func toMembershipDoc(m *rbac.Membership) membershipDoc {
	return membershipDoc{
		ID: m.ID, OrganizationID: m.OrganizationID, UserID: m.UserID, Status: string(m.Status),
		InvitedBy: m.InvitedBy, InvitedAt: utcPtr(m.InvitedAt), JoinedAt: utcPtr(m.JoinedAt),
		ComputedPermissions:       m.ComputedPermissions.Int64(),
		PermissionsLastComputedAt: utcPtr(m.PermissionsLastComputedAt),
	}
}

func (d membershipDoc) model() *rbac.Membership {
	return &rbac.Membership{
		ID: d.ID, OrganizationID: d.OrganizationID, UserID: d.UserID, Status: rbac.MemberStatus(d.Status),
		InvitedBy: d.InvitedBy, InvitedAt: utcPtr(d.InvitedAt), JoinedAt: utcPtr(d.JoinedAt),
		ComputedPermissions:       permission.FromInt64(d.ComputedPermissions),
		PermissionsLastComputedAt: utcPtr(d.PermissionsLastComputedAt),
	}
}

type permissionDoc struct {
	ID          string `bson:"_id"`
	Code        string `bson:"code"`
	BitPosition int    `bson:"bit_position"`
	Name        string `bson:"name"`
	Description string `bson:"description,omitempty"`
	Category    string `bson:"category"`
	IsAddon     bool   `bson:"is_addon"`
	IsDangerous bool   `bson:"is_dangerous"`
}

func (d permissionDoc) model() *rbac.Permission {
	p := rbac.Permission(d)
	return &p
}

type roleDoc struct {
	ID             string    `bson:"_id"`
	OrganizationID string    `bson:"organization_id"`
	Name           string    `bson:"name"`
	Description    string    `bson:"description,omitempty"`
	Color          string    `bson:"color,omitempty"`
	Permissions    int64     `bson:"permissions"`
	Position       int       `bson:"position"`
	IsSystemRole   bool      `bson:"is_system_role"`
	SystemRoleType string    `bson:"system_role_type,omitempty"`
	IsAssignable   bool      `bson:"is_assignable"`
	IsDefault      bool      `bson:"is_default"`
	CreatedAt      time.Time `bson:"created_at"`
}

func toRoleDoc(r *rbac.Role) roleDoc {
	return roleDoc{
		ID: r.ID, OrganizationID: r.OrganizationID, Name: r.Name, Description: r.Description, Color: r.Color,
		Permissions: r.Permissions.Int64(), Position: r.Position,
		IsSystemRole: r.IsSystemRole, SystemRoleType: string(r.SystemRoleType),
		IsAssignable: r.IsAssignable, IsDefault: r.IsDefault, CreatedAt: r.CreatedAt.UTC(),
	}
}

func (d roleDoc) model() rbac.Role {
	return rbac.Role{
		ID: d.ID, OrganizationID: d.OrganizationID, Name: d.Name, Description: d.Description, Color: d.Color,
		Permissions: permission.FromInt64(d.Permissions), Position: d.Position,
		IsSystemRole: d.IsSystemRole, SystemRoleType: rbac.SystemRoleType(d.SystemRoleType),
		IsAssignable: d.IsAssignable, IsDefault: d.IsDefault, CreatedAt: d.CreatedAt.UTC(),
	}
}

type assignmentDoc struct {
	ID         string    `bson:"_id"`
	MemberID   string    `bson:"member_id"`
	RoleID     string    `bson:"role_id"`
	AssignedBy string    `bson:"assigned_by,omitempty"`
	AssignedAt time.Time `bson:"assigned_at"`
}

func toAssignmentDoc(ra *rbac.RoleAssignment) assignmentDoc {
	return assignmentDoc{ID: ra.ID, MemberID: ra.MembershipID, RoleID: ra.RoleID, AssignedBy: ra.AssignedBy, AssignedAt: ra.AssignedAt.UTC()}
}

func (d assignmentDoc) model() rbac.RoleAssignment {
	return rbac.RoleAssignment{ID: d.ID, MembershipID: d.MemberID, RoleID: d.RoleID, AssignedBy: d.AssignedBy, AssignedAt: d.AssignedAt.UTC()}
}

type overrideDoc struct {
	ID           string     `bson:"_id"`
	MemberID     string     `bson:"member_id"`
	PermissionID string     `bson:"permission_id"`
	Allow        bool       `bson:"allow"`
	GrantedBy    string     `bson:"granted_by,omitempty"`
	Reason       string     `bson:"reason,omitempty"`
	ExpiresAt    *time.Time `bson:"expires_at"`
	CreatedAt    time.Time  `bson:"created_at"`
}

func toOverrideDoc(o *rbac.PermissionOverride) overrideDoc {
	return overrideDoc{
		ID: o.ID, MemberID: o.MembershipID, PermissionID: o.PermissionID, Allow: o.Allow,
		GrantedBy: o.GrantedBy, Reason: o.Reason, ExpiresAt: utcPtr(o.ExpiresAt), CreatedAt: o.CreatedAt.UTC(),
	}
}

func (d overrideDoc) model() rbac.PermissionOverride {
	return rbac.PermissionOverride{
		ID: d.ID, MembershipID: d.MemberID, PermissionID: d.PermissionID, Allow: d.Allow,
		GrantedBy: d.GrantedBy, Reason: d.Reason, ExpiresAt: utcPtr(d.ExpiresAt), CreatedAt: d.CreatedAt.UTC(),
	}
}

type addonDoc struct {
	ID             string     `bson:"_id"`
	OrganizationID string     `bson:"organization_id"`
	PermissionID   string     `bson:"permission_id"`
	PurchasedBy    string     `bson:"purchased_by,omitempty"`
	PurchasedAt    time.Time  `bson:"purchased_at"`
	ExpiresAt      *time.Time `bson:"expires_at"`
	PricePaidEUR   *float64   `bson:"price_paid_eur,omitempty"`
	IsActive       bool       `bson:"is_active"`
}

func toAddonDoc(a *rbac.AddonGrant) addonDoc {
	return addonDoc{
		ID: a.ID, OrganizationID: a.OrganizationID, PermissionID: a.PermissionID, PurchasedBy: a.PurchasedBy,
		PurchasedAt: a.PurchasedAt.UTC(), ExpiresAt: utcPtr(a.ExpiresAt), PricePaidEUR: a.PricePaidEUR, IsActive: a.IsActive,
	}
}

func (d addonDoc) model() rbac.AddonGrant {
	return rbac.AddonGrant{
		ID: d.ID, OrganizationID: d.OrganizationID, PermissionID: d.PermissionID, PurchasedBy: d.PurchasedBy,
		PurchasedAt: d.PurchasedAt.UTC(), ExpiresAt: utcPtr(d.ExpiresAt), PricePaidEUR: d.PricePaidEUR, IsActive: d.IsActive,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
