package rbac

import (
	"time"

	"github.com/platinummonkey/entitle/pkg/permission"
)

// MemberStatus is the lifecycle state of a membership
type MemberStatus string

const (
	MemberStatusInvited   MemberStatus = "invited"
	MemberStatusActive    MemberStatus = "active"
	MemberStatusSuspended MemberStatus = "suspended"
	MemberStatusLeft      MemberStatus = "left"
)

// Valid reports whether s is a known status
func (s MemberStatus) Valid() bool {
	switch s {
	case MemberStatusInvited, MemberStatusActive, MemberStatusSuspended, MemberStatusLeft:
		return true
	}
	return false
}

// SubscriptionStatus is the billing state of an organization
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionTrialing SubscriptionStatus = "trialing"
)

// SystemRoleType identifies one of the roles seeded with every organization
type SystemRoleType string

const (
	SystemRoleOwner     SystemRoleType = "owner"
	SystemRoleAdmin     SystemRoleType = "admin"
	SystemRoleModerator SystemRoleType = "moderator"
	SystemRoleMember    SystemRoleType = "member"
)

// SubscriptionTier is a catalog plan granting base permissions to every
// organization on it
type SubscriptionTier struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Slug            string          `json:"slug"`
	Description     string          `json:"description,omitempty"`
	PriceEUR        float64         `json:"price_eur"`
	IsCustom        bool            `json:"is_custom"`
	BasePermissions permission.Mask `json:"base_permissions"`
	MaxMembers      *int            `json:"max_members,omitempty"`
}

// Organization is a tenant
type Organization struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Slug               string             `json:"slug"`
	OwnerID            string             `json:"owner_id"`
	SubscriptionTierID string             `json:"subscription_tier_id"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	CustomPermissions  permission.Mask    `json:"custom_permissions"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Membership relates one user to one organization and carries the persisted
// resolution cache
type Membership struct {
	ID                        string          `json:"id"`
	OrganizationID            string          `json:"organization_id"`
	UserID                    string          `json:"user_id"`
	Status                    MemberStatus    `json:"status"`
	InvitedBy                 string          `json:"invited_by,omitempty"`
	InvitedAt                 *time.Time      `json:"invited_at,omitempty"`
	JoinedAt                  *time.Time      `json:"joined_at,omitempty"`
	ComputedPermissions       permission.Mask `json:"computed_permissions"`
	PermissionsLastComputedAt *time.Time      `json:"permissions_last_computed_at,omitempty"`
}

// Active reports whether the membership may hold permissions
func (m *Membership) Active() bool {
	return m.Status == MemberStatusActive
}

// Permission is the stored catalog row for a registry code
type Permission struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	BitPosition int    `json:"bit_position"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	IsAddon     bool   `json:"is_addon"`
	IsDangerous bool   `json:"is_dangerous"`
}

// Role is an organization-scoped set of permissions. Position only orders roles
// for display; every assigned role contributes equally.
type Role struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Color          string          `json:"color,omitempty"`
	Permissions    permission.Mask `json:"permissions"`
	Position       int             `json:"position"`
	IsSystemRole   bool            `json:"is_system_role"`
	SystemRoleType SystemRoleType  `json:"system_role_type,omitempty"`
	IsAssignable   bool            `json:"is_assignable"`
	IsDefault      bool            `json:"is_default"`
	CreatedAt      time.Time       `json:"created_at"`
}

// RoleAssignment gives a membership a role
type RoleAssignment struct {
	ID           string    `json:"id"`
	MembershipID string    `json:"membership_id"`
	RoleID       string    `json:"role_id"`
	AssignedBy   string    `json:"assigned_by,omitempty"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// AddonGrant gives an organization one extra permission
type AddonGrant struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	PermissionID   string     `json:"permission_id"`
	PurchasedBy    string     `json:"purchased_by,omitempty"`
	PurchasedAt    time.Time  `json:"purchased_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	PricePaidEUR   *float64   `json:"price_paid_eur,omitempty"`
	IsActive       bool       `json:"is_active"`
}

// ActiveAt reports whether the grant contributes at now
func (a *AddonGrant) ActiveAt(now time.Time) bool {
	return a.IsActive && (a.ExpiresAt == nil || a.ExpiresAt.After(now))
}

// PermissionOverride grants (Allow) or revokes one permission for one membership
type PermissionOverride struct {
	ID           string     `json:"id"`
	MembershipID string     `json:"membership_id"`
	PermissionID string     `json:"permission_id"`
	Allow        bool       `json:"allow"`
	GrantedBy    string     `json:"granted_by,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ActiveAt reports whether the override applies at now
func (o *PermissionOverride) ActiveAt(now time.Time) bool {
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}

// CacheUpdate is the patch RefreshAndStore writes onto a membership
type CacheUpdate struct {
	ComputedPermissions       permission.Mask
	PermissionsLastComputedAt time.Time
}
