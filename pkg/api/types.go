package api

import (
	"time"

	"github.com/platinummonkey/entitle/pkg/permission"
	"github.com/platinummonkey/entitle/pkg/rbac"
)

// PermissionsResponse lists every registry code for the caller
type PermissionsResponse struct {
	OrganizationID string          `json:"organization_id"`
	Permissions    map[string]bool `json:"permissions"`
}

// CheckResponse answers a single permission check
type CheckResponse struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}

// RefreshResponse reports a newly persisted mask
type RefreshResponse struct {
	MembershipID string          `json:"membership_id"`
	Permissions  permission.Mask `json:"permissions"`
}

// CreateOrganizationRequest is the body of POST /orgs
type CreateOrganizationRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CreateOrganizationResponse returns the organization and the owner membership
type CreateOrganizationResponse struct {
	Organization *rbac.Organization `json:"organization"`
	Membership   *rbac.Membership   `json:"membership"`
}

// InviteMemberRequest is the body of POST /orgs/{org_id}/members
type InviteMemberRequest struct {
	UserID string `json:"user_id"`
}

// SetStatusRequest is the body of PUT .../status
type SetStatusRequest struct {
	Status rbac.MemberStatus `json:"status"`
}

// AssignRoleRequest is the body of POST .../roles
type AssignRoleRequest struct {
	RoleID string `json:"role_id"`
}

// CreateRoleRequest is the body of POST /orgs/{org_id}/roles
type CreateRoleRequest struct {
	Name        string   `json:"name"`
	Color       string   `json:"color,omitempty"`
	Permissions []string `json:"permissions"`
}

// GrantOverrideRequest is the body of POST .../overrides
type GrantOverrideRequest struct {
	Permission string     `json:"permission"`
	Allow      bool       `json:"allow"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// PurchaseAddonRequest is the body of POST /orgs/{org_id}/addons
type PurchaseAddonRequest struct {
	Permission   string     `json:"permission"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	PricePaidEUR *float64   `json:"price_paid_eur,omitempty"`
}

// ChangeTierRequest is the body of PUT /orgs/{org_id}/tier
type ChangeTierRequest struct {
	Tier string `json:"tier"`
}
