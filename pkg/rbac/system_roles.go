package rbac

import "github.com/platinummonkey/entitle/pkg/permission"

// Fixed masks of the non-owner system roles
const (
	AdminPermissions     permission.Mask = 1<<19 - 1 // bits 0-18
	ModeratorPermissions permission.Mask = 1<<13 - 1 // bits 0-12
	MemberPermissions    permission.Mask = 1<<3 - 1  // bits 0-2
)

// SystemRoles returns the four roles seeded into a new organization. Owner holds
// every bit, including bits registered after the organization exists.
func SystemRoles(orgID string) []Role {
	return []Role{
		{
			OrganizationID: orgID,
			Name:           "Owner",
			Description:    "Organization owner with full control",
			Color:          "#e74c3c",
			Permissions:    permission.All,
			Position:       0,
			IsSystemRole:   true,
			SystemRoleType: SystemRoleOwner,
		},
		{
			OrganizationID: orgID,
			Name:           "Admin",
			Description:    "Administrator with most privileges",
			Color:          "#3498db",
			Permissions:    AdminPermissions,
			Position:       1,
			IsSystemRole:   true,
			SystemRoleType: SystemRoleAdmin,
			IsAssignable:   true,
		},
		{
			OrganizationID: orgID,
			Name:           "Moderator",
			Description:    "Can manage members and content",
			Color:          "#2ecc71",
			Permissions:    ModeratorPermissions,
			Position:       2,
			IsSystemRole:   true,
			SystemRoleType: SystemRoleModerator,
			IsAssignable:   true,
		},
		{
			OrganizationID: orgID,
			Name:           "Member",
			Description:    "Default member role",
			Color:          "#95a5a6",
			Permissions:    MemberPermissions,
			Position:       3,
			IsSystemRole:   true,
			SystemRoleType: SystemRoleMember,
			IsAssignable:   true,
			IsDefault:      true,
		},
	}
}

// DefaultTiers returns the catalog plans seeded by Service.SeedCatalog
func DefaultTiers() []SubscriptionTier {
	return []SubscriptionTier{
		{Name: "User", Slug: "user", PriceEUR: 0, BasePermissions: 1<<2 - 1, Description: "Personal profile"},
		{Name: "Web", Slug: "web", PriceEUR: 9, BasePermissions: 1<<5 - 1, Description: "Analytics and exports"},
		{Name: "App", Slug: "app", PriceEUR: 29, BasePermissions: 1<<9 - 1, Description: "API access and webhooks"},
		{Name: "CRM", Slug: "crm", PriceEUR: 79, BasePermissions: 1<<12 - 1, Description: "Full CRM suite"},
	}
}

// DefaultTierSlug is the tier new organizations start on
const DefaultTierSlug = "user"
