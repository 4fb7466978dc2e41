package audit

import (
	"context"
	"time"
)

// Action is the kind of permission-affecting change
type Action string

const (
	ActionRoleCreated       Action = "role_created"
	ActionRoleUpdated       Action = "role_updated"
	ActionRoleDeleted       Action = "role_deleted"
	ActionRoleAssigned      Action = "role_assigned"
	ActionRoleUnassigned    Action = "role_unassigned"
	ActionPermissionGranted Action = "permission_granted"
	ActionPermissionRevoked Action = "permission_revoked"
	ActionAddonPurchased    Action = "addon_purchased"
	ActionAddonCancelled    Action = "addon_cancelled"
	ActionMemberInvited     Action = "member_invited"
	ActionMemberJoined      Action = "member_joined"
	ActionMemberRemoved     Action = "member_removed"
	ActionTierUpgraded      Action = "tier_upgraded"
	ActionTierDowngraded    Action = "tier_downgraded"
	ActionOverrideAdded     Action = "override_added"
	ActionOverrideRemoved   Action = "override_removed"
)

// Actions lists every known action
func Actions() []Action {
	return []Action{
		ActionRoleCreated, ActionRoleUpdated, ActionRoleDeleted,
		ActionRoleAssigned, ActionRoleUnassigned,
		ActionPermissionGranted, ActionPermissionRevoked,
		ActionAddonPurchased, ActionAddonCancelled,
		ActionMemberInvited, ActionMemberJoined, ActionMemberRemoved,
		ActionTierUpgraded, ActionTierDowngraded,
		ActionOverrideAdded, ActionOverrideRemoved,
	}
}

// Valid reports whether a is a known action
func (a Action) Valid() bool {
	for _, known := range Actions() {
		if a == known {
			return true
		}
	}
	return false
}

// Target identifies what an action was applied to. Any field may be empty.
type Target struct {
	UserID       string `json:"user_id,omitempty" bson:"user_id,omitempty"`
	RoleID       string `json:"role_id,omitempty" bson:"role_id,omitempty"`
	PermissionID string `json:"permission_id,omitempty" bson:"permission_id,omitempty"`
}

// Entry is one immutable audit record
type Entry struct {
	ID             string                 `json:"id" bson:"_id"`
	OrganizationID string                 `json:"organization_id" bson:"organization_id"`
	ActorID        string                 `json:"actor_id" bson:"actor_id"`
	Action         Action                 `json:"action" bson:"action"`
	Target         Target                 `json:"target" bson:"target"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	IPAddress      string                 `json:"ip_address,omitempty" bson:"ip_address,omitempty"`
	UserAgent      string                 `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	CreatedAt      time.Time              `json:"created_at" bson:"created_at"`
}

// Sink persists entries. Store implementations satisfy it directly.
type Sink interface {
	AppendAuditEntry(ctx context.Context, entry *Entry) error
}

// Filter selects entries for listing and archiving
type Filter struct {
	OrganizationID string
	Action         Action
	Since          time.Time
	Until          time.Time
	Limit          int
}

// Lister reads entries back, newest last. A positive Limit keeps the most
// recent entries.
type Lister interface {
	ListAuditEntries(ctx context.Context, filter Filter) ([]Entry, error)
}

// Matches reports whether e passes f. Stores without query support use it.
func (f Filter) Matches(e *Entry) bool {
	if f.OrganizationID != "" && e.OrganizationID != f.OrganizationID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}
