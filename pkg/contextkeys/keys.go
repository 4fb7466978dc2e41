// Package contextkeys provides centralized context key definitions
//
// All request-scoped keys shared between packages are defined here so that a
// value set by middleware can be read by handlers without import cycles.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithUserID(ctx, "user-1")
//	userID := contextkeys.GetUserID(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// UserIDKey contains the authenticated user ID string
	// Set by: api.Authenticate (pkg/api/middleware.go)
	// Used by: permission checks, audit actor, handlers
	UserIDKey Key = "user_id"

	// OrganizationIDKey contains the organization the request is scoped to
	// Set by: api.RequirePermission after a successful check
	// Used by: handlers operating on organization resources
	OrganizationIDKey Key = "organization_id"
)

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// WithOrganizationID adds the organization ID to the context
func WithOrganizationID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, OrganizationIDKey, orgID)
}

// GetOrganizationID retrieves the organization ID from context
func GetOrganizationID(ctx context.Context) string {
	if orgID, ok := ctx.Value(OrganizationIDKey).(string); ok {
		return orgID
	}
	return ""
}
