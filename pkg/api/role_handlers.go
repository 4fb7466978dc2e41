package api

import (
	"net/http"

	"github.com/platinummonkey/entitle/pkg/contextkeys"
	"github.com/platinummonkey/entitle/pkg/httputil"
	"github.com/platinummonkey/entitle/pkg/rbac"
)

// scopedMembership loads the membership_id route variable and checks it belongs
// to the organization the request was authorized for.
func (s *Server) scopedMembership(w http.ResponseWriter, r *http.Request) (*rbac.Membership, bool) {
	membershipID, ok := httputil.ParsePathStringOrError(w, r, "membership_id")
	if !ok {
		return nil, false
	}
	m, err := s.service.Membership(r.Context(), contextkeys.GetOrganizationID(r.Context()), membershipID)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return m, true
}

// assignRole handles POST /orgs/{org_id}/members/{membership_id}/roles
func (s *Server) assignRole(w http.ResponseWriter, r *http.Request) {
	m, ok := s.scopedMembership(w, r)
	if !ok {
		return
	}
	var req AssignRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.RoleID, "role_id") {
		return
	}

	if err := s.service.AssignRole(r.Context(), contextkeys.GetUserID(r.Context()), m.ID, req.RoleID); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// unassignRole handles DELETE /orgs/{org_id}/members/{membership_id}/roles/{role_id}
func (s *Server) unassignRole(w http.ResponseWriter, r *http.Request) {
	m, ok := s.scopedMembership(w, r)
	if !ok {
		return
	}
	roleID, ok := httputil.ParsePathStringOrError(w, r, "role_id")
	if !ok {
		return
	}

	if err := s.service.UnassignRole(r.Context(), contextkeys.GetUserID(r.Context()), m.ID, roleID); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listRoles handles GET /orgs/{org_id}/roles
func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.service.ListRoles(r.Context(), contextkeys.GetOrganizationID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

// createRole handles POST /orgs/{org_id}/roles
func (s *Server) createRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	ctx := r.Context()

	role, err := s.service.CreateRole(ctx, contextkeys.GetUserID(ctx), contextkeys.GetOrganizationID(ctx), req.Name, req.Color, req.Permissions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, role)
}

// deleteRole handles DELETE /orgs/{org_id}/roles/{role_id}
func (s *Server) deleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathStringOrError(w, r, "role_id")
	if !ok {
		return
	}
	ctx := r.Context()

	role, err := s.service.Role(ctx, contextkeys.GetOrganizationID(ctx), roleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.service.DeleteRole(ctx, contextkeys.GetUserID(ctx), role.ID); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// grantOverride handles POST /orgs/{org_id}/members/{membership_id}/overrides
func (s *Server) grantOverride(w http.ResponseWriter, r *http.Request) {
	m, ok := s.scopedMembership(w, r)
	if !ok {
		return
	}
	var req GrantOverrideRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Permission, "permission") {
		return
	}

	o, err := s.service.GrantOverride(r.Context(), contextkeys.GetUserID(r.Context()), m.ID, req.Permission, req.Allow, req.ExpiresAt, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, o)
}

// revokeOverride handles DELETE /orgs/{org_id}/members/{membership_id}/overrides/{override_id}
func (s *Server) revokeOverride(w http.ResponseWriter, r *http.Request) {
	m, ok := s.scopedMembership(w, r)
	if !ok {
		return
	}
	overrideID, ok := httputil.ParsePathStringOrError(w, r, "override_id")
	if !ok {
		return
	}

	if err := s.service.RevokeOverride(r.Context(), contextkeys.GetUserID(r.Context()), m.ID, overrideID); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
