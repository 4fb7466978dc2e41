package api

import (
	"net/http"

	"github.com/platinummonkey/entitle/pkg/contextkeys"
	"github.com/platinummonkey/entitle/pkg/httputil"
)

// getPermissions handles GET /orgs/{org_id}/permissions
func (s *Server) getPermissions(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "org_id")
	if !ok {
		return
	}

	perms, err := s.checker.GetAllPermissions(r.Context(), contextkeys.GetUserID(r.Context()), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, PermissionsResponse{OrganizationID: orgID, Permissions: perms})
}

// checkPermission handles GET /orgs/{org_id}/permissions/{code}
func (s *Server) checkPermission(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "org_id")
	if !ok {
		return
	}
	code, ok := httputil.ParsePathStringOrError(w, r, "code")
	if !ok {
		return
	}

	allowed, err := s.checker.CheckPermission(r.Context(), contextkeys.GetUserID(r.Context()), orgID, code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, CheckResponse{Permission: code, Allowed: allowed})
}

// refreshMembership handles POST /memberships/{membership_id}/refresh. Members
// may refresh their own membership; anyone else needs org.settings.
func (s *Server) refreshMembership(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := httputil.ParsePathStringOrError(w, r, "membership_id")
	if !ok {
		return
	}
	userID := contextkeys.GetUserID(r.Context())

	m, err := s.service.Membership(r.Context(), "", membershipID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if m.UserID != userID {
		allowed, err := s.checker.CheckPermission(r.Context(), userID, m.OrganizationID, PermOrgSettings)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !allowed {
			httputil.WriteForbidden(w, "missing permission "+PermOrgSettings)
			return
		}
	}

	mask, err := s.checker.RefreshAndStore(r.Context(), membershipID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, RefreshResponse{MembershipID: membershipID, Permissions: mask})
}
