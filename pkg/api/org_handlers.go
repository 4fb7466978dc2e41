package api

import (
	"net/http"

	"github.com/platinummonkey/entitle/pkg/contextkeys"
	"github.com/platinummonkey/entitle/pkg/httputil"
)

// createOrganization handles POST /orgs
func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	org, m, err := s.service.CreateOrganization(r.Context(), contextkeys.GetUserID(r.Context()), req.Name, req.Slug)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, CreateOrganizationResponse{Organization: org, Membership: m})
}

// acceptInvitation handles POST /orgs/{org_id}/join
func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "org_id")
	if !ok {
		return
	}

	m, err := s.service.AcceptInvitation(r.Context(), contextkeys.GetUserID(r.Context()), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, m)
}

// listMembers handles GET /orgs/{org_id}/members
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.service.ListMembers(r.Context(), contextkeys.GetOrganizationID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

// inviteMember handles POST /orgs/{org_id}/members
func (s *Server) inviteMember(w http.ResponseWriter, r *http.Request) {
	var req InviteMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	ctx := r.Context()

	m, err := s.service.InviteMember(ctx, contextkeys.GetUserID(ctx), contextkeys.GetOrganizationID(ctx), req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, m)
}

// setMemberStatus handles PUT /orgs/{org_id}/members/{membership_id}/status
func (s *Server) setMemberStatus(w http.ResponseWriter, r *http.Request) {
	m, ok := s.scopedMembership(w, r)
	if !ok {
		return
	}
	var req SetStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	updated, err := s.service.SetMemberStatus(r.Context(), contextkeys.GetUserID(r.Context()), m.ID, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// listAudit handles GET /orgs/{org_id}/audit?since=RFC3339&limit=N
func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	since, err := httputil.ParseQueryTime(r, "since")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := httputil.ParseQueryLimit(r, "limit", 100, 1000)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	entries, err := s.service.ListAuditEntries(r.Context(), contextkeys.GetOrganizationID(r.Context()), since, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, entries)
}
