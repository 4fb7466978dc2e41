package api

import (
	"net/http"

	"github.com/platinummonkey/entitle/pkg/contextkeys"
	"github.com/platinummonkey/entitle/pkg/httputil"
)

// purchaseAddon handles POST /orgs/{org_id}/addons
func (s *Server) purchaseAddon(w http.ResponseWriter, r *http.Request) {
	var req PurchaseAddonRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Permission, "permission") {
		return
	}
	ctx := r.Context()

	grant, err := s.service.PurchaseAddon(ctx, contextkeys.GetUserID(ctx), contextkeys.GetOrganizationID(ctx), req.Permission, req.ExpiresAt, req.PricePaidEUR)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, grant)
}

// cancelAddon handles DELETE /orgs/{org_id}/addons/{addon_id}
func (s *Server) cancelAddon(w http.ResponseWriter, r *http.Request) {
	addonID, ok := httputil.ParsePathStringOrError(w, r, "addon_id")
	if !ok {
		return
	}
	ctx := r.Context()

	if err := s.service.CancelAddon(ctx, contextkeys.GetUserID(ctx), contextkeys.GetOrganizationID(ctx), addonID); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// changeTier handles PUT /orgs/{org_id}/tier
func (s *Server) changeTier(w http.ResponseWriter, r *http.Request) {
	var req ChangeTierRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Tier, "tier") {
		return
	}
	ctx := r.Context()

	tier, err := s.service.ChangeTier(ctx, contextkeys.GetUserID(ctx), contextkeys.GetOrganizationID(ctx), req.Tier)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, tier)
}
