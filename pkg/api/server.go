package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/rbac"
)

// Permission codes guarding the administrative routes
const (
	PermMembersInvite = "members.invite"
	PermMembersRemove = "members.remove"
	PermRolesManage   = "roles.manage"
	PermBillingManage = "billing.manage"
	PermOrgSettings   = "org.settings"
)

// Server represents our API server
type Server struct {
	router  *mux.Router
	checker rbac.Checker
	service *rbac.Service
	logger  *observability.Logger
}

// NewServer creates a new API server
func NewServer(checker rbac.Checker, service *rbac.Service, logger *observability.Logger) *Server {
	if logger == nil {
		logger = observability.NopLogger()
	}
	s := &Server{
		router:  mux.NewRouter(),
		checker: checker,
		service: service,
		logger:  logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(Authenticate(s.logger))
	guard := func(code string, h http.HandlerFunc) http.Handler {
		return RequirePermission(s.checker, code)(h)
	}

	// Permission queries
	s.router.HandleFunc("/orgs/{org_id}/permissions", s.getPermissions).Methods("GET")
	s.router.HandleFunc("/orgs/{org_id}/permissions/{code}", s.checkPermission).Methods("GET")
	s.router.HandleFunc("/memberships/{membership_id}/refresh", s.refreshMembership).Methods("POST")

	// Organizations and members
	s.router.HandleFunc("/orgs", s.createOrganization).Methods("POST")
	s.router.HandleFunc("/orgs/{org_id}/join", s.acceptInvitation).Methods("POST")
	s.router.Handle("/orgs/{org_id}/members", guard(PermMembersInvite, s.listMembers)).Methods("GET")
	s.router.Handle("/orgs/{org_id}/members", guard(PermMembersInvite, s.inviteMember)).Methods("POST")
	s.router.Handle("/orgs/{org_id}/members/{membership_id}/status", guard(PermMembersRemove, s.setMemberStatus)).Methods("PUT")

	// Roles
	s.router.Handle("/orgs/{org_id}/members/{membership_id}/roles", guard(PermRolesManage, s.assignRole)).Methods("POST")
	s.router.Handle("/orgs/{org_id}/members/{membership_id}/roles/{role_id}", guard(PermRolesManage, s.unassignRole)).Methods("DELETE")
	s.router.Handle("/orgs/{org_id}/roles", guard(PermRolesManage, s.listRoles)).Methods("GET")
	s.router.Handle("/orgs/{org_id}/roles", guard(PermRolesManage, s.createRole)).Methods("POST")
	s.router.Handle("/orgs/{org_id}/roles/{role_id}", guard(PermRolesManage, s.deleteRole)).Methods("DELETE")

	// Overrides
	s.router.Handle("/orgs/{org_id}/members/{membership_id}/overrides", guard(PermRolesManage, s.grantOverride)).Methods("POST")
	s.router.Handle("/orgs/{org_id}/members/{membership_id}/overrides/{override_id}", guard(PermRolesManage, s.revokeOverride)).Methods("DELETE")

	// Billing
	s.router.Handle("/orgs/{org_id}/addons", guard(PermBillingManage, s.purchaseAddon)).Methods("POST")
	s.router.Handle("/orgs/{org_id}/addons/{addon_id}", guard(PermBillingManage, s.cancelAddon)).Methods("DELETE")
	s.router.Handle("/orgs/{org_id}/tier", guard(PermBillingManage, s.changeTier)).Methods("PUT")

	// Audit
	s.router.Handle("/orgs/{org_id}/audit", guard(PermOrgSettings, s.listAudit)).Methods("GET")
}

// Router returns the underlying router so callers can mount it or add middleware
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
