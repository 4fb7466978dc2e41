// Package api exposes permission checks and organization administration over
// HTTP.
//
// # Authentication
//
// Identity is established upstream. Authenticate trusts the X-User-ID header set
// by the gateway and rejects requests without it.
//
// # Routes
//
//	GET    /orgs/{org_id}/permissions                  caller's permissions
//	GET    /orgs/{org_id}/permissions/{code}           {"allowed": bool}
//	POST   /memberships/{membership_id}/refresh        recompute and persist
//	POST   /orgs                                       create organization
//	POST   /orgs/{org_id}/join                         accept an invitation
//	GET    /orgs/{org_id}/members                      members.invite
//	POST   /orgs/{org_id}/members                      members.invite
//	PUT    /orgs/{org_id}/members/{membership_id}/status         members.remove
//	POST   /orgs/{org_id}/members/{membership_id}/roles          roles.manage
//	DELETE /orgs/{org_id}/members/{membership_id}/roles/{role_id} roles.manage
//	POST   /orgs/{org_id}/members/{membership_id}/overrides      roles.manage
//	DELETE /orgs/{org_id}/members/{membership_id}/overrides/{override_id}
//	GET    /orgs/{org_id}/roles                        roles.manage
//	POST   /orgs/{org_id}/roles                        roles.manage
//	DELETE /orgs/{org_id}/roles/{role_id}              roles.manage
//	POST   /orgs/{org_id}/addons                       billing.manage
//	DELETE /orgs/{org_id}/addons/{addon_id}            billing.manage
//	PUT    /orgs/{org_id}/tier                         billing.manage
//	GET    /orgs/{org_id}/audit                        org.settings
//
// Errors are JSON objects of the form {"error": "..."}. A failed permission
// store read is reported as 503 and never as an allowed check.
package api
