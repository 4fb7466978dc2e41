package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/entitle/pkg/audit"
	"github.com/platinummonkey/entitle/pkg/contextkeys"
	"github.com/platinummonkey/entitle/pkg/httputil"
	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/rbac"
)

// UserIDHeader carries the identity asserted by the upstream gateway
const UserIDHeader = "X-User-ID"

// Authenticate requires UserIDHeader and stores it in the request context along
// with the client details used for audit entries.
func Authenticate(logger *observability.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" {
				httputil.WriteUnauthorized(w, rbac.ErrNotAuthenticated.Error())
				return
			}

			ctx := contextkeys.WithUserID(r.Context(), userID)
			ctx = audit.WithClientInfo(ctx, clientIP(r), r.UserAgent())
			ctx = observability.WithLogger(ctx, logger.WithField("user_id", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects callers who do not hold code in the organization
// named by the org_id route variable.
func RequirePermission(checker rbac.Checker, code string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID, ok := httputil.ParsePathStringOrError(w, r, "org_id")
			if !ok {
				return
			}
			userID := contextkeys.GetUserID(r.Context())

			allowed, err := checker.CheckPermission(r.Context(), userID, orgID, code)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if !allowed {
				httputil.WriteForbidden(w, "missing permission "+code)
				return
			}

			ctx := contextkeys.WithOrganizationID(r.Context(), orgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request) string {
	return httputil.ClientIP(r)
}
