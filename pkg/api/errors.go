package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/entitle/pkg/httputil"
	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/rbac"
)

// writeError maps rbac errors onto HTTP statuses
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rbac.ErrNotAuthenticated):
		httputil.WriteUnauthorized(w, err.Error())
	case errors.Is(err, rbac.ErrStoreUnavailable):
		observability.FromContext(r.Context(), nil).WithError(err).Error("Permission store unavailable")
		httputil.WriteServiceUnavailable(w, rbac.ErrStoreUnavailable.Error())
	case errors.Is(err, rbac.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, rbac.ErrInvalidInput), errors.Is(err, rbac.ErrUnknownPermission):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, rbac.ErrSystemRole):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, rbac.ErrConflict):
		httputil.WriteConflict(w, err.Error())
	default:
		observability.FromContext(r.Context(), nil).WithError(err).Error("Request failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
