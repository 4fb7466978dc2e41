// Package httputil holds the request and response plumbing shared by the
// entitle API.
//
// Every error body has the shape {"error": "...", "code": "..."}, where code is
// derived from the status (not_found, conflict, store_unavailable and so on),
// so clients can branch without parsing messages.
//
//	var req grantOverrideRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//	limit, err := httputil.ParseQueryLimit(r, "limit", 100, 1000)
//
// The server stack is built with Chain; MaxBytesMiddleware pairs with
// ParseJSONOrError, which answers 413 once the limit is hit.
package httputil
