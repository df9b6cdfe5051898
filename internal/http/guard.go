package httpx

import (
	"net/http"

	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
)

// Guarded gates next behind a ScreenGuard for requirement.
//
// Pending renders only the loading placeholder; Denied redirects to the login
// screen whether the visitor is signed out or lacks the role.
func (h *UIHandlers) Guarded(requirement domainauth.Requirement, next http.HandlerFunc) http.HandlerFunc {
	g := h.guard(requirement)
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := h.workspace(w, r)
		if !ok {
			return
		}
		switch g.Resolve(r.Context(), ws) {
		case domainauth.DecisionAllowed:
			next(w, r)
		case domainauth.DecisionDenied:
			redirect(w, r, PathLogin)
		default:
			h.renderLoading(w, r)
		}
	}
}

// tokenScreen runs next once the Workspace holds a token, the way public
// account screens wait for one before showing their form. While bootstrap
// runs the loading placeholder is shown; if bootstrap ended without a token
// a retry is started and next runs with the token notice set.
func (h *UIHandlers) tokenScreen(next func(w http.ResponseWriter, r *http.Request, notice string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := h.workspace(w, r)
		if !ok {
			return
		}
		if !h.awaitBootstrap(r.Context(), ws) {
			h.renderLoading(w, r)
			return
		}
		if _, held := ws.Tokens().Current(); !held {
			ws.RetryToken()
			next(w, r, msgTokenMissing)
			return
		}
		next(w, r, "")
	}
}
