package httpx

import (
	"net/http"

	apperrors "github.com/synergyaccounting/synergy-web/internal/errors"
)

// sessionState is the JSON shape of GET /session/state.
type sessionState struct {
	Token         string `json:"token"`
	Bootstrapped  bool   `json:"bootstrapped"`
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	Role          string `json:"role,omitempty"`
}

// SessionState reports the visitor's token and session progress as JSON.
func (h *UIHandlers) SessionState(w http.ResponseWriter, r *http.Request) {
	ws, ok := WorkspaceFromContext(r.Context())
	if !ok {
		WriteError(w, apperrors.Unavailable("visitor workspace unavailable"))
		return
	}

	state := sessionState{
		Token:        ws.Tokens().State().String(),
		Bootstrapped: ws.Bootstrapped(),
	}
	if p := ws.Principal(); p != nil {
		state.Authenticated = true
		state.Username = p.Username
		state.Role = string(p.Role)
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, state)
}
