package httpx

import (
	"net/http"

	"github.com/synergyaccounting/synergy-web/internal/service"
)

type healthStatus struct {
	Status     string `json:"status"`
	Workspaces int    `json:"workspaces"`
}

// healthHandler answers readiness/liveness checks. It reports 503 once the
// registry is shutting down so load balancers stop routing visitors here.
func healthHandler(registry *service.WorkspaceRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := healthStatus{Status: "ok"}, http.StatusOK
		if registry != nil {
			status.Workspaces = registry.Len()
			if registry.Closed() {
				status.Status, code = "shutting_down", http.StatusServiceUnavailable
			}
		}
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			return
		}
		WriteJSON(w, code, status)
	}
}
