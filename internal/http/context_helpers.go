package httpx

import (
	"context"

	"github.com/synergyaccounting/synergy-web/internal/service"
)

// workspaceKey is an unexported context key type to avoid collisions across packages.
type workspaceKey struct{}

// SetWorkspaceInContext returns a child context that carries the visitor's Workspace.
// If ws is nil, the original ctx is returned unchanged.
func SetWorkspaceInContext(ctx context.Context, ws *service.Workspace) context.Context {
	if ws == nil {
		return ctx
	}
	return context.WithValue(ctx, workspaceKey{}, ws)
}

// WorkspaceFromContext returns the Workspace and whether one was attached.
func WorkspaceFromContext(ctx context.Context) (*service.Workspace, bool) {
	ws, ok := ctx.Value(workspaceKey{}).(*service.Workspace)
	return ws, ok && ws != nil
}
