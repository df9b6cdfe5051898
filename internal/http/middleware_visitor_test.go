package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synergyaccounting/synergy-web/internal/service"
)

func visitorCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultVisitorCookieName {
			return c
		}
	}
	return nil
}

// echoWorkspace writes the id of the attached Workspace.
func echoWorkspace() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, ok := WorkspaceFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(ws.ID()))
	})
}

func TestVisitor_IssuesCookieForNewVisitor(t *testing.T) {
	f := newHandlerFixture(t)
	handler := Visitor(VisitorConfig{Registry: f.registry, MaxAge: time.Hour})(echoWorkspace())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newGet("/login"))

	require.Equal(t, http.StatusOK, rec.Code)
	c := visitorCookie(rec)
	require.NotNil(t, c)
	assert.Equal(t, rec.Body.String(), c.Value)
	assert.True(t, service.ValidVisitorID(c.Value))
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 3600, c.MaxAge)
	assert.Equal(t, 1, f.registry.Len())
}

func TestVisitor_ReusesKnownWorkspace(t *testing.T) {
	f := newHandlerFixture(t)
	ws := f.workspace(t)
	handler := Visitor(VisitorConfig{Registry: f.registry})(echoWorkspace())

	req := newGet("/dashboard")
	req.AddCookie(&http.Cookie{Name: DefaultVisitorCookieName, Value: ws.ID()})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, ws.ID(), rec.Body.String())
	assert.Equal(t, ws.ID(), visitorCookie(rec).Value, "cookie is refreshed with the same id")
	assert.Equal(t, 1, f.registry.Len())
}

func TestVisitor_ReplacesMalformedOrEvictedID(t *testing.T) {
	f := newHandlerFixture(t)
	handler := Visitor(VisitorConfig{Registry: f.registry})(echoWorkspace())

	for _, presented := range []string{"not-a-uuid", service.NewVisitorID()} {
		req := newGet("/login")
		req.AddCookie(&http.Cookie{Name: DefaultVisitorCookieName, Value: presented})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		got := rec.Body.String()
		require.NotEmpty(t, got)
		if !service.ValidVisitorID(presented) {
			assert.NotEqual(t, presented, got)
		}
		assert.Equal(t, got, visitorCookie(rec).Value)
	}
}

func TestVisitor_StartsBootstrap(t *testing.T) {
	f := newHandlerFixture(t)
	handler := Visitor(VisitorConfig{Registry: f.registry})(echoWorkspace())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newGet("/login"))

	ws, ok := f.registry.Get(rec.Body.String())
	require.True(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ws.WaitBootstrapped(ctx))
	_, held := ws.Tokens().Current()
	assert.True(t, held)
}

func TestVisitor_SkipServesWithoutWorkspace(t *testing.T) {
	f := newHandlerFixture(t)
	handler := Visitor(VisitorConfig{Registry: f.registry, Skip: isInfraRequest})(echoWorkspace())

	for _, path := range []string{"/healthz", "/metrics", "/static/css/app.css"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newGet(path))
		assert.Equal(t, http.StatusNoContent, rec.Code, path)
		assert.Nil(t, visitorCookie(rec), path)
	}
	assert.Zero(t, f.registry.Len())
}

func TestVisitor_ClosedRegistryIs503(t *testing.T) {
	f := newHandlerFixture(t)
	f.registry.Close()
	handler := Visitor(VisitorConfig{Registry: f.registry})(echoWorkspace())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newGet("/login"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
