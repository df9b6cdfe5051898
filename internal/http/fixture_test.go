package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/synergyaccounting/synergy-web/internal/adapters/memory"
	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
	"github.com/synergyaccounting/synergy-web/internal/service"
)

// testCSRF decodes to DefaultCSRFTokenLength bytes, as issued tokens do.
const testCSRF = "c3luZXJneS13ZWIgZml4dHVyZSBjc3JmIHRva2VuISE"

// handlerFixture runs the real router against a fakeRemote.
type handlerFixture struct {
	remote   *fakeRemote
	store    *memory.PrincipalStore
	registry *service.WorkspaceRegistry
	router   http.Handler
}

func newHandlerFixture(t *testing.T, opts ...func(*RouterServices)) *handlerFixture {
	t.Helper()
	skipWithoutTemplates(t)

	f := &handlerFixture{remote: newFakeRemote(), store: memory.NewPrincipalStore()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry, err := service.NewWorkspaceRegistry(context.Background(), service.WorkspaceRegistryConfig{
		Capacity: 16,
		IdleTTL:  time.Hour,
		Factory: func(ctx context.Context, id string) (*service.Workspace, error) {
			return service.NewWorkspace(ctx, service.WorkspaceOptions{
				ID:     id,
				API:    f.remote,
				Store:  f.store,
				Tokens: service.TokenPolicy{Retries: 1, Sleep: func(context.Context, time.Duration) error { return nil }},
				Logger: logger,
			})
		},
		Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(registry.Close)
	f.registry = registry

	services := RouterServices{
		Registry:   registry,
		GuardWait:  time.Second,
		TemplateFS: os.DirFS(TemplatePathFromTest),
		Logger:     logger,
	}
	for _, opt := range opts {
		opt(&services)
	}
	f.router = NewRouter(services)
	return f
}

// workspace creates a Workspace and waits for its bootstrap to finish.
func (f *handlerFixture) workspace(t *testing.T) *service.Workspace {
	t.Helper()
	ws, created, err := f.registry.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	require.True(t, created)
	ws.EnsureBootstrap()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ws.WaitBootstrapped(ctx))
	return ws
}

// pendingWorkspace creates a Workspace whose token fetch blocks until the
// returned release func runs.
func (f *handlerFixture) pendingWorkspace(t *testing.T) (*service.Workspace, func()) {
	t.Helper()
	block := make(chan struct{})
	f.remote.mu.Lock()
	f.remote.tokenBlock = block
	f.remote.mu.Unlock()

	ws, _, err := f.registry.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	ws.EnsureBootstrap()

	var once sync.Once
	release := func() { once.Do(func() { close(block) }) }
	t.Cleanup(release)
	return ws, release
}

// signIn makes the remote API confirm p and returns a bootstrapped Workspace
// whose session holds p.
func (f *handlerFixture) signIn(t *testing.T, p domainauth.Principal) *service.Workspace {
	t.Helper()
	f.remote.signedIn(p)
	ws := f.workspace(t)
	require.NotNil(t, ws.Principal())
	return ws
}

// do serves req as the visitor owning ws. Unsafe methods carry a matching
// double-submit token.
func (f *handlerFixture) do(ws *service.Workspace, req *http.Request) *httptest.ResponseRecorder {
	if ws != nil {
		req.AddCookie(&http.Cookie{Name: DefaultVisitorCookieName, Value: ws.ID()})
	}
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRF})
		req.Header.Set(DefaultCSRFHeaderName, testCSRF)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func newGet(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func (f *handlerFixture) get(ws *service.Workspace, target string) *httptest.ResponseRecorder {
	return f.do(ws, newGet(target))
}

func (f *handlerFixture) postForm(ws *service.Workspace, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(ws, req)
}

// flashOf decodes the flash cookie set on rec.
func flashOf(t *testing.T, rec *httptest.ResponseRecorder) Flash {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name != flashCookieName || c.MaxAge < 0 {
			continue
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(c)
		f, ok := PopFlash(httptest.NewRecorder(), req)
		require.True(t, ok, "flash cookie did not decode")
		return f
	}
	t.Fatalf("no flash cookie set")
	return Flash{}
}

// serveRaw runs req through the router without adding any cookies.
func serveRaw(f *handlerFixture, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}
