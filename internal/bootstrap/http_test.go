package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPServer_TimeoutsFromConfig(t *testing.T) {
	var calls atomic.Int32
	cfg := testAppConfig(fakeUpstream(t, &calls).URL)
	cfg.HTTP.WriteTimeout = 45 * time.Second

	svc, err := NewServices(&ServiceDeps{Config: cfg, Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(svc.Registry.Close)

	srv := NewHTTPServer(&HTTPServerConfig{Config: cfg, Services: svc, Logger: quietLogger()})
	require.NotNil(t, srv)
	assert.Equal(t, "127.0.0.1:0", srv.Addr)
	assert.Equal(t, 45*time.Second, srv.WriteTimeout)
	assert.Equal(t, 10*time.Second, srv.ReadHeaderTimeout)
	assert.NotNil(t, srv.ErrorLog)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Nil(t, NewHTTPServer(nil))
}

func TestShutdownHTTPServer_DrainsAfterCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // shutdown must not inherit the signal's cancellation
	require.NoError(t, ShutdownHTTPServer(ShutdownConfig{Context: ctx, Server: srv, Logger: quietLogger(), Timeout: time.Second}))

	select {
	case err := <-served:
		assert.True(t, errors.Is(err, http.ErrServerClosed))
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.NoError(t, ShutdownHTTPServer(ShutdownConfig{}))
}
