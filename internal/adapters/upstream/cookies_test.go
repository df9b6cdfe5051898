package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synergyaccounting/synergy-web/internal/ports"
)

func TestSessionCookies_CarryToFreshClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/login":
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "s-42", Path: "/", HttpOnly: true})
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"userid":42,"userType":"USER","isVerified":true}`)
		case "/api/users/validate":
			if c, err := r.Cookie("JSESSIONID"); err != nil || c.Value != "s-42" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"message":"Not signed in"}`)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"userid":42,"userType":"USER","isVerified":true}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	newClient := func() *Client {
		c, err := NewClient(Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
		require.NoError(t, err)
		return c
	}
	ctx := context.Background()

	first := newClient()
	_, err := first.Login(ctx, "tok", ports.Credentials{Email: "jdoe@example.com", Password: "Secret#123"})
	require.NoError(t, err)
	exported := first.SessionCookies()
	assert.Equal(t, []ports.SessionCookie{{Name: "JSESSIONID", Value: "s-42"}}, exported)

	fresh := newClient()
	_, err = fresh.Validate(ctx, "tok")
	require.Error(t, err, "a new jar has no session")

	fresh.RestoreSessionCookies(exported)
	p, err := fresh.Validate(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.UserID)
}

func TestRestoreSessionCookies_SkipsNamelessAndEmpty(t *testing.T) {
	c, err := NewClient(Options{BaseURL: "https://synergyaccounting.app"})
	require.NoError(t, err)

	c.RestoreSessionCookies(nil)
	c.RestoreSessionCookies([]ports.SessionCookie{{Name: "", Value: "x"}})
	assert.Empty(t, c.SessionCookies())
}
