package upstream

import (
	"net/http"

	"github.com/synergyaccounting/synergy-web/internal/ports"
)

// SessionCookies returns the cookies the jar would send to the remote API.
func (cl *Client) SessionCookies() []ports.SessionCookie {
	if cl.hc.Jar == nil {
		return nil
	}
	cookies := cl.hc.Jar.Cookies(cl.base)
	out := make([]ports.SessionCookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, ports.SessionCookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// RestoreSessionCookies seeds the jar with cookies exported by an earlier
// Client for the same visitor. They are stored as host-only session cookies
// scoped to the whole remote API.
func (cl *Client) RestoreSessionCookies(cookies []ports.SessionCookie) {
	if cl.hc.Jar == nil || len(cookies) == 0 {
		return
	}
	restored := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		restored = append(restored, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	cl.hc.Jar.SetCookies(cl.base, restored)
}
