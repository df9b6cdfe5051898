package httpx

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"
)

const (
	flashCookieName = "synergy_flash"
	flashMaxAge     = time.Minute
)

// Flash is a one-shot notice carried across a redirect.
type Flash struct {
	Message string `json:"m"`
	Kind    string `json:"k"`
}

// SetFlash stores f for the next request that renders a page.
func SetFlash(w http.ResponseWriter, r *http.Request, f Flash) {
	if f.Message == "" {
		return
	}
	b, err := json.Marshal(f)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(b),
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(flashMaxAge / time.Second),
	})
}

// PopFlash returns the pending flash, if any, and clears it.
func PopFlash(w http.ResponseWriter, r *http.Request) (Flash, bool) {
	c, err := r.Cookie(flashCookieName)
	if err != nil || c.Value == "" {
		return Flash{}, false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return Flash{}, false
	}
	var f Flash
	if err := json.Unmarshal(raw, &f); err != nil || f.Message == "" {
		return Flash{}, false
	}
	switch f.Kind {
	case NoticeError, NoticeSuccess, NoticeInfo:
	default:
		f.Kind = NoticeInfo
	}
	return f, true
}
