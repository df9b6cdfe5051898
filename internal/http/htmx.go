package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
)

// htmx request and response headers.
const (
	hxRequest        = "Hx-Request"
	hxHistoryRestore = "Hx-History-Restore-Request"
	hxRedirectHeader = "Hx-Redirect"
	hxTriggerHeader  = "Hx-Trigger"
)

// navActivateEvent tells the sidebar which screen is now shown.
const navActivateEvent = "nav:activate"

// IsHTMX reports whether the request was initiated by htmx (Hx-Request: true).
func IsHTMX(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get(hxRequest), "true")
}

// WantsPartial reports whether only the screen fragment should be rendered.
// A history restore after a cache miss swaps the whole body, so it gets the
// full layout.
func WantsPartial(r *http.Request) bool {
	return IsHTMX(r) && !strings.EqualFold(r.Header.Get(hxHistoryRestore), "true")
}

// hxRedirect makes htmx perform a full navigation to path.
// Nothing may be written after it.
func hxRedirect(w http.ResponseWriter, path string) {
	w.Header().Set(hxRedirectHeader, path)
	w.WriteHeader(http.StatusNoContent)
}

// SetHXTrigger sets Hx-Trigger to {"<event>": payload}; a nil payload sends true.
func SetHXTrigger(w http.ResponseWriter, event string, payload any) {
	var value any = true
	if payload != nil {
		value = payload
	}
	b, err := json.Marshal(map[string]any{event: value})
	if err != nil {
		w.Header().Set(hxTriggerHeader, `{"`+event+`":true}`)
		return
	}
	w.Header().Set(hxTriggerHeader, string(b))
}
