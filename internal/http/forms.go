package httpx

import (
	"net/http"
	"strings"
)

// parseForm parses a urlencoded body, answering 400 on malformed input.
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return false
	}
	return true
}

// formValues returns the trimmed values of fields from the parsed form.
func formValues(r *http.Request, fields ...string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f] = strings.TrimSpace(r.FormValue(f))
	}
	return out
}

// anyBlank reports whether any of the named values is empty.
func anyBlank(values map[string]string, fields ...string) bool {
	for _, f := range fields {
		if values[f] == "" {
			return true
		}
	}
	return false
}
