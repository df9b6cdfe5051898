package core

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
	"github.com/synergyaccounting/synergy-web/internal/http/uiutil"
)

// Deps holds optional dependencies for constructing the core template func map.
type Deps struct {
	Template           **template.Template
	ContentTemplateFor func(string) string
}

// Funcs returns the helpers every page template may call.
func Funcs(deps Deps) template.FuncMap {
	funcs := template.FuncMap{
		"friendlyTime": createTimeFunc(uiutil.FormatFriendlyDateTime),
		"friendlyDate": createTimeFunc(uiutil.FormatFriendlyDate),
		"timeTag":      createTimeTagFunc(),
		"ago":          createTimeFunc(uiutil.FriendlyRelativeTime),
		"add":          func(a, b int) int { return a + b },
		"money":        uiutil.FormatMoney,
		"truncateText": TruncateText,
		"roleLabel":    RoleLabel,
	}

	addRenderFuncs(funcs, deps)
	return funcs
}

func addRenderFuncs(funcs template.FuncMap, deps Deps) {
	funcs["renderSection"] = func(page string, data any) (template.HTML, error) {
		if deps.Template == nil || *deps.Template == nil {
			return "", errors.New("template not initialized")
		}
		var buf bytes.Buffer
		if err := (*deps.Template).ExecuteTemplate(&buf, deps.ContentTemplateFor(page), data); err != nil {
			return "", err
		}
		// #nosec G203 - rendered by our own html/template set; user values were escaped above.
		return template.HTML(buf.String()), nil
	}
}

// asTime accepts the time shapes that reach templates.
func asTime(ts any) time.Time {
	switch v := ts.(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	case domainauth.Timestamp:
		return v.Time
	case *domainauth.Timestamp:
		if v != nil {
			return v.Time
		}
	case string:
		if parsed, err := domainauth.ParseTimestamp(v); err == nil {
			return parsed.Time
		}
	}
	return time.Time{}
}

func createTimeFunc(format func(time.Time) string) func(any) string {
	return func(ts any) string {
		t0 := asTime(ts)
		if t0.IsZero() {
			return ""
		}
		return format(t0)
	}
}

func createTimeTagFunc() func(any) template.HTML {
	return func(ts any) template.HTML {
		t0 := asTime(ts)
		if t0.IsZero() {
			return ""
		}
		friendly := uiutil.FormatFriendlyDateTime(t0)
		dt := t0.UTC().Format(time.RFC3339)
		title := t0.Local().Format(time.RFC1123)
		// #nosec G203 - constructed from trusted, escaped values only
		return template.HTML(
			fmt.Sprintf(
				"<time datetime=\"%s\" title=\"%s\">%s</time>",
				dt,
				template.HTMLEscapeString(title),
				template.HTMLEscapeString(friendly),
			),
		)
	}
}

// RoleLabel renders a role for humans ("ADMINISTRATOR" -> "Administrator").
func RoleLabel(v any) string {
	var s string
	switch r := v.(type) {
	case domainauth.Role:
		s = string(r)
	case string:
		s = r
	default:
		return ""
	}
	if s == "" {
		s = string(domainauth.RoleDefault)
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// TruncateText truncates a string to a maximum number of runes (not bytes).
// The maxLen parameter can be any numeric type for template flexibility.
func TruncateText(s string, maxLen any) string {
	var n int
	switch val := maxLen.(type) {
	case int:
		n = val
	case int64:
		n = int(val)
	case float64:
		n = int(val)
	default:
		return s
	}
	if n <= 0 {
		return s
	}
	return uiutil.TruncateWithEllipsis(s, n)
}
