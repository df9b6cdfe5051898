package httpx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// skipWithoutTemplates skips tests run from a tree without frontend/templates.
func skipWithoutTemplates(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(TemplatePathFromTest); os.IsNotExist(err) {
		t.Skip("templates not available")
	}
}

func newTestRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	skipWithoutTemplates(t)
	tr, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: os.DirFS(TemplatePathFromTest)})
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	return tr
}

// bareUIHandlers returns handlers with templates but no workspace plumbing.
func bareUIHandlers(t *testing.T) *UIHandlers {
	t.Helper()
	return &UIHandlers{T: newTestRenderer(t), GuardWait: -1}
}

func assertContainsAll(t *testing.T, body string, subs ...string) {
	t.Helper()
	for _, sub := range subs {
		assert.Contains(t, body, sub)
	}
}
