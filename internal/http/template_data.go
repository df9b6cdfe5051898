package httpx

import (
	"net/http"
)

// Notice kinds understood by the flash partial.
const (
	NoticeError   = "error"
	NoticeSuccess = "success"
	NoticeInfo    = "info"
)

// TemplateDataBuilder provides a fluent API for building template data maps.
type TemplateDataBuilder struct {
	data map[string]any
	r    *http.Request
}

// NewTemplateData creates a new TemplateDataBuilder initialized with basePageData.
func NewTemplateData(r *http.Request, meta PageMeta) *TemplateDataBuilder {
	return &TemplateDataBuilder{
		data: basePageData(r, meta),
		r:    r,
	}
}

// WithNotice sets the flash notice shown above the page content.
// An empty message leaves any existing notice alone.
func (b *TemplateDataBuilder) WithNotice(msg, kind string) *TemplateDataBuilder {
	if msg == "" {
		return b
	}
	if kind == "" {
		kind = NoticeInfo
	}
	b.data["Notice"] = msg
	b.data["NoticeKind"] = kind
	return b
}

// WithError sets an error notice.
func (b *TemplateDataBuilder) WithError(msg string) *TemplateDataBuilder {
	return b.WithNotice(msg, NoticeError)
}

// WithSuccess sets a success notice.
func (b *TemplateDataBuilder) WithSuccess(msg string) *TemplateDataBuilder {
	return b.WithNotice(msg, NoticeSuccess)
}

// WithForm keeps submitted values so a rejected form re-renders filled in.
// Password fields must not be passed.
func (b *TemplateDataBuilder) WithForm(values map[string]string) *TemplateDataBuilder {
	if len(values) > 0 {
		b.data["Form"] = values
	}
	return b
}

// WithFieldErrors adds field-level validation errors.
func (b *TemplateDataBuilder) WithFieldErrors(errs map[string]string) *TemplateDataBuilder {
	if len(errs) > 0 {
		b.data["Errors"] = errs
	}
	return b
}

// With adds a custom field to the template data.
func (b *TemplateDataBuilder) With(key string, value any) *TemplateDataBuilder {
	b.data[key] = value
	return b
}

// Build returns the final template data map.
func (b *TemplateDataBuilder) Build() map[string]any {
	return b.data
}
