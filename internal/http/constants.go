package httpx

// CurrentPage constants define the page identifiers used in templates and navigation.
const (
	PageLoading = "loading"

	// Public account pages.
	PageLogin         = "login"
	PageLogout        = "logout"
	PageRegister      = "register"
	PageForgot        = "forgot-password"
	PageResetPassword = "reset-password"

	// Signed-in pages.
	PageDashboard = "dashboard"
	PageAccounts  = "chart-of-accounts"
	PageUpload    = "upload-image"

	// Administrator pages.
	PageAddUser    = "add-user"
	PageUserSearch = "update-user-search"
	PageUpdateUser = "update-user"
	PageInbox      = "inbox"
	PageSendEmail  = "send-email"
)

// Route paths shared by handlers and redirects.
const (
	PathLogin     = "/login"
	PathDashboard = "/dashboard"
	PathInbox     = "/dashboard/admin/inbox"
)

// Template paths used for loading templates in tests and production.
const (
	TemplatePathFromRoot = "frontend/templates"       // From project root
	TemplatePathFromTest = "../../frontend/templates" // From internal/http test files
)

// Content templates are defined once and reused to avoid per-call allocations.
//
//nolint:gochecknoglobals // static read-only lookup for templates
var contentTemplates = map[string]string{
	PageLoading:       "loading-content",
	PageLogin:         "login-content",
	PageLogout:        "logout-content",
	PageRegister:      "register-content",
	PageForgot:        "forgot-content",
	PageResetPassword: "reset-content",
	PageDashboard:     "dashboard-content",
	PageAccounts:      "accounts-content",
	PageUpload:        "upload-content",
	PageAddUser:       "add-user-content",
	PageUserSearch:    "user-search-content",
	PageUpdateUser:    "update-user-content",
	PageInbox:         "inbox-content",
	PageSendEmail:     "send-email-content",
}

// ContentTemplateMap returns the mapping from CurrentPage to template name.
func ContentTemplateMap() map[string]string { return contentTemplates }

// ContentTemplateFor returns the content template for the given CurrentPage.
// Falls back to dashboard-content for unknown pages.
func ContentTemplateFor(currentPage string) string {
	if name, ok := ContentTemplateMap()[currentPage]; ok {
		return name
	}
	return "dashboard-content"
}
