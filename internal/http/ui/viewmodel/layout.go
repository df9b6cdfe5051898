package viewmodel

// User represents the signed-in principal exposed to templates.
type User struct {
	UserID   int64
	Username string
	Name     string
	Email    string
	Role     string
}

// Layout captures shared chrome metadata (titles, navigation state, auth flags).
type Layout struct {
	Title       string
	PageTitle   string
	CurrentPage string
	CSRFToken   string
	Notice      string
	NoticeKind  string

	IsAuthenticated bool
	IsAdministrator bool
	User            *User
}

// LayoutProvider exposes layout metadata for renderer utilities.
type LayoutProvider interface {
	LayoutData() *Layout
}
