package ports

// Package ports defines interfaces (hexagonal ports) for the remote accounting API
// and the durable principal store.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"
	"io"

	"github.com/synergyaccounting/synergy-web/internal/domain/accounting"
	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
)

// ErrPrincipalNotFound is returned by PrincipalStore.Load when nothing is stored under the key.
var ErrPrincipalNotFound = errors.New("principal not found")

// SessionCookie is one remote API cookie in its stored form.
type SessionCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SessionSnapshot is the durable copy of a visitor's session: the principal
// and the remote API cookies that authenticate it. Without the cookies a
// restored principal could never be confirmed by the remote API.
type SessionSnapshot struct {
	Principal domainauth.Principal `json:"principal"`
	Cookies   []SessionCookie      `json:"cookies,omitempty"`
}

// PrincipalStore persists session snapshots under a key.
// Stores with an expiry extend it on Load, so an entry lives as long as its
// visitor keeps coming back.
type PrincipalStore interface {
	Load(ctx context.Context, key string) (SessionSnapshot, error)
	Save(ctx context.Context, key string, s SessionSnapshot) error
	Delete(ctx context.Context, key string) error
}

// SessionCookieJar exports and reseeds the remote API cookies of one client.
type SessionCookieJar interface {
	SessionCookies() []SessionCookie
	RestoreSessionCookies(cookies []SessionCookie)
}

// TokenSource fetches a fresh anti-forgery token from the remote API.
type TokenSource interface {
	FetchCSRFToken(ctx context.Context) (string, error)
}

// Credentials are the login form values.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// IdentityAPI covers the session endpoints of the remote API.
type IdentityAPI interface {
	// Validate is the "whoami" call used to restore a session.
	Validate(ctx context.Context, token string) (domainauth.Principal, error)
	Login(ctx context.Context, token string, creds Credentials) (domainauth.Principal, error)
	Logout(ctx context.Context, token string) error
}

// Registration groups the self-service sign-up fields.
type Registration struct {
	Email           string `json:"email"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Birthday        string `json:"birthday"`
	Address         string `json:"address"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confpassword"`
}

// AccountRecoveryAPI covers registration, verification and password reset.
type AccountRecoveryAPI interface {
	Register(ctx context.Context, token string, reg Registration) (string, error)
	Verify(ctx context.Context, token, verificationToken string) (string, error)
	RequestPasswordReset(ctx context.Context, token, email string) (string, error)
	ValidateResetToken(ctx context.Context, token, resetToken string) error
	ResetPassword(ctx context.Context, token, resetToken, password string) (string, error)
}

// NewUser groups the fields an administrator supplies when adding a user.
type NewUser struct {
	Email     string          `json:"email"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Role      domainauth.Role `json:"userType"`
	Birthday  string          `json:"birthday"`
	Address   string          `json:"address"`
}

// UserQuery identifies a user to look up; at least one field must be set.
type UserQuery struct {
	Email    string `json:"email,omitempty"`
	UserID   string `json:"userid,omitempty"`
	Username string `json:"username,omitempty"`
}

// Empty reports whether no search field is set.
func (q UserQuery) Empty() bool { return q.Email == "" && q.UserID == "" && q.Username == "" }

// OutgoingEmail is a message composed by an administrator.
type OutgoingEmail struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Image is an uploaded or downloaded picture. The receiver of an Image closes Body.
type Image struct {
	Filename    string
	ContentType string
	Body        io.ReadCloser
}

// AdminAPI covers user administration and the internal mailbox.
type AdminAPI interface {
	CreateUser(ctx context.Context, token string, u NewUser) (domainauth.Principal, error)
	SearchUser(ctx context.Context, token string, q UserQuery) (domainauth.Principal, error)
	UpdateUser(ctx context.Context, token string, p domainauth.Principal) (domainauth.Principal, error)
	Inbox(ctx context.Context, token, username string) ([]accounting.Email, error)
	DeleteEmails(ctx context.Context, token string, emails []accounting.Email) (string, error)
	SendEmail(ctx context.Context, token string, e OutgoingEmail) (string, error)
}

// LedgerAPI covers the chart of accounts and profile images.
type LedgerAPI interface {
	ChartOfAccounts(ctx context.Context, token string) ([]accounting.Account, error)
	UploadImage(ctx context.Context, token string, userID int64, img Image) error
	ProfileImage(ctx context.Context, token string, userID int64) (Image, error)
}

// RemoteAPI is everything a Workspace needs from the remote accounting API.
type RemoteAPI interface {
	TokenSource
	IdentityAPI
	AccountRecoveryAPI
	AdminAPI
	LedgerAPI
}
