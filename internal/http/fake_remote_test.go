package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/synergyaccounting/synergy-web/internal/adapters/upstream"
	"github.com/synergyaccounting/synergy-web/internal/domain/accounting"
	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
	"github.com/synergyaccounting/synergy-web/internal/ports"
)

const fakeToken = "tok-1"

// Errors shaped like the upstream client's.
var (
	errTransport    = errors.Join(upstream.ErrTransport, errors.New("connection refused"))
	errUnauthorized = &upstream.APIError{Status: 401, Message: "Invalid credentials"}
	errForbidden    = &upstream.APIError{Status: 403}
)

func errBadRequest(msg string) error {
	return &upstream.APIError{Status: 400, Message: msg}
}

// fakeRemote is an in-memory ports.RemoteAPI with scripted answers.
type fakeRemote struct {
	mu sync.Mutex

	tokenErr   error
	tokenBlock chan struct{}
	tokenCalls int

	// whoami is the principal Validate returns; nil answers 401.
	whoami *domainauth.Principal

	loginAnswer domainauth.Principal
	loginErr    error
	logoutErr   error
	lastCreds   ports.Credentials

	message string
	errs    map[string]error

	accounts []accounting.Account
	inbox    []accounting.Email
	users    map[int64]domainauth.Principal
	image    []byte

	lastRegistration ports.Registration
	lastVerifyToken  string
	lastResetToken   string
	lastNewUser      ports.NewUser
	lastQuery        ports.UserQuery
	lastUpdate       domainauth.Principal
	lastDeleted      []accounting.Email
	lastSent         ports.OutgoingEmail
	lastUploadUser   int64
	lastUpload       []byte
	lastLogoutToken  string
	lastInboxOwner   string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		message: "ok",
		errs:    map[string]error{},
		users:   map[int64]domainauth.Principal{},
	}
}

func (f *fakeRemote) fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

func (f *fakeRemote) errFor(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[method]
}

func (f *fakeRemote) signedIn(p domainauth.Principal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.whoami = &p
	f.users[p.UserID] = p
}

func (f *fakeRemote) addUser(p domainauth.Principal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[p.UserID] = p
}

func (f *fakeRemote) FetchCSRFToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.tokenCalls++
	block, err := f.tokenBlock, f.tokenErr
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return fakeToken, nil
}

func (f *fakeRemote) Validate(_ context.Context, _ string) (domainauth.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.whoami == nil {
		return domainauth.Principal{}, errUnauthorized
	}
	return *f.whoami, nil
}

func (f *fakeRemote) Login(_ context.Context, _ string, creds ports.Credentials) (domainauth.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCreds = creds
	if f.loginErr != nil {
		return domainauth.Principal{}, f.loginErr
	}
	return f.loginAnswer, nil
}

func (f *fakeRemote) Logout(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLogoutToken = token
	return f.logoutErr
}

func (f *fakeRemote) Register(_ context.Context, _ string, reg ports.Registration) (string, error) {
	f.mu.Lock()
	f.lastRegistration = reg
	f.mu.Unlock()
	return f.answer("Register")
}

func (f *fakeRemote) Verify(_ context.Context, _, verificationToken string) (string, error) {
	f.mu.Lock()
	f.lastVerifyToken = verificationToken
	f.mu.Unlock()
	return f.answer("Verify")
}

func (f *fakeRemote) RequestPasswordReset(_ context.Context, _, _ string) (string, error) {
	return f.answer("RequestPasswordReset")
}

func (f *fakeRemote) ValidateResetToken(_ context.Context, _, resetToken string) error {
	f.mu.Lock()
	f.lastResetToken = resetToken
	f.mu.Unlock()
	return f.errFor("ValidateResetToken")
}

func (f *fakeRemote) ResetPassword(_ context.Context, _, resetToken, _ string) (string, error) {
	f.mu.Lock()
	f.lastResetToken = resetToken
	f.mu.Unlock()
	return f.answer("ResetPassword")
}

func (f *fakeRemote) CreateUser(_ context.Context, _ string, u ports.NewUser) (domainauth.Principal, error) {
	f.mu.Lock()
	f.lastNewUser = u
	f.mu.Unlock()
	if err := f.errFor("CreateUser"); err != nil {
		return domainauth.Principal{}, err
	}
	username := string(u.FirstName[0]) + u.LastName + "1024"
	return domainauth.Principal{UserID: 99, Username: username, Email: u.Email, Role: u.Role}, nil
}

func (f *fakeRemote) SearchUser(_ context.Context, _ string, q ports.UserQuery) (domainauth.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	if err := f.errs["SearchUser"]; err != nil {
		return domainauth.Principal{}, err
	}
	for _, u := range f.users {
		if (q.Email != "" && u.Email == q.Email) ||
			(q.Username != "" && u.Username == q.Username) ||
			(q.UserID != "" && q.UserID == strconv.FormatInt(u.UserID, 10)) {
			return u, nil
		}
	}
	return domainauth.Principal{}, &upstream.APIError{Status: 404, Message: "User not found"}
}

func (f *fakeRemote) UpdateUser(_ context.Context, _ string, p domainauth.Principal) (domainauth.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpdate = p
	if err := f.errs["UpdateUser"]; err != nil {
		return domainauth.Principal{}, err
	}
	f.users[p.UserID] = p
	return p, nil
}

func (f *fakeRemote) Inbox(_ context.Context, _, username string) ([]accounting.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastInboxOwner = username
	if err := f.errs["Inbox"]; err != nil {
		return nil, err
	}
	return append([]accounting.Email(nil), f.inbox...), nil
}

func (f *fakeRemote) DeleteEmails(_ context.Context, _ string, emails []accounting.Email) (string, error) {
	f.mu.Lock()
	f.lastDeleted = emails
	f.mu.Unlock()
	return f.answer("DeleteEmails")
}

func (f *fakeRemote) SendEmail(_ context.Context, _ string, e ports.OutgoingEmail) (string, error) {
	f.mu.Lock()
	f.lastSent = e
	f.mu.Unlock()
	return f.answer("SendEmail")
}

func (f *fakeRemote) ChartOfAccounts(_ context.Context, _ string) ([]accounting.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["ChartOfAccounts"]; err != nil {
		return nil, err
	}
	return append([]accounting.Account(nil), f.accounts...), nil
}

func (f *fakeRemote) UploadImage(_ context.Context, _ string, userID int64, img ports.Image) error {
	body, err := io.ReadAll(img.Body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.lastUploadUser = userID
	f.lastUpload = body
	f.mu.Unlock()
	return f.errFor("UploadImage")
}

func (f *fakeRemote) ProfileImage(_ context.Context, _ string, _ int64) (ports.Image, error) {
	if err := f.errFor("ProfileImage"); err != nil {
		return ports.Image{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return ports.Image{
		ContentType: "image/png",
		Body:        io.NopCloser(bytes.NewReader(f.image)),
	}, nil
}

func (f *fakeRemote) answer(method string) (string, error) {
	if err := f.errFor(method); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message, nil
}

// Fixtures.

func fixtureAdmin() domainauth.Principal {
	return domainauth.Principal{
		UserID:     1,
		Role:       domainauth.RoleAdministrator,
		Username:   "jdoe0124",
		Email:      "jane@example.com",
		FirstName:  "Jane",
		LastName:   "Doe",
		IsVerified: true,
		IsActive:   true,
	}
}

func fixtureUser() domainauth.Principal {
	return domainauth.Principal{
		UserID:     2,
		Role:       domainauth.RoleUser,
		Username:   "bsmith0124",
		Email:      "bob@example.com",
		FirstName:  "Bob",
		LastName:   "Smith",
		IsVerified: true,
		IsActive:   true,
	}
}

func fixtureAccounts() []accounting.Account {
	added := domainauth.NewTimestamp(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	return []accounting.Account{
		{Name: "Cash", Number: 101, Category: accounting.CategoryAsset, CurrentBalance: 1500, DateAdded: added},
		{Name: "Accounts Payable", Number: 201, Category: accounting.CategoryLiability, CurrentBalance: 300, DateAdded: added},
		{Name: "Bank", Number: 102, Category: accounting.CategoryAsset, CurrentBalance: 2500, DateAdded: added},
	}
}
