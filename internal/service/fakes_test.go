package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/synergyaccounting/synergy-web/internal/domain/accounting"
	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
	"github.com/synergyaccounting/synergy-web/internal/ports"
)

var errFakeUpstream = errors.New("fake upstream failure")

// fakeRemote is an in-memory ports.RemoteAPI. Zero value fails every token
// fetch and every validate.
type fakeRemote struct {
	mu sync.Mutex

	tokens      []string // successive FetchCSRFToken answers; "" means fail
	tokenCalls  atomic.Int32
	validate    *domainauth.Principal
	validateErr error
	validates   atomic.Int32
	loginResult domainauth.Principal
	loginErr    error
	logoutErr   error
	logouts     atomic.Int32
	updated     *domainauth.Principal
	inbox       []accounting.Email
	lastToken   string
	lastInboxOf string
	lastEmail   ports.OutgoingEmail
}

func (f *fakeRemote) FetchCSRFToken(context.Context) (string, error) {
	n := int(f.tokenCalls.Add(1)) - 1
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < len(f.tokens) && f.tokens[n] != "" {
		return f.tokens[n], nil
	}
	if n >= len(f.tokens) && len(f.tokens) > 0 && f.tokens[len(f.tokens)-1] != "" {
		return f.tokens[len(f.tokens)-1], nil
	}
	return "", errFakeUpstream
}

func (f *fakeRemote) Validate(_ context.Context, token string) (domainauth.Principal, error) {
	f.validates.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastToken = token
	if f.validateErr != nil {
		return domainauth.Principal{}, f.validateErr
	}
	if f.validate == nil {
		return domainauth.Principal{}, errFakeUpstream
	}
	return *f.validate, nil
}

func (f *fakeRemote) Login(_ context.Context, token string, _ ports.Credentials) (domainauth.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastToken = token
	return f.loginResult, f.loginErr
}

func (f *fakeRemote) Logout(context.Context, string) error {
	f.logouts.Add(1)
	return f.logoutErr
}

func (f *fakeRemote) Register(context.Context, string, ports.Registration) (string, error) {
	return "Registered", nil
}

func (f *fakeRemote) Verify(context.Context, string, string) (string, error) {
	return "Verified", nil
}

func (f *fakeRemote) RequestPasswordReset(context.Context, string, string) (string, error) {
	return "Sent", nil
}

func (f *fakeRemote) ValidateResetToken(context.Context, string, string) error { return nil }

func (f *fakeRemote) ResetPassword(context.Context, string, string, string) (string, error) {
	return "Reset", nil
}

func (f *fakeRemote) CreateUser(_ context.Context, _ string, u ports.NewUser) (domainauth.Principal, error) {
	return domainauth.Principal{Email: u.Email, Role: u.Role}, nil
}

func (f *fakeRemote) SearchUser(context.Context, string, ports.UserQuery) (domainauth.Principal, error) {
	return domainauth.Principal{UserID: 2}, nil
}

func (f *fakeRemote) UpdateUser(_ context.Context, _ string, p domainauth.Principal) (domainauth.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated != nil {
		return *f.updated, nil
	}
	return p, nil
}

func (f *fakeRemote) Inbox(_ context.Context, _ string, username string) ([]accounting.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastInboxOf = username
	return f.inbox, nil
}

func (f *fakeRemote) DeleteEmails(context.Context, string, []accounting.Email) (string, error) {
	return "Deleted", nil
}

func (f *fakeRemote) SendEmail(_ context.Context, _ string, e ports.OutgoingEmail) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastEmail = e
	return "", nil
}

func (f *fakeRemote) ChartOfAccounts(context.Context, string) ([]accounting.Account, error) {
	return []accounting.Account{{Name: "Cash", Number: 101}}, nil
}

func (f *fakeRemote) UploadImage(_ context.Context, _ string, _ int64, img ports.Image) error {
	if img.Body != nil {
		_ = img.Body.Close()
	}
	return nil
}

func (f *fakeRemote) ProfileImage(context.Context, string, int64) (ports.Image, error) {
	return ports.Image{}, errFakeUpstream
}

// noSleep records requested delays without waiting.
type noSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (n *noSleep) Sleep(ctx context.Context, d time.Duration) error {
	n.mu.Lock()
	n.delays = append(n.delays, d)
	n.mu.Unlock()
	return ctx.Err()
}

func (n *noSleep) Delays() []time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]time.Duration(nil), n.delays...)
}
