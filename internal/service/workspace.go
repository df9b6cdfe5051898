package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/synergyaccounting/synergy-web/internal/domain/accounting"
	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
	"github.com/synergyaccounting/synergy-web/internal/observability/metrics"
	"github.com/synergyaccounting/synergy-web/internal/ports"
)

// TokenPolicy configures token acquisition for a Workspace.
type TokenPolicy struct {
	Retries        int
	Delay          time.Duration
	AttemptTimeout time.Duration
	Sleep          func(ctx context.Context, d time.Duration) error
}

// WorkspaceOptions groups dependencies for a Workspace.
type WorkspaceOptions struct {
	ID      string
	API     ports.RemoteAPI
	Store   ports.PrincipalStore
	// Cookies is the cookie jar behind API, persisted with the principal.
	// Optional; without it a restored principal carries no remote session.
	Cookies ports.SessionCookieJar
	Tokens  TokenPolicy
	Now     func() time.Time
	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// Workspace is the application context of one visitor: its token, its session
// and the remote API client carrying its cookies. Its lifetime context is
// cancelled on Close, which aborts any bootstrap or refresh still running.
type Workspace struct {
	id      string
	api     ports.RemoteAPI
	tokens  *CredentialTokenService
	session *SessionService
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	bootOnce sync.Once
	bootDone chan struct{}

	refreshes sync.WaitGroup
}

// NewWorkspace builds a Workspace and hydrates the optimistic principal.
// parent bounds the Workspace lifetime.
func NewWorkspace(parent context.Context, opts WorkspaceOptions) (*Workspace, error) {
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		return nil, errors.New("workspace id is required")
	}
	if opts.API == nil {
		return nil, errors.New("remote API is required")
	}
	if opts.Store == nil {
		return nil, errors.New("principal store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("visitor", id)

	tokens, err := NewCredentialTokenService(CredentialTokenServiceOptions{
		Source:         opts.API,
		Retries:        opts.Tokens.Retries,
		Delay:          opts.Tokens.Delay,
		AttemptTimeout: opts.Tokens.AttemptTimeout,
		Sleep:          opts.Tokens.Sleep,
		Metrics:        opts.Metrics,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create token service: %w", err)
	}

	session, err := NewSessionService(SessionServiceOptions{
		Tokens:   tokens,
		Identity: opts.API,
		Store:    opts.Store,
		StoreKey: id + ":" + PrincipalKey,
		Cookies:  opts.Cookies,
		Now:      opts.Now,
		Metrics:  opts.Metrics,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create session service: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	w := &Workspace{
		id:       id,
		api:      opts.API,
		tokens:   tokens,
		session:  session,
		logger:   logger.With("component", "workspace"),
		ctx:      ctx,
		cancel:   cancel,
		bootDone: make(chan struct{}),
	}
	session.Hydrate(ctx)
	return w, nil
}

// ID returns the visitor identifier.
func (w *Workspace) ID() string { return w.id }

// Tokens returns the token service.
func (w *Workspace) Tokens() *CredentialTokenService { return w.tokens }

// Session returns the session service.
func (w *Workspace) Session() *SessionService { return w.session }

// Principal is a shortcut for Session().Principal().
func (w *Workspace) Principal() *domainauth.Principal { return w.session.Principal() }

// Done is closed when the Workspace is closed.
func (w *Workspace) Done() <-chan struct{} { return w.ctx.Done() }

// Close cancels the Workspace lifetime.
func (w *Workspace) Close() { w.cancel() }

// EnsureBootstrap starts, at most once, token acquisition followed by session
// reconciliation. It returns immediately.
func (w *Workspace) EnsureBootstrap() {
	w.bootOnce.Do(func() {
		go w.bootstrap()
	})
}

func (w *Workspace) bootstrap() {
	defer close(w.bootDone)

	if err := w.tokens.Acquire(w.ctx); err != nil {
		w.logger.WarnContext(w.ctx, "token acquisition did not succeed", "error", err, "state", w.tokens.State().String())
	}
	w.reconcile(w.ctx)
}

// reconcile confirms or evicts the optimistic principal.
func (w *Workspace) reconcile(ctx context.Context) {
	if _, ok := w.tokens.Current(); ok {
		// Restore logs and clears on failure.
		_ = w.session.Restore(ctx)
		return
	}
	if w.session.Principal() != nil {
		w.logger.InfoContext(ctx, "evicting unconfirmed principal; no token available")
		w.session.SetPrincipal(ctx, nil)
	}
}

// Bootstrapped reports whether the bootstrap sequence has finished.
func (w *Workspace) Bootstrapped() bool {
	select {
	case <-w.bootDone:
		return true
	default:
		return false
	}
}

// WaitBootstrapped blocks until bootstrap finishes or ctx is done.
// It does not start bootstrap.
func (w *Workspace) WaitBootstrapped(ctx context.Context) error {
	select {
	case <-w.bootDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
}

// refreshToken re-acquires the token in the background.
func (w *Workspace) refreshToken() {
	w.refreshes.Add(1)
	go func() {
		defer w.refreshes.Done()
		if err := w.tokens.Acquire(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.WarnContext(w.ctx, "background token refresh failed", "error", err)
		}
	}()
}

// RetryToken starts a background acquisition when bootstrap has finished
// without a token. It is a no-op while a token is held or bootstrap runs.
func (w *Workspace) RetryToken() {
	if !w.Bootstrapped() {
		return
	}
	if _, ok := w.tokens.Current(); ok {
		return
	}
	w.refreshToken()
}

// waitRefreshes blocks until background refreshes have returned. Used by tests.
func (w *Workspace) waitRefreshes() { w.refreshes.Wait() }

// bind derives a context that also ends when the Workspace is closed.
func (w *Workspace) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(w.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (w *Workspace) token() (string, error) {
	token, ok := w.tokens.Current()
	if !ok {
		return "", ErrTokenMissing
	}
	return token, nil
}

// Login authenticates and, on acceptance, refreshes the token in the background.
func (w *Workspace) Login(ctx context.Context, email, password string) (*domainauth.Principal, error) {
	ctx, cancel := w.bind(ctx)
	defer cancel()

	p, err := w.session.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	w.refreshToken()
	return p, nil
}

// Logout ends the session and refreshes the token in the background.
func (w *Workspace) Logout(ctx context.Context) error {
	ctx, cancel := w.bind(ctx)
	defer cancel()

	if err := w.session.Logout(ctx); err != nil {
		return err
	}
	w.refreshToken()
	return nil
}

// Register submits a self-service sign-up.
func (w *Workspace) Register(ctx context.Context, reg ports.Registration) (string, error) {
	token, err := w.token()
	if err != nil {
		return "", err
	}
	ctx, cancel := w.bind(ctx)
	defer cancel()
	return w.api.Register(ctx, token, reg)
}

// Verify redeems an e-mail verification token.
func (w *Workspace) Verify(ctx context.Context, verificationToken string) (string, error) {
	token, err := w.token()
	if err != nil {
		return "", err
	}
	ctx, cancel := w.bind(ctx)
	defer cancel()
	return w.api.Verify(ctx, token, verificationToken)
}

// RequestPasswordReset asks for a reset link to be mailed.
func (w *Workspace) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	token, err := w.token()
	if err != nil {
		return "", err
	}
	ctx, cancel := w.bind(ctx)
	defer cancel()
	return w.api.RequestPasswordReset(ctx, token, email)
}

// ValidateResetToken checks a password-reset link.
func (w *Workspace) ValidateResetToken(ctx context.Context, resetToken string) error {
	token, err := w.token()
	if err != nil {
		return err
	}
	ctx, cancel := w.bind(ctx)
	defer cancel()
	return w.api.ValidateResetToken(ctx, token, resetToken)
}

// ResetPassword sets a new password with a reset token.
func (w *Workspace) ResetPassword(ctx context.Context, resetToken, password string) (string, error) {
	token, err := w.token()
	if err != nil {
		return "", err
	}
	ctx, cancel := w.bind(ctx)
	defer cancel()
	return w.api.ResetPassword(ctx, token, resetToken, password)
}

// ChartOfAccounts lists ledger accounts.
func (w *Workspace) ChartOfAccounts(ctx context.Context) ([]accounting.Account, error) {
	token, err := w.token()
	if err != nil {
		return nil, err
	}
	ctx, cancel := w.bind(ctx)
	defer cancel()
	return w.api.ChartOfAccounts(ctx, token)
}

// Inbox lists the current administrator's mailbox, newest first.
func (w *Workspace) Inbox(ctx context.Context) ([]accounting.Email, error) {
	token, err := w.token()
	if err != nil {
		return nil, err
	}
	p := w.session.Principal()
	if p == nil {
		return nil, errors.New("inbox requires a signed-in user")
	}
	ctx, cancel := w.bind(ctx)
	defer cancel()
	emails, err := w.api.Inbox(ctx, token, p.Username)
	if err != nil {
		return nil, err
	}
	return accounting.SortEmailsNewestFirst(emails), nil
}

// DeleteEmails removes messages from the mailbox.
func (w *Workspace) DeleteEmails(ctx context.Context, emails []accounting.Email) (string, error) {
	token, err := w.token()
	if err != nil {
		return "", err
	}
	ctx, cancel := w.bind(ctx)
	defer cancel()
	return w.api.DeleteEmails(ctx, token, emails)
}

// SendEmail sends a composed message. An empty From is filled with the current username.
func (w *Workspace) SendEmail(ctx context.Context, e ports.OutgoingEmail) (string, error) {
	token, err := w.token()
	if err != nil {
		return "", err
	}
	if e.From == "" {
		if p := w.session.Principal(); p != nil {
			e.From = p.Username
		}
	}
	ctx, cancel := w.bind(ctx)
	defer cancel()
	return w.api.SendEmail(ctx, token, e)
}

// CreateUser adds a user.
func (w *Workspace) CreateUser(ctx context.Context, u ports.NewUser) (domainauth.Principal, error) {
	token, err := w.token()
	if err != nil {
		return domainauth.Principal{}, err
	}
	ctx, cancel := w.bind(ctx)
	defer cancel()
	return w.api.CreateUser(ctx, token, u)
}

// SearchUser finds a user by e-mail, id or username.
func (w *Workspace) SearchUser(ctx context.Context, q ports.UserQuery) (domainauth.Principal, error) {
	token, err := w.token()
	if err != nil {
		return domainauth.Principal{}, err
	}
	ctx, cancel := w.bind(ctx)
	defer cancel()
	return w.api.SearchUser(ctx, token, q)
}

// UpdateUser stores a user record. When the record is the signed-in user
// the session principal is replaced with the stored result.
func (w *Workspace) UpdateUser(ctx context.Context, p domainauth.Principal) (domainauth.Principal, error) {
	token, err := w.token()
	if err != nil {
		return domainauth.Principal{}, err
	}
	ctx, cancel := w.bind(ctx)
	defer cancel()

	updated, err := w.api.UpdateUser(ctx, token, p)
	if err != nil {
		return domainauth.Principal{}, err
	}
	if current := w.session.Principal(); current != nil && current.UserID == updated.UserID {
		w.session.SetPrincipal(ctx, &updated)
	}
	return updated, nil
}

// UploadImage stores a profile picture for userID.
func (w *Workspace) UploadImage(ctx context.Context, userID int64, img ports.Image) error {
	token, err := w.token()
	if err != nil {
		if img.Body != nil {
			_ = img.Body.Close()
		}
		return err
	}
	ctx, cancel := w.bind(ctx)
	defer cancel()
	return w.api.UploadImage(ctx, token, userID, img)
}

// ProfileImage fetches a profile picture. The caller closes Body.
// ctx is used unbound because Body is read after this call returns.
func (w *Workspace) ProfileImage(ctx context.Context, userID int64) (ports.Image, error) {
	token, err := w.token()
	if err != nil {
		return ports.Image{}, err
	}
	return w.api.ProfileImage(ctx, token, userID)
}
