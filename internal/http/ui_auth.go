package httpx

import (
	"net/http"
	"strings"

	"github.com/synergyaccounting/synergy-web/internal/http/validation"
	"github.com/synergyaccounting/synergy-web/internal/ports"
	"github.com/synergyaccounting/synergy-web/internal/service"
)

// Account screen messages.
const (
	msgLogoutFailed       = "Logout failed. Please try again."
	msgConfirmationToken  = "Confirmation token is missing. Please check your confirmation link."
	msgResetTokenInvalid  = "Token is missing or invalid."
	msgBirthdayRequired   = "Birthday cannot be left empty!"
	msgVerificationPrefix = "Verification failed: "
	msgErrorOccurred      = "An error has occurred. Please try again."
)

//nolint:gochecknoglobals // static page metadata
var (
	loginMeta    = pageMeta("Login", PageLogin)
	logoutMeta   = pageMeta("Logging out", PageLogout)
	registerMeta = pageMeta("Register", PageRegister)
	forgotMeta   = pageMeta("Forgot Password", PageForgot)
	resetMeta    = pageMeta("Reset Password", PageResetPassword)
)

func hasToken(ws *service.Workspace) bool {
	_, ok := ws.Tokens().Current()
	return ok
}

// LoginPage shows the sign-in form once a token is held.
func (h *UIHandlers) LoginPage(w http.ResponseWriter, r *http.Request, notice string) {
	data := NewTemplateData(r, loginMeta).WithError(notice).Build()
	h.renderPage(w, r, data)
}

// LoginSubmit validates the credentials and signs the visitor in.
func (h *UIHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok || !parseForm(w, r) {
		return
	}
	form := formValues(r, "email")
	password := r.PostFormValue("password")
	data := NewTemplateData(r, loginMeta).WithForm(form).Build()

	if !hasToken(ws) {
		h.failScreen(w, r, ScreenFailure{Err: service.ErrTokenMissing, Data: data})
		return
	}
	fv := validation.New().
		Validate("email", form["email"], validation.Email()).
		Validate("password", password, validation.RequiredMsg(validation.MsgPasswordRequired))
	if !fv.Valid() {
		data["Errors"] = fv.Errors()
		data["Notice"] = fv.First()
		data["NoticeKind"] = NoticeError
		h.renderPage(w, r, data)
		return
	}

	if _, err := ws.Login(r.Context(), form["email"], password); err != nil {
		h.failScreen(w, r, ScreenFailure{Err: err, Data: data, Inline: true})
		return
	}
	redirect(w, r, PathDashboard)
}

// LogoutPage shows "Logging out..." with a form that submits itself.
func (h *UIHandlers) LogoutPage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, NewTemplateData(r, logoutMeta).Build())
}

// LogoutSubmit ends the session. The local session survives a failed remote logout.
func (h *UIHandlers) LogoutSubmit(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Logout(r.Context()); err != nil {
		data := NewTemplateData(r, logoutMeta).With("Failed", true).Build()
		msg := msgLogoutFailed
		if isTransportFailure(err) {
			msg = msgGenericError
		}
		h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		data["Notice"] = msg
		data["NoticeKind"] = NoticeError
		h.renderPage(w, r, data)
		return
	}
	redirect(w, r, PathLogin)
}

// RegisterPage shows the self-service sign-up form.
func (h *UIHandlers) RegisterPage(w http.ResponseWriter, r *http.Request, notice string) {
	h.renderPage(w, r, NewTemplateData(r, registerMeta).WithError(notice).Build())
}

// registerFields are the sign-up fields echoed back on a rejected form.
//
//nolint:gochecknoglobals // static field list
var registerFields = []string{"email", "firstName", "lastName", "birthday", "address"}

// RegisterSubmit validates the sign-up form in the order the checks are shown
// to the visitor and submits it.
func (h *UIHandlers) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok || !parseForm(w, r) {
		return
	}
	form := formValues(r, registerFields...)
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confpassword")
	data := NewTemplateData(r, registerMeta).WithForm(form).Build()

	if msg := registrationProblem(form, password, confirm); msg != "" {
		data["Notice"] = msg
		data["NoticeKind"] = NoticeError
		h.renderPage(w, r, data)
		return
	}
	if !hasToken(ws) {
		h.failScreen(w, r, ScreenFailure{Err: service.ErrTokenMissing, Data: data})
		return
	}
	if form["birthday"] == "" {
		data["Notice"] = msgBirthdayRequired
		data["NoticeKind"] = NoticeError
		h.renderPage(w, r, data)
		return
	}

	msg, err := ws.Register(r.Context(), ports.Registration{
		Email:           form["email"],
		FirstName:       form["firstName"],
		LastName:        form["lastName"],
		Birthday:        form["birthday"],
		Address:         form["address"],
		Password:        password,
		ConfirmPassword: confirm,
	})
	if err != nil {
		h.failScreen(w, r, ScreenFailure{Err: err, Data: data, Inline: true})
		return
	}
	redirectWithNotice(w, r, PathLogin, Flash{Message: msg, Kind: NoticeSuccess})
}

func registrationProblem(form map[string]string, password, confirm string) string {
	if password != confirm {
		return validation.MsgPasswordMismatch
	}
	if anyBlank(form, "firstName", "lastName", "email", "address") {
		return validation.MsgFillAllFields
	}
	if !validation.IsStrongPassword(password) {
		return validation.MsgPasswordPolicy
	}
	if !validation.IsEmail(form["email"]) {
		return validation.MsgInvalidEmail
	}
	if form["birthday"] != "" {
		if msg := validation.Date("Birthday")(form["birthday"]); msg != "" {
			return msg
		}
	}
	return ""
}

// Verify redeems the e-mailed verification token and returns to the login
// screen with the outcome.
func (h *UIHandlers) Verify(w http.ResponseWriter, r *http.Request, notice string) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if notice != "" {
		redirectWithNotice(w, r, PathLogin, Flash{Message: notice, Kind: NoticeError})
		return
	}
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	msg, err := ws.Verify(r.Context(), token)
	if err != nil {
		if isTransportFailure(err) {
			redirectWithNotice(w, r, PathLogin, Flash{Message: msgErrorOccurred, Kind: NoticeError})
			return
		}
		h.failScreen(w, r, ScreenFailure{
			Err:        err,
			Inline:     true,
			Prefix:     msgVerificationPrefix,
			RedirectTo: PathLogin,
		})
		return
	}
	redirectWithNotice(w, r, PathLogin, Flash{Message: msg, Kind: NoticeSuccess})
}

// tokenPrecheck is the "missing link token" guard shared by verify and reset.
// It runs before bootstrap so a bad link never waits on the remote API.
func (h *UIHandlers) tokenPrecheck(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.URL.Query().Get("token")) == "" {
			redirectWithNotice(w, r, PathLogin, Flash{Message: msgConfirmationToken, Kind: NoticeError})
			return
		}
		next(w, r)
	}
}

// ForgotPasswordPage shows the reset-request form.
func (h *UIHandlers) ForgotPasswordPage(w http.ResponseWriter, r *http.Request, notice string) {
	h.renderPage(w, r, NewTemplateData(r, forgotMeta).WithError(notice).Build())
}

// ForgotPasswordSubmit asks the remote API to mail a reset link.
func (h *UIHandlers) ForgotPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok || !parseForm(w, r) {
		return
	}
	form := formValues(r, "email")
	data := NewTemplateData(r, forgotMeta).WithForm(form).Build()

	if !validation.IsEmail(form["email"]) {
		data["Notice"] = validation.MsgInvalidEmail
		data["NoticeKind"] = NoticeError
		h.renderPage(w, r, data)
		return
	}
	if !hasToken(ws) {
		h.failScreen(w, r, ScreenFailure{Err: service.ErrTokenMissing, Data: data})
		return
	}

	msg, err := ws.RequestPasswordReset(r.Context(), form["email"])
	if err != nil {
		h.failScreen(w, r, ScreenFailure{Err: err, Data: data, Inline: true})
		return
	}
	redirectWithNotice(w, r, PathLogin, Flash{Message: msg, Kind: NoticeSuccess})
}

// ResetPasswordPage checks the reset link and shows the new-password form.
func (h *UIHandlers) ResetPasswordPage(w http.ResponseWriter, r *http.Request, notice string) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if notice != "" {
		redirectWithNotice(w, r, PathLogin, Flash{Message: notice, Kind: NoticeError})
		return
	}
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.ValidateResetToken(r.Context(), token); err != nil {
		if isTransportFailure(err) {
			redirectWithNotice(w, r, PathLogin, Flash{Message: msgErrorOccurred, Kind: NoticeError})
			return
		}
		h.failScreen(w, r, ScreenFailure{Err: err, Inline: true, RedirectTo: PathLogin})
		return
	}
	data := NewTemplateData(r, resetMeta).With("ResetToken", token).Build()
	h.renderPage(w, r, data)
}

// ResetPasswordSubmit stores the new password.
func (h *UIHandlers) ResetPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok || !parseForm(w, r) {
		return
	}
	token := strings.TrimSpace(r.PostFormValue("token"))
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirmPassword")
	data := NewTemplateData(r, resetMeta).With("ResetToken", token).Build()

	var problem string
	switch {
	case token == "":
		problem = msgResetTokenInvalid
	case password != confirm:
		problem = validation.MsgPasswordMismatch
	case !validation.IsStrongPassword(password):
		problem = validation.MsgPasswordPolicy
	}
	if problem != "" {
		data["Notice"] = problem
		data["NoticeKind"] = NoticeError
		h.renderPage(w, r, data)
		return
	}
	if !hasToken(ws) {
		h.failScreen(w, r, ScreenFailure{Err: service.ErrTokenMissing, Data: data})
		return
	}

	msg, err := ws.ResetPassword(r.Context(), token, password)
	if err != nil {
		h.failScreen(w, r, ScreenFailure{Err: err, Data: data, Inline: true})
		return
	}
	redirectWithNotice(w, r, PathLogin, Flash{Message: msg, Kind: NoticeSuccess})
}
