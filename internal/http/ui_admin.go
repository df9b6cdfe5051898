package httpx

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/synergyaccounting/synergy-web/internal/domain/accounting"
	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
	"github.com/synergyaccounting/synergy-web/internal/http/validation"
	"github.com/synergyaccounting/synergy-web/internal/ports"
	"github.com/synergyaccounting/synergy-web/internal/service"
)

// Administrator screen messages.
const (
	msgAddUserRequired    = "First name, last name, and email, and role must be filled out!"
	msgEmailsMismatch     = "Emails do not match."
	msgSearchRequired     = "Error: At least one field must be filled out."
	msgSessionExpired     = "Your session has expired. Refreshing page.."
	msgUserDataMissing    = "User data failed to be passed. Please try again."
	msgUpdateUserRequired = "First name, last name, and email must be kept at a minimum."
	msgInboxForbidden     = "You do not have permission to view these emails."
	msgDeleteForbidden    = "You do not have permission to delete these emails."
	msgDeleteFailed       = "An error occurred while deleting emails."
	msgSendRequired       = "Please fill in all fields."
	msgEmailSent          = "Email has been sent successfully."
	msgSendFailedPrefix   = "Failed to send email: "
)

// Admin paths used for redirects.
const (
	PathUpdateUser       = "/dashboard/admin/update-user"
	PathUpdateUserSearch = "/dashboard/admin/update-user-search"
)

//nolint:gochecknoglobals // static page metadata
var (
	addUserMeta    = pageMeta("Add User", PageAddUser)
	userSearchMeta = pageMeta("Update User", PageUserSearch)
	updateUserMeta = pageMeta("Update User", PageUpdateUser)
	inboxMeta      = pageMeta("Inbox", PageInbox)
	sendEmailMeta  = pageMeta("Send Email", PageSendEmail)
)

// assignableRoles are the roles offered by the add and update forms: every
// role except the unassigned default.
func assignableRoles() []domainauth.Role { return domainauth.Roles()[1:] }

func roleOptions() []string {
	roles := assignableRoles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// noticeData sets an error notice on data.
func noticeData(data map[string]any, msg string) map[string]any {
	data["Notice"] = msg
	data["NoticeKind"] = NoticeError
	return data
}

// AddUserPage shows the new-user form.
func (h *UIHandlers) AddUserPage(w http.ResponseWriter, r *http.Request) {
	data := NewTemplateData(r, addUserMeta).With("Roles", assignableRoles()).Build()
	h.renderPage(w, r, data)
}

//nolint:gochecknoglobals // static field list
var addUserFields = []string{"email", "confEmail", "firstName", "lastName", "role", "birthday", "address"}

// AddUserSubmit creates a user on the remote API.
func (h *UIHandlers) AddUserSubmit(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok || !parseForm(w, r) {
		return
	}
	form := formValues(r, addUserFields...)
	data := NewTemplateData(r, addUserMeta).WithForm(form).With("Roles", assignableRoles()).Build()

	if anyBlank(form, "firstName", "lastName", "email", "role") {
		h.renderPage(w, r, noticeData(data, msgAddUserRequired))
		return
	}
	if !hasToken(ws) {
		h.failScreen(w, r, ScreenFailure{Err: service.ErrTokenMissing, Data: data})
		return
	}
	fv := validation.New().
		Validate("confEmail", form["confEmail"], validation.Matches(form["email"], msgEmailsMismatch)).
		Validate("email", form["email"], validation.Email()).
		Validate("role", form["role"], validation.OneOf("Role", roleOptions()))
	if form["birthday"] != "" {
		fv.Validate("birthday", form["birthday"], validation.Date("Birthday"))
	}
	if !fv.Valid() {
		data["Errors"] = fv.Errors()
		h.renderPage(w, r, noticeData(data, fv.First()))
		return
	}

	created, err := ws.CreateUser(r.Context(), ports.NewUser{
		Email:     form["email"],
		FirstName: form["firstName"],
		LastName:  form["lastName"],
		Role:      domainauth.ParseRole(form["role"]),
		Birthday:  form["birthday"],
		Address:   form["address"],
	})
	if err != nil {
		h.failScreen(w, r, ScreenFailure{Err: err, Data: data})
		return
	}
	redirectWithNotice(w, r, PathDashboard, Flash{
		Message: "User: " + created.Username + " has been added!",
		Kind:    NoticeSuccess,
	})
}

// UpdateUserSearchPage shows the user lookup form.
func (h *UIHandlers) UpdateUserSearchPage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, NewTemplateData(r, userSearchMeta).Build())
}

// UpdateUserSearchSubmit finds a user and opens the update form for them.
func (h *UIHandlers) UpdateUserSearchSubmit(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok || !parseForm(w, r) {
		return
	}
	form := formValues(r, "email", "userid", "username")
	data := NewTemplateData(r, userSearchMeta).WithForm(form).Build()

	q := ports.UserQuery{Email: form["email"], UserID: form["userid"], Username: form["username"]}
	if q.Empty() {
		h.renderPage(w, r, noticeData(data, msgSearchRequired))
		return
	}
	if !hasToken(ws) {
		h.failScreen(w, r, ScreenFailure{Err: service.ErrTokenMissing, Data: data})
		return
	}

	found, err := ws.SearchUser(r.Context(), q)
	if err != nil {
		if isTransportFailure(err) {
			h.logger().WarnContext(r.Context(), "user search failed", "error", err)
			redirectWithNotice(w, r, PathLogin, Flash{Message: msgSessionExpired, Kind: NoticeError})
			return
		}
		h.failScreen(w, r, ScreenFailure{Err: err, Data: data})
		return
	}
	redirect(w, r, updateUserPath(found.UserID))
}

func updateUserPath(userID int64) string {
	return PathUpdateUser + "?" + url.Values{"userid": {strconv.FormatInt(userID, 10)}}.Encode()
}

// lookupUser loads the user named by ?userid= or the posted userid.
func (h *UIHandlers) lookupUser(w http.ResponseWriter, r *http.Request, raw string) (domainauth.Principal, bool) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return domainauth.Principal{}, false
	}
	if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
		redirectWithNotice(w, r, PathDashboard, Flash{Message: msgUserDataMissing, Kind: NoticeError})
		return domainauth.Principal{}, false
	}
	p, err := ws.SearchUser(r.Context(), ports.UserQuery{UserID: raw})
	if err != nil {
		h.failScreen(w, r, ScreenFailure{Err: err, RedirectTo: PathUpdateUserSearch})
		return domainauth.Principal{}, false
	}
	return p, true
}

func (h *UIHandlers) renderUpdateUser(w http.ResponseWriter, r *http.Request, data map[string]any, target domainauth.Principal) {
	data["Target"] = target
	data["Roles"] = assignableRoles()
	data["CanApprove"] = target.IsDefault()
	data["CanUnlock"] = target.IsLocked()
	h.renderPage(w, r, data)
}

// UpdateUserPage shows the update form for ?userid=.
func (h *UIHandlers) UpdateUserPage(w http.ResponseWriter, r *http.Request) {
	target, ok := h.lookupUser(w, r, r.URL.Query().Get("userid"))
	if !ok {
		return
	}
	h.renderUpdateUser(w, r, NewTemplateData(r, updateUserMeta).Build(), target)
}

//nolint:gochecknoglobals // static field list
var updateUserFields = []string{
	"userid", "action", "role", "username", "email",
	"firstName", "lastName", "birthday", "address", "leaveStart", "leaveEnd",
}

// Update form actions.
const (
	actionSave       = "save"
	actionApprove    = "approve"
	actionUnlock     = "unlock"
	actionDeactivate = "deactivate"
)

// UpdateUserSubmit applies the edited fields plus the chosen action and stores
// the user. The stored record is reloaded first so fields the form does not
// carry survive the round trip.
func (h *UIHandlers) UpdateUserSubmit(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok || !parseForm(w, r) {
		return
	}
	form := formValues(r, updateUserFields...)
	if !hasToken(ws) {
		h.failScreen(w, r, ScreenFailure{Err: service.ErrTokenMissing, RedirectTo: PathUpdateUserSearch})
		return
	}
	target, ok := h.lookupUser(w, r, form["userid"])
	if !ok {
		return
	}
	data := NewTemplateData(r, updateUserMeta).WithForm(form).Build()

	if anyBlank(form, "firstName", "lastName", "email") {
		h.renderUpdateUser(w, r, noticeData(data, msgUpdateUserRequired), target)
		return
	}
	edited, problem := applyUserForm(target, form)
	if problem != "" {
		h.renderUpdateUser(w, r, noticeData(data, problem), target)
		return
	}

	updated, err := ws.UpdateUser(r.Context(), edited)
	if err != nil {
		h.failScreen(w, r, ScreenFailure{
			Err:  err,
			Data: data,
			Render: func(d map[string]any) {
				h.renderUpdateUser(w, r, d, target)
			},
		})
		return
	}
	redirectWithNotice(w, r, updateUserPath(updated.UserID), Flash{
		Message: "User: " + updated.Username + " has been updated",
		Kind:    NoticeSuccess,
	})
}

// applyUserForm overlays the posted fields and action on p. It returns a
// user-facing message when a field is malformed.
func applyUserForm(p domainauth.Principal, form map[string]string) (domainauth.Principal, string) {
	fv := validation.New().Validate("email", form["email"], validation.Email())
	if form["role"] != "" {
		fv.Validate("role", form["role"], validation.OneOf("Role", roleOptions()))
	}
	dates := map[string]string{"birthday": "Birthday", "leaveStart": "Leave start", "leaveEnd": "Leave end"}
	for _, field := range []string{"birthday", "leaveStart", "leaveEnd"} {
		if form[field] != "" {
			fv.Validate(field, form[field], validation.Date(dates[field]))
		}
	}
	if !fv.Valid() {
		return p, fv.First()
	}

	p.Email = form["email"]
	p.FirstName = form["firstName"]
	p.LastName = form["lastName"]
	p.Address = form["address"]
	if form["username"] != "" {
		p.Username = form["username"]
	}
	if form["role"] != "" {
		p.Role = domainauth.ParseRole(form["role"])
	}
	p.Birthday, _ = domainauth.ParseTimestamp(form["birthday"])
	p.TempLeaveStart, _ = domainauth.ParseTimestamp(form["leaveStart"])
	p.TempLeaveEnd, _ = domainauth.ParseTimestamp(form["leaveEnd"])

	switch form["action"] {
	case actionApprove:
		if p.IsDefault() {
			p.Role = domainauth.RoleUser
		}
	case actionUnlock:
		p.FailedLoginAttempts = 0
	case actionDeactivate:
		p.IsActive = false
	case actionSave, "":
	default:
		return p, msgGenericError
	}
	return p, ""
}

// Inbox lists the administrator's mailbox. ?open= shows one message.
func (h *UIHandlers) Inbox(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	emails, err := ws.Inbox(r.Context())
	if err != nil {
		if isTransportFailure(err) {
			h.logger().ErrorContext(r.Context(), "inbox load failed", "error", err)
			redirectWithNotice(w, r, PathDashboard, Flash{Message: msgErrorOccurred, Kind: NoticeError})
			return
		}
		h.failScreen(w, r, ScreenFailure{
			Err:              err,
			ForbiddenMessage: msgInboxForbidden,
			RedirectTo:       PathDashboard,
		})
		return
	}

	data := NewTemplateData(r, inboxMeta).With("Emails", emails).Build()
	if id := r.URL.Query().Get("open"); id != "" {
		if i := slices.IndexFunc(emails, func(e accounting.Email) bool { return e.ID == id }); i >= 0 {
			data["Open"] = emails[i]
		}
	}
	h.renderPage(w, r, data)
}

// InboxDelete removes the checked messages and returns to the inbox.
func (h *UIHandlers) InboxDelete(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok || !parseForm(w, r) {
		return
	}
	ids := r.PostForm["ids"]

	emails, err := ws.Inbox(r.Context())
	if err == nil {
		selected := make([]accounting.Email, 0, len(ids))
		for _, e := range emails {
			if slices.Contains(ids, e.ID) {
				selected = append(selected, e)
			}
		}
		var msg string
		msg, err = ws.DeleteEmails(r.Context(), selected)
		if err == nil {
			redirectWithNotice(w, r, PathInbox, Flash{Message: msg, Kind: NoticeSuccess})
			return
		}
	}

	if isTransportFailure(err) {
		h.logger().ErrorContext(r.Context(), "inbox delete failed", "error", err)
		redirectWithNotice(w, r, PathInbox, Flash{Message: msgDeleteFailed, Kind: NoticeError})
		return
	}
	h.failScreen(w, r, ScreenFailure{
		Err:              err,
		ForbiddenTo:      PathInbox,
		ForbiddenMessage: msgDeleteForbidden,
		RedirectTo:       PathInbox,
	})
}

// SendEmailPage shows the compose form.
func (h *UIHandlers) SendEmailPage(w http.ResponseWriter, r *http.Request) {
	form := map[string]string{"to": r.URL.Query().Get("to")}
	h.renderPage(w, r, NewTemplateData(r, sendEmailMeta).WithForm(form).Build())
}

// SendEmailSubmit sends the composed message from the signed-in administrator.
func (h *UIHandlers) SendEmailSubmit(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok || !parseForm(w, r) {
		return
	}
	form := formValues(r, "to", "subject")
	form["body"] = r.PostFormValue("body")
	data := NewTemplateData(r, sendEmailMeta).WithForm(form).Build()

	if anyBlank(form, "to", "subject", "body") {
		h.renderPage(w, r, noticeData(data, msgSendRequired))
		return
	}
	if !hasToken(ws) {
		h.failScreen(w, r, ScreenFailure{Err: service.ErrTokenMissing, Data: data})
		return
	}

	if _, err := ws.SendEmail(r.Context(), ports.OutgoingEmail{
		To:      form["to"],
		Subject: form["subject"],
		Body:    form["body"],
	}); err != nil {
		h.failScreen(w, r, ScreenFailure{Err: err, Data: data, Prefix: msgSendFailedPrefix})
		return
	}
	redirectWithNotice(w, r, PathInbox, Flash{Message: msgEmailSent, Kind: NoticeSuccess})
}
