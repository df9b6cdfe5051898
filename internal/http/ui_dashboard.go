package httpx

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/synergyaccounting/synergy-web/internal/adapters/upstream"
	"github.com/synergyaccounting/synergy-web/internal/domain/accounting"
	apperrors "github.com/synergyaccounting/synergy-web/internal/errors"
	"github.com/synergyaccounting/synergy-web/internal/ports"
)

// Signed-in screen messages.
const (
	msgAccountsForbidden = "You do not have permission to access this resource."
	msgSelectImage       = "Please select an image to upload"
	msgImageUploaded     = "Image uploaded successfully"
	msgImageFailed       = "Failed to upload image"
	msgImageTooLarge     = "Image is too large. The limit is 5 MB."
)

// uploadFormMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const uploadFormMemory = 1 << 20

//nolint:gochecknoglobals // static page metadata
var (
	dashboardMeta = pageMeta("Dashboard", PageDashboard)
	accountsMeta  = pageMeta("Chart of Accounts", PageAccounts)
	uploadMeta    = pageMeta("Upload Image", PageUpload)
)

// accountColumn is one sortable chart-of-accounts header.
type accountColumn struct {
	Key    accounting.SortKey
	Label  string
	Active bool
}

//nolint:gochecknoglobals // static column list in display order
var accountColumns = []accountColumn{
	{Key: accounting.SortByNumber, Label: "Account Number"},
	{Key: accounting.SortByName, Label: "Account Name"},
	{Key: accounting.SortByDescription, Label: "Account Description"},
	{Key: accounting.SortByCategory, Label: "Category"},
	{Key: accounting.SortBySubCategory, Label: "Subcategory"},
	{Key: accounting.SortByInitialBalance, Label: "Initial Balance"},
	{Key: accounting.SortByCurrentBalance, Label: "Current Balance"},
	{Key: accounting.SortByDateAdded, Label: "Date Added"},
	{Key: accounting.SortByCreator, Label: "Creator"},
}

// Root sends visitors to the login screen.
func (h *UIHandlers) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.NotFound(w, r)
		return
	}
	redirect(w, r, PathLogin)
}

// Dashboard renders the signed-in landing screen with its side panel.
func (h *UIHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, NewTemplateData(r, dashboardMeta).Build())
}

// ChartOfAccounts lists ledger accounts, sorted by ?sort= and filtered by ?q=.
func (h *UIHandlers) ChartOfAccounts(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	accounts, err := ws.ChartOfAccounts(r.Context())
	if err != nil {
		if isTransportFailure(err) {
			redirectWithNotice(w, r, PathDashboard, Flash{Message: msgErrorOccurred, Kind: NoticeError})
			return
		}
		h.failScreen(w, r, ScreenFailure{
			Err:              err,
			ForbiddenMessage: msgAccountsForbidden,
			RedirectTo:       PathDashboard,
		})
		return
	}

	query := r.URL.Query()
	term := strings.TrimSpace(query.Get("q"))
	key, sorted := accounting.ParseSortKey(query.Get("sort"))
	if !sorted {
		key = accounting.SortByNumber
	}
	accounts = accounting.SortAccounts(accounting.FilterAccounts(accounts, term), key)

	columns := make([]accountColumn, len(accountColumns))
	for i, c := range accountColumns {
		c.Active = c.Key == key
		columns[i] = c
	}

	data := NewTemplateData(r, accountsMeta).
		With("Accounts", accounts).
		With("Columns", columns).
		With("Sort", string(key)).
		With("Query", term).
		Build()
	h.renderPage(w, r, data)
}

// UploadImagePage shows the profile picture form. Administrators may pass
// ?user= to upload on another user's behalf.
func (h *UIHandlers) UploadImagePage(w http.ResponseWriter, r *http.Request) {
	data := NewTemplateData(r, uploadMeta).
		With("TargetUser", strings.TrimSpace(r.URL.Query().Get("user"))).
		Build()
	h.renderPage(w, r, data)
}

// UploadImageSubmit forwards the chosen picture to the remote API.
func (h *UIHandlers) UploadImageSubmit(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(uploadFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "invalid upload", http.StatusBadRequest)
		return
	}
	target := strings.TrimSpace(r.FormValue("user"))
	data := NewTemplateData(r, uploadMeta).With("TargetUser", target).Build()
	render := func(msg, kind string) {
		data["Notice"] = msg
		data["NoticeKind"] = kind
		h.renderPage(w, r, data)
	}

	p := ws.Principal()
	if p == nil {
		redirect(w, r, PathLogin)
		return
	}
	userID := p.UserID
	if target != "" {
		id, err := strconv.ParseInt(target, 10, 64)
		if err != nil || id <= 0 {
			render(msgImageFailed, NoticeError)
			return
		}
		if id != p.UserID && !p.IsAdministrator() {
			redirectWithNotice(w, r, PathDashboard, Flash{Message: msgForbidden, Kind: NoticeError})
			return
		}
		userID = id
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		render(msgSelectImage, NoticeError)
		return
	}
	if header.Size > upstream.MaxImageBytes {
		_ = file.Close()
		render(msgImageTooLarge, NoticeError)
		return
	}

	err = ws.UploadImage(r.Context(), userID, ports.Image{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	switch {
	case err == nil:
		render(msgImageUploaded, NoticeSuccess)
	case ClassifyScreenError(err).Code == apperrors.ErrCodeUnavailable:
		h.failScreen(w, r, ScreenFailure{Err: err, Data: data})
	case isTransportFailure(err):
		h.logger().ErrorContext(r.Context(), "image upload failed", "error", err, "user_id", userID)
		render(msgGenericError, NoticeError)
	default:
		h.logger().InfoContext(r.Context(), "image upload rejected", "error", err, "user_id", userID)
		render(msgImageFailed, NoticeError)
	}
}

// ProfileImage proxies a stored profile picture.
func (h *UIHandlers) ProfileImage(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}

	img, err := ws.ProfileImage(r.Context(), id)
	if err != nil {
		status := http.StatusNotFound
		switch {
		case upstream.IsUnauthorized(err):
			status = http.StatusForbidden
		case isTransportFailure(err):
			status = http.StatusBadGateway
		}
		h.logger().DebugContext(r.Context(), "profile image unavailable", "user_id", id, "error", err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	defer img.Body.Close()

	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, img.Body); err != nil {
		h.logger().WarnContext(r.Context(), "profile image copy interrupted", "user_id", id, "error", err)
	}
}
