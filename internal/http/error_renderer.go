package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/synergyaccounting/synergy-web/internal/adapters/upstream"
	apperrors "github.com/synergyaccounting/synergy-web/internal/errors"
	obserrors "github.com/synergyaccounting/synergy-web/internal/observability/errors"
	"github.com/synergyaccounting/synergy-web/internal/service"
)

// ClassifyScreenError maps a failed Workspace call onto an AppError whose
// Code drives the screen's reaction and whose Message is safe to show:
//
//   - unavailable: no anti-forgery token is held
//   - validation: the login acceptance rules rejected the principal
//   - unauthorized: the remote API answered 401/403
//   - upstream: the remote API answered with a message of its own
//   - canceled: the visitor went away or the Workspace was evicted
//   - internal: transport failures and unparseable answers
func ClassifyScreenError(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}

	var rejected *service.LoginRejectedError
	switch {
	case errors.Is(err, service.ErrTokenMissing), errors.Is(err, service.ErrTokenUnavailable):
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, msgTokenMissing)
	case errors.As(err, &rejected):
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, rejected.Message)
	case upstream.IsUnauthorized(err):
		return apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, msgForbidden)
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(err, apperrors.ErrCodeCanceled, msgGenericError)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.ErrCodeTimeout, msgGenericError)
	}

	if msg, ok := upstream.MessageOf(err); ok && !upstream.IsTransport(err) {
		return apperrors.Wrap(err, apperrors.ErrCodeUpstream, msg)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Wrap(err, apperrors.ErrCodeInternal, msgGenericError)
}

// isTransportFailure reports whether err left the screen without any server answer.
func isTransportFailure(err error) bool {
	appErr := ClassifyScreenError(err)
	return appErr != nil && (appErr.Code == apperrors.ErrCodeInternal || appErr.Code == apperrors.ErrCodeTimeout)
}

// ScreenFailure describes how a screen reacts to a failed call.
type ScreenFailure struct {
	// Err is the failed call's error.
	Err error
	// Render re-renders the screen with the notice already set in data.
	Render func(data map[string]any)
	// Data is the screen's template data; the notice is added to it.
	Data map[string]any
	// ForbiddenTo is where a 401/403 redirects (default /dashboard).
	ForbiddenTo string
	// ForbiddenMessage overrides the notice shown after that redirect.
	ForbiddenMessage string
	// Prefix is prepended to server-supplied messages, e.g. "Verification failed: ".
	Prefix string
	// Inline keeps 401/403 on the screen, showing the server's message.
	// Public account screens use it: a 401 there is a wrong password, not a missing role.
	Inline bool
	// RedirectTo carries every notice to another screen instead of re-rendering.
	RedirectTo string
}

// failScreen applies the error policy shared by every screen: authorization
// failures redirect to a safe screen, everything else becomes a notice on the
// re-rendered form.
func (h *UIHandlers) failScreen(w http.ResponseWriter, r *http.Request, f ScreenFailure) {
	appErr := ClassifyScreenError(f.Err)
	if appErr == nil {
		return
	}

	attrs := []any{
		"path", r.URL.Path,
		"code", string(appErr.Code),
		"error_class", obserrors.Classify(f.Err),
		"upstream_status", upstream.StatusOf(f.Err),
	}
	switch appErr.Code {
	case apperrors.ErrCodeInternal, apperrors.ErrCodeTimeout:
		h.logger().ErrorContext(r.Context(), "screen call failed", append(attrs, "error", f.Err)...)
	case apperrors.ErrCodeCanceled:
		if r.Context().Err() != nil {
			// Nobody is waiting for the answer.
			return
		}
		h.logger().WarnContext(r.Context(), "screen call aborted by workspace shutdown", attrs...)
	default:
		h.logger().InfoContext(r.Context(), "screen call rejected", append(attrs, "error", f.Err)...)
	}

	if appErr.Code == apperrors.ErrCodeUnavailable {
		if ws, ok := WorkspaceFromContext(r.Context()); ok {
			ws.RetryToken()
		}
	}

	msg := appErr.Message
	switch {
	case appErr.Code == apperrors.ErrCodeUnauthorized && f.Inline:
		msg = msgGenericError
		if serverMsg, ok := upstream.MessageOf(f.Err); ok {
			msg = f.Prefix + serverMsg
		}
	case appErr.Code == apperrors.ErrCodeUnauthorized:
		to := f.ForbiddenTo
		if to == "" {
			to = PathDashboard
		}
		if f.ForbiddenMessage != "" {
			msg = f.ForbiddenMessage
		}
		redirectWithNotice(w, r, to, Flash{Message: msg, Kind: NoticeError})
		return
	case appErr.Code == apperrors.ErrCodeUpstream:
		msg = f.Prefix + msg
	}

	if f.RedirectTo != "" {
		redirectWithNotice(w, r, f.RedirectTo, Flash{Message: msg, Kind: NoticeError})
		return
	}
	data := f.Data
	if data == nil {
		data = basePageData(r, PageMeta{})
	}
	data["Notice"] = msg
	data["NoticeKind"] = NoticeError
	if f.Render != nil {
		f.Render(data)
		return
	}
	h.renderPage(w, r, data)
}
