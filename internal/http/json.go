package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"

	apperrors "github.com/synergyaccounting/synergy-web/internal/errors"
)

// apiError is the JSON body of every non-2xx JSON answer.
type apiError struct {
	Error   apperrors.ErrorCode `json:"error"`
	Message string              `json:"message"`
	Field   string              `json:"field,omitempty"`
}

// WriteJSON encodes v before touching w so an encoding failure still yields a clean 500.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

// WriteError answers with err's AppError code and message. Errors without an
// AppError become a generic internal error so causes never leak.
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = &apperrors.AppError{Code: apperrors.ErrCodeInternal, Message: msgGenericError, Cause: err}
	}
	WriteJSON(w, appErr.HTTPStatus(), apiError{
		Error:   appErr.Code,
		Message: apperrors.UserMessage(appErr, msgGenericError),
		Field:   appErr.Field,
	})
}
