// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-console/internal/api"
)

// RespondError maps client errors to HTTP responses using RFC7807. The
// backend's own message is passed through as the detail.
func RespondError(w http.ResponseWriter, err error) {
	detail := err.Error()
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		detail = apiErr.UserMessage()
	}
	switch {
	case errors.Is(err, api.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", detail)
	case errors.Is(err, api.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", detail)
	case errors.Is(err, api.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", detail)
	case errors.Is(err, api.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", detail)
	case errors.Is(err, api.ErrNetwork), errors.Is(err, api.ErrServer):
		Problem(w, http.StatusBadGateway, "Backend Unavailable", detail)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
