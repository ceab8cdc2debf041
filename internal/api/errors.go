package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

var (
	// ErrUnauthorized marks a 401 on an authenticated call. The session has
	// already been cleared when a caller sees it.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrInvalidCredentials is returned by Login for rejected credentials.
	ErrInvalidCredentials = errors.New("api: invalid credentials")
	// ErrForbidden marks a 403.
	ErrForbidden = errors.New("api: forbidden")
	// ErrNotFound marks a 404.
	ErrNotFound = errors.New("api: not found")
	// ErrValidation marks input rejected locally or by a 4xx from the server.
	ErrValidation = errors.New("api: validation failed")
	// ErrServer marks a 5xx.
	ErrServer = errors.New("api: server error")
	// ErrNetwork marks a request that never produced a response.
	ErrNetwork = errors.New("api: network error")
)

// Error is a failed backend call.
type Error struct {
	Endpoint string
	Status   int
	Message  string
	kind     error
}

func newError(endpoint string, status int, body []byte) *Error {
	return &Error{
		Endpoint: endpoint,
		Status:   status,
		Message:  serverMessage(body),
		kind:     kindForStatus(status),
	}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Status == 0 {
		return fmt.Sprintf("api: %s: %s", e.Endpoint, msg)
	}
	return fmt.Sprintf("api: %s: %d %s", e.Endpoint, e.Status, msg)
}

// Unwrap exposes the error class for errors.Is.
func (e *Error) Unwrap() error { return e.kind }

// UserMessage is the text to show in a notification.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	switch {
	case errors.Is(e.kind, ErrNetwork):
		return "The server could not be reached. Try again."
	case errors.Is(e.kind, ErrServer):
		return "The server failed to handle the request. Try again."
	}
	return http.StatusText(e.Status)
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return ErrServer
	case status >= 400:
		return ErrValidation
	}
	return ErrNetwork
}

// serverMessage pulls a human readable message out of an error body. Both
// {"detail": "..."} and {"detail": [{"msg": "..."}]} shapes are common.
func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if !gjson.ValidBytes(body) {
		text := strings.TrimSpace(string(body))
		if len(text) > 200 {
			text = text[:200]
		}
		return text
	}
	for _, path := range []string{"detail", "message", "error", "detail.0.msg", "errors.0.message"} {
		if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

// FieldErrors lists input problems by field name.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "api: invalid input: " + strings.Join(parts, "; ")
}

// Unwrap makes FieldErrors match ErrValidation.
func (f FieldErrors) Unwrap() error { return ErrValidation }

var validate = validator.New()

func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describeField(fe)
	}
	return fields
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}
