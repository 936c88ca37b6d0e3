package errors

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// Response is the JSON body written for every failed request.
type Response struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// WriteJSON renders err as a Response with the status mapped from its code.
// Unstructured errors are logged and rendered as a generic internal error so
// wrapped causes never reach the client.
func WriteJSON(w http.ResponseWriter, r *http.Request, err error) {
	var e *Error
	if !errors.As(err, &e) {
		slog.Error("Unstructured error reached the HTTP layer", "err", err, "path", r.URL.Path)
		e = Internal("internal server error")
	}

	status := e.HTTPStatusCode()
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "code", e.Code, "err", err, "path", r.URL.Path)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	render.Status(r, status)
	render.JSON(w, r, Response{Code: e.Code, Message: e.Message})
}
