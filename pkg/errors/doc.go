// Package errors provides the structured error taxonomy shared by every
// simple-access package.
//
// Services return *Error values carrying an ErrorCode; handlers pass them to
// WriteJSON, which maps the code to an HTTP status and renders only the code
// and the client-safe message:
//
//	if err != nil {
//		errors.WriteJSON(w, r, err)
//		return
//	}
//
// Wrapped causes stay available to errors.Is and errors.As for logging and
// branching, but are never written to a response body.
package errors
