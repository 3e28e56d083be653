// Package shared holds JSON response helpers used by every handler.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "entrypass/pkg/domain-errors"
)

// ErrorResponse is the wire shape for all error replies.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its HTTP status and writes the standard
// error envelope. Plain errors map to 500 with a generic description so
// internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	description := "internal server error"
	var de *dErrors.Error
	if errors.As(err, &de) && code != dErrors.CodeInternal {
		description = de.Message
	}
	WriteJSON(w, dErrors.HTTPStatus(err), ErrorResponse{
		Error:            string(code),
		ErrorDescription: description,
	})
}
