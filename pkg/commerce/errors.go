package commerce

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorBody is the error payload returned by the commerce backend.
type ErrorBody struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// bodySnippetBytes caps how much of an unparsed error body Error reports.
const bodySnippetBytes = 256

// Error is returned for every failed backend call. Status is zero for
// transport failures that never produced an HTTP response.
//
// Message only ever holds the message of a parsed ErrorBody. Any other
// response body, such as a proxy's HTML error page, is kept in Body for
// logs and must not be shown to shoppers.
type Error struct {
	Op      string
	Status  int
	Type    string
	Message string
	Body    string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
	case e.Status != 0 && e.Body != "":
		body := e.Body
		if len(body) > bodySnippetBytes {
			body = body[:bodySnippetBytes] + "..."
		}
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.Status, http.StatusText(e.Status), body)
	case e.Status != 0:
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, http.StatusText(e.Status))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": " + e.Message
	}
}

// Unwrap returns the underlying transport error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a backend 404 or a "not_found" error.
func IsNotFound(err error) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	return be.Status == http.StatusNotFound || be.Type == "not_found"
}

// IsCustomerNotFound reports whether err carries the backend's signature for
// a token whose customer no longer exists.
func IsCustomerNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	var be *Error
	if errors.As(err, &be) && be.Message != "" {
		msg = be.Message
	}
	return strings.Contains(msg, "Customer with id") && strings.Contains(msg, "was not found")
}
