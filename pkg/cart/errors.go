package cart

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/region"
)

var (
	// ErrRegionNotFound means the country code maps to no region. It wraps
	// region.ErrNotFound.
	ErrRegionNotFound = fmt.Errorf("cart: %w", region.ErrNotFound)

	// ErrNoActiveCart means the session carries no cart id.
	ErrNoActiveCart = errors.New("no active cart for session")

	// ErrInvalidInput means a required argument is missing or out of range.
	ErrInvalidInput = errors.New("invalid input")
)

// unavailableMessage replaces transport failures and backend server errors
// so their detail never reaches the rendering layer.
const unavailableMessage = "the store is temporarily unavailable, please try again"

// BackendError is a failed backend call. Error returns the backend's own
// message for requests it rejected with a 4xx ErrorBody and a uniform message
// for everything else. Unwrap keeps the underlying *commerce.Error for logs.
type BackendError struct {
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return e.Message
}

// Unwrap returns the underlying backend error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

func newBackendError(op string, err error) *BackendError {
	msg := unavailableMessage
	var ce *commerce.Error
	if errors.As(err, &ce) && ce.Message != "" &&
		ce.Status >= http.StatusBadRequest && ce.Status < http.StatusInternalServerError {
		msg = ce.Message
	}
	return &BackendError{Op: op, Message: msg, Err: err}
}

// ActionResult is the uniform outcome of a cart mutation rendered inline by
// the presentation layer. Error is null on success.
type ActionResult struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

// Result converts the error of a mutation into an ActionResult.
func Result(err error) ActionResult {
	if err == nil {
		return ActionResult{Success: true}
	}
	msg := err.Error()
	return ActionResult{Error: &msg}
}
