package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/txn2/storefront/pkg/cart"
)

var errInvalidBody = fmt.Errorf("%w: malformed request body", cart.ErrInvalidInput)

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	var be *cart.BackendError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, cart.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, cart.ErrRegionNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrNoActiveCart):
		return http.StatusConflict
	case errors.As(err, &be):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
