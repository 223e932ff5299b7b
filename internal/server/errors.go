package server

import (
	"errors"
	"net/http"

	cartapp "github.com/poshpearl/poshcart/internal/cart/app"
	cartdomain "github.com/poshpearl/poshcart/internal/cart/domain"
	catalogapp "github.com/poshpearl/poshcart/internal/catalog/app"
)

// httpStatusFromErr maps domain errors to the status and stable error code
// the JSON error body carries.
func httpStatusFromErr(err error) (int, string, string) {
	switch {
	case errors.Is(err, catalogapp.ErrDuplicateID):
		return http.StatusConflict, "DUPLICATE_ID", err.Error()
	case errors.Is(err, catalogapp.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", err.Error()
	case errors.Is(err, catalogapp.ErrInvalidInput),
		errors.Is(err, cartdomain.ErrInvalidQuantity),
		errors.Is(err, cartapp.ErrInvalidProductID):
		return http.StatusBadRequest, "INVALID_ARGUMENT", err.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}
}
