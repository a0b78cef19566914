package apperrors

import "errors"

// Terminal outcomes of core operations. Services wrap these with context via
// fmt.Errorf("...: %w", err); handlers map them to HTTP statuses.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// HTTPStatus maps a taxonomy error to its HTTP status. Read-style handlers
// that must not reveal whether a file exists translate Forbidden to 404
// themselves before calling this.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrForbidden):
		return 403
	case errors.Is(err, ErrConflict):
		return 409
	case errors.Is(err, ErrValidation):
		return 400
	case errors.Is(err, ErrUnauthenticated):
		return 401
	default:
		return 500
	}
}
