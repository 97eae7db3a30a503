package catalog

import "errors"

var (
	// ErrMalformedDocument is returned when the backing document exists but cannot be parsed.
	ErrMalformedDocument = errors.New("catalog: malformed document")
	// ErrNotFound is returned when a category or product id does not exist.
	ErrNotFound = errors.New("catalog: not found")
	// ErrDuplicate is returned when a category name is already taken.
	ErrDuplicate = errors.New("catalog: duplicate name")
	// ErrCategoryNotEmpty is returned when deleting a category that still has products.
	ErrCategoryNotEmpty = errors.New("catalog: category has products")
	// ErrInvalidInput is returned for empty names or negative prices.
	ErrInvalidInput = errors.New("catalog: invalid input")
)

// errorKind maps errors to short labels for logs and metrics.
func errorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrCategoryNotEmpty):
		return "not_empty"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	default:
		return "fail"
	}
}
