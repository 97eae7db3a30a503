package catalog

import "context"

// Store persists the whole catalog document. Implementations need not be goroutine safe;
// Service serializes access.
type Store interface {
	// Load returns the stored catalog, creating and persisting an empty one when none exists.
	Load(ctx context.Context) (Catalog, error)
	// Save replaces the stored catalog.
	Save(ctx context.Context, c Catalog) error
}
