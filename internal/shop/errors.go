package shop

import (
	"context"
	"errors"

	"github.com/m3rciful/shopbot/internal/settings"
)

var (
	// ErrPermissionDenied is returned when a non-admin reaches an admin operation.
	ErrPermissionDenied = errors.New("shop: permission denied")
	// ErrUnknownAction is returned for callbacks and commands no router claims.
	ErrUnknownAction = errors.New("shop: unknown action")
)

// AdminChecker answers whether a sender may manage the catalog.
type AdminChecker interface {
	IsAdmin(ctx context.Context, id settings.Identifier) bool
}

// AdminCheckerFunc adapts a function to AdminChecker.
type AdminCheckerFunc func(ctx context.Context, id settings.Identifier) bool

// IsAdmin calls f.
func (f AdminCheckerFunc) IsAdmin(ctx context.Context, id settings.Identifier) bool {
	return f(ctx, id)
}
