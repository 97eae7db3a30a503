package shop

import (
	"context"
	"fmt"

	"github.com/m3rciful/shopbot/internal/catalog"
)

// UserRouter renders the read-only browse flow.
type UserRouter struct {
	catalog *catalog.Service
}

// NewUserRouter wires the browse router.
func NewUserRouter(cat *catalog.Service) *UserRouter {
	return &UserRouter{catalog: cat}
}

// Start renders the top-level category list.
func (u *UserRouter) Start(_ context.Context, _ Event) (Reply, error) {
	return RenderCategories(u.catalog.Categories()), nil
}

// HandleCallback resolves shop, cat|<id> and prod|<id>.
func (u *UserRouter) HandleCallback(_ context.Context, ev Event) (Reply, error) {
	switch ev.Action.Kind {
	case ActionShop:
		return edit(RenderCategories(u.catalog.Categories())), nil

	case ActionCategory:
		cat, err := u.catalog.Category(ev.Action.ID)
		if err != nil {
			return Reply{}, err
		}
		return edit(RenderCategory(cat, u.catalog.ProductsIn(cat.Name))), nil

	case ActionProduct:
		p, err := u.catalog.Product(ev.Action.ID)
		if err != nil {
			return Reply{}, err
		}
		var categoryID string
		if cat, ok := u.catalog.Snapshot().CategoryByName(p.Category); ok {
			categoryID = cat.ID
		}
		r := RenderProduct(p, categoryID)
		// A text message cannot be edited into a photo.
		r.Edit = r.Media == nil
		return r, nil
	}
	return Reply{}, fmt.Errorf("user callback %q: %w", ev.Action, ErrUnknownAction)
}
