package shop

import (
	"fmt"
	"strconv"

	"github.com/m3rciful/shopbot/internal/catalog"
)

// Button is one inline keyboard button.
type Button struct {
	Label  string
	Action Action
}

// Keyboard is rows of buttons.
type Keyboard [][]Button

func row(buttons ...Button) []Button { return buttons }

func btn(label string, kind ActionKind, id string) Button {
	return Button{Label: label, Action: NewAction(kind, id)}
}

// CategoriesKeyboard lists categories, one per row.
func CategoriesKeyboard(cats []catalog.Category) Keyboard {
	kb := make(Keyboard, 0, len(cats))
	for _, c := range cats {
		kb = append(kb, row(btn(c.Name, ActionCategory, c.ID)))
	}
	return kb
}

// ProductsKeyboard lists products of a category with a way back to the category list.
func ProductsKeyboard(products []catalog.Product) Keyboard {
	kb := make(Keyboard, 0, len(products)+1)
	for _, p := range products {
		kb = append(kb, row(btn(fmt.Sprintf("%s · %s", p.Name, formatPrice(p.Price)), ActionProduct, p.ID)))
	}
	return append(kb, row(btn("⬅️ Back", ActionShop, "")))
}

// ProductKeyboard returns to the product's category, or to the shop when it is unknown.
func ProductKeyboard(categoryID string) Keyboard {
	if categoryID == "" {
		return Keyboard{row(btn("⬅️ Back", ActionShop, ""))}
	}
	return Keyboard{row(btn("⬅️ Back", ActionCategory, categoryID))}
}

// AdminMenuKeyboard is the admin entry point.
func AdminMenuKeyboard() Keyboard {
	return Keyboard{
		row(btn("📂 Categories", ActionAdminCategories, ""), btn("➕ Category", ActionAdminNewCategory, "")),
		row(btn("📦 Products", ActionAdminProducts, ""), btn("➕ Product", ActionNewProduct, "")),
		row(btn("🛍 Open shop", ActionShop, "")),
	}
}

// AdminCategoriesKeyboard offers deletion per category.
func AdminCategoriesKeyboard(cats []catalog.Category) Keyboard {
	kb := make(Keyboard, 0, len(cats)+2)
	for _, c := range cats {
		kb = append(kb, row(btn("🗑 "+c.Name, ActionDeleteCategory, c.ID)))
	}
	return append(kb,
		row(btn("➕ Category", ActionAdminNewCategory, "")),
		row(btn("⬅️ Admin menu", ActionAdminMenu, "")),
	)
}

// AdminProductsKeyboard offers media upload and deletion per product of one
// page, plus paging buttons when there is more than one page.
func AdminProductsKeyboard(products []catalog.Product, page, pages int) Keyboard {
	kb := make(Keyboard, 0, len(products)+3)
	for _, p := range products {
		kb = append(kb, row(
			btn("📷 "+p.Name, ActionAdminMedia, p.ID),
			btn("🗑 "+p.Name, ActionDeleteProduct, p.ID),
		))
	}
	if pages > 1 {
		var nav []Button
		if page > 0 {
			nav = append(nav, btn("◀️ Prev", ActionAdminProducts, strconv.Itoa(page-1)))
		}
		if page < pages-1 {
			nav = append(nav, btn("Next ▶️", ActionAdminProducts, strconv.Itoa(page+1)))
		}
		kb = append(kb, row(nav...))
	}
	return append(kb,
		row(btn("➕ Product", ActionNewProduct, "")),
		row(btn("⬅️ Admin menu", ActionAdminMenu, "")),
	)
}

// CategoryPickerKeyboard lets the admin choose the category of a product draft.
func CategoryPickerKeyboard(cats []catalog.Category) Keyboard {
	kb := make(Keyboard, 0, len(cats)+1)
	for _, c := range cats {
		kb = append(kb, row(btn(c.Name, ActionNewProductCategory, c.ID)))
	}
	return append(kb, CancelKeyboard()...)
}

// CancelKeyboard aborts the current entry.
func CancelKeyboard() Keyboard {
	return Keyboard{row(btn("❌ Cancel", ActionAdminCancel, ""))}
}
