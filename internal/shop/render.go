package shop

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/shopbot/core/telegram/format"
	"github.com/m3rciful/shopbot/internal/catalog"
)

// Reply is what the bot sends back. Text is Markdown (v1); an empty Reply sends nothing.
type Reply struct {
	Text     string
	Keyboard Keyboard
	// Media, when set, is sent with Text as its caption.
	Media *catalog.Media
	// Edit asks to replace the message the callback came from.
	Edit bool
}

// Empty reports whether there is nothing to send.
func (r Reply) Empty() bool {
	return r.Text == "" && r.Media == nil
}

const (
	textNotUnderstood    = "Sorry, I did not understand that."
	textPermissionDenied = "permission denied"
	textInternalError    = "something went wrong"
	textInvalidNumber    = "invalid input, expected a number"
)

func md(s string) string {
	return format.EscapeV1(s)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

func plain(text string) Reply {
	return Reply{Text: md(text)}
}

// RenderCategories is the top-level shop view.
func RenderCategories(cats []catalog.Category) Reply {
	if len(cats) == 0 {
		return Reply{Text: "The shop is empty for now. Please check back later."}
	}
	return Reply{Text: "🛍 *Shop*\nChoose a category:", Keyboard: CategoriesKeyboard(cats)}
}

// RenderCategory lists products of one category.
func RenderCategory(cat catalog.Category, products []catalog.Product) Reply {
	if len(products) == 0 {
		return Reply{
			Text:     fmt.Sprintf("*%s*\nNo products here yet.", md(cat.Name)),
			Keyboard: ProductsKeyboard(nil),
		}
	}
	return Reply{
		Text:     fmt.Sprintf("*%s*\nChoose a product:", md(cat.Name)),
		Keyboard: ProductsKeyboard(products),
	}
}

// RenderProduct shows a product card with its first media as the cover.
func RenderProduct(p catalog.Product, categoryID string) Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", md(p.Name))
	fmt.Fprintf(&b, "Price: %s\n", formatPrice(p.Price))
	fmt.Fprintf(&b, "Category: %s", md(p.Category))
	if n := len(p.Media); n > 1 {
		fmt.Fprintf(&b, "\n%d media files", n)
	}
	r := Reply{Text: b.String(), Keyboard: ProductKeyboard(categoryID)}
	if len(p.Media) > 0 {
		m := p.Media[0]
		r.Media = &m
	}
	return r
}

// RenderAdminMenu is the admin entry point.
func RenderAdminMenu(c catalog.Catalog) Reply {
	return Reply{
		Text: fmt.Sprintf("🔧 *Admin*\nCategories: %d\nProducts: %d",
			len(c.Categories), len(c.Products)),
		Keyboard: AdminMenuKeyboard(),
	}
}

// RenderAdminCategories lists categories with product counts.
func RenderAdminCategories(c catalog.Catalog) Reply {
	var b strings.Builder
	b.WriteString("📂 *Categories*")
	if len(c.Categories) == 0 {
		b.WriteString("\nNone yet.")
	}
	for _, cat := range c.Categories {
		fmt.Fprintf(&b, "\n• %s (%d)", md(cat.Name), len(c.ProductsIn(cat.Name)))
	}
	return Reply{Text: b.String(), Keyboard: AdminCategoriesKeyboard(c.Categories)}
}

// AdminPageSize bounds the products shown per admin list page so the message
// and its keyboard stay within Telegram's limits.
const AdminPageSize = 10

// adminPages returns the page count, at least one.
func adminPages(n int) int {
	if n <= AdminPageSize {
		return 1
	}
	return (n + AdminPageSize - 1) / AdminPageSize
}

// adminPageOf returns the page holding productID, or zero.
func adminPageOf(c catalog.Catalog, productID string) int {
	for i, p := range c.Products {
		if p.ID == productID {
			return i / AdminPageSize
		}
	}
	return 0
}

// RenderAdminProducts lists one page of products. Out of range pages are clamped.
func RenderAdminProducts(c catalog.Catalog, page int) Reply {
	pages := adminPages(len(c.Products))
	page = max(0, min(page, pages-1))
	from := page * AdminPageSize
	to := min(from+AdminPageSize, len(c.Products))
	shown := c.Products[from:to]

	var b strings.Builder
	b.WriteString("📦 *Products*")
	if pages > 1 {
		fmt.Fprintf(&b, " %d/%d", page+1, pages)
	}
	if len(shown) == 0 {
		b.WriteString("\nNone yet.")
	}
	for _, p := range shown {
		fmt.Fprintf(&b, "\n• %s · %s · %s", md(p.Name), formatPrice(p.Price), md(p.Category))
		if n := len(p.Media); n > 0 {
			fmt.Fprintf(&b, " · %d media", n)
		}
	}
	return Reply{Text: b.String(), Keyboard: AdminProductsKeyboard(shown, page, pages)}
}

func withNotice(notice string, r Reply) Reply {
	if notice != "" {
		r.Text = md(notice) + "\n\n" + r.Text
	}
	return r
}

func prompt(text string) Reply {
	return Reply{Text: md(text), Keyboard: CancelKeyboard()}
}
