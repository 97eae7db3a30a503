// Package catalog owns the shop's categories and products and their persistence.
package catalog

import (
	"encoding/json"
	"strings"
)

// MediaType names the kind of Telegram file attached to a product.
type MediaType string

const (
	// MediaPhoto is a Telegram photo file id.
	MediaPhoto MediaType = "photo"
	// MediaVideo is a Telegram video file id.
	MediaVideo MediaType = "video"
)

// Media references a file already uploaded to Telegram.
type Media struct {
	Type   MediaType `json:"type"`
	FileID string    `json:"file_id"`
}

// Category groups products. Names are unique ignoring case.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Extra Extra  `json:"-"`
}

// Product is a sellable item. Category holds the category name.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
	Media    []Media `json:"media,omitempty"`
	Extra    Extra   `json:"-"`
}

// Catalog is the persisted document: two ordered sequences.
type Catalog struct {
	Categories []Category `json:"categories"`
	Products   []Product  `json:"products"`
	Extra      Extra      `json:"-"`
}

func (c *Category) UnmarshalJSON(data []byte) error {
	type plain Category
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownMembers(data, "id", "name")
	if err != nil {
		return err
	}
	v.Extra = extra
	*c = Category(v)
	return nil
}

func (c Category) MarshalJSON() ([]byte, error) {
	type plain Category
	return marshalWithExtra(plain(c), c.Extra)
}

func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownMembers(data, "id", "name", "price", "category", "media")
	if err != nil {
		return err
	}
	v.Extra = extra
	*p = Product(v)
	return nil
}

func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return marshalWithExtra(plain(p), p.Extra)
}

func (c *Catalog) UnmarshalJSON(data []byte) error {
	type plain Catalog
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownMembers(data, "categories", "products")
	if err != nil {
		return err
	}
	v.Extra = extra
	*c = Catalog(v)
	return nil
}

func (c Catalog) MarshalJSON() ([]byte, error) {
	type plain Catalog
	return marshalWithExtra(plain(c), c.Extra)
}

// ProductDraft carries the fields collected before a product is committed.
type ProductDraft struct {
	Name     string
	Price    float64
	Category string
	Media    []Media
}

// Empty returns the default document written when none exists.
func Empty() Catalog {
	return Catalog{Categories: []Category{}, Products: []Product{}}
}

// Clone returns a deep copy so callers never share backing arrays with the service.
func (c Catalog) Clone() Catalog {
	out := Catalog{
		Categories: make([]Category, len(c.Categories)),
		Products:   make([]Product, len(c.Products)),
		Extra:      c.Extra.clone(),
	}
	for i, cat := range c.Categories {
		cat.Extra = cat.Extra.clone()
		out.Categories[i] = cat
	}
	for i, p := range c.Products {
		p.Media = cloneMedia(p.Media)
		p.Extra = p.Extra.clone()
		out.Products[i] = p
	}
	return out
}

// normalize replaces nil sequences with empty ones so documents round-trip as [].
func (c *Catalog) normalize() {
	if c.Categories == nil {
		c.Categories = []Category{}
	}
	if c.Products == nil {
		c.Products = []Product{}
	}
}

// CategoryByID performs a linear scan.
func (c Catalog) CategoryByID(id string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return Category{}, false
}

// CategoryByName matches names ignoring case and surrounding space.
func (c Catalog) CategoryByName(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	for _, cat := range c.Categories {
		if strings.EqualFold(cat.Name, name) {
			return cat, true
		}
	}
	return Category{}, false
}

// ProductByID performs a linear scan.
func (c Catalog) ProductByID(id string) (Product, bool) {
	for _, p := range c.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// ProductsIn lists products of a category in catalog order.
func (c Catalog) ProductsIn(category string) []Product {
	var out []Product
	for _, p := range c.Products {
		if strings.EqualFold(p.Category, category) {
			p.Media = cloneMedia(p.Media)
			p.Extra = p.Extra.clone()
			out = append(out, p)
		}
	}
	return out
}

func cloneMedia(src []Media) []Media {
	if src == nil {
		return nil
	}
	out := make([]Media, len(src))
	copy(out, src)
	return out
}
