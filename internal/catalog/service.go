package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/metrics"
)

const component = "service.catalog"

// Service is the only mutation path for the catalog. Every mutation runs as one
// critical section: copy the snapshot, apply, save, then swap.
type Service struct {
	store Store
	newID func() string

	mu       sync.RWMutex
	snapshot Catalog
}

// NewService loads the current catalog from store.
func NewService(ctx context.Context, store Store) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("catalog: nil store")
	}
	c, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load: %w", err)
	}
	c.normalize()
	svc := &Service{store: store, newID: uuid.NewString, snapshot: c}
	metrics.SetCatalogSize(len(c.Categories), len(c.Products))
	logger.Info(ctx, component, "catalog.loaded",
		slog.Int("categories", len(c.Categories)),
		slog.Int("products", len(c.Products)),
	)
	return svc, nil
}

// Snapshot returns a deep copy of the current catalog.
func (s *Service) Snapshot() Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// Categories returns categories in catalog order.
func (s *Service) Categories() []Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Category, len(s.snapshot.Categories))
	copy(out, s.snapshot.Categories)
	return out
}

// Category finds a category by id.
func (s *Service) Category(id string) (Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cat, ok := s.snapshot.CategoryByID(id)
	if !ok {
		return Category{}, fmt.Errorf("category %q: %w", id, ErrNotFound)
	}
	return cat, nil
}

// ProductsIn lists products whose category matches name.
func (s *Service) ProductsIn(name string) []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.ProductsIn(name)
}

// Product finds a product by id.
func (s *Service) Product(id string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.snapshot.ProductByID(id)
	if !ok {
		return Product{}, fmt.Errorf("product %q: %w", id, ErrNotFound)
	}
	p.Media = cloneMedia(p.Media)
	return p, nil
}

// AddCategory appends a category. Names must be non-empty and unique ignoring case.
func (s *Service) AddCategory(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	var added Category
	err := s.mutate(ctx, "add_category", func(c *Catalog) error {
		if name == "" {
			return fmt.Errorf("category name is empty: %w", ErrInvalidInput)
		}
		if _, ok := c.CategoryByName(name); ok {
			return fmt.Errorf("category %q: %w", name, ErrDuplicate)
		}
		added = Category{ID: s.newID(), Name: name}
		c.Categories = append(c.Categories, added)
		return nil
	})
	if err != nil {
		return Category{}, err
	}
	return added, nil
}

// DeleteCategory removes an empty category.
func (s *Service) DeleteCategory(ctx context.Context, id string) (Category, error) {
	var removed Category
	err := s.mutate(ctx, "delete_category", func(c *Catalog) error {
		idx := -1
		for i, cat := range c.Categories {
			if cat.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("category %q: %w", id, ErrNotFound)
		}
		removed = c.Categories[idx]
		if len(c.ProductsIn(removed.Name)) > 0 {
			return fmt.Errorf("category %q: %w", removed.Name, ErrCategoryNotEmpty)
		}
		c.Categories = append(c.Categories[:idx], c.Categories[idx+1:]...)
		return nil
	})
	if err != nil {
		return Category{}, err
	}
	return removed, nil
}

// AddProduct commits a draft. A category that does not exist yet is created in the same step.
func (s *Service) AddProduct(ctx context.Context, d ProductDraft) (Product, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Category = strings.TrimSpace(d.Category)
	var added Product
	err := s.mutate(ctx, "add_product", func(c *Catalog) error {
		if d.Name == "" || d.Category == "" {
			return fmt.Errorf("product name and category are required: %w", ErrInvalidInput)
		}
		if math.IsNaN(d.Price) || math.IsInf(d.Price, 0) || d.Price < 0 {
			return fmt.Errorf("price %v: %w", d.Price, ErrInvalidInput)
		}
		cat, ok := c.CategoryByName(d.Category)
		if !ok {
			cat = Category{ID: s.newID(), Name: d.Category}
			c.Categories = append(c.Categories, cat)
		}
		added = Product{
			ID:       s.newID(),
			Name:     d.Name,
			Price:    d.Price,
			Category: cat.Name,
			Media:    cloneMedia(d.Media),
		}
		c.Products = append(c.Products, added)
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	return added, nil
}

// DeleteProduct removes a product by id.
func (s *Service) DeleteProduct(ctx context.Context, id string) (Product, error) {
	var removed Product
	err := s.mutate(ctx, "delete_product", func(c *Catalog) error {
		for i, p := range c.Products {
			if p.ID == id {
				removed = p
				c.Products = append(c.Products[:i], c.Products[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("product %q: %w", id, ErrNotFound)
	})
	if err != nil {
		return Product{}, err
	}
	return removed, nil
}

// AttachMedia appends a media reference to an existing product.
func (s *Service) AttachMedia(ctx context.Context, productID string, m Media) (Product, error) {
	var updated Product
	err := s.mutate(ctx, "attach_media", func(c *Catalog) error {
		if strings.TrimSpace(m.FileID) == "" || (m.Type != MediaPhoto && m.Type != MediaVideo) {
			return fmt.Errorf("media %q/%q: %w", m.Type, m.FileID, ErrInvalidInput)
		}
		for i := range c.Products {
			if c.Products[i].ID == productID {
				c.Products[i].Media = append(c.Products[i].Media, m)
				updated = c.Products[i]
				return nil
			}
		}
		return fmt.Errorf("product %q: %w", productID, ErrNotFound)
	})
	if err != nil {
		return Product{}, err
	}
	updated.Media = cloneMedia(updated.Media)
	return updated, nil
}

// mutate applies fn to a copy of the snapshot and persists it. The snapshot is
// replaced only after the store accepted the new document.
func (s *Service) mutate(ctx context.Context, op string, fn func(*Catalog) error) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snapshot.Clone()
	err := fn(&next)
	if err == nil {
		if saveErr := s.store.Save(ctx, next); saveErr != nil {
			err = fmt.Errorf("catalog: save: %w", saveErr)
		}
	}

	status := errorKind(err)
	metrics.IncCatalogMutation(op, status)
	attrs := []slog.Attr{
		slog.String("op", op),
		slog.String("status", status),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		if status == "fail" {
			logger.Error(ctx, component, "catalog.mutate", attrs...)
		} else {
			logger.Debug(ctx, component, "catalog.mutate", attrs...)
		}
		return err
	}

	s.snapshot = next
	metrics.SetCatalogSize(len(next.Categories), len(next.Products))
	attrs = append(attrs,
		slog.Int("categories", len(next.Categories)),
		slog.Int("products", len(next.Products)),
	)
	logger.Info(ctx, component, "catalog.mutate", attrs...)
	return nil
}
