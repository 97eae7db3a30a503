package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore keeps the catalog in the categories and products tables.
// Row order is preserved through the position column.
type PostgresStore struct {
	db *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open connection. Schema comes from core/database migrations.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type categoryRow struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	Extra []byte `db:"extra"`
}

type productRow struct {
	ID       string  `db:"id"`
	Name     string  `db:"name"`
	Price    float64 `db:"price"`
	Category string  `db:"category"`
	Media    []byte  `db:"media"`
	Extra    []byte  `db:"extra"`
}

// Load reads both tables. Empty tables are the empty catalog; nothing needs writing.
func (s *PostgresStore) Load(ctx context.Context) (Catalog, error) {
	var cats []categoryRow
	if err := s.db.SelectContext(ctx, &cats,
		`SELECT id, name, extra FROM categories ORDER BY position, id`); err != nil {
		return Catalog{}, fmt.Errorf("select categories: %w", err)
	}
	var prods []productRow
	if err := s.db.SelectContext(ctx, &prods,
		`SELECT id, name, price, category, media, extra FROM products ORDER BY position, id`); err != nil {
		return Catalog{}, fmt.Errorf("select products: %w", err)
	}

	c := Empty()
	for _, row := range cats {
		extra, err := decodeExtra(row.Extra)
		if err != nil {
			return Catalog{}, fmt.Errorf("%w: category %s extra: %v", ErrMalformedDocument, row.ID, err)
		}
		c.Categories = append(c.Categories, Category{ID: row.ID, Name: row.Name, Extra: extra})
	}
	for _, row := range prods {
		p := Product{ID: row.ID, Name: row.Name, Price: row.Price, Category: row.Category}
		if len(row.Media) > 0 {
			if err := json.Unmarshal(row.Media, &p.Media); err != nil {
				return Catalog{}, fmt.Errorf("%w: product %s media: %v", ErrMalformedDocument, row.ID, err)
			}
			if len(p.Media) == 0 {
				p.Media = nil
			}
		}
		extra, err := decodeExtra(row.Extra)
		if err != nil {
			return Catalog{}, fmt.Errorf("%w: product %s extra: %v", ErrMalformedDocument, row.ID, err)
		}
		p.Extra = extra
		c.Products = append(c.Products, p)
	}
	return c, nil
}

// decodeExtra maps the jsonb column back to Extra; the column default {} is nil.
func decodeExtra(raw []byte) (Extra, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	return unknownMembers(raw)
}

func encodeExtra(e Extra) ([]byte, error) {
	if len(e) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(e)
}

// Save replaces both tables inside one transaction. Document-level extras have
// no table and are not kept.
func (s *PostgresStore) Save(ctx context.Context, c Catalog) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	for i, cat := range c.Categories {
		extra, err := encodeExtra(cat.Extra)
		if err != nil {
			return fmt.Errorf("encode category %s: %w", cat.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (id, name, extra, position) VALUES ($1, $2, $3, $4)`,
			cat.ID, cat.Name, extra, i); err != nil {
			return fmt.Errorf("insert category %s: %w", cat.ID, err)
		}
	}
	for i, p := range c.Products {
		media := p.Media
		if media == nil {
			media = []Media{}
		}
		raw, err := json.Marshal(media)
		if err != nil {
			return fmt.Errorf("encode media %s: %w", p.ID, err)
		}
		extra, err := encodeExtra(p.Extra)
		if err != nil {
			return fmt.Errorf("encode product %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO products (id, name, price, category, media, extra, position) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID, p.Name, p.Price, p.Category, raw, extra, i); err != nil {
			return fmt.Errorf("insert product %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
