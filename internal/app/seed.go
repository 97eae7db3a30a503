package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/m3rciful/shopbot/core/bootstrap"
	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/internal/catalog"
)

// CatalogSeeder copies an existing catalog document into an empty postgres catalog,
// so switching the storage driver keeps the shop's contents.
// It does nothing for the json driver, when the tables already hold data, or when the file is absent.
func CatalogSeeder(path string) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, res *bootstrap.Result) error {
		if res == nil || res.DB == nil {
			return nil
		}
		return seedCatalog(ctx, path, catalog.NewPostgresStore(res.DB))
	})
}

func seedCatalog(ctx context.Context, path string, dst catalog.Store) error {
	current, err := dst.Load(ctx)
	if err != nil {
		return fmt.Errorf("seed: load destination: %w", err)
	}
	if len(current.Categories) > 0 || len(current.Products) > 0 {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	src, err := catalog.NewJSONStore(path).Load(ctx)
	if err != nil {
		return fmt.Errorf("seed: read %s: %w", path, err)
	}
	if len(src.Categories) == 0 && len(src.Products) == 0 {
		return nil
	}
	if err := dst.Save(ctx, src); err != nil {
		return fmt.Errorf("seed: save: %w", err)
	}
	logger.Info(ctx, component, "catalog.seeded",
		slog.String("from", path),
		slog.Int("categories", len(src.Categories)),
		slog.Int("products", len(src.Products)),
	)
	return nil
}
