// Package app assembles the shop bot from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/shopbot/core/bootstrap"
	"github.com/m3rciful/shopbot/core/cmd"
	coreconfig "github.com/m3rciful/shopbot/core/config"
	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/metrics"
	"github.com/m3rciful/shopbot/core/ops"
	"github.com/m3rciful/shopbot/core/telegram/state"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/settings"
	"github.com/m3rciful/shopbot/internal/shop"
)

const component = "app"

// App owns the long-lived collaborators of one bot process.
type App struct {
	cfg      *coreconfig.Config
	infra    *bootstrap.Result
	settings *settings.Store
	catalog  *catalog.Service
	shop     *shop.Shop
	closers  []func() error
	ops      *ops.Server
}

var _ cmd.TelegramApp = (*App)(nil)

// Bootstrap satisfies the runner's bootstrap hook.
func Bootstrap(ctx context.Context, carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	return New(ctx, carrier.CoreConfig())
}

// New loads the shop documents, connects the configured backends and builds the shop.
func New(ctx context.Context, cfg *coreconfig.Config) (*App, error) {
	infra, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:  cfg,
		Modules: bootstrap.Modules{Seeders: []bootstrap.Seeder{CatalogSeeder(cfg.Shop.CatalogFile)}},
	})
	if err != nil {
		return nil, err
	}
	// assemble releases only what it opened; infra stays ours until it succeeds.
	a, err := assemble(ctx, cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	metrics.MustRegister()
	return a, nil
}

// dialRedis is swapped by tests.
var dialRedis = state.NewRedisClient

// assemble wires everything after infrastructure is up. Tests call it directly.
// On error it closes the connections it opened and leaves infra to the caller.
func assemble(ctx context.Context, cfg *coreconfig.Config, infra *bootstrap.Result) (_ *App, err error) {
	a := &App{cfg: cfg, infra: infra}
	defer func() {
		if err != nil {
			_ = a.closeOwned()
		}
	}()

	a.settings = settings.Open(cfg.Shop.ConfigFile)
	doc, err := a.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load %s: %w", cfg.Shop.ConfigFile, err)
	}
	if err := cfg.ResolveToken(doc.Token); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	sessions, locks, err := a.sessionStore(ctx)
	if err != nil {
		return nil, err
	}

	var store catalog.Store
	switch {
	case cfg.Storage.Driver == coreconfig.StoragePostgres && infra != nil && infra.DB != nil:
		store = catalog.NewPostgresStore(infra.DB)
	case cfg.Storage.Driver == coreconfig.StoragePostgres:
		return nil, errors.New("app: postgres storage selected but no database connection")
	default:
		store = catalog.NewJSONStore(cfg.Shop.CatalogFile)
	}
	a.catalog, err = catalog.NewService(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("app: load catalog: %w", err)
	}

	a.shop = shop.New(a.catalog, a.settings, sessions, locks)

	snap := a.catalog.Snapshot()
	logger.Info(ctx, component, "app.assembled",
		slog.String("storage", cfg.Storage.Driver),
		slog.String("sessions", cfg.Session.Backend),
		slog.Int("admins", len(doc.AdminIDs)),
		slog.Int("categories", len(snap.Categories)),
		slog.Int("products", len(snap.Products)),
	)
	return a, nil
}

// sessionStore picks the session backend. Redis also carries the per-user
// locks so replicas sharing sessions serialize the same user.
func (a *App) sessionStore(ctx context.Context) (state.Store, state.Locker, error) {
	if a.cfg.Session.Backend != coreconfig.SessionRedis {
		return state.NewMemoryStore(a.cfg.Session.TTL), state.NewMemoryLocker(), nil
	}
	rc := a.cfg.Session.Redis
	client, closeFn, err := dialRedis(ctx, state.RedisOptions{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("app: session store: %w", err)
	}
	a.closers = append(a.closers, closeFn)
	return state.NewRedisStore(client, a.cfg.Session.TTL), state.NewRedisLocker(client, state.RedisLockOptions{}), nil
}

// Shop exposes the assembled shop.
func (a *App) Shop() *shop.Shop { return a.shop }

// Close releases redis and database connections.
func (a *App) Close() error {
	return errors.Join(a.closeOwned(), a.infra.Close())
}

// closeOwned closes the connections assemble opened, newest first.
func (a *App) closeOwned() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) readyChecks() map[string]ops.ReadyCheck {
	checks := map[string]ops.ReadyCheck{}
	if a.infra != nil && a.infra.DB != nil {
		checks["database"] = func(ctx context.Context) error {
			return a.infra.DB.PingContext(ctx)
		}
	}
	return checks
}
