// Package shop turns transport-free events into catalog operations and rendered replies.
package shop

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/telegram/state"
	"github.com/m3rciful/shopbot/internal/catalog"
)

// Shop is the application context shared by the routers.
type Shop struct {
	catalog *catalog.Service
	admin   *AdminRouter
	user    *UserRouter
	locks   state.Locker
}

// New builds the shop from its collaborators. A nil locker selects a
// process-local one.
func New(cat *catalog.Service, admins AdminChecker, sessions state.Store, locks state.Locker) *Shop {
	if locks == nil {
		locks = state.NewMemoryLocker()
	}
	return &Shop{
		catalog: cat,
		admin:   NewAdminRouter(cat, admins, sessions),
		user:    NewUserRouter(cat),
		locks:   locks,
	}
}

// Catalog exposes the catalog service.
func (s *Shop) Catalog() *catalog.Service { return s.catalog }

// Dispatch routes one event and always yields a reply suitable for the sender.
// The error is non-nil only for failures the sender cannot fix, such as storage errors.
// Events of one sender run one at a time so session updates never interleave.
func (s *Shop) Dispatch(ctx context.Context, ev Event) (Reply, error) {
	if ev.SenderID != 0 {
		unlock, err := s.locks.Lock(ctx, ev.SenderID)
		if err != nil {
			return Reply{Text: textInternalError}, err
		}
		defer unlock()
	}

	reply, err := s.route(ctx, ev)
	switch {
	case err == nil:
		return reply, nil
	case errors.Is(err, ErrPermissionDenied):
		return Reply{Text: textPermissionDenied}, nil
	case errors.Is(err, ErrUnknownAction), errors.Is(err, catalog.ErrNotFound):
		logger.Debug(ctx, component, "dispatch.not_understood",
			slog.String("kind", ev.Kind.String()),
			slog.String("action", ev.Action.String()),
			slog.String("err", err.Error()),
		)
		return plain(textNotUnderstood), nil
	default:
		return Reply{Text: textInternalError}, err
	}
}

func (s *Shop) route(ctx context.Context, ev Event) (Reply, error) {
	switch ev.Kind {
	case EventCommand:
		return s.command(ctx, ev)
	case EventCallback:
		if ev.Action.AdminOnly() {
			return s.admin.HandleCallback(ctx, ev)
		}
		if _, err := s.admin.Cancel(ctx, ev.SenderID, ev.Action.String()); err != nil {
			return Reply{}, err
		}
		return s.user.HandleCallback(ctx, ev)
	case EventText:
		return s.admin.HandleMessage(ctx, ev)
	case EventMedia:
		return s.admin.HandleMedia(ctx, ev)
	}
	return Reply{}, ErrUnknownAction
}

func (s *Shop) command(ctx context.Context, ev Event) (Reply, error) {
	switch ev.Command {
	case CommandStart:
		if _, err := s.admin.Cancel(ctx, ev.SenderID, "start"); err != nil {
			return Reply{}, err
		}
		return s.user.Start(ctx, ev)
	case CommandAdmin:
		return s.admin.AdminMenu(ctx, ev)
	case CommandCancel:
		cancelled, err := s.admin.Cancel(ctx, ev.SenderID, "cancel")
		if err != nil {
			return Reply{}, err
		}
		if cancelled {
			return plain("Cancelled."), nil
		}
		return plain("Nothing to cancel."), nil
	}
	return Reply{}, ErrUnknownAction
}
