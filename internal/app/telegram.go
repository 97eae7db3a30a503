package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/ops"
	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/callbacks"
	"github.com/m3rciful/shopbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"
	"github.com/m3rciful/shopbot/core/telegram/keyboard"
	"github.com/m3rciful/shopbot/core/telegram/router"
	tgsender "github.com/m3rciful/shopbot/core/telegram/sender"
	"github.com/m3rciful/shopbot/core/telegram/ui"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/settings"
	"github.com/m3rciful/shopbot/internal/shop"

	tele "gopkg.in/telebot.v4"
)

const (
	textPermissionDenied = "permission denied"
	textNotUnderstood    = "Sorry, I did not understand that."
	textUnexpectedUpload = "Sorry, I did not understand that. Only photos and videos can be attached to products."

	shutdownTimeout = 5 * time.Second
)

// TelegramRunOptions wires the shop into the Telegram runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg, err := a.registry()
	if err != nil {
		return tg.RunOptions{}, err
	}
	fallbacks := ui.Fallbacks{Text: textNotUnderstood, Document: textUnexpectedUpload}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		IsAdmin:       a.isAdmin,
		OnAdminReject: a.rejectAdmin,
	})
	routes = append(routes, router.CallbackRoute(reg))
	routes = append(routes, router.MessageRoutes(router.MessageOptions{
		Text:            a.handle(textEvent),
		Media:           a.handle(mediaEvent),
		UnknownText:     fallbacks.UnknownText(),
		UnknownDocument: fallbacks.UnknownDocument(),
	})...)

	return tg.RunOptions{
		Config:            a.cfg,
		Registry:          reg,
		DispatcherOptions: tgsender.Options{MaxRetries: 2},
		Middlewares:       tg.DefaultMiddlewares(a.cfg, nil),
		Routes:            routes,
		OnStart:           a.onStart,
		OnStop:            a.onStop,
	}, nil
}

func (a *App) registry() (*tg.Registry, error) {
	reg := tg.NewRegistry()
	cmds := []commands.Command{
		{Name: shop.CommandStart, Description: "Browse the shop"},
		{Name: shop.CommandCancel, Description: "Cancel the current entry"},
		{Name: shop.CommandAdmin, Description: "Manage the catalog", AdminOnly: true},
	}
	for _, cmd := range cmds {
		cmd.Handler = a.handle(commandEvent(cmd.Name))
		if err := reg.RegisterCommand(cmd); err != nil {
			return nil, err
		}
	}

	onCallback := a.handle(callbackEvent)
	for _, unique := range shop.Uniques() {
		if err := reg.RegisterCallback(unique, onCallback); err != nil {
			return nil, err
		}
	}
	reg.SetCallbackNotFound(func(c tele.Context) error {
		_ = c.Respond()
		return onCallback(c)
	})
	return reg, nil
}

func (a *App) onStart(ctx context.Context, _ tg.Runtime) error {
	if a.cfg.Ops.Listen == "" {
		return nil
	}
	srv, err := ops.Start(ctx, a.cfg.Ops.Listen, ops.NewRouter(ops.Options{Checks: a.readyChecks()}))
	if err != nil {
		return err
	}
	a.ops = srv
	return nil
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	if a.ops == nil {
		return nil
	}
	// ctx is already cancelled on signal shutdown.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	err := a.ops.Shutdown(shutdownCtx)
	a.ops = nil
	return err
}

func (a *App) isAdmin(ctx context.Context, userID int64) bool {
	return a.settings.IsAdmin(ctx, settings.IDFromInt(userID))
}

func (a *App) rejectAdmin(c tele.Context) error {
	return tghelpers.SendText(c, textPermissionDenied)
}

// eventFunc turns a Telegram update into a shop event. ok=false drops the update.
type eventFunc func(c tele.Context) (shop.Event, bool)

// handle dispatches the event built from c and sends the reply.
func (a *App) handle(build eventFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ev, ok := build(c)
		if !ok {
			return nil
		}
		ctx := tghelpers.BuildContext(c)
		if ev.Kind == shop.EventCallback {
			ctx = logger.WithAction(ctx, ev.Action.String())
		}
		reply, err := a.shop.Dispatch(ctx, ev)
		if sendErr := a.send(c, reply); sendErr != nil {
			logger.Warn(ctx, component, "reply.send_failed",
				slog.String("kind", ev.Kind.String()),
				slog.String("err", sendErr.Error()),
			)
			if err == nil {
				err = sendErr
			}
		}
		return err
	}
}

func (a *App) send(c tele.Context, r shop.Reply) error {
	if r.Empty() {
		return nil
	}
	markup := markupFor(r.Keyboard)
	switch {
	case r.Media != nil:
		return tghelpers.SendMediaMD(c, sendable(*r.Media, r.Text), markup)
	case r.Edit && c.Callback() != nil:
		return tghelpers.EditOrSendMD(c, r.Text, markup)
	default:
		return tghelpers.SendMD(c, r.Text, markup)
	}
}

func markupFor(kb shop.Keyboard) *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, len(kb))
	for i, row := range kb {
		rows[i] = make([]keyboard.InlineBtn, len(row))
		for j, b := range row {
			rows[i][j] = keyboard.InlineBtn{Text: b.Label, Unique: b.Action.Unique(), Data: b.Action.ID}
		}
	}
	return keyboard.InlineButtonsRows(rows...)
}

func sendable(m catalog.Media, caption string) tele.Sendable {
	file := tele.File{FileID: m.FileID}
	if m.Type == catalog.MediaVideo {
		return &tele.Video{File: file, Caption: caption}
	}
	return &tele.Photo{File: file, Caption: caption}
}

func senderID(c tele.Context) (int64, bool) {
	u := c.Sender()
	if u == nil {
		return 0, false
	}
	return u.ID, true
}

func commandEvent(name string) eventFunc {
	return func(c tele.Context) (shop.Event, bool) {
		id, ok := senderID(c)
		return shop.Event{Kind: shop.EventCommand, SenderID: id, Command: name}, ok
	}
}

func textEvent(c tele.Context) (shop.Event, bool) {
	id, ok := senderID(c)
	return shop.Event{Kind: shop.EventText, SenderID: id, Text: c.Text()}, ok
}

func mediaEvent(c tele.Context) (shop.Event, bool) {
	id, ok := senderID(c)
	msg := c.Message()
	if !ok || msg == nil {
		return shop.Event{}, false
	}
	ev := shop.Event{Kind: shop.EventMedia, SenderID: id}
	switch {
	case msg.Photo != nil:
		ev.Media = &catalog.Media{Type: catalog.MediaPhoto, FileID: msg.Photo.FileID}
	case msg.Video != nil:
		ev.Media = &catalog.Media{Type: catalog.MediaVideo, FileID: msg.Video.FileID}
	default:
		return shop.Event{}, false
	}
	return ev, true
}

func callbackEvent(c tele.Context) (shop.Event, bool) {
	id, ok := senderID(c)
	unique, payload := callbacks.ParseCallbackData(c.Callback())
	return shop.Event{
		Kind:     shop.EventCallback,
		SenderID: id,
		Action:   shop.ParseAction(unique, payload),
	}, ok
}
