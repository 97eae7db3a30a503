package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute routes every callback query by its unique key through reg.
// Known handlers get an empty answer first; the not-found handler answers itself.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		start := time.Now()
		key, _ := callbacks.ParseCallbackData(c.Callback())
		keyAttr := slog.String("cb_key", key)

		h, ok := reg.Callback(key)
		if !ok {
			notFound := reg.CallbackNotFound()
			// Unknown keys share one label.
			return handleWithSummary(c, "callback.unknown", start, func() error {
				if notFound == nil {
					return c.Respond()
				}
				return notFound(c)
			}, keyAttr, slog.String("reason", "not_found"))
		}

		_ = c.Respond()
		return handleWithSummary(c, "callback."+normalizeHandlerName(key), start, func() error {
			return h(c)
		}, keyAttr)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: guard(handler)}
}
