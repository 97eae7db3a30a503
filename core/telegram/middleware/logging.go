package middleware

import (
	"log/slog"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware prepares the update context and writes a sampled
// update.received line. It runs once per update even when stacked.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, seen := tghelpers.ContextFrom(c); seen {
			return next(c)
		}
		ctx := tghelpers.BuildContext(c)
		if logger.ShouldSampleDebug() {
			logger.Debug(ctx, "tg", "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	upd := c.Update()
	attrs := make([]slog.Attr, 0, 6)
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if u := c.Sender(); u != nil {
		if u.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
		}
		if u.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", u.LanguageCode))
		}
	}

	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		attrs = appendNonEmpty(attrs, "cb_key", logger.SanitizeLimit(key, 128))
		attrs = appendNonEmpty(attrs, "payload", logger.SanitizeLimit(payload, 256))
	case upd.Message != nil:
		attrs = appendNonEmpty(attrs, "payload", logger.SanitizeLimit(c.Text(), 256))
		switch {
		case upd.Message.Photo != nil:
			attrs = append(attrs, slog.String("media", "photo"))
		case upd.Message.Video != nil:
			attrs = append(attrs, slog.String("media", "video"))
		case upd.Message.Document != nil:
			attrs = append(attrs, slog.String("media", "document"))
		}
	}
	return attrs
}

func appendNonEmpty(attrs []slog.Attr, key, value string) []slog.Attr {
	if value == "" {
		return attrs
	}
	return append(attrs, slog.String(key, value))
}
