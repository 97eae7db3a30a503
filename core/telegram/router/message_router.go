package router

import (
	"strings"
	"time"

	tg "github.com/m3rciful/shopbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions binds handlers for free text and uploaded media.
// Nil handlers fall back to the Unknown* handlers.
type MessageOptions struct {
	Text  tele.HandlerFunc
	Media tele.HandlerFunc

	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// MessageRoutes builds handlers for text, photo, video and document updates.
// Registered commands never reach OnText, so slash text here is an unknown command.
func MessageRoutes(opts MessageOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()
		if strings.HasPrefix(c.Text(), "/") {
			return fallback(c, "unknown_command", start, opts.UnknownText)
		}
		if opts.Text == nil {
			return fallback(c, "unknown_text", start, opts.UnknownText)
		}
		return handleWithSummary(c, "text", start, func() error { return opts.Text(c) })
	}

	mediaHandler := func(c tele.Context) error {
		start := time.Now()
		if opts.Media == nil {
			return fallback(c, "unexpected_media", start, opts.UnknownDocument)
		}
		return handleWithSummary(c, "media", start, func() error { return opts.Media(c) })
	}

	docHandler := func(c tele.Context) error {
		return fallback(c, "unexpected_document", time.Now(), opts.UnknownDocument)
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: guard(textHandler)},
		{Endpoint: tele.OnPhoto, Handler: guard(mediaHandler)},
		{Endpoint: tele.OnVideo, Handler: guard(mediaHandler)},
		{Endpoint: tele.OnDocument, Handler: guard(docHandler)},
	}
}

// fallback runs h under name, or logs a skipped update when h is nil.
func fallback(c tele.Context, name string, start time.Time, h tele.HandlerFunc) error {
	if h == nil {
		logHandlerSummary(c, name, start, "skip", nil)
		return nil
	}
	return handleWithSummary(c, name, start, func() error { return h(c) })
}
