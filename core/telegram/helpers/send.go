package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes the Send helpers through d. nil makes them synchronous.
func SetDispatcher(d *sender.Dispatcher) { dispatcher.Store(d) }

// deliver queues call on the chat's lane. A saturated or stopped queue
// degrades to an inline call so the reply is not lost.
func deliver(c tele.Context, action, endpoint string, call func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return call()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, endpoint, call)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return call()
	}
	return err
}

func markdown(markup []*tele.ReplyMarkup) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return opts
}

// SendText sends text as-is to the current chat.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	args := make([]any, 0, 1)
	if len(opts) > 0 && opts[0] != nil {
		args = append(args, opts[0])
	}
	return deliver(c, "send.text", "sendMessage", func() error {
		return c.Send(text, args...)
	})
}

// SendMD sends legacy Markdown text with an optional inline keyboard.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return SendText(c, text, markdown(markup))
}

// EditOrSendMD rewrites the message under the pressed button. When Telegram
// refuses the edit (media message, too old) a new message is sent instead.
func EditOrSendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := markdown(markup)
	return deliver(c, "edit.text", "editMessageText", func() error {
		err := c.EditOrSend(text, opts)
		if err == nil || c.Callback() == nil || errors.Is(err, tele.ErrSameMessageContent) {
			return err
		}
		return c.Send(text, opts)
	})
}

// SendMediaMD sends a photo or video whose caption is legacy Markdown.
func SendMediaMD(c tele.Context, media tele.Sendable, markup ...*tele.ReplyMarkup) error {
	endpoint := "sendDocument"
	switch media.(type) {
	case *tele.Photo:
		endpoint = "sendPhoto"
	case *tele.Video:
		endpoint = "sendVideo"
	}
	opts := markdown(markup)
	return deliver(c, "send.media", endpoint, func() error {
		return c.Send(media, opts)
	})
}
