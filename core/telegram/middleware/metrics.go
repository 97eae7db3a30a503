package middleware

import (
	"sync/atomic"

	"github.com/m3rciful/shopbot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

const keySendCounter = "shop.sends"

// sendCounter tallies replies made for one update. Queued sends update it
// from dispatcher workers.
type sendCounter struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

func (s *sendCounter) record(err error, opts []any) error {
	if err != nil {
		return err
	}
	kb := carriesMarkup(opts)
	s.messages.Add(1)
	if kb {
		s.keyboard.Store(true)
	}
	metrics.AddMessagesSent(1, kb)
	return nil
}

func carriesMarkup(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// countingContext reports every successful reply to its counter. Edits count as replies.
type countingContext struct {
	tele.Context
	counter *sendCounter
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.counter.record(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.counter.record(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.counter.record(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.counter.record(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what any, opts ...any) error {
	return c.counter.record(c.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts replies per update and feeds the sent-messages metric.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		counter := &sendCounter{}
		c.Set(keySendCounter, counter)
		return next(countingContext{Context: c, counter: counter})
	}
}

// GetCounters returns how many replies the current update produced and
// whether any carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	counter, ok := c.Get(keySendCounter).(*sendCounter)
	if !ok || counter == nil {
		return 0, false
	}
	return int(counter.messages.Load()), counter.keyboard.Load()
}
