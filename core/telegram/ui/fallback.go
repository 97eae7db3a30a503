// Package ui holds reply handlers shared by routers.
package ui

import (
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Fallbacks answers unmatched messages with fixed plain texts.
type Fallbacks struct {
	Text     string
	Document string
}

// UnknownText replies to text nobody handled.
func (f Fallbacks) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, f.Text)
	}
}

// UnknownDocument replies to uploads other than photos and videos.
func (f Fallbacks) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, f.Document)
	}
}
