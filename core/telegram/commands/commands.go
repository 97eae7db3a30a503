// Package commands describes slash commands exposed by the bot.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a slash command and its menu metadata.
type Command struct {
	// Name includes the leading slash, e.g. "/start".
	Name        string
	Description string
	Handler     tele.HandlerFunc
	// AdminOnly commands are wrapped in the admin check and never listed in the menu.
	AdminOnly bool
	Hidden    bool
}

// Visible reports whether the command belongs in the public command menu.
func (c Command) Visible() bool {
	return !c.Hidden && !c.AdminOnly
}
