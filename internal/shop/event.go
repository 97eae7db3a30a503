package shop

import (
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/settings"
)

// EventKind says which Telegram update produced an Event.
type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventText
	EventMedia
	EventCallback
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventMedia:
		return "media"
	case EventCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Commands understood by Dispatch.
const (
	CommandStart  = "/start"
	CommandAdmin  = "/admin"
	CommandCancel = "/cancel"
)

// Event is the transport-free view of an incoming update.
type Event struct {
	Kind     EventKind
	SenderID int64
	// Command is set for EventCommand, e.g. "/start".
	Command string
	// Text is the message text for EventText.
	Text string
	// Media is set for EventMedia.
	Media *catalog.Media
	// Action is set for EventCallback.
	Action Action
}

// Sender returns the sender as a config identifier.
func (e Event) Sender() settings.Identifier {
	return settings.IDFromInt(e.SenderID)
}
