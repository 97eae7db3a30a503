package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrInvalidRegistration is returned for empty names, missing handlers or a missing slash.
	ErrInvalidRegistration = errors.New("telegram: invalid registration")
	// ErrDuplicateRegistration is returned when a command or callback key is taken.
	ErrDuplicateRegistration = errors.New("telegram: duplicate registration")
)

// Registry collects commands and callback handlers before the bot starts.
// Commands keep their registration order, which is also the menu order.
type Registry struct {
	mu        sync.RWMutex
	commands  []commands.Command
	callbacks map[string]tele.HandlerFunc
	notFound  tele.HandlerFunc
}

// NewRegistry returns an empty registry whose unknown-callback handler shows a short toast.
func NewRegistry() *Registry {
	return &Registry{
		callbacks: make(map[string]tele.HandlerFunc),
		notFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Sorry, I did not understand that."})
		},
	}
}

func rejectRegistration(kind, name string, err error) error {
	logger.Warn(context.Background(), "tg.wire", "register."+kind+".skip",
		slog.String("name", name),
		slog.String("err", err.Error()),
	)
	return fmt.Errorf("%s %q: %w", kind, name, err)
}

// RegisterCommand adds cmd. Names must start with a slash and be unique.
func (r *Registry) RegisterCommand(cmd commands.Command) error {
	if cmd.Handler == nil || cmd.Description == "" || !strings.HasPrefix(cmd.Name, "/") || len(cmd.Name) < 2 {
		return rejectRegistration("command", cmd.Name, ErrInvalidRegistration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.commands {
		if existing.Name == cmd.Name {
			return rejectRegistration("command", cmd.Name, ErrDuplicateRegistration)
		}
	}
	r.commands = append(r.commands, cmd)
	return nil
}

// Commands returns the registered commands in registration order.
func (r *Registry) Commands() []commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]commands.Command(nil), r.commands...)
}

// MenuCommands lists the commands shown in the Telegram command menu.
func (r *Registry) MenuCommands() []tele.Command {
	var menu []tele.Command
	for _, cmd := range r.Commands() {
		if cmd.Visible() {
			menu = append(menu, tele.Command{Text: strings.TrimPrefix(cmd.Name, "/"), Description: cmd.Description})
		}
	}
	return menu
}

// RegisterCallback binds handler to a callback unique key.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return rejectRegistration("callback", key, ErrInvalidRegistration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		return rejectRegistration("callback", key, ErrDuplicateRegistration)
	}
	r.callbacks[key] = handler
	return nil
}

// Callback returns the handler bound to key.
func (r *Registry) Callback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok && h != nil
}

// CallbackKeys returns the bound keys, sorted.
func (r *Registry) CallbackKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the handler for unknown callback keys. Nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.notFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the handler for unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notFound
}

// publishCommands replaces the bot's command menu. Failures are logged only.
func publishCommands(ctx context.Context, bot *tele.Bot, reg *Registry) {
	menu := reg.MenuCommands()
	if err := bot.SetCommands(menu); err != nil {
		logger.Error(ctx, "tg.wire", "register.commands",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(ctx, "tg.wire", "register.commands",
		slog.String("status", "ok"),
		slog.Int("count", len(menu)),
	)
}
