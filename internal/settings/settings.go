// Package settings loads the shop's config.json: the bot token and the admin allowlist.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
)

const component = "service.settings"

// ErrMalformedDocument is returned when config.json exists but cannot be parsed.
var ErrMalformedDocument = errors.New("settings: malformed document")

// Identifier is the string form of a Telegram user id. The empty value is the null id.
type Identifier string

// IDFromInt converts a Telegram numeric id. Zero maps to the null id.
func IDFromInt(id int64) Identifier {
	if id == 0 {
		return ""
	}
	return Identifier(strconv.FormatInt(id, 10))
}

// IsNull reports whether the identifier is absent.
func (id Identifier) IsNull() bool {
	return strings.TrimSpace(string(id)) == ""
}

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = Identifier(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("admin id must be a number or string: %w", err)
	}
	*id = Identifier(n.String())
	return nil
}

// Settings mirrors config.json.
type Settings struct {
	AdminIDs []Identifier `json:"admin_ids"`
	Token    string       `json:"token"`
}

// Default is written when config.json is absent.
func Default() Settings {
	return Settings{AdminIDs: []Identifier{}, Token: ""}
}

// HasAdmin checks membership by string form.
func (s Settings) HasAdmin(id Identifier) bool {
	if id.IsNull() {
		return false
	}
	want := strings.TrimSpace(string(id))
	for _, admin := range s.AdminIDs {
		if strings.TrimSpace(string(admin)) == want {
			return true
		}
	}
	return false
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

// Store serves the live config document. It re-reads the file whenever its
// modification time or size changes.
type Store struct {
	path string

	mu       sync.RWMutex
	current  Settings
	stamp    fileStamp
	loaded   bool
	statFile func(string) (os.FileInfo, error)
}

// Open binds a store to path without touching the filesystem.
func Open(path string) *Store {
	return &Store{path: path, statFile: os.Stat}
}

// Path reports the backing file.
func (s *Store) Path() string { return s.path }

// Load reads config.json, writing the default document first when it is absent.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		if err := s.writeDefault(); err != nil {
			return Settings{}, err
		}
		logger.Info(ctx, component, "settings.default_created", slog.String("path", s.path))
		data, err = os.ReadFile(s.path)
		if err != nil {
			return Settings{}, fmt.Errorf("read settings %s: %w", s.path, err)
		}
	default:
		return Settings{}, fmt.Errorf("read settings %s: %w", s.path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, s.path, err)
	}

	stamp, _ := s.stampOf()
	s.mu.Lock()
	s.current = cfg
	s.stamp = stamp
	s.loaded = true
	s.mu.Unlock()

	logger.Info(ctx, component, "settings.loaded",
		slog.String("path", s.path),
		slog.Int("admins", len(cfg.AdminIDs)),
		slog.Bool("token_set", cfg.Token != ""),
	)
	return cfg, nil
}

// IsAdmin checks id against the live admin list.
func (s *Store) IsAdmin(ctx context.Context, id Identifier) bool {
	if id.IsNull() {
		return false
	}
	return s.live(ctx).HasAdmin(id)
}

// Token returns the live token from config.json.
func (s *Store) Token(ctx context.Context) string {
	return strings.TrimSpace(s.live(ctx).Token)
}

// live returns the current snapshot, reloading it if the file changed on disk.
// A failed reload keeps the previous snapshot.
func (s *Store) live(ctx context.Context) Settings {
	s.mu.RLock()
	current, stamp, loaded := s.current, s.stamp, s.loaded
	s.mu.RUnlock()

	next, err := s.stampOf()
	if err != nil {
		if loaded {
			logger.Warn(ctx, component, "settings.stat_failed",
				slog.String("path", s.path),
				slog.String("err", err.Error()),
			)
		}
		return current
	}
	if loaded && next == stamp {
		return current
	}

	data, err := os.ReadFile(s.path)
	if err == nil {
		var cfg Settings
		cfg, err = parse(data)
		if err == nil {
			s.mu.Lock()
			s.current = cfg
			s.stamp = next
			s.loaded = true
			s.mu.Unlock()
			logger.Info(ctx, component, "settings.reloaded",
				slog.String("path", s.path),
				slog.Int("admins", len(cfg.AdminIDs)),
			)
			return cfg
		}
	}
	logger.Warn(ctx, component, "settings.reload_failed",
		slog.String("path", s.path),
		slog.String("err", err.Error()),
	)
	return current
}

func (s *Store) stampOf() (fileStamp, error) {
	info, err := s.statFile(s.path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}, nil
}

func (s *Store) writeDefault() error {
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode default settings: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write default settings %s: %w", s.path, err)
	}
	return nil
}

func parse(data []byte) (Settings, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Settings{}, errors.New("empty document")
	}
	var cfg Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Settings{}, err
	}
	if cfg.AdminIDs == nil {
		cfg.AdminIDs = []Identifier{}
	}
	return cfg, nil
}
