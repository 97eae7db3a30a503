package state

import (
	"context"
	"time"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation state and draft values for a user.
type Session struct {
	State     State             `json:"state"`
	Data      map[string]string `json:"data,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Idle returns an empty session.
func Idle() Session {
	return Session{State: StateIdle}
}

// InProgress reports whether a flow is open.
func (s Session) InProgress() bool {
	return s.State != "" && s.State != StateIdle
}

// Value returns a draft field.
func (s Session) Value(key string) (string, bool) {
	v, ok := s.Data[key]
	return v, ok
}

// With returns a copy of s with key set to value.
func (s Session) With(key, value string) Session {
	s = s.clone()
	if s.Data == nil {
		s.Data = make(map[string]string, 1)
	}
	s.Data[key] = value
	return s
}

func (s Session) clone() Session {
	if s.Data == nil {
		return s
	}
	data := make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		data[k] = v
	}
	s.Data = data
	return s
}

// Step returns a copy of s moved to st, keeping draft values.
func (s Session) Step(st State) Session {
	s.State = st
	return s
}

// Store persists sessions by Telegram user id. Get returns an idle session when none exists.
type Store interface {
	Get(ctx context.Context, userID int64) (Session, error)
	Save(ctx context.Context, userID int64, s Session) error
	Clear(ctx context.Context, userID int64) error
}
