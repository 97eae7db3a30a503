package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/shopbot/core/logger"
)

// ErrLockTimeout is returned when a user's lock stays taken past the wait budget.
var ErrLockTimeout = errors.New("state: user lock timeout")

// Locker serializes the steps of one user's flow. Unlock must be called once.
type Locker interface {
	Lock(ctx context.Context, userID int64) (unlock func(), err error)
}

type userLock struct {
	ch   chan struct{}
	refs int
}

type memoryLocker struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

// NewMemoryLocker returns a process-local keyed mutex. Entries are dropped
// once nobody holds or waits for them.
func NewMemoryLocker() Locker {
	return &memoryLocker{locks: make(map[int64]*userLock)}
}

func (m *memoryLocker) Lock(ctx context.Context, userID int64) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{ch: make(chan struct{}, 1)}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				m.release(userID, l)
			})
		}, nil
	case <-ctx.Done():
		m.release(userID, l)
		return nil, fmt.Errorf("lock user %d: %w", userID, ctx.Err())
	}
}

func (m *memoryLocker) release(userID int64, l *userLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.refs--; l.refs == 0 {
		delete(m.locks, userID)
	}
}

const redisLockPrefix = "shopbot:lock:"

// RedisLockOptions tunes NewRedisLocker. Zero values pick defaults.
type RedisLockOptions struct {
	// TTL bounds how long a crashed holder keeps the lock.
	TTL time.Duration
	// Wait caps the time spent retrying a taken lock.
	Wait time.Duration
	// Retry is the pause between attempts.
	Retry time.Duration
}

type redisLocker struct {
	client RedisClient
	opts   RedisLockOptions
}

// NewRedisLocker shares user locks between bot replicas through SET NX with
// a random token; only the token holder can release the key.
func NewRedisLocker(client RedisClient, opts RedisLockOptions) Locker {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 5 * time.Second
	}
	if opts.Retry <= 0 {
		opts.Retry = 25 * time.Millisecond
	}
	return &redisLocker{client: client, opts: opts}
}

func (r *redisLocker) Lock(ctx context.Context, userID int64) (func(), error) {
	key := fmt.Sprintf("%s%d", redisLockPrefix, userID)
	token := uuid.NewString()
	deadline := time.Now().Add(r.opts.Wait)

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.opts.TTL)
		if err != nil {
			return nil, fmt.Errorf("lock user %d: %w", userID, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock user %d: %w", userID, ErrLockTimeout)
		}
		t := time.NewTimer(r.opts.Retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("lock user %d: %w", userID, ctx.Err())
		case <-t.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The handler's ctx may already be done; release anyway.
			if err := r.client.DeleteIfEqual(context.WithoutCancel(ctx), key, token); err != nil {
				logger.Warn(ctx, "tg.state", "lock.release_failed",
					slog.Int64("user_id", userID),
					slog.String("err", err.Error()),
				)
			}
		})
	}, nil
}
