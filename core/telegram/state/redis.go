package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/m3rciful/shopbot/core/logger"
)

const redisKeyPrefix = "shopbot:session:"

// RedisClient is the subset of redis commands the session store and user locks need.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	// DeleteIfEqual removes key only while it still holds value.
	DeleteIfEqual(ctx context.Context, key, value string) error
}

// RedisOptions configure NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

type redisClient struct {
	cli *redis.Client
}

var _ RedisClient = (*redisClient)(nil)

// NewRedisClient dials redis and verifies the connection with PING.
// The returned close function releases the connection pool.
func NewRedisClient(ctx context.Context, opts RedisOptions) (RedisClient, func() error, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &redisClient{cli: c}, c.Close, nil
}

func (c *redisClient) Get(ctx context.Context, key string) (string, error) {
	return c.cli.Get(ctx, key).Result()
}

func (c *redisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.cli.Set(ctx, key, value, expiration).Err()
}

func (c *redisClient) Del(ctx context.Context, keys ...string) error {
	return c.cli.Del(ctx, keys...).Err()
}

func (c *redisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return c.cli.SetNX(ctx, key, value, expiration).Result()
}

var deleteIfEqual = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (c *redisClient) DeleteIfEqual(ctx context.Context, key, value string) error {
	return deleteIfEqual.Run(ctx, c.cli, []string{key}, value).Err()
}

type redisStore struct {
	client RedisClient
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore keeps sessions as JSON values that expire after ttl of inactivity.
func NewRedisStore(client RedisClient, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl, now: time.Now}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("%s%d", redisKeyPrefix, userID)
}

func (r *redisStore) Get(ctx context.Context, userID int64) (Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(userID))
	if errors.Is(err, redis.Nil) {
		return Idle(), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session %d: %w", userID, err)
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		logger.Warn(ctx, "tg.state", "session.decode_failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		_ = r.client.Del(ctx, sessionKey(userID))
		return Idle(), nil
	}
	if s.State == "" {
		s.State = StateIdle
	}
	return s, nil
}

func (r *redisStore) Save(ctx context.Context, userID int64, s Session) error {
	if !s.InProgress() {
		return r.Clear(ctx, userID)
	}
	s.UpdatedAt = r.now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %d: %w", userID, err)
	}
	if err := r.client.Set(ctx, sessionKey(userID), data, r.ttl); err != nil {
		return fmt.Errorf("set session %d: %w", userID, err)
	}
	return nil
}

func (r *redisStore) Clear(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, sessionKey(userID)); err != nil {
		return fmt.Errorf("clear session %d: %w", userID, err)
	}
	return nil
}
