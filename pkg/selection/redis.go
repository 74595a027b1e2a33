package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mediamap:selection:"

// RedisStore shares the token of one session between processes. The value
// lives under a key and every write is announced on a channel. Read serves
// the last value seen, so it never blocks on the network.
type RedisStore struct {
	rc      *redis.Client
	key     string
	channel string
	timeout time.Duration
	log     *slog.Logger

	mu     sync.RWMutex
	cached Token
	subs   subscribers
}

// NewRedisStore binds a store to session
func NewRedisStore(rc *redis.Client, session string, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	key := keyPrefix + session
	return &RedisStore{
		rc:      rc,
		key:     key,
		channel: key + ":events",
		timeout: 2 * time.Second,
		log:     log,
	}
}

// Key returns the redis key holding the token
func (s *RedisStore) Key() string { return s.key }

// Channel returns the pub/sub channel announcing writes
func (s *RedisStore) Channel() string { return s.channel }

// Load primes the cached token from redis
func (s *RedisStore) Load(ctx context.Context) error {
	v, err := s.rc.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		v, err = "", nil
	}
	if err != nil {
		return fmt.Errorf("failed to load selection: %w", err)
	}
	s.set(Token(v))
	return nil
}

func (s *RedisStore) set(t Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == t {
		return false
	}
	s.cached = t
	return true
}

func (s *RedisStore) Read() Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cached
}

// Write stores and announces t. Local subscribers are notified at once;
// network failures are logged and the local value is kept.
func (s *RedisStore) Write(t Token) {
	if !s.set(t) {
		return
	}
	s.subs.notify(t)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	var err error
	if t.IsNone() {
		err = s.rc.Del(ctx, s.key).Err()
	} else {
		err = s.rc.Set(ctx, s.key, string(t), 0).Err()
	}
	if err == nil {
		err = s.rc.Publish(ctx, s.channel, string(t)).Err()
	}
	if err != nil {
		s.log.Warn("selection_write_failed", "key", s.key, "error", err)
	}
}

func (s *RedisStore) Subscribe(fn func(Token)) func() {
	return s.subs.add(fn)
}

// Listen applies tokens announced by other processes until ctx is done.
// Subscribers are called on the listening goroutine.
func (s *RedisStore) Listen(ctx context.Context) error {
	ps := s.rc.Subscribe(ctx, s.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			t := Token(msg.Payload)
			if s.set(t) {
				s.log.Debug("selection_remote_update", "token", string(t))
				s.subs.notify(t)
			}
		}
	}
}
