// Package cache provides the key/value, capped-list and pub/sub stores behind
// the notification inbox, the leaderboard name cache and the SSE fan-out.
// Redis is used when configured; otherwise everything stays in process.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sevenday/challenge/server/cache/local"
	cacheredis "github.com/sevenday/challenge/server/cache/redis"
)

// Cache is the key/value and list store.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	// PushCapped prepends value to the list at key, keeps only the newest max
	// entries and resets the list's ttl. A zero ttl keeps the list forever.
	PushCapped(ctx context.Context, key, value string, max int64, ttl time.Duration) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	Close() error
}

// Message is a received pub/sub message. Channel has the namespace removed.
type Message struct {
	Channel string
	Payload string
}

// PubSub defines channel publish/subscribe operations.
type PubSub interface {
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error)
	Close() error
}

// CacheConfig holds configuration for both Redis and the local backend.
type CacheConfig struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	LocalGCInterval time.Duration
	LocalPubSubBuf  int
	// KeyPrefix namespaces every key and channel, e.g. "challenge:".
	KeyPrefix string
}

// IsNotFound reports whether err is a cache miss from either backend.
func IsNotFound(err error) bool {
	return errors.Is(err, local.ErrNotFound) || errors.Is(err, cacheredis.ErrNotFound)
}

func (cfg CacheConfig) redis() cacheredis.Config {
	return cacheredis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

// NewCache returns a Redis-backed Cache if RedisAddr is set, otherwise an
// in-process one.
func NewCache(cfg CacheConfig) (Cache, error) {
	var (
		c   Cache
		err error
	)
	if cfg.RedisAddr != "" {
		c, err = cacheredis.NewCache(cfg.redis())
	} else {
		c, err = local.NewCache(local.Config{GCInterval: cfg.LocalGCInterval})
	}
	if err != nil {
		return nil, err
	}
	if cfg.KeyPrefix != "" {
		c = &namespaced{Cache: c, prefix: cfg.KeyPrefix}
	}
	return c, nil
}

// NewPubSub returns a Redis-backed PubSub if RedisAddr is set, otherwise an
// in-process one.
func NewPubSub(cfg CacheConfig) (PubSub, error) {
	if cfg.RedisAddr != "" {
		rps, err := cacheredis.NewPubSub(cfg.redis())
		if err != nil {
			return nil, err
		}
		return &pubsubAdapter[*cacheredis.RedisMessage]{
			backend: rps,
			prefix:  cfg.KeyPrefix,
			conv:    func(m *cacheredis.RedisMessage) (string, string) { return m.Channel, m.Payload },
			close:   rps.Close,
		}, nil
	}
	return &pubsubAdapter[*local.LocalMessage]{
		backend: local.NewPubSub(cfg.LocalPubSubBuf),
		prefix:  cfg.KeyPrefix,
		conv:    func(m *local.LocalMessage) (string, string) { return m.Channel, m.Payload },
	}, nil
}

type namespaced struct {
	Cache
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) (string, error) {
	return n.Cache.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return n.Cache.Set(ctx, n.prefix+key, value, ttl)
}

func (n *namespaced) Del(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = n.prefix + k
	}
	return n.Cache.Del(ctx, full...)
}

func (n *namespaced) PushCapped(ctx context.Context, key, value string, max int64, ttl time.Duration) error {
	return n.Cache.PushCapped(ctx, n.prefix+key, value, max, ttl)
}

func (n *namespaced) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return n.Cache.LRange(ctx, n.prefix+key, start, stop)
}

type pubsubBackend[M any] interface {
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channels ...string) (<-chan M, func(), error)
}

// pubsubAdapter bridges a backend's message type to *Message and applies the
// channel namespace.
type pubsubAdapter[M any] struct {
	backend pubsubBackend[M]
	prefix  string
	conv    func(M) (channel, payload string)
	close   func() error
}

func (a *pubsubAdapter[M]) Publish(ctx context.Context, channel, message string) error {
	return a.backend.Publish(ctx, a.prefix+channel, message)
}

func (a *pubsubAdapter[M]) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	full := make([]string, len(channels))
	for i, ch := range channels {
		full[i] = a.prefix + ch
	}
	in, cancel, err := a.backend.Subscribe(ctx, full...)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan *Message, cap(in))
	go func() {
		defer close(out)
		for m := range in {
			ch, payload := a.conv(m)
			out <- &Message{Channel: strings.TrimPrefix(ch, a.prefix), Payload: payload}
		}
	}()
	return out, cancel, nil
}

func (a *pubsubAdapter[M]) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}
