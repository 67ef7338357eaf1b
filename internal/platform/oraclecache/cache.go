package oraclecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

// Cache stores raw oracle responses by prompt fingerprint so reruns over the
// same corpus do not pay for identical calls twice.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte) error
}

// Key fingerprints one oracle request.
func Key(oracle string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return oracle + ":" + hex.EncodeToString(h.Sum(nil))
}

type memoryCache struct {
	lru *lru.Cache[string, []byte]
}

func NewMemory(size int) (Cache, error) {
	if size <= 0 {
		size = 4096
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &memoryCache{lru: c}, nil
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, append([]byte(nil), value...))
	return nil
}

type redisCache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(log *logger.Logger, addr string, ttl time.Duration) (Cache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisCache{
		log:    log.With("service", "OracleCache"),
		rdb:    rdb,
		prefix: "embers:oracle:",
		ttl:    ttl,
	}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			r.log.Warn("oracle cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return raw, true
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte) error {
	return r.rdb.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

// Layered reads through the in-process cache before the shared one.
type Layered struct {
	Local  Cache
	Shared Cache
}

func (l Layered) Get(ctx context.Context, key string) ([]byte, bool) {
	if l.Local != nil {
		if v, ok := l.Local.Get(ctx, key); ok {
			return v, true
		}
	}
	if l.Shared != nil {
		if v, ok := l.Shared.Get(ctx, key); ok {
			if l.Local != nil {
				_ = l.Local.Set(ctx, key, v)
			}
			return v, true
		}
	}
	return nil, false
}

func (l Layered) Set(ctx context.Context, key string, value []byte) error {
	if l.Local != nil {
		_ = l.Local.Set(ctx, key, value)
	}
	if l.Shared != nil {
		return l.Shared.Set(ctx, key, value)
	}
	return nil
}
