package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// Settings configures the optional Redis window summary.
type Settings struct {
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() Settings

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisConfig struct {
	addr     string
	password string
	prefix   string
	db       int
}

// Manager serves window counts from the best available backend. The
// ledger-backed source is authoritative; when Redis is enabled its sliding
// window answers instead, and any Redis failure trips a breaker that falls
// back to ledger scans until it clears.
type Manager struct {
	source         Counter
	provider       SettingsProvider
	nowFn          func() time.Time
	newRedisClient RedisClientFactory
	mu             sync.Mutex
	redisCounter   *RedisCounter
	redisClient    *redis.Client
	redisCfg       redisConfig
	breakerUntil   time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(source Counter, provider SettingsProvider, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = func() Settings { return Settings{} }
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		source:         source,
		provider:       provider,
		nowFn:          nowFn,
		newRedisClient: newRedisClient,
	}
}

// CountSince implements Counter.
func (m *Manager) CountSince(ctx context.Context, serviceName string, since time.Time) (int64, error) {
	if m == nil || m.source == nil {
		return 0, errors.New("ratelimit: manager not initialized")
	}
	cfg := m.provider()
	if cfg.RedisEnabled {
		if count, ok := m.countRedis(ctx, serviceName, since); ok {
			return count, nil
		}
	}
	return m.source.CountSince(ctx, serviceName, since)
}

// Note feeds one recorded call into the Redis window. Best effort: when
// Redis is disabled or broken the ledger scan already sees the entry.
func (m *Manager) Note(ctx context.Context, serviceName string, at time.Time) {
	if m == nil {
		return
	}
	cfg := m.provider()
	if !cfg.RedisEnabled {
		return
	}
	now := m.nowFn()
	if m.isBreakerActive(now) {
		return
	}
	counter, errEnsure := m.ensureRedis(ctx, cfg)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return
	}
	if errNote := counter.Note(ctx, serviceName, at); errNote != nil {
		m.tripBreaker(errNote, now)
	}
}

func (m *Manager) countRedis(ctx context.Context, serviceName string, since time.Time) (int64, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	if m.isBreakerActive(now) {
		return 0, false
	}
	counter, errEnsure := m.ensureRedis(ctx, m.provider())
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return 0, false
	}
	count, errCount := counter.CountSince(ctx, serviceName, since)
	if errCount != nil {
		m.tripBreaker(errCount, now)
		return 0, false
	}
	return count, true
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to ledger counts")
}

func (m *Manager) ensureRedis(ctx context.Context, cfg Settings) (*RedisCounter, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}

	nextCfg := redisConfig{
		addr:     addr,
		password: strings.TrimSpace(cfg.RedisPassword),
		prefix:   strings.TrimSpace(cfg.RedisPrefix),
		db:       cfg.RedisDB,
	}
	if nextCfg.db < 0 {
		nextCfg.db = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisCounter != nil && m.redisCfg == nextCfg {
		return m.redisCounter, nil
	}
	if m.redisClient != nil {
		_ = m.redisClient.Close()
		m.redisCounter = nil
		m.redisClient = nil
	}

	client := m.newRedisClient(&redis.Options{
		Addr:     nextCfg.addr,
		Password: nextCfg.password,
		DB:       nextCfg.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisCounter = NewRedisCounter(client, nextCfg.prefix)
	m.redisClient = client
	m.redisCfg = nextCfg
	return m.redisCounter, nil
}
