// Package redis provides a Redis-backed core.SessionStore. Each session is a
// Redis list of JSON encoded interactions; appends and trims run in one
// MULTI/EXEC transaction so the retention cap holds under concurrency.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentflow/core"
)

// Config holds connection and retention settings.
type Config struct {
	Addr            string        `yaml:"addr"`
	Password        string        `yaml:"password"`
	DB              int           `yaml:"db"`
	Namespace       string        `yaml:"namespace"`
	TTL             time.Duration `yaml:"ttl"` // idle expiry per session, 0 disables
	MaxInteractions int           `yaml:"max_interactions"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            "localhost:6379",
		Namespace:       "agentflow",
		MaxInteractions: core.DefaultMaxInteractions,
		DialTimeout:     5 * time.Second,
	}
}

// ConfigFromURL parses a redis:// URL into a Config based on DefaultConfig.
func ConfigFromURL(url string) (Config, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return Config{}, fmt.Errorf("parse redis url: %w", err)
	}
	cfg := DefaultConfig()
	cfg.Addr = opt.Addr
	cfg.Password = opt.Password
	cfg.DB = opt.DB
	return cfg, nil
}

// Store implements core.SessionStore on top of Redis lists.
type Store struct {
	client          goredis.UniversalClient
	namespace       string
	ttl             time.Duration
	maxInteractions int
}

// New connects to Redis and verifies the connection with PING.
func New(cfg Config) (*Store, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewFromClient(client, cfg), nil
}

// NewFromClient wraps an existing client. Connection fields of cfg are ignored.
func NewFromClient(client goredis.UniversalClient, cfg Config) *Store {
	if cfg.MaxInteractions <= 0 {
		cfg.MaxInteractions = core.DefaultMaxInteractions
	}
	return &Store{client: client, namespace: cfg.Namespace, ttl: cfg.TTL, maxInteractions: cfg.MaxInteractions}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(sessionID string) string {
	if s.namespace == "" {
		return "session:" + sessionID
	}
	return s.namespace + ":session:" + sessionID
}

// StoreInteraction appends the interaction and trims the list to the cap.
func (s *Store) StoreInteraction(ctx context.Context, sessionID string, in core.Interaction) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode interaction: %w", err)
	}
	key := s.key(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, int64(-s.maxInteractions), -1)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store interaction: %w", err)
	}
	return nil
}

// GetHistory returns up to limit most recent interactions, oldest first.
func (s *Store) GetHistory(ctx context.Context, sessionID string, limit int) ([]core.Interaction, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.client.LRange(ctx, s.key(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get history: %w", err)
	}
	history := make([]core.Interaction, 0, len(raw))
	for _, item := range raw {
		var in core.Interaction
		if err := json.Unmarshal([]byte(item), &in); err != nil {
			return nil, fmt.Errorf("decode interaction: %w", err)
		}
		history = append(history, in)
	}
	return history, nil
}

// ClearHistory deletes the session list and reports whether it existed.
func (s *Store) ClearHistory(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis clear history: %w", err)
	}
	return n > 0, nil
}

// Health pings Redis and counts the sessions in this namespace.
func (s *Store) Health(ctx context.Context) (core.HealthStatus, error) {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return core.HealthStatus{Status: core.StatusUnhealthy, Error: err.Error()}, nil
	}
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.key("*"), 100).Result()
		if err != nil {
			return core.HealthStatus{Status: core.StatusUnhealthy, Error: err.Error()}, nil
		}
		count += len(keys)
		if next == 0 {
			break
		}
		cursor = next
	}
	return core.Healthy(map[string]any{"backend": "redis", "active_sessions": count}), nil
}
