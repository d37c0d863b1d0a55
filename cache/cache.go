// Package cache wraps Redis as a best-effort accelerator: thread-id lookup
// caching, per-entity locks, a deferred-action queue and the stats throttle.
// When Redis is disabled or unreachable every operation degrades to a no-op
// or a miss; correctness always falls back to the database.
package cache

import (
	"context"
	"fmt"
	"time"

	"punishment-bridge/model"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// Namespace selects a key prefix and TTL class.
type Namespace string

const (
	NamespacePlayerThread    Namespace = "player_thread"
	NamespaceModeratorThread Namespace = "moderator_thread"
	NamespaceDiscordLink     Namespace = "discord_link"
	NamespacePermission      Namespace = "write_permission"
)

// Client is safe for concurrent use. A disabled client is fully functional
// from the caller's point of view; it just never hits.
type Client struct {
	client  rueidis.Client
	logger  *zap.Logger
	enabled bool
	ttls    map[Namespace]time.Duration
}

// New connects to Redis and verifies the link with a ping. Any failure
// produces a disabled client rather than an error: the cache is optional.
func New(cfg model.RedisConfig, logger *zap.Logger) *Client {
	c := &Client{logger: logger, ttls: ttlsFromConfig(cfg)}
	if !cfg.Enabled {
		logger.Info("Redis disabled in config, cache and locks degraded to no-ops")
		return c
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Username:    cfg.Username,
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		logger.Warn("Failed to create Redis client, running degraded", zap.Error(err))
		return c
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Warn("Redis ping failed, running degraded", zap.Error(err))
		client.Close()
		return c
	}

	c.client = client
	c.enabled = true
	logger.Info("Redis connected", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
	return c
}

// NewWithClient wraps an existing connection. Used by tests with miniredis.
func NewWithClient(client rueidis.Client, cfg model.RedisConfig, logger *zap.Logger) *Client {
	return &Client{client: client, logger: logger, enabled: true, ttls: ttlsFromConfig(cfg)}
}

// Disabled returns a client permanently in degraded mode.
func Disabled(logger *zap.Logger) *Client {
	return &Client{logger: logger, ttls: ttlsFromConfig(model.RedisConfig{})}
}

func ttlsFromConfig(cfg model.RedisConfig) map[Namespace]time.Duration {
	minutes := func(n, fallback int) time.Duration {
		if n <= 0 {
			n = fallback
		}
		return time.Duration(n) * time.Minute
	}
	return map[Namespace]time.Duration{
		NamespacePlayerThread:    minutes(cfg.ThreadCacheTTLMinutes, 60),
		NamespaceModeratorThread: minutes(cfg.ThreadCacheTTLMinutes, 60),
		NamespaceDiscordLink:     minutes(cfg.DiscordLinkTTLMinutes, 30),
		NamespacePermission:      minutes(cfg.PermissionCacheTTLMinutes, 15),
	}
}

// Enabled reports whether the provider has a live Redis connection.
func (c *Client) Enabled() bool {
	return c.enabled
}

func (c *Client) key(ns Namespace, key string) string {
	return fmt.Sprintf("punishlog:%s:%s", ns, key)
}

// Get returns the cached value, or miss when absent, disabled or failing.
func (c *Client) Get(ctx context.Context, ns Namespace, key string) (string, bool) {
	if !c.enabled {
		return "", false
	}
	value, err := c.client.Do(ctx, c.client.B().Get().Key(c.key(ns, key)).Build()).ToString()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			c.logger.Warn("Cache get failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return value, true
}

// Set stores the value with the namespace TTL. Failures are logged only; the
// cache is never allowed to fail a workflow.
func (c *Client) Set(ctx context.Context, ns Namespace, key, value string) {
	if !c.enabled {
		return
	}
	err := c.client.Do(ctx,
		c.client.B().Set().Key(c.key(ns, key)).Value(value).Ex(c.ttls[ns]).Build()).Error()
	if err != nil {
		c.logger.Warn("Cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete drops a cached value.
func (c *Client) Delete(ctx context.Context, ns Namespace, key string) {
	if !c.enabled {
		return
	}
	if err := c.client.Do(ctx, c.client.B().Del().Key(c.key(ns, key)).Build()).Error(); err != nil {
		c.logger.Warn("Cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// ShouldRefreshStats is an atomic once-per-interval gate keyed per identity.
// It relies on SET NX with the interval as expiry: the first caller in each
// window wins. Without Redis the gate is always open, so stats are refreshed
// unconditionally.
func (c *Client) ShouldRefreshStats(ctx context.Context, key string, interval time.Duration) bool {
	if !c.enabled {
		return true
	}
	result := c.client.Do(ctx, c.client.B().Set().
		Key("punishlog:stats_refresh:"+key).
		Value(fmt.Sprintf("%d", time.Now().UnixMilli())).
		Nx().Px(interval).Build())
	if err := result.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return false // NX lost: someone refreshed inside the window
		}
		c.logger.Warn("Stats throttle check failed", zap.String("key", key), zap.Error(err))
		return true
	}
	return true
}

// Close releases the underlying connection.
func (c *Client) Close() {
	if c.enabled {
		c.client.Close()
	}
}
