package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	lockPrefix       = "punishlog:lock:"
	lockTTL          = 30 * time.Second
	lockPollInterval = 100 * time.Millisecond
)

// releaseScript deletes the lock key only when it still holds our token, so
// a lock that expired and was re-acquired elsewhere is never released by the
// original holder.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) end return 0`

// ThreadCreateLockKey scopes the creation lock to one identity.
func ThreadCreateLockKey(identity string) string { return "thread-create:" + identity }

// PunishmentWriteLockKey scopes the duplicate check and insert to one
// external id.
func PunishmentWriteLockKey(externalID string) string { return "punishment-write:" + externalID }

// StatsUpdateLockKey scopes the stats-refresh lock to one identity.
func StatsUpdateLockKey(identity string) string { return "stats-update:" + identity }

// MessageDeleteLockKey scopes cleanup deletions to one message.
func MessageDeleteLockKey(messageID string) string { return "message-delete:" + messageID }

// AcquireLock attempts a distributed mutual-exclusion lock, polling up to
// wait. It returns a release func and whether the caller may proceed:
//
//   - provider disabled: (no-op, true) — the caller proceeds unlocked
//   - acquired:          (release, true)
//   - timed out:         (nil, false) — the caller skips the guarded work
//
// A lock timeout is a designed degrade path, not an error.
func (c *Client) AcquireLock(ctx context.Context, key string, wait time.Duration) (func(), bool) {
	if !c.enabled {
		return func() {}, true
	}

	token := randomToken()
	fullKey := lockPrefix + key
	deadline := time.Now().Add(wait)

	for {
		result := c.client.Do(ctx, c.client.B().Set().
			Key(fullKey).Value(token).Nx().Px(lockTTL).Build())
		err := result.Error()
		if err == nil {
			return func() { c.releaseLock(fullKey, token) }, true
		}
		if !rueidis.IsRedisNil(err) {
			c.logger.Warn("Lock acquire failed", zap.String("key", key), zap.Error(err))
			return nil, false
		}
		if time.Now().After(deadline) {
			return nil, false
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(lockPollInterval):
		}
	}
}

func (c *Client) releaseLock(fullKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.client.Do(ctx, c.client.B().Eval().
		Script(releaseScript).Numkeys(1).Key(fullKey).Arg(token).Build()).Error()
	if err != nil && !rueidis.IsRedisNil(err) {
		c.logger.Warn("Lock release failed", zap.String("key", fullKey), zap.Error(err))
	}
}

func randomToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
