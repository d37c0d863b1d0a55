package forum

import (
	"context"
	"errors"
	"time"

	"punishment-bridge/cache"
	"punishment-bridge/model"
	"punishment-bridge/utils/database"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Cleaner keeps the managed forums read-only for everyone except the bot and,
// in moderator threads, the thread's own moderator. Foreign messages are
// queued for deletion after a short grace delay instead of being removed
// inline, so a human can see their message was not lost to a network glitch.
type Cleaner struct {
	store  *database.Store
	cache  *cache.Client
	cfg    model.DiscordConfig
	delay  time.Duration
	logger *zap.Logger
}

// NewCleaner builds a cleanup listener.
func NewCleaner(store *database.Store, cacheClient *cache.Client, cfg model.DiscordConfig, delay time.Duration, logger *zap.Logger) *Cleaner {
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &Cleaner{store: store, cache: cacheClient, cfg: cfg, delay: delay, logger: logger}
}

// HandleMessage is registered as a discordgo MessageCreate handler.
func (c *Cleaner) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}

	ch, err := s.State.Channel(m.ChannelID)
	if err != nil {
		ch, err = s.Channel(m.ChannelID)
		if err != nil {
			return
		}
	}
	if !ch.IsThread() {
		return
	}

	switch ch.ParentID {
	case c.cfg.PlayersForumID:
	case c.cfg.ModeratorsForumID:
		if c.isThreadOwner(m.ChannelID, m.Author.ID) {
			return
		}
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The lock keeps multiple gateway shards from queueing the same delete.
	release, ok := c.cache.AcquireLock(ctx, cache.MessageDeleteLockKey(m.ID), 0)
	if !ok {
		return
	}
	defer release()

	c.logger.Info("Queueing foreign message for cleanup",
		zap.String("threadId", m.ChannelID),
		zap.String("messageId", m.ID),
		zap.String("author", m.Author.Username))
	now := time.Now().UTC()
	c.cache.Enqueue(ctx, cache.Action{
		Kind:      cache.ActionDeleteMessage,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		QueuedAt:  now,
		NotBefore: now.Add(c.delay),
	})
}

// isThreadOwner reports whether the Discord user is the linked account of the
// moderator the thread belongs to.
func (c *Cleaner) isThreadOwner(threadID, discordUserID string) bool {
	mod, err := c.store.GetModeratorByThreadID(threadID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			c.logger.Warn("Moderator lookup failed during cleanup", zap.Error(err))
		}
		return false
	}
	return mod.DiscordUserID != nil && *mod.DiscordUserID == discordUserID
}
