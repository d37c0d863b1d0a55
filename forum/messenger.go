// Package forum talks to the Discord side: the player forum, the moderator
// forum and the log channel. It exposes the small messaging surface the
// punishment workflows need and keeps all rendering in render.go.
package forum

import (
	"fmt"
	"sync"

	"punishment-bridge/model"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Thread describes a live forum thread.
type Thread struct {
	ID       string
	Name     string
	Archived bool
}

// Messenger wraps a discordgo session for thread and message operations.
// The channel configuration is guarded because a config reload may swap it
// while workers are dispatching.
type Messenger struct {
	session *discordgo.Session
	mu      sync.RWMutex
	cfg     model.DiscordConfig
	logger  *zap.Logger
}

// NewMessenger builds a messenger over an open session.
func NewMessenger(session *discordgo.Session, cfg model.DiscordConfig, logger *zap.Logger) *Messenger {
	return &Messenger{session: session, cfg: cfg, logger: logger}
}

// UpdateConfig swaps the channel configuration on config reload.
func (m *Messenger) UpdateConfig(cfg model.DiscordConfig) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

// PlayerForumID returns the configured player forum, empty when unset.
func (m *Messenger) PlayerForumID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.PlayersForumID
}

// ModeratorForumID returns the configured moderator forum, empty when unset.
func (m *Messenger) ModeratorForumID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.ModeratorsForumID
}

// LogChannelID returns the configured log channel, empty when unset.
func (m *Messenger) LogChannelID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.LogChannelID
}

// GetThread fetches a thread and validates it is still usable. An archived
// or deleted thread reports ok=false so callers fall through to creation.
func (m *Messenger) GetThread(threadID string) (*Thread, bool) {
	ch, err := m.session.Channel(threadID)
	if err != nil {
		return nil, false
	}
	if !ch.IsThread() {
		return nil, false
	}
	if ch.ThreadMetadata != nil && ch.ThreadMetadata.Archived {
		return nil, false
	}
	return &Thread{ID: ch.ID, Name: ch.Name}, true
}

// CreateThread opens a new forum post with the given starter embed and
// returns the thread id. The starter message shares the thread's id, which
// is what the stats refresh later edits in place.
func (m *Messenger) CreateThread(forumID, title string, starter *discordgo.MessageEmbed) (string, error) {
	ch, err := m.session.ForumThreadStartComplex(forumID,
		&discordgo.ThreadStart{
			Name:                title,
			AutoArchiveDuration: 10080,
		},
		&discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{starter},
		})
	if err != nil {
		return "", fmt.Errorf("failed to create forum thread %q: %w", title, err)
	}
	m.logger.Info("Created forum thread", zap.String("title", title), zap.String("threadId", ch.ID))
	return ch.ID, nil
}

// SendMessage posts an embed into a thread or channel and returns the
// message id.
func (m *Messenger) SendMessage(channelID string, embed *discordgo.MessageEmbed) (string, error) {
	msg, err := m.session.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		return "", fmt.Errorf("failed to send message to %s: %w", channelID, err)
	}
	return msg.ID, nil
}

// EditMessage replaces the embed of an existing message.
func (m *Messenger) EditMessage(channelID, messageID string, embed *discordgo.MessageEmbed) error {
	if _, err := m.session.ChannelMessageEditEmbed(channelID, messageID, embed); err != nil {
		return fmt.Errorf("failed to edit message %s in %s: %w", messageID, channelID, err)
	}
	return nil
}

// DeleteMessage removes a message. Used by the cleanup drain.
func (m *Messenger) DeleteMessage(channelID, messageID string) error {
	if err := m.session.ChannelMessageDelete(channelID, messageID); err != nil {
		return fmt.Errorf("failed to delete message %s in %s: %w", messageID, channelID, err)
	}
	return nil
}
