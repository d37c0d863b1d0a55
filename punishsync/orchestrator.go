package punishsync

import (
	"context"
	"errors"

	"punishment-bridge/cache"
	"punishment-bridge/forum"
	"punishment-bridge/model"
	"punishment-bridge/utils/database"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// processPunishment drives a new punishment through persist, thread
// resolution, dispatch and stats. Only the initial persist can abort the
// workflow; later step failures are logged and the row is left for the
// reconciliation sweep to pick up.
func (s *Service) processPunishment(ctx context.Context, p *model.Punishment) {
	log := s.logger.With(
		zap.String("externalId", p.ExternalID),
		zap.String("type", string(p.Type)),
		zap.String("player", p.PlayerName))

	// Two near-simultaneous announcements of one external id must not both
	// pass the duplicate check, so check and insert run under an id-scoped
	// lock. Losing the lock is not losing the event.
	release, ok := s.cache.AcquireLock(ctx, cache.PunishmentWriteLockKey(p.ExternalID), s.cfg.ThreadLockWait)
	if !ok {
		log.Warn("Timed out waiting for punishment write lock, proceeding unlocked")
		release = func() {}
	}

	existing, err := s.store.GetActivePunishmentByExternalID(p.ExternalID)
	switch {
	case err == nil:
		release()
		// The plugin re-announced an id we already track. Treat it as an
		// update to the known row, keeping its thread and message ids.
		s.applyUpdate(ctx, existing, p, log)
		return
	case !errors.Is(err, database.ErrNotFound):
		release()
		log.Error("Failed to check for existing punishment", zap.Error(err))
		return
	}

	err = s.store.SavePunishment(p)
	release()
	if err != nil {
		log.Error("Failed to persist punishment, dropping event", zap.Error(err))
		return
	}
	log.Info("Punishment persisted", zap.Int64("id", p.ID))

	s.dispatchPunishment(ctx, p, log)
	s.refreshStats(ctx, p)
}

// applyUpdate merges a re-announced event into the stored row and refreshes
// the already-posted messages.
func (s *Service) applyUpdate(ctx context.Context, existing, incoming *model.Punishment, log *zap.Logger) {
	existing.Reason = incoming.Reason
	existing.PlayerName = incoming.PlayerName
	existing.ModeratorID = incoming.ModeratorID
	existing.ModeratorName = incoming.ModeratorName
	existing.JailName = incoming.JailName
	existing.SetDuration(incoming.Duration)

	if err := s.store.UpdatePunishment(existing); err != nil {
		log.Error("Failed to update re-announced punishment", zap.Error(err))
		return
	}
	log.Info("Updated re-announced punishment", zap.Int64("id", existing.ID))

	embed := forum.RenderPunishment(existing)
	s.editIfPresent(existing.PlayerThreadID, existing.PlayerMessageID, embed, log)
	s.editIfPresent(existing.ModeratorThreadID, existing.ModeratorMessageID, embed, log)
	if existing.LogMessageID != nil {
		logChannel := s.messenger.LogChannelID()
		if err := s.messenger.EditMessage(logChannel, *existing.LogMessageID, forum.RenderLog(existing)); err != nil {
			log.Warn("Failed to refresh log message", zap.Error(err))
		}
	}
	s.refreshStats(ctx, existing)
}

// dispatchPunishment resolves threads and posts the notifications. Message
// ids are persisted in one update after all sends so a partially dispatched
// row still reports what actually made it out.
func (s *Service) dispatchPunishment(ctx context.Context, p *model.Punishment, log *zap.Logger) {
	embed := forum.RenderPunishment(p)
	dirty := false

	if p.PlayerMessageID == nil && s.messenger.PlayerForumID() != "" {
		threadID, err := s.resolvePlayerThread(ctx, p.PlayerID, p.PlayerName)
		if err != nil {
			log.Warn("Player thread unavailable", zap.Error(err))
		} else {
			p.PlayerThreadID = &threadID
			if msgID, err := s.messenger.SendMessage(threadID, embed); err != nil {
				log.Warn("Failed to post to player thread", zap.Error(err))
			} else {
				p.PlayerMessageID = &msgID
			}
			dirty = true
		}
	}

	if p.ModeratorMessageID == nil && p.ModeratorID.Valid && s.messenger.ModeratorForumID() != "" {
		threadID, err := s.resolveModeratorThread(ctx, p.ModeratorID.UUID, p.ModeratorName)
		if err != nil {
			log.Warn("Moderator thread unavailable", zap.Error(err))
		} else {
			p.ModeratorThreadID = &threadID
			if msgID, err := s.messenger.SendMessage(threadID, embed); err != nil {
				log.Warn("Failed to post to moderator thread", zap.Error(err))
			} else {
				p.ModeratorMessageID = &msgID
			}
			dirty = true
		}
	}

	if p.LogMessageID == nil && s.messenger.LogChannelID() != "" {
		if msgID, err := s.messenger.SendMessage(s.messenger.LogChannelID(), forum.RenderLog(p)); err != nil {
			log.Warn("Failed to post to log channel", zap.Error(err))
		} else {
			p.LogMessageID = &msgID
			dirty = true
		}
	}

	if dirty {
		if err := s.store.UpdatePunishment(p); err != nil {
			log.Error("Failed to persist dispatch state", zap.Error(err))
		}
	}
}

// processRevocation locates the active row for the external id and revokes
// it. A missing row means the punishment was never tracked or is already
// revoked; both are fine, the operation is idempotent.
func (s *Service) processRevocation(ctx context.Context, r model.Revocation) {
	log := s.logger.With(
		zap.String("externalId", r.ExternalID),
		zap.String("type", string(r.Type)),
		zap.String("kind", string(r.Kind)))

	if r.Type != "" && !r.Type.CanBeRevoked() {
		log.Debug("Punishment type is not revocable, ignoring")
		return
	}

	p, err := s.store.GetActivePunishmentByExternalID(r.ExternalID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			log.Debug("No active punishment for revoke, ignoring")
		} else {
			log.Error("Failed to locate punishment for revoke", zap.Error(err))
		}
		return
	}
	if !p.Type.CanBeRevoked() {
		log.Debug("Stored punishment type is not revocable, ignoring",
			zap.String("storedType", string(p.Type)))
		return
	}
	// The event's type, when present, is only a cross-check.
	if r.Type != "" && p.Type != r.Type {
		log.Warn("Revoke type mismatch, ignoring",
			zap.String("storedType", string(p.Type)))
		return
	}

	s.applyRevocation(ctx, p, r, log)
}

// applyRevocation marks the row revoked and rewrites the posted messages.
// The database write must succeed before any message is touched.
func (s *Service) applyRevocation(ctx context.Context, p *model.Punishment, r model.Revocation, log *zap.Logger) {
	p.Revoke(r.Kind, r.Reason, r.ModeratorID, r.ModeratorName, r.At)
	if err := s.store.UpdatePunishment(p); err != nil {
		log.Error("Failed to mark punishment revoked", zap.Error(err))
		return
	}
	log.Info("Punishment revoked", zap.Int64("id", p.ID))

	embed := forum.RenderRevoke(p)
	s.editIfPresent(p.PlayerThreadID, p.PlayerMessageID, embed, log)
	s.editIfPresent(p.ModeratorThreadID, p.ModeratorMessageID, embed, log)

	// The log channel is append-only: the revoke gets its own entry and the
	// row tracks the newest log message.
	if logChannel := s.messenger.LogChannelID(); logChannel != "" {
		if msgID, err := s.messenger.SendMessage(logChannel, forum.RenderRevokeLog(p)); err != nil {
			log.Warn("Failed to post revoke to log channel", zap.Error(err))
		} else {
			p.LogMessageID = &msgID
			if err := s.store.UpdatePunishment(p); err != nil {
				log.Error("Failed to persist revoke log message id", zap.Error(err))
			}
		}
	}

	s.refreshStats(ctx, p)
}

func (s *Service) editIfPresent(channelID, messageID *string, embed *discordgo.MessageEmbed, log *zap.Logger) {
	if channelID == nil || messageID == nil {
		return
	}
	if err := s.messenger.EditMessage(*channelID, *messageID, embed); err != nil {
		log.Warn("Failed to edit notification message",
			zap.String("channelId", *channelID),
			zap.String("messageId", *messageID),
			zap.Error(err))
	}
}

// refreshStats updates both aggregate records touched by a punishment.
func (s *Service) refreshStats(ctx context.Context, p *model.Punishment) {
	s.refreshPlayerStats(ctx, p.PlayerID, p.PlayerName, false)
	if p.ModeratorID.Valid {
		s.refreshModeratorStats(ctx, p.ModeratorID.UUID, p.ModeratorName, false)
	}
}
