package punishsync

import (
	"context"
	"errors"
	"time"

	"punishment-bridge/cache"
	"punishment-bridge/forum"
	"punishment-bridge/model"
	"punishment-bridge/utils/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// refreshPlayerStats recomputes the player's aggregate record from the
// punishments table and rewrites the thread's pinned summary. The lock keeps
// concurrent workflows from interleaving writes; the throttle gate collapses
// bursts into one refresh per interval. Skipping on contention is safe
// because whoever holds the lock writes fresher numbers than ours.
func (s *Service) refreshPlayerStats(ctx context.Context, playerID uuid.UUID, playerName string, force bool) {
	identity := "player:" + playerID.String()
	release, ok := s.cache.AcquireLock(ctx, cache.StatsUpdateLockKey(identity), s.cfg.StatsLockWait)
	if !ok {
		s.logger.Debug("Stats refresh skipped, lock contended", zap.String("identity", identity))
		return
	}
	defer release()

	if !force && !s.cache.ShouldRefreshStats(ctx, identity, s.cfg.StatsRefreshInterval) {
		return
	}

	total, err := s.store.CountPlayerPunishments(playerID, false)
	if err != nil {
		s.logger.Error("Failed to count player punishments", zap.Error(err))
		return
	}
	active, err := s.store.CountPlayerPunishments(playerID, true)
	if err != nil {
		s.logger.Error("Failed to count active player punishments", zap.Error(err))
		return
	}
	byType, err := s.store.PlayerPunishmentCounts(playerID, false)
	if err != nil {
		s.logger.Error("Failed to aggregate player punishments", zap.Error(err))
		return
	}

	rec, err := s.store.GetPlayerByID(playerID)
	if errors.Is(err, database.ErrNotFound) {
		rec = &model.PlayerRecord{PlayerID: playerID}
	} else if err != nil {
		s.logger.Error("Failed to load player record", zap.Error(err))
		return
	}
	if playerName != "" {
		rec.PlayerName = playerName
	}
	rec.TotalPunishments = total
	rec.ActivePunishments = active
	now := time.Now().UTC()
	rec.LastActivityAt = &now

	if err := s.store.UpsertPlayer(rec); err != nil {
		s.logger.Error("Failed to save player record", zap.Error(err))
		return
	}

	if rec.DiscordThreadID == nil {
		return
	}
	activeList, err := s.store.GetPlayerActivePunishments(playerID)
	if err != nil {
		s.logger.Warn("Failed to list active punishments for summary", zap.Error(err))
		activeList = nil
	}
	ptrs := make([]*model.Punishment, len(activeList))
	for i := range activeList {
		ptrs[i] = &activeList[i]
	}
	// A forum post's starter message shares the thread id, so the pinned
	// summary is always editable without a history fetch.
	threadID := *rec.DiscordThreadID
	if err := s.messenger.EditMessage(threadID, threadID, forum.RenderPlayerStats(rec, byType, ptrs)); err != nil {
		s.logger.Warn("Failed to update player summary",
			zap.String("threadId", threadID), zap.Error(err))
	}
}

// refreshModeratorStats mirrors refreshPlayerStats for the issuing side.
func (s *Service) refreshModeratorStats(ctx context.Context, moderatorID uuid.UUID, moderatorName string, force bool) {
	identity := "moderator:" + moderatorID.String()
	release, ok := s.cache.AcquireLock(ctx, cache.StatsUpdateLockKey(identity), s.cfg.StatsLockWait)
	if !ok {
		s.logger.Debug("Stats refresh skipped, lock contended", zap.String("identity", identity))
		return
	}
	defer release()

	if !force && !s.cache.ShouldRefreshStats(ctx, identity, s.cfg.StatsRefreshInterval) {
		return
	}

	total, err := s.store.CountModeratorIssued(moderatorID, false)
	if err != nil {
		s.logger.Error("Failed to count issued punishments", zap.Error(err))
		return
	}
	active, err := s.store.CountModeratorIssued(moderatorID, true)
	if err != nil {
		s.logger.Error("Failed to count active issued punishments", zap.Error(err))
		return
	}
	byType, err := s.store.ModeratorIssuedCounts(moderatorID, false)
	if err != nil {
		s.logger.Error("Failed to aggregate issued punishments", zap.Error(err))
		return
	}

	rec, err := s.store.GetModeratorByID(moderatorID)
	if errors.Is(err, database.ErrNotFound) {
		rec = &model.ModeratorRecord{ModeratorID: moderatorID}
	} else if err != nil {
		s.logger.Error("Failed to load moderator record", zap.Error(err))
		return
	}
	if moderatorName != "" {
		rec.ModeratorName = moderatorName
	}
	rec.TotalIssued = total
	rec.ActiveIssued = active
	now := time.Now().UTC()
	rec.LastActivityAt = &now
	if rec.DiscordUserID == nil {
		if id, ok := s.links.DiscordID(ctx, moderatorID); ok {
			rec.DiscordUserID = &id
		}
	}

	if err := s.store.UpsertModerator(rec); err != nil {
		s.logger.Error("Failed to save moderator record", zap.Error(err))
		return
	}

	if rec.DiscordThreadID == nil {
		return
	}
	threadID := *rec.DiscordThreadID
	if err := s.messenger.EditMessage(threadID, threadID, forum.RenderModeratorStats(rec, byType)); err != nil {
		s.logger.Warn("Failed to update moderator summary",
			zap.String("threadId", threadID), zap.Error(err))
	}
}
