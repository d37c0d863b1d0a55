package punishsync

import (
	"context"
	"errors"
	"fmt"

	"punishment-bridge/cache"
	"punishment-bridge/forum"
	"punishment-bridge/model"
	"punishment-bridge/utils/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// resolvePlayerThread returns the forum thread for a player, creating it if
// needed. Resolution is three-tiered: cache, then the stored record (with a
// liveness check against Discord), then creation under a per-player lock so
// concurrent punishments never open duplicate threads.
func (s *Service) resolvePlayerThread(ctx context.Context, playerID uuid.UUID, playerName string) (string, error) {
	return s.resolveThread(ctx, threadSpec{
		identity:  "player:" + playerID.String(),
		namespace: cache.NamespacePlayerThread,
		forumID:   s.messenger.PlayerForumID(),
		title:     forum.PlayerThreadTitle(playerName),
		stored: func() (*string, error) {
			rec, err := s.store.GetPlayerByID(playerID)
			if err != nil {
				return nil, err
			}
			return rec.DiscordThreadID, nil
		},
		persist: func(threadID string) error {
			rec, err := s.store.GetPlayerByID(playerID)
			if errors.Is(err, database.ErrNotFound) {
				rec = &model.PlayerRecord{PlayerID: playerID, PlayerName: playerName}
			} else if err != nil {
				return err
			}
			rec.PlayerName = playerName
			rec.DiscordThreadID = &threadID
			return s.store.UpsertPlayer(rec)
		},
	})
}

// resolveModeratorThread mirrors resolvePlayerThread for the issuing side.
func (s *Service) resolveModeratorThread(ctx context.Context, moderatorID uuid.UUID, moderatorName string) (string, error) {
	return s.resolveThread(ctx, threadSpec{
		identity:  "moderator:" + moderatorID.String(),
		namespace: cache.NamespaceModeratorThread,
		forumID:   s.messenger.ModeratorForumID(),
		title:     forum.ModeratorThreadTitle(moderatorName),
		stored: func() (*string, error) {
			rec, err := s.store.GetModeratorByID(moderatorID)
			if err != nil {
				return nil, err
			}
			return rec.DiscordThreadID, nil
		},
		persist: func(threadID string) error {
			rec, err := s.store.GetModeratorByID(moderatorID)
			if errors.Is(err, database.ErrNotFound) {
				rec = &model.ModeratorRecord{ModeratorID: moderatorID, ModeratorName: moderatorName}
			} else if err != nil {
				return err
			}
			rec.ModeratorName = moderatorName
			rec.DiscordThreadID = &threadID
			if id, ok := s.links.DiscordID(ctx, moderatorID); ok {
				rec.DiscordUserID = &id
			}
			return s.store.UpsertModerator(rec)
		},
	})
}

// threadSpec parameterizes resolveThread over the two identity kinds.
type threadSpec struct {
	identity  string
	namespace cache.Namespace
	forumID   string
	title     string
	stored    func() (*string, error)
	persist   func(threadID string) error
}

func (s *Service) resolveThread(ctx context.Context, spec threadSpec) (string, error) {
	if spec.forumID == "" {
		return "", fmt.Errorf("no forum configured for %s", spec.identity)
	}

	if threadID, ok := s.cache.Get(ctx, spec.namespace, spec.identity); ok {
		return threadID, nil
	}

	if threadID, ok := s.storedLiveThread(spec); ok {
		s.cache.Set(ctx, spec.namespace, spec.identity, threadID)
		return threadID, nil
	}

	// Creation happens under a per-identity lock with a double check inside,
	// so two workers racing on the same player produce exactly one thread.
	release, ok := s.cache.AcquireLock(ctx, cache.ThreadCreateLockKey(spec.identity), s.cfg.ThreadLockWait)
	if !ok {
		return "", fmt.Errorf("timed out waiting for thread creation lock for %s", spec.identity)
	}
	defer release()

	if threadID, ok := s.cache.Get(ctx, spec.namespace, spec.identity); ok {
		return threadID, nil
	}
	if threadID, ok := s.storedLiveThread(spec); ok {
		s.cache.Set(ctx, spec.namespace, spec.identity, threadID)
		return threadID, nil
	}

	threadID, err := s.messenger.CreateThread(spec.forumID, spec.title, forum.RenderThreadStarter(spec.title))
	if err != nil {
		return "", err
	}
	if err := spec.persist(threadID); err != nil {
		// The thread exists on Discord; the next resolution will find it
		// through the liveness check once the record write succeeds.
		s.logger.Error("Failed to persist new thread id",
			zap.String("identity", spec.identity), zap.Error(err))
	}
	s.cache.Set(ctx, spec.namespace, spec.identity, threadID)
	return threadID, nil
}

// storedLiveThread checks the stored thread id against Discord. A recorded
// but archived or deleted thread counts as absent.
func (s *Service) storedLiveThread(spec threadSpec) (string, bool) {
	stored, err := spec.stored()
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			s.logger.Warn("Thread record lookup failed",
				zap.String("identity", spec.identity), zap.Error(err))
		}
		return "", false
	}
	if stored == nil || *stored == "" {
		return "", false
	}
	if _, live := s.messenger.GetThread(*stored); !live {
		return "", false
	}
	return *stored, true
}
