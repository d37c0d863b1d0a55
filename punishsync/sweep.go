package punishsync

import (
	"context"
	"time"

	"punishment-bridge/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// redispatchAge is how long a row may sit without a log message before the
// reconciliation sweep retries its dispatch. Long enough that an in-flight
// workflow is never raced.
const redispatchAge = 10 * time.Minute

const redispatchBatch = 50

// SweepExpired revokes temporary punishments whose expiry has passed. The
// game plugin usually reports expiries itself; this sweep covers the ones
// announced while the bot was down.
func (s *Service) SweepExpired(ctx context.Context) {
	expired, err := s.store.GetExpiredPunishments(time.Now().UTC())
	if err != nil {
		s.logger.Error("Expiry sweep query failed", zap.Error(err))
		return
	}
	if len(expired) == 0 {
		return
	}
	s.logger.Info("Expiry sweep found punishments to revoke", zap.Int("count", len(expired)))

	for i := range expired {
		p := expired[i]
		s.workers.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), workflowTimeout)
			defer cancel()
			log := s.logger.With(zap.String("externalId", p.ExternalID), zap.String("sweep", "expiry"))
			s.applyRevocation(ctx, &p, model.Revocation{
				Type:       p.Type,
				ExternalID: p.ExternalID,
				Reason:     "Expired",
				Kind:       model.RevokeExpired,
				At:         time.Now().UTC(),
			}, log)
		})
	}
}

// RedispatchStale retries dispatch for rows that never reached the log
// channel, typically because Discord was unreachable when they arrived.
func (s *Service) RedispatchStale(ctx context.Context) {
	stale, err := s.store.GetUndispatchedPunishments(time.Now().UTC().Add(-redispatchAge), redispatchBatch)
	if err != nil {
		s.logger.Error("Reconciliation sweep query failed", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}
	s.logger.Info("Reconciliation sweep retrying dispatch", zap.Int("count", len(stale)))

	for i := range stale {
		p := stale[i]
		s.workers.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), workflowTimeout)
			defer cancel()
			log := s.logger.With(zap.String("externalId", p.ExternalID), zap.String("sweep", "redispatch"))
			s.dispatchPunishment(ctx, &p, log)
			s.refreshStats(ctx, &p)
		})
	}
}

// ForceSyncPlayer bypasses the throttle and refreshes a player's record and
// summary immediately. Backs the admin sync command.
func (s *Service) ForceSyncPlayer(ctx context.Context, playerID uuid.UUID) {
	s.refreshPlayerStats(ctx, playerID, "", true)
}

// ForceSyncModerator is the moderator-side counterpart of ForceSyncPlayer.
func (s *Service) ForceSyncModerator(ctx context.Context, moderatorID uuid.UUID) {
	s.refreshModeratorStats(ctx, moderatorID, "", true)
}
