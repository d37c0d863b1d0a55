package bot

import (
	"context"
	"sync"
	"time"

	"punishment-bridge/cache"

	"go.uber.org/zap"
)

// queueDrainInterval is how often deferred Discord actions are drained.
const queueDrainInterval = 5 * time.Second

// Scheduler runs the periodic maintenance work: the expiry sweep, the
// reconciliation sweep for rows that never reached Discord, database backups
// and the deferred-action queue drain.
type Scheduler struct {
	bot    *Bot
	done   chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewScheduler creates the scheduler, not yet running.
func NewScheduler(b *Bot) *Scheduler {
	return &Scheduler{
		bot:    b,
		done:   make(chan struct{}),
		logger: b.logger.Named("scheduler"),
	}
}

// Start launches the ticker loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop terminates the loop and waits for it.
func (s *Scheduler) Stop() {
	close(s.done)
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	settings := s.bot.cfg.Settings
	expiryTicker := time.NewTicker(settings.ExpirySweepInterval)
	redispatchTicker := time.NewTicker(settings.RedispatchInterval)
	backupTicker := time.NewTicker(settings.BackupInterval)
	drainTicker := time.NewTicker(queueDrainInterval)
	defer expiryTicker.Stop()
	defer redispatchTicker.Stop()
	defer backupTicker.Stop()
	defer drainTicker.Stop()

	for {
		select {
		case <-expiryTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			s.bot.Service.SweepExpired(ctx)
			cancel()
		case <-redispatchTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			s.bot.Service.RedispatchStale(ctx)
			cancel()
		case <-backupTicker.C:
			if !s.bot.cfg.Settings.AutoBackup {
				continue
			}
			if err := s.bot.Store.Backup(); err != nil {
				s.logger.Error("Scheduled backup failed", zap.Error(err))
			}
		case <-drainTicker.C:
			s.drainQueue()
		case <-s.done:
			return
		}
	}
}

// drainQueue executes due deferred actions. An action whose grace delay has
// not passed goes back to the front of the queue and ends the pass, since
// everything behind it is younger.
func (s *Scheduler) drainQueue() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const maxPerPass = 20
	now := time.Now().UTC()
	for i := 0; i < maxPerPass; i++ {
		action, ok := s.bot.Cache.Dequeue(ctx)
		if !ok {
			return
		}
		if action.NotBefore.After(now) {
			s.bot.Cache.Requeue(ctx, action)
			return
		}

		switch action.Kind {
		case cache.ActionDeleteMessage:
			if err := s.bot.Messenger.DeleteMessage(action.ChannelID, action.MessageID); err != nil {
				s.logger.Warn("Deferred delete failed",
					zap.String("messageId", action.MessageID), zap.Error(err))
			}
		default:
			s.logger.Warn("Unknown queued action kind", zap.String("kind", action.Kind))
		}
	}
}
