// Package punishsync runs the punishment workflows: persist the event, make
// sure the Discord threads exist, post the notifications and refresh the
// aggregate records. The database write is the only step that may fail a
// workflow; everything Discord-side is fire and forget with logged failures.
package punishsync

import (
	"context"
	"time"

	"punishment-bridge/cache"
	"punishment-bridge/forum"
	"punishment-bridge/model"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// workflowTimeout bounds one punishment or revoke workflow end to end.
const workflowTimeout = 60 * time.Second

// Store is the persistence surface the workflows need.
type Store interface {
	SavePunishment(p *model.Punishment) error
	UpdatePunishment(p *model.Punishment) error
	GetActivePunishmentByExternalID(externalID string) (*model.Punishment, error)
	GetExpiredPunishments(now time.Time) ([]model.Punishment, error)
	GetUndispatchedPunishments(olderThan time.Time, limit int) ([]model.Punishment, error)
	GetPlayerActivePunishments(playerID uuid.UUID) ([]model.Punishment, error)
	GetPlayerByID(playerID uuid.UUID) (*model.PlayerRecord, error)
	UpsertPlayer(p *model.PlayerRecord) error
	GetModeratorByID(moderatorID uuid.UUID) (*model.ModeratorRecord, error)
	UpsertModerator(m *model.ModeratorRecord) error
	CountPlayerPunishments(playerID uuid.UUID, activeOnly bool) (int, error)
	CountModeratorIssued(moderatorID uuid.UUID, activeOnly bool) (int, error)
	PlayerPunishmentCounts(playerID uuid.UUID, activeOnly bool) (model.TypeCounts, error)
	ModeratorIssuedCounts(moderatorID uuid.UUID, activeOnly bool) (model.TypeCounts, error)
}

// Cache is the cache/lock surface. The production implementation degrades to
// no-ops without Redis; the workflows do not know the difference.
type Cache interface {
	Get(ctx context.Context, ns cache.Namespace, key string) (string, bool)
	Set(ctx context.Context, ns cache.Namespace, key, value string)
	Delete(ctx context.Context, ns cache.Namespace, key string)
	AcquireLock(ctx context.Context, key string, wait time.Duration) (func(), bool)
	ShouldRefreshStats(ctx context.Context, key string, interval time.Duration) bool
}

// Messenger is the Discord surface.
type Messenger interface {
	PlayerForumID() string
	ModeratorForumID() string
	LogChannelID() string
	GetThread(threadID string) (*forum.Thread, bool)
	CreateThread(forumID, title string, starter *discordgo.MessageEmbed) (string, error)
	SendMessage(channelID string, embed *discordgo.MessageEmbed) (string, error)
	EditMessage(channelID, messageID string, embed *discordgo.MessageEmbed) error
}

// LinkResolver resolves a moderator's linked Discord account.
type LinkResolver interface {
	DiscordID(ctx context.Context, playerID uuid.UUID) (string, bool)
}

// noLinks satisfies LinkResolver when no auth-link API is configured.
type noLinks struct{}

func (noLinks) DiscordID(context.Context, uuid.UUID) (string, bool) { return "", false }

// Service owns the bounded worker pool the workflows run on. Submit methods
// return immediately; Close drains in-flight work.
type Service struct {
	store     Store
	cache     Cache
	messenger Messenger
	links     LinkResolver
	cfg       model.Settings
	logger    *zap.Logger
	workers   *pool.Pool
}

// New builds the service. links may be nil.
func New(store Store, cacheClient Cache, messenger Messenger, links LinkResolver,
	cfg model.Settings, logger *zap.Logger) *Service {
	if links == nil {
		links = noLinks{}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		store:     store,
		cache:     cacheClient,
		messenger: messenger,
		links:     links,
		cfg:       cfg,
		logger:    logger,
		workers:   pool.New().WithMaxGoroutines(workers),
	}
}

// SubmitPunishment queues a new-punishment workflow.
func (s *Service) SubmitPunishment(p *model.Punishment) {
	s.workers.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), workflowTimeout)
		defer cancel()
		s.processPunishment(ctx, p)
	})
}

// SubmitRevocation queues a revoke workflow.
func (s *Service) SubmitRevocation(r model.Revocation) {
	s.workers.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), workflowTimeout)
		defer cancel()
		s.processRevocation(ctx, r)
	})
}

// Close waits for in-flight workflows to finish.
func (s *Service) Close() {
	s.workers.Wait()
}
