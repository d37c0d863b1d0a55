// Package bot wires the application together: Discord session, store, cache,
// auth-link client, the punishment pipeline and the scheduler.
package bot

import (
	"context"
	"fmt"
	"time"

	"punishment-bridge/authlink"
	"punishment-bridge/cache"
	"punishment-bridge/config"
	"punishment-bridge/events"
	"punishment-bridge/forum"
	"punishment-bridge/model"
	"punishment-bridge/punishsync"
	"punishment-bridge/utils/database"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Bot owns every long-lived component. All dependencies are constructed in
// New and passed down explicitly.
type Bot struct {
	Session   *discordgo.Session
	Store     *database.Store
	Cache     *cache.Client
	Links     *authlink.Client
	Messenger *forum.Messenger
	Service   *punishsync.Service
	Bus       *events.Bus
	Ingest    *events.Ingest

	CommandHandlers map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate)

	cfg       *model.Config
	logger    *zap.Logger
	scheduler *Scheduler
	busCancel context.CancelFunc
}

// New constructs the bot and all of its components. The session is created
// but not opened; Run does that.
func New(cfg *model.Config, logger *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	store, err := database.Open(cfg.Database, logger.Named("database"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	cacheClient := cache.New(cfg.Redis, logger.Named("cache"))
	links := authlink.New(cfg.AuthLink, cacheClient, logger.Named("authlink"))
	messenger := forum.NewMessenger(session, cfg.Discord, logger.Named("forum"))
	service := punishsync.New(store, cacheClient, messenger, links, cfg.Settings, logger.Named("punishsync"))

	dispatcher := events.NewDispatcher(service, logger.Named("events"))
	bus := events.NewBus(256, logger.Named("events"))

	b := &Bot{
		Session:   session,
		Store:     store,
		Cache:     cacheClient,
		Links:     links,
		Messenger: messenger,
		Service:   service,
		Bus:       bus,
		cfg:       cfg,
		logger:    logger,
	}
	b.scheduler = NewScheduler(b)
	if cfg.Ingest.Enabled {
		b.Ingest = events.NewIngest(cfg.Ingest, bus, logger.Named("ingest"))
	}

	busCtx, cancel := context.WithCancel(context.Background())
	b.busCancel = cancel
	go bus.Run(busCtx, dispatcher)

	cleaner := forum.NewCleaner(store, cacheClient, cfg.Discord, cfg.Settings.CleanupDelay, logger.Named("cleanup"))
	session.AddHandler(cleaner.HandleMessage)
	session.AddHandler(b.handleInteraction)

	return b, nil
}

// Config returns the loaded configuration.
func (b *Bot) Config() *model.Config {
	return b.cfg
}

// Logger returns the root logger.
func (b *Bot) Logger() *zap.Logger {
	return b.logger
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if handler, ok := b.CommandHandlers[i.ApplicationCommandData().Name]; ok {
		handler(s, i)
	}
}

// ReloadConfig re-reads config.yaml and applies the channel configuration.
// Pool sizes and intervals are captured at construction and need a restart.
func (b *Bot) ReloadConfig() error {
	newCfg, err := config.Load(b.logger)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	b.cfg.Discord = newCfg.Discord
	b.cfg.AuthLink = newCfg.AuthLink
	b.Messenger.UpdateConfig(newCfg.Discord)
	b.logger.Info("Configuration reloaded")
	return nil
}

// Close shuts components down in dependency order: stop intake, drain the
// workers, then release the connections.
func (b *Bot) Close() {
	b.logger.Info("Shutting down")
	b.scheduler.Stop()
	if b.Ingest != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		b.Ingest.Stop(ctx)
		cancel()
	}
	b.busCancel()
	b.Service.Close()
	if err := b.Session.Close(); err != nil {
		b.logger.Warn("Session close failed", zap.Error(err))
	}
	b.Cache.Close()
	if err := b.Store.Close(b.cfg.Settings.AutoBackup); err != nil {
		b.logger.Warn("Store close failed", zap.Error(err))
	}
}
