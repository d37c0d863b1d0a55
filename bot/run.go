package bot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Run opens the gateway connection, registers the admin command and blocks
// until SIGINT or SIGTERM. The gateway open is retried with exponential
// backoff so a Discord hiccup at boot does not kill the process.
func (b *Bot) Run(commands []*discordgo.ApplicationCommand) error {
	open := func() error {
		if err := b.Session.Open(); err != nil {
			b.logger.Warn("Gateway open failed, retrying", zap.Error(err))
			return err
		}
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(open, policy); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}
	b.logger.Info("Gateway connected",
		zap.String("user", b.Session.State.User.Username),
		zap.String("id", b.Session.State.User.ID))

	if b.Links.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := b.Links.Probe(ctx); err != nil {
			b.logger.Warn("Auth-link API unreachable, account links degraded", zap.Error(err))
		}
		cancel()
	}

	registered, err := b.Session.ApplicationCommandBulkOverwrite(
		b.Session.State.User.ID, b.cfg.Discord.GuildID, commands)
	if err != nil {
		b.logger.Error("Failed to register commands", zap.Error(err))
	} else {
		b.logger.Info("Commands registered", zap.Int("count", len(registered)))
	}

	b.scheduler.Start()
	if b.Ingest != nil {
		b.Ingest.Start()
	}

	b.logger.Info("Bot is now running, press CTRL-C to exit")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc
	return nil
}
