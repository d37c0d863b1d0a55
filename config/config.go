// Package config loads the bot configuration: the token from the
// environment, everything else from config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"

	"punishment-bridge/model"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Load reads .env plus config.yaml and returns the resolved configuration.
func Load(logger *zap.Logger) (*model.Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info(".env file not found, relying on environment variables")
	}

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("BOT_TOKEN environment variable not set")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./data")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logger.Warn("config.yaml not found, using defaults")
	}

	cfg := &model.Config{BotToken: token}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyDefaults()

	if cfg.Discord.GuildID == "" {
		logger.Warn("discord.guild_id not set, admin commands will be registered globally")
	}
	if cfg.Discord.PlayersForumID == "" && cfg.Discord.ModeratorsForumID == "" {
		logger.Warn("No forum channels configured, only the log channel will receive notifications")
	}

	return cfg, nil
}
