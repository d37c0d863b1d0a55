package main

import (
	"os"

	"punishment-bridge/bot"
	"punishment-bridge/config"
	"punishment-bridge/handlers"
	"punishment-bridge/utils"

	"go.uber.org/zap"
)

func main() {
	logger := utils.NewLogger()
	defer logger.Sync()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	if err := os.MkdirAll("./data", os.ModePerm); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}

	b, err := bot.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}
	defer b.Close()

	handlers.Register(b)

	if err := b.Run(handlers.GenerateCommands()); err != nil {
		logger.Fatal("Bot exited with error", zap.Error(err))
	}
}
