// Package handlers implements the admin slash command surface.
package handlers

import (
	"punishment-bridge/bot"

	"github.com/bwmarrin/discordgo"
)

// Register installs the command handlers on the bot.
func Register(b *bot.Bot) {
	b.CommandHandlers = map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"punishlogs": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			handlePunishLogs(b, s, i)
		},
	}
}

// GenerateCommands returns the application commands to register. The command
// is admin-only through its default member permissions.
func GenerateCommands() []*discordgo.ApplicationCommand {
	adminOnly := int64(discordgo.PermissionAdministrator)
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "punishlogs",
			Description:              "Manage the punishment log bridge",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "reload",
					Description: "Reload the configuration file",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "stats",
					Description: "Show bot and host status",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "queue",
					Description: "Show the deferred-action queue depth",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "sync",
					Description: "Force a stats refresh for a player",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "player",
							Description: "Minecraft UUID of the player",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "backup",
					Description: "Create a database backup now",
				},
			},
		},
	}
}
