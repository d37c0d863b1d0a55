package handlers

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"punishment-bridge/bot"
	"punishment-bridge/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

func handlePunishLogs(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}

	switch options[0].Name {
	case "reload":
		handleReload(b, s, i)
	case "stats":
		handleStats(b, s, i)
	case "queue":
		handleQueue(b, s, i)
	case "sync":
		handleSync(b, s, i, options[0].Options)
	case "backup":
		handleBackup(b, s, i)
	}
}

func handleReload(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := b.ReloadConfig(); err != nil {
		respondErr(b, s, i, "Reload failed: "+err.Error())
		return
	}
	respond(b, s, i, "✅ Configuration reloaded. Worker and interval settings take effect after a restart.")
}

func handleStats(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cpuCount, _ := cpu.Counts(true)
	cpuPercent, _ := cpu.Percent(0, false)
	vm, _ := mem.VirtualMemory()
	hostInfo, _ := host.Info()

	dbStatus := "🟢 available"
	if !b.Store.IsAvailable(ctx) {
		dbStatus = "🔴 unavailable"
	}
	cacheStatus := "🟢 connected"
	if !b.Cache.Enabled() {
		cacheStatus = "🟡 degraded (no Redis)"
	}

	cpuUsage := "n/a"
	if len(cpuPercent) > 0 {
		cpuUsage = fmt.Sprintf("%.1f%%", cpuPercent[0])
	}

	embed := &discordgo.MessageEmbed{
		Title: "Punishment Bridge Status",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "💾 Database", Value: dbStatus, Inline: true},
			{Name: "⚡ Cache", Value: cacheStatus, Inline: true},
			{Name: "📥 Queue Depth", Value: fmt.Sprintf("%d", b.Cache.QueueLen(ctx)), Inline: true},
			{Name: "💻 OS", Value: fmt.Sprintf("%s %s", hostInfo.Platform, hostInfo.PlatformVersion), Inline: true},
			{Name: "🔼 CPUs", Value: fmt.Sprintf("%d", cpuCount), Inline: true},
			{Name: "🔥 CPU Usage", Value: cpuUsage, Inline: true},
			{Name: "🧠 Memory", Value: fmt.Sprintf("%.1f%% (%d MB / %d MB)", vm.UsedPercent, vm.Used/1024/1024, vm.Total/1024/1024), Inline: true},
			{Name: "🐹 Go", Value: runtime.Version(), Inline: true},
			{Name: "🚀 Goroutines", Value: fmt.Sprintf("%d", runtime.NumGoroutine()), Inline: true},
			{Name: "⏱️ WebSocket Latency", Value: s.HeartbeatLatency().String(), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Status as of " + time.Now().Format("15:04:05"),
		},
	}

	if err := utils.SendEmbed(s, i, embed); err != nil {
		b.Logger().Warn("Failed to send stats response", zap.Error(err))
	}
}

func handleQueue(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if !b.Cache.Enabled() {
		respond(b, s, i, "Cache is degraded, no queue is in use.")
		return
	}
	respond(b, s, i, fmt.Sprintf("Deferred-action queue depth: %d", b.Cache.QueueLen(ctx)))
}

func handleSync(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(opts) == 0 {
		respondErr(b, s, i, "Missing player option.")
		return
	}
	playerID, err := uuid.Parse(opts[0].StringValue())
	if err != nil {
		respondErr(b, s, i, "Invalid player UUID.")
		return
	}

	if err := utils.DeferResponse(s, i, true); err != nil {
		b.Logger().Warn("Failed to defer sync response", zap.Error(err))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		b.Service.ForceSyncPlayer(ctx, playerID)
		if err := utils.SendFollowUp(s, i.Interaction, "✅ Player stats refreshed for "+playerID.String()); err != nil {
			b.Logger().Warn("Failed to send sync follow-up", zap.Error(err))
		}
	}()
}

func handleBackup(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := b.Store.Backup(); err != nil {
		respondErr(b, s, i, "Backup failed: "+err.Error())
		return
	}
	respond(b, s, i, "✅ Backup created.")
}

func respond(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	if err := utils.SendEphemeral(s, i, message); err != nil {
		b.Logger().Warn("Failed to send response", zap.Error(err))
	}
}

func respondErr(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	respond(b, s, i, "❌ "+message)
}
