package forum

import (
	"fmt"
	"time"

	"punishment-bridge/model"

	"github.com/bwmarrin/discordgo"
)

// Embed colors per event kind.
const (
	colorBan    = 0xED4245
	colorMute   = 0xE67E22
	colorKick   = 0xF1C40F
	colorJail   = 0x9B59B6
	colorRevoke = 0x57F287
	colorStats  = 0x5865F2
)

func typeColor(t model.PunishmentType) int {
	switch t {
	case model.PunishmentBan:
		return colorBan
	case model.PunishmentMute:
		return colorMute
	case model.PunishmentKick:
		return colorKick
	case model.PunishmentJail:
		return colorJail
	}
	return colorStats
}

// PlayerThreadTitle names a player's forum thread.
func PlayerThreadTitle(playerName string) string { return "👤 " + playerName }

// ModeratorThreadTitle names a moderator's forum thread.
func ModeratorThreadTitle(moderatorName string) string { return "👮 " + moderatorName }

func durationText(p *model.Punishment) string {
	if p.IsPermanent() {
		return "Permanent"
	}
	d := time.Duration(*p.Duration) * time.Second
	return formatDuration(d)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh %dm", h, m)
	}
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	if h == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd %dh", days, h)
}

func discordTimestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:f>", t.Unix())
}

// RenderPunishment builds the embed posted into player and moderator threads
// when a punishment is issued.
func RenderPunishment(p *model.Punishment) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s %s", p.Type.Emoji(), p.Type.DisplayName()),
		Color: typeColor(p.Type),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Player", Value: p.PlayerName, Inline: true},
			{Name: "Moderator", Value: p.ModeratorName, Inline: true},
			{Name: "Reason", Value: reasonOrDefault(p.Reason), Inline: false},
		},
		Timestamp: p.CreatedAt.Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "ID " + p.ExternalID},
	}
	if p.Type.CanBeTemporary() {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Duration", Value: durationText(p), Inline: true})
		if p.ExpiresAt != nil {
			embed.Fields = append(embed.Fields,
				&discordgo.MessageEmbedField{Name: "Expires", Value: discordTimestamp(*p.ExpiresAt), Inline: true})
		}
	}
	if p.JailName != nil && *p.JailName != "" {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Jail", Value: *p.JailName, Inline: true})
	}
	return embed
}

// RenderRevoke builds the embed that replaces a punishment message once the
// punishment has been revoked. The original context stays visible with the
// revocation details appended.
func RenderRevoke(p *model.Punishment) *discordgo.MessageEmbed {
	embed := RenderPunishment(p)
	embed.Title = fmt.Sprintf("~~%s %s~~ Revoked", p.Type.Emoji(), p.Type.DisplayName())
	embed.Color = colorRevoke

	kind := "manual"
	if p.RevokeKind != nil {
		kind = string(*p.RevokeKind)
	}
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Revoked By", Value: revokerName(p), Inline: true},
		&discordgo.MessageEmbedField{Name: "Revoke Kind", Value: kind, Inline: true})
	if p.RevokeReason != nil && *p.RevokeReason != "" {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Revoke Reason", Value: *p.RevokeReason, Inline: false})
	}
	if p.RevokedAt != nil {
		embed.Timestamp = p.RevokedAt.Format(time.RFC3339)
	}
	return embed
}

// RenderLog builds the compact single-line style embed for the log channel.
func RenderLog(p *model.Punishment) *discordgo.MessageEmbed {
	desc := fmt.Sprintf("%s **%s** → **%s** by **%s**",
		p.Type.Emoji(), p.Type.DisplayName(), p.PlayerName, p.ModeratorName)
	if p.Type.CanBeTemporary() {
		desc += " (" + durationText(p) + ")"
	}
	return &discordgo.MessageEmbed{
		Description: desc,
		Color:       typeColor(p.Type),
		Timestamp:   p.CreatedAt.Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: "ID " + p.ExternalID},
	}
}

// RenderRevokeLog builds the log-channel entry for a lifted punishment. The
// log channel is append-only, so a revoke gets its own line rather than an
// edit of the original.
func RenderRevokeLog(p *model.Punishment) *discordgo.MessageEmbed {
	desc := fmt.Sprintf("✅ %s lifted for **%s** by **%s**",
		p.Type.DisplayName(), p.PlayerName, revokerName(p))
	if p.RevokeReason != nil && *p.RevokeReason != "" {
		desc += " (" + *p.RevokeReason + ")"
	}
	embed := &discordgo.MessageEmbed{
		Description: desc,
		Color:       colorRevoke,
		Footer:      &discordgo.MessageEmbedFooter{Text: "ID " + p.ExternalID},
	}
	if p.RevokedAt != nil {
		embed.Timestamp = p.RevokedAt.Format(time.RFC3339)
	}
	return embed
}

// RenderThreadStarter builds the first message of a new thread. It is a
// placeholder summary; the stats refresh edits it in place afterwards.
func RenderThreadStarter(title string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: "Collecting punishment history...",
		Color:       colorStats,
	}
}

// RenderPlayerStats builds the pinned summary for a player thread.
func RenderPlayerStats(rec *model.PlayerRecord, byType model.TypeCounts, active []*model.Punishment) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: PlayerThreadTitle(rec.PlayerName),
		Color: colorStats,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Total Punishments", Value: fmt.Sprintf("%d", rec.TotalPunishments), Inline: true},
			{Name: "Active", Value: fmt.Sprintf("%d", rec.ActivePunishments), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "UUID " + rec.PlayerID.String()},
	}
	if breakdown := renderTypeCounts(byType); breakdown != "" {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "By Type", Value: breakdown, Inline: false})
	}
	if len(active) > 0 {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Active Punishments", Value: renderActiveList(active), Inline: false})
	}
	if rec.LastActivityAt != nil {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Last Activity", Value: discordTimestamp(*rec.LastActivityAt), Inline: true})
	}
	return embed
}

// RenderModeratorStats builds the pinned summary for a moderator thread.
func RenderModeratorStats(rec *model.ModeratorRecord, byType model.TypeCounts) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: ModeratorThreadTitle(rec.ModeratorName),
		Color: colorStats,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Total Issued", Value: fmt.Sprintf("%d", rec.TotalIssued), Inline: true},
			{Name: "Currently Active", Value: fmt.Sprintf("%d", rec.ActiveIssued), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "UUID " + rec.ModeratorID.String()},
	}
	if rec.DiscordUserID != nil && *rec.DiscordUserID != "" {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Discord", Value: fmt.Sprintf("<@%s>", *rec.DiscordUserID), Inline: true})
	}
	if breakdown := renderTypeCounts(byType); breakdown != "" {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "By Type", Value: breakdown, Inline: false})
	}
	if rec.LastActivityAt != nil {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Last Activity", Value: discordTimestamp(*rec.LastActivityAt), Inline: true})
	}
	return embed
}

func renderTypeCounts(counts model.TypeCounts) string {
	out := ""
	for _, t := range []model.PunishmentType{model.PunishmentBan, model.PunishmentMute, model.PunishmentKick, model.PunishmentJail} {
		if n := counts[t]; n > 0 {
			out += fmt.Sprintf("%s %s: %d\n", t.Emoji(), t.DisplayName(), n)
		}
	}
	return out
}

func renderActiveList(active []*model.Punishment) string {
	const maxListed = 10
	out := ""
	for i, p := range active {
		if i == maxListed {
			out += fmt.Sprintf("... and %d more\n", len(active)-maxListed)
			break
		}
		out += fmt.Sprintf("%s %s (%s)\n", p.Type.Emoji(), p.Type.DisplayName(), durationText(p))
	}
	return out
}

func reasonOrDefault(reason string) string {
	if reason == "" {
		return "No reason given"
	}
	return reason
}

func revokerName(p *model.Punishment) string {
	if p.RevokeModeratorName != nil && *p.RevokeModeratorName != "" {
		return *p.RevokeModeratorName
	}
	return "System"
}
