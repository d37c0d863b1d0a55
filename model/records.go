package model

import (
	"time"

	"github.com/google/uuid"
)

// PlayerRecord is the per-player projection row. The counters are a cache of
// aggregates over the punishments table and are always recomputed from it,
// never incremented in place.
type PlayerRecord struct {
	ID                int64      `db:"id"`
	PlayerID          uuid.UUID  `db:"player_id"`
	PlayerName        string     `db:"player_name"`
	DiscordThreadID   *string    `db:"discord_thread_id"`
	TotalPunishments  int        `db:"total_punishments"`
	ActivePunishments int        `db:"active_punishments"`
	LastActivityAt    *time.Time `db:"last_activity_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// ModeratorRecord mirrors PlayerRecord for the issuing side. DiscordUserID is
// the moderator's linked Discord account, resolved through the auth-link API.
type ModeratorRecord struct {
	ID              int64      `db:"id"`
	ModeratorID     uuid.UUID  `db:"moderator_id"`
	ModeratorName   string     `db:"moderator_name"`
	DiscordUserID   *string    `db:"discord_user_id"`
	DiscordThreadID *string    `db:"discord_thread_id"`
	TotalIssued     int        `db:"total_issued"`
	ActiveIssued    int        `db:"active_issued"`
	LastActivityAt  *time.Time `db:"last_activity_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// TypeCounts holds per-type aggregates for the stats embeds.
type TypeCounts map[PunishmentType]int

// Total sums the per-type counts.
func (c TypeCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}
