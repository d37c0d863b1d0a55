package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"punishment-bridge/model"

	"github.com/google/uuid"
)

// GetPlayerByID returns the projection row for a player identity.
func (s *Store) GetPlayerByID(playerID uuid.UUID) (*model.PlayerRecord, error) {
	var p model.PlayerRecord
	err := s.db.Get(&p, `SELECT * FROM players WHERE player_id = ?`, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", playerID, err)
	}
	return &p, nil
}

// UpsertPlayer inserts or updates the player row keyed by identity. The
// update path preserves the internal id so thread references stay stable.
func (s *Store) UpsertPlayer(p *model.PlayerRecord) error {
	p.UpdatedAt = time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}
	query := `INSERT INTO players (
			player_id, player_name, discord_thread_id,
			total_punishments, active_punishments, last_activity_at, created_at, updated_at
		) VALUES (
			:player_id, :player_name, :discord_thread_id,
			:total_punishments, :active_punishments, :last_activity_at, :created_at, :updated_at
		)
		ON CONFLICT(player_id) DO UPDATE SET
			player_name = excluded.player_name,
			discord_thread_id = excluded.discord_thread_id,
			total_punishments = excluded.total_punishments,
			active_punishments = excluded.active_punishments,
			last_activity_at = excluded.last_activity_at,
			updated_at = excluded.updated_at`

	if _, err := s.db.NamedExec(query, p); err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", p.PlayerID, err)
	}
	return nil
}
