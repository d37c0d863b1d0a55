package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"punishment-bridge/model"

	"github.com/google/uuid"
)

// SavePunishment inserts a new punishment row and writes the generated id
// back onto the record. External-id uniqueness is not enforced here; the
// orchestrator resolves duplicate-active external ids before saving.
func (s *Store) SavePunishment(p *model.Punishment) error {
	query := `INSERT INTO punishments (
			type, player_id, player_name, moderator_id, moderator_name,
			external_id, reason, duration, expires_at, jail_name,
			player_thread_id, moderator_thread_id, player_message_id,
			moderator_message_id, log_message_id, active, created_at, updated_at
		) VALUES (
			:type, :player_id, :player_name, :moderator_id, :moderator_name,
			:external_id, :reason, :duration, :expires_at, :jail_name,
			:player_thread_id, :moderator_thread_id, :player_message_id,
			:moderator_message_id, :log_message_id, :active, :created_at, :updated_at
		)`

	result, err := s.db.NamedExec(query, p)
	if err != nil {
		return fmt.Errorf("failed to insert punishment record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	p.ID = id
	return nil
}

// UpdatePunishment writes the full row back, keyed by internal id.
func (s *Store) UpdatePunishment(p *model.Punishment) error {
	p.UpdatedAt = time.Now().UTC()
	query := `UPDATE punishments SET
			type = :type, player_id = :player_id, player_name = :player_name,
			moderator_id = :moderator_id, moderator_name = :moderator_name,
			external_id = :external_id, reason = :reason, duration = :duration,
			expires_at = :expires_at, jail_name = :jail_name,
			player_thread_id = :player_thread_id, moderator_thread_id = :moderator_thread_id,
			player_message_id = :player_message_id, moderator_message_id = :moderator_message_id,
			log_message_id = :log_message_id, active = :active,
			revoked_at = :revoked_at, revoke_reason = :revoke_reason,
			revoke_moderator_id = :revoke_moderator_id, revoke_moderator_name = :revoke_moderator_name,
			revoke_kind = :revoke_kind, updated_at = :updated_at
		WHERE id = :id`

	result, err := s.db.NamedExec(query, p)
	if err != nil {
		return fmt.Errorf("failed to update punishment %d: %w", p.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for punishment %d: %w", p.ID, err)
	}
	if rows == 0 {
		return fmt.Errorf("punishment %d: %w", p.ID, ErrNotFound)
	}
	return nil
}

// GetActivePunishmentByExternalID returns the active punishment carrying the
// ban-plugin id, used to correlate revoke events with their original action.
func (s *Store) GetActivePunishmentByExternalID(externalID string) (*model.Punishment, error) {
	var p model.Punishment
	err := s.db.Get(&p, `SELECT * FROM punishments WHERE external_id = ? AND active = 1 LIMIT 1`, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up punishment by external id %s: %w", externalID, err)
	}
	return &p, nil
}

// GetPunishmentByID fetches one row by internal id.
func (s *Store) GetPunishmentByID(id int64) (*model.Punishment, error) {
	var p model.Punishment
	err := s.db.Get(&p, `SELECT * FROM punishments WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get punishment %d: %w", id, err)
	}
	return &p, nil
}

// GetExpiredPunishments returns active, non-permanent punishments whose
// expiry time has passed. The scheduler revokes them with kind "expired".
func (s *Store) GetExpiredPunishments(now time.Time) ([]model.Punishment, error) {
	var out []model.Punishment
	err := s.db.Select(&out,
		`SELECT * FROM punishments WHERE active = 1 AND expires_at IS NOT NULL AND expires_at <= ?`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired punishments: %w", err)
	}
	return out, nil
}

// GetUndispatchedPunishments returns active rows that were persisted but
// never got a log-channel message, meaning the process died mid-workflow.
// Only rows older than the grace period are returned so in-flight workflows
// are not re-run. Revoked rows are excluded: redispatching one would post it
// as if it were still in force.
func (s *Store) GetUndispatchedPunishments(olderThan time.Time, limit int) ([]model.Punishment, error) {
	var out []model.Punishment
	err := s.db.Select(&out,
		`SELECT * FROM punishments WHERE log_message_id IS NULL AND active = 1 AND created_at <= ? ORDER BY created_at LIMIT ?`,
		olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query undispatched punishments: %w", err)
	}
	return out, nil
}

// GetPlayerActivePunishments lists a player's currently active punishments,
// newest first, for the pinned stats message.
func (s *Store) GetPlayerActivePunishments(playerID uuid.UUID) ([]model.Punishment, error) {
	var out []model.Punishment
	err := s.db.Select(&out,
		`SELECT * FROM punishments WHERE player_id = ? AND active = 1 ORDER BY created_at DESC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active punishments for player %s: %w", playerID, err)
	}
	return out, nil
}

// CountPlayerPunishments recomputes a player's aggregate from the punishments
// table. Counters on the players row are a cache of this value.
func (s *Store) CountPlayerPunishments(playerID uuid.UUID, activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM punishments WHERE player_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	var count int
	if err := s.db.Get(&count, query, playerID); err != nil {
		return 0, fmt.Errorf("failed to count punishments for player %s: %w", playerID, err)
	}
	return count, nil
}

// CountModeratorIssued recomputes a moderator's issued aggregate.
func (s *Store) CountModeratorIssued(moderatorID uuid.UUID, activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM punishments WHERE moderator_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	var count int
	if err := s.db.Get(&count, query, moderatorID); err != nil {
		return 0, fmt.Errorf("failed to count punishments for moderator %s: %w", moderatorID, err)
	}
	return count, nil
}

// PlayerPunishmentCounts groups a player's punishments by type.
func (s *Store) PlayerPunishmentCounts(playerID uuid.UUID, activeOnly bool) (model.TypeCounts, error) {
	query := `SELECT type, COUNT(*) AS count FROM punishments WHERE player_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` GROUP BY type`
	return s.typeCounts(query, playerID)
}

// ModeratorIssuedCounts groups a moderator's issued punishments by type.
func (s *Store) ModeratorIssuedCounts(moderatorID uuid.UUID, activeOnly bool) (model.TypeCounts, error) {
	query := `SELECT type, COUNT(*) AS count FROM punishments WHERE moderator_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` GROUP BY type`
	return s.typeCounts(query, moderatorID)
}

func (s *Store) typeCounts(query string, id uuid.UUID) (model.TypeCounts, error) {
	rows, err := s.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate punishment counts: %w", err)
	}
	defer rows.Close()

	counts := make(model.TypeCounts)
	for rows.Next() {
		var t model.PunishmentType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("failed to scan punishment count row: %w", err)
		}
		counts[t] = n
	}
	return counts, rows.Err()
}
