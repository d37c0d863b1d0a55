package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"punishment-bridge/model"

	"github.com/google/uuid"
)

// GetModeratorByID returns the projection row for a moderator identity.
func (s *Store) GetModeratorByID(moderatorID uuid.UUID) (*model.ModeratorRecord, error) {
	var m model.ModeratorRecord
	err := s.db.Get(&m, `SELECT * FROM moderators WHERE moderator_id = ?`, moderatorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get moderator %s: %w", moderatorID, err)
	}
	return &m, nil
}

// GetModeratorByThreadID resolves which moderator owns a forum thread. Used
// by the cleanup listener to spare a moderator's own messages.
func (s *Store) GetModeratorByThreadID(threadID string) (*model.ModeratorRecord, error) {
	var m model.ModeratorRecord
	err := s.db.Get(&m, `SELECT * FROM moderators WHERE discord_thread_id = ?`, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get moderator by thread %s: %w", threadID, err)
	}
	return &m, nil
}

// UpsertModerator inserts or updates the moderator row keyed by identity.
func (s *Store) UpsertModerator(m *model.ModeratorRecord) error {
	m.UpdatedAt = time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = m.UpdatedAt
	}
	query := `INSERT INTO moderators (
			moderator_id, moderator_name, discord_user_id, discord_thread_id,
			total_issued, active_issued, last_activity_at, created_at, updated_at
		) VALUES (
			:moderator_id, :moderator_name, :discord_user_id, :discord_thread_id,
			:total_issued, :active_issued, :last_activity_at, :created_at, :updated_at
		)
		ON CONFLICT(moderator_id) DO UPDATE SET
			moderator_name = excluded.moderator_name,
			discord_user_id = excluded.discord_user_id,
			discord_thread_id = excluded.discord_thread_id,
			total_issued = excluded.total_issued,
			active_issued = excluded.active_issued,
			last_activity_at = excluded.last_activity_at,
			updated_at = excluded.updated_at`

	if _, err := s.db.NamedExec(query, m); err != nil {
		return fmt.Errorf("failed to upsert moderator %s: %w", m.ModeratorID, err)
	}
	return nil
}
