package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"punishment-bridge/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a lookup or update matches no row.
var ErrNotFound = errors.New("database: record not found")

// Store owns the durable punishment, player and moderator tables. It is the
// single source of truth; everything in the cache layer is a derived copy.
type Store struct {
	db     *sqlx.DB
	cfg    model.DatabaseConfig
	logger *zap.Logger
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS punishments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		player_id TEXT NOT NULL,
		player_name TEXT NOT NULL,
		moderator_id TEXT,
		moderator_name TEXT NOT NULL DEFAULT '',
		external_id TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		duration INTEGER,
		expires_at TIMESTAMP,
		jail_name TEXT,
		player_thread_id TEXT,
		moderator_thread_id TEXT,
		player_message_id TEXT,
		moderator_message_id TEXT,
		log_message_id TEXT,
		active BOOLEAN NOT NULL DEFAULT 1,
		revoked_at TIMESTAMP,
		revoke_reason TEXT,
		revoke_moderator_id TEXT,
		revoke_moderator_name TEXT,
		revoke_kind TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		player_id TEXT NOT NULL UNIQUE,
		player_name TEXT NOT NULL,
		discord_thread_id TEXT,
		total_punishments INTEGER NOT NULL DEFAULT 0,
		active_punishments INTEGER NOT NULL DEFAULT 0,
		last_activity_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS moderators (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		moderator_id TEXT NOT NULL UNIQUE,
		moderator_name TEXT NOT NULL,
		discord_user_id TEXT,
		discord_thread_id TEXT,
		total_issued INTEGER NOT NULL DEFAULT 0,
		active_issued INTEGER NOT NULL DEFAULT 0,
		last_activity_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_punishments_external ON punishments(external_id, active);`,
	`CREATE INDEX IF NOT EXISTS idx_punishments_player ON punishments(player_id);`,
	`CREATE INDEX IF NOT EXISTS idx_punishments_moderator ON punishments(moderator_id);`,
	`CREATE INDEX IF NOT EXISTS idx_punishments_expiry ON punishments(active, expires_at);`,
}

// Schema evolution is additive-only: new nullable columns are added here and
// "duplicate column" errors are swallowed so startup stays idempotent.
var alterStatements = []string{
	`ALTER TABLE punishments ADD COLUMN jail_name TEXT`,
	`ALTER TABLE punishments ADD COLUMN log_message_id TEXT`,
	`ALTER TABLE punishments ADD COLUMN revoke_kind TEXT`,
	`ALTER TABLE moderators ADD COLUMN discord_user_id TEXT`,
}

// Open connects to the sqlite database, configures the pool and runs the
// migrations.
func Open(cfg model.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(cfg.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", cfg.File+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	s := &Store{db: db, cfg: cfg, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenInMemory is used by tests.
func OpenInMemory(logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	s := &Store{db: db, cfg: model.DatabaseConfig{BackupKeep: 10}, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run schema migration: %w", err)
		}
	}
	for _, stmt := range alterStatements {
		if _, err := s.db.Exec(stmt); err != nil && !strings.Contains(err.Error(), "duplicate column name") {
			return fmt.Errorf("failed to run ALTER migration %q: %w", stmt, err)
		}
	}
	return nil
}

// IsAvailable is a liveness probe for the admin stats command.
func (s *Store) IsAvailable(ctx context.Context) bool {
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("Database unavailable", zap.Error(err))
		return false
	}
	return true
}

// Close shuts the pool down, taking a final backup when configured.
func (s *Store) Close(autoBackup bool) error {
	if autoBackup {
		if err := s.Backup(); err != nil {
			s.logger.Warn("Final backup failed", zap.Error(err))
		}
	}
	return s.db.Close()
}
