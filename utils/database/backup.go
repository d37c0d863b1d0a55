package database

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const backupPrefix = "punishment_logs_backup_"

// Backup copies the sqlite file into the backup directory and prunes old
// snapshots beyond the configured retention. Best effort: callers log the
// error and carry on.
func (s *Store) Backup() error {
	if s.cfg.File == "" {
		return nil // in-memory store, nothing to copy
	}
	if _, err := os.Stat(s.cfg.File); err != nil {
		return fmt.Errorf("database file not found: %w", err)
	}

	if err := os.MkdirAll(s.cfg.BackupDir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("%s%d.db", backupPrefix, time.Now().UnixMilli())
	target := filepath.Join(s.cfg.BackupDir, name)
	if err := copyFile(s.cfg.File, target); err != nil {
		return fmt.Errorf("failed to copy database file: %w", err)
	}
	s.logger.Info("Database backup created", zap.String("file", target))

	return s.pruneBackups()
}

// pruneBackups deletes the oldest snapshots, keeping the configured number.
// Backup file names embed a millisecond timestamp so lexical order is
// creation order.
func (s *Store) pruneBackups() error {
	entries, err := os.ReadDir(s.cfg.BackupDir)
	if err != nil {
		return fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), ".db") {
			backups = append(backups, e.Name())
		}
	}
	keep := s.cfg.BackupKeep
	if keep <= 0 {
		keep = 10
	}
	if len(backups) <= keep {
		return nil
	}

	sort.Strings(backups)
	for _, name := range backups[:len(backups)-keep] {
		if err := os.Remove(filepath.Join(s.cfg.BackupDir, name)); err != nil {
			s.logger.Warn("Failed to delete old backup", zap.String("file", name), zap.Error(err))
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
