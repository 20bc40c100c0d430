// Package backup keeps content-addressed copies of config files taken
// right before the switcher rewrites them, so a bad switch can be undone by
// hand.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joshsucher/nintardis/internal/switcher/storage"
)

// Service handles backup operations with content-addressed storage.
type Service struct {
	storage   *storage.Storage
	backupDir string
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a new backup Service. A nil logger discards output.
func New(storage *storage.Storage, backupDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		storage:   storage,
		backupDir: backupDir,
		now:       time.Now,
		logger:    logger,
	}
}

// SetNow allows overriding the clock for testing.
func (s *Service) SetNow(now func() time.Time) {
	if now == nil {
		s.now = time.Now
		return
	}
	s.now = now
}

// Dir returns the backup directory.
func (s *Service) Dir() string {
	return s.backupDir
}

// CalculateHash returns the SHA-256 hash of the given file.
// Empty files return a special "empty" marker and log a warning.
// Missing files return an empty string without error.
func (s *Service) CalculateHash(path string) (string, error) {
	if err := s.storage.ValidatePathSafety(path); err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}

	info, err := s.storage.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to stat file for hashing: %w", err)
	}
	if info.Size() == 0 {
		s.logger.Warn("empty file detected during hash calculation",
			"path", path,
			"operation", "hash")
		return "empty", nil
	}

	f, err := s.storage.FileSystem().Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// BackupFile creates a content-addressed backup of the file at path.
// Identical content deduplicates to a single backup whose mtime is
// refreshed on each backup event. Missing files are silently skipped. The
// backup keeps the source file's extension so a human can tell the es
// settings apart from the theme when restoring.
func (s *Service) BackupFile(path string) error {
	hash, err := s.CalculateHash(path)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", path, err)
	}
	if hash == "" {
		return nil
	}

	if err := s.storage.MkdirAll(s.backupDir); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	backupPath := filepath.Join(s.backupDir, hash+filepath.Ext(path))
	exists, err := s.storage.Exists(backupPath)
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}
	if !exists {
		data, err := s.storage.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s for backup: %w", path, err)
		}
		if err := s.storage.WriteFileAtomic(backupPath, data); err != nil {
			return fmt.Errorf("failed to write backup: %w", err)
		}
		s.logger.Info("backed up config file", "source", path, "backup", backupPath)
	}

	now := s.now()
	return s.storage.Chtimes(backupPath, now, now)
}

// Prune removes backup files older than the provided duration and returns
// the number removed.
func (s *Service) Prune(olderThan time.Duration) (int, error) {
	if err := s.storage.MkdirAll(s.backupDir); err != nil {
		return 0, fmt.Errorf("failed to create backup directory: %w", err)
	}

	entries, err := s.storage.ReadDir(s.backupDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read backup directory: %w", err)
	}

	cutoff := s.now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if entry.ModTime().Before(cutoff) {
			path := filepath.Join(s.backupDir, entry.Name())
			if err := s.storage.Remove(path); err != nil {
				return removed, fmt.Errorf("failed to remove %s: %w", path, err)
			}
			removed++
		}
	}
	return removed, nil
}
