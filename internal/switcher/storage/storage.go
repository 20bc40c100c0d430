package storage

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
)

// Storage provides low-level file operations with security validations.
// All filesystem access in the switcher goes through it, so tests can run
// against an in-memory filesystem.
type Storage struct {
	fs afero.Fs
}

// New creates a new Storage instance.
func New(fs afero.Fs) *Storage {
	return &Storage{fs: fs}
}

// FileSystem returns the underlying filesystem.
func (s *Storage) FileSystem() afero.Fs {
	return s.fs
}

// ValidatePathSafety checks that the path is not a symlink, preventing
// symlink attacks. It returns nil if the path doesn't exist or is a regular
// file/directory.
func (s *Storage) ValidatePathSafety(path string) error {
	lstater, ok := s.fs.(afero.Lstater)
	if !ok {
		// In-memory filesystems don't support symlinks anyway.
		return nil
	}
	info, _, err := lstater.LstatIfPossible(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to check path: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("refusing to operate on symlink: %s", path)
	}
	return nil
}

// ReadFile reads the entire file.
func (s *Storage) ReadFile(path string) ([]byte, error) {
	if err := s.ValidatePathSafety(path); err != nil {
		return nil, err
	}
	return afero.ReadFile(s.fs, path)
}

// WriteFileAtomic replaces the file at path with data by writing a temp
// file in the same directory and renaming it over the destination. The
// configs this tool patches are read by other processes at boot, so a torn
// write must never be observable.
func (s *Storage) WriteFileAtomic(path string, data []byte) (err error) {
	if err := s.ValidatePathSafety(path); err != nil {
		return fmt.Errorf("validate destination: %w", err)
	}

	tmp := path + ".tmp"
	file, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	_, writeErr := file.Write(data)
	closeErr := file.Close()
	if writeErr != nil || closeErr != nil {
		s.fs.Remove(tmp)
		if writeErr != nil {
			return fmt.Errorf("write data: %w", writeErr)
		}
		return fmt.Errorf("close temp file: %w", closeErr)
	}

	if err := s.fs.Rename(tmp, path); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// Rename renames a file or directory.
func (s *Storage) Rename(oldPath, newPath string) error {
	return s.fs.Rename(oldPath, newPath)
}

// DirExists reports whether path exists and is a directory.
func (s *Storage) DirExists(path string) (bool, error) {
	return afero.DirExists(s.fs, path)
}

// Exists checks if a path exists.
func (s *Storage) Exists(path string) (bool, error) {
	return afero.Exists(s.fs, path)
}

// Stat returns file information.
func (s *Storage) Stat(path string) (os.FileInfo, error) {
	return s.fs.Stat(path)
}

// MkdirAll creates a directory and any missing parents.
func (s *Storage) MkdirAll(path string) error {
	return s.fs.MkdirAll(path, 0o755)
}

// ReadDir reads directory contents.
func (s *Storage) ReadDir(path string) ([]os.FileInfo, error) {
	return afero.ReadDir(s.fs, path)
}

// Remove deletes a file.
func (s *Storage) Remove(path string) error {
	return s.fs.Remove(path)
}

// Chtimes changes file access and modification times.
func (s *Storage) Chtimes(path string, atime, mtime time.Time) error {
	return s.fs.Chtimes(path, atime, mtime)
}
