package switcher

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joshsucher/nintardis/internal/switcher/domain"
)

// acquireLock guards the full rename-and-rewrite sequence. The three steps
// are not individually atomic, so a second invocation must not interleave.
// Create-exclusive semantics double as the mutex; the returned func
// releases it.
func (s *Switcher) acquireLock() (func(), error) {
	if err := s.store.MkdirAll(s.cfg.StateDir); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	lockPath := s.cfg.LockPath()
	file, err := s.store.FileSystem().OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w", lockPath, domain.ErrLockHeld)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	_, writeErr := file.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	closeErr := file.Close()
	if writeErr != nil || closeErr != nil {
		s.store.Remove(lockPath)
		if writeErr != nil {
			return nil, fmt.Errorf("failed to write lock file: %w", writeErr)
		}
		return nil, fmt.Errorf("failed to close lock file: %w", closeErr)
	}

	return func() {
		if err := s.store.Remove(lockPath); err != nil {
			s.logger.Warn("failed to remove lock file", "path", lockPath, "error", err)
		}
	}, nil
}
