package domain

import (
	"errors"
	"fmt"
)

// Exported error variables allow callers to use errors.Is() for error checking.
var (
	ErrUnknownProfile    = errors.New("profile is not part of the configured profile set")
	ErrDirectoryConflict = errors.New("both enabled and disabled ROM directories exist")
	ErrProfileMissing    = errors.New("no ROM directory exists for profile in either form")
	ErrTokenNotFound     = errors.New("no recognized profile token in config file")
	ErrLockHeld          = errors.New("another switch is already in progress")
)

// RenameError reports a failed ROM directory rename with both endpoints.
type RenameError struct {
	Source string
	Dest   string
	Err    error
}

func (e *RenameError) Error() string {
	return fmt.Sprintf("rename %s to %s: %v", e.Source, e.Dest, e.Err)
}

func (e *RenameError) Unwrap() error { return e.Err }

// ConfigWriteError reports a failed config file read or rewrite.
type ConfigWriteError struct {
	Path string
	Err  error
}

func (e *ConfigWriteError) Error() string {
	return fmt.Sprintf("rewrite %s: %v", e.Path, e.Err)
}

func (e *ConfigWriteError) Unwrap() error { return e.Err }
