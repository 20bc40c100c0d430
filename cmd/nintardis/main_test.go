package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/joshsucher/nintardis/internal/switcher/domain"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "unknown profile",
			err:  fmt.Errorf("%q: %w", "snes", domain.ErrUnknownProfile),
			want: exitUnknownProfile,
		},
		{
			name: "directory conflict",
			err:  fmt.Errorf("profile gb: %w", domain.ErrDirectoryConflict),
			want: exitDirectoryConflict,
		},
		{
			name: "profile missing entirely",
			err:  fmt.Errorf("profile nes: %w", domain.ErrProfileMissing),
			want: exitRenameFailure,
		},
		{
			name: "rename failure",
			err:  &domain.RenameError{Source: "/roms/gb", Dest: "/roms/gb_disabled", Err: errors.New("permission denied")},
			want: exitRenameFailure,
		},
		{
			name: "config write failure",
			err:  &domain.ConfigWriteError{Path: "/cfg/es_settings.cfg", Err: errors.New("disk full")},
			want: exitConfigWriteFailure,
		},
		{
			name: "token not found",
			err:  &domain.ConfigWriteError{Path: "/cfg/es_settings.cfg", Err: domain.ErrTokenNotFound},
			want: exitConfigWriteFailure,
		},
		{
			name: "lock held",
			err:  fmt.Errorf("/state/switch.lock: %w", domain.ErrLockHeld),
			want: exitLockHeld,
		},
		{
			name: "generic error",
			err:  errors.New("something else"),
			want: exitGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Fatalf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
