package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/joshsucher/nintardis/internal/cli"
	"github.com/joshsucher/nintardis/internal/switcher/domain"
)

// Exit codes distinguish the failure kinds so the boot script can react to
// each without parsing stderr.
const (
	exitGeneric = 1 + iota
	exitUnknownProfile
	exitDirectoryConflict
	exitRenameFailure
	exitConfigWriteFailure
	exitLockHeld
)

func main() {
	cmd := cli.NewRootCommand(afero.NewOsFs(), cli.NewPromptUI(), os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var renameErr *domain.RenameError
	var configErr *domain.ConfigWriteError
	switch {
	case errors.Is(err, domain.ErrUnknownProfile):
		return exitUnknownProfile
	case errors.Is(err, domain.ErrDirectoryConflict):
		return exitDirectoryConflict
	case errors.Is(err, domain.ErrProfileMissing), errors.As(err, &renameErr):
		return exitRenameFailure
	case errors.Is(err, domain.ErrTokenNotFound), errors.As(err, &configErr):
		return exitConfigWriteFailure
	case errors.Is(err, domain.ErrLockHeld):
		return exitLockHeld
	}
	return exitGeneric
}
