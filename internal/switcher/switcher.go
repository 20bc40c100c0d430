// Package switcher flips the device between its two emulated systems: ROM
// directory renames plus config token rewrites, idempotent and safe to
// re-run after a failed boot.
package switcher

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/joshsucher/nintardis/internal/switcher/backup"
	"github.com/joshsucher/nintardis/internal/switcher/config"
	"github.com/joshsucher/nintardis/internal/switcher/domain"
	"github.com/joshsucher/nintardis/internal/switcher/rewrite"
	"github.com/joshsucher/nintardis/internal/switcher/storage"
)

// Switcher coordinates directory renames and config rewrites so that
// exactly one profile is active at a time.
type Switcher struct {
	cfg    config.Config
	store  *storage.Storage
	backup *backup.Service
	rw     *rewrite.Rewriter
	logger *slog.Logger
}

// New constructs a Switcher on the provided filesystem. A nil logger
// discards output.
func New(fs afero.Fs, cfg config.Config, logger *slog.Logger) *Switcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	store := storage.New(fs)
	bak := backup.New(store, cfg.BackupDir(), logger)
	return &Switcher{
		cfg:    cfg,
		store:  store,
		backup: bak,
		rw:     rewrite.New(store, bak.BackupFile, logger),
		logger: logger,
	}
}

// Config returns the switcher configuration.
func (s *Switcher) Config() config.Config {
	return s.cfg
}

// Backups returns the backup service.
func (s *Switcher) Backups() *backup.Service {
	return s.backup
}

// Activate makes the named profile the active one. The sequence is
// idempotent: running it twice leaves the filesystem and config files
// byte-identical to a single run.
func (s *Switcher) Activate(name string) error {
	target, ok := s.cfg.Find(name)
	if !ok {
		return fmt.Errorf("%q: %w", name, domain.ErrUnknownProfile)
	}

	unlock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.preflight(target); err != nil {
		return err
	}

	// Disable first: if the run dies between the two renames, a re-run
	// still finds an unambiguous state for each profile.
	for _, p := range s.cfg.Profiles {
		if p.Name == target.Name {
			continue
		}
		if err := s.disable(p); err != nil {
			return err
		}
	}
	if err := s.enable(target); err != nil {
		return err
	}

	return s.rewriteConfigs(target)
}

// Toggle activates whichever profile is not currently active and returns
// its name. When no profile is active in the ROMs root, the first
// configured profile wins, matching the device's original boot behavior.
func (s *Switcher) Toggle() (string, error) {
	next := s.cfg.Profiles[0].Name
	for _, p := range s.cfg.Profiles {
		enabled, err := s.store.DirExists(s.cfg.EnabledDir(p))
		if err != nil {
			return "", err
		}
		if enabled {
			next = s.cfg.Other(p.Name).Name
			break
		}
	}
	return next, s.Activate(next)
}

// DirState describes how a profile's ROM directory currently exists.
type DirState string

const (
	StateEnabled  DirState = "enabled"
	StateDisabled DirState = "disabled"
	StateMissing  DirState = "missing"
	StateConflict DirState = "conflict"
)

// ProfileStatus reports one profile's directory state and which config
// files currently carry its tokens.
type ProfileStatus struct {
	Name       string
	State      DirState
	ConfigPath []string
}

// Active reports whether the profile's canonical ROM directory is in place.
func (ps ProfileStatus) Active() bool {
	return ps.State == StateEnabled
}

// Status inspects the filesystem without mutating anything.
func (s *Switcher) Status() ([]ProfileStatus, error) {
	statuses := make([]ProfileStatus, 0, len(s.cfg.Profiles))
	for _, p := range s.cfg.Profiles {
		state, err := s.dirState(p)
		if err != nil {
			return nil, err
		}
		ps := ProfileStatus{Name: p.Name, State: state}
		for _, rule := range s.cfg.Rules {
			data, err := s.store.ReadFile(rule.Path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return nil, err
			}
			token := rewrite.Render(rule.Template, p)
			if token != "" && bytes.Contains(data, []byte(token)) {
				ps.ConfigPath = append(ps.ConfigPath, rule.Path)
			}
		}
		statuses = append(statuses, ps)
	}
	return statuses, nil
}

func (s *Switcher) dirState(p config.Profile) (DirState, error) {
	enabled, err := s.store.DirExists(s.cfg.EnabledDir(p))
	if err != nil {
		return "", err
	}
	disabled, err := s.store.DirExists(s.cfg.DisabledDir(p))
	if err != nil {
		return "", err
	}
	switch {
	case enabled && disabled:
		return StateConflict, nil
	case enabled:
		return StateEnabled, nil
	case disabled:
		return StateDisabled, nil
	}
	return StateMissing, nil
}

// preflight rejects ambiguous prior state before any mutation: a profile
// with both directory forms present, or a target with neither.
func (s *Switcher) preflight(target config.Profile) error {
	for _, p := range s.cfg.Profiles {
		state, err := s.dirState(p)
		if err != nil {
			return err
		}
		if state == StateConflict {
			return fmt.Errorf("profile %q (%s, %s): %w",
				p.Name, s.cfg.EnabledDir(p), s.cfg.DisabledDir(p), domain.ErrDirectoryConflict)
		}
		if p.Name == target.Name && state == StateMissing {
			return fmt.Errorf("profile %q under %s: %w", p.Name, s.cfg.RomsDir, domain.ErrProfileMissing)
		}
	}
	return nil
}

func (s *Switcher) disable(p config.Profile) error {
	src := s.cfg.EnabledDir(p)
	exists, err := s.store.DirExists(src)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	dst := s.cfg.DisabledDir(p)
	if err := s.store.Rename(src, dst); err != nil {
		return &domain.RenameError{Source: src, Dest: dst, Err: err}
	}
	s.logger.Info("disabled profile directory", "profile", p.Name, "dir", dst)
	return nil
}

func (s *Switcher) enable(p config.Profile) error {
	dst := s.cfg.EnabledDir(p)
	exists, err := s.store.DirExists(dst)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	src := s.cfg.DisabledDir(p)
	if err := s.store.Rename(src, dst); err != nil {
		return &domain.RenameError{Source: src, Dest: dst, Err: err}
	}
	s.logger.Info("enabled profile directory", "profile", p.Name, "dir", dst)
	return nil
}

func (s *Switcher) rewriteConfigs(target config.Profile) error {
	for _, rule := range s.cfg.Rules {
		if _, err := s.rw.Apply(rule, s.cfg.Profiles, target); err != nil {
			return err
		}
	}
	if s.cfg.RetroarchFile != "" && len(target.Retroarch) > 0 {
		if _, err := s.rw.ApplyOverrides(s.cfg.RetroarchFile, target.Retroarch); err != nil {
			return err
		}
	}
	if s.cfg.SystemsFile != "" {
		if _, err := s.rw.PromoteSystem(s.cfg.SystemsFile, target.Name); err != nil {
			return err
		}
	}
	return nil
}
