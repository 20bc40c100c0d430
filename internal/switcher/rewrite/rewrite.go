// Package rewrite patches the front-end configuration files that mark
// which profile is active: token substitution in settings and theme files,
// key updates in retroarch.cfg, and system ordering in es_systems.cfg.
package rewrite

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/joshsucher/nintardis/internal/switcher/config"
	"github.com/joshsucher/nintardis/internal/switcher/domain"
	"github.com/joshsucher/nintardis/internal/switcher/storage"
)

// BackupFunc is invoked with a file path right before its first
// modification in a run.
type BackupFunc func(path string) error

// Rewriter applies profile substitutions to configuration files in place.
type Rewriter struct {
	store  *storage.Storage
	backup BackupFunc
	logger *slog.Logger
}

// New creates a Rewriter. backup may be nil; a nil logger discards output.
func New(store *storage.Storage, backup BackupFunc, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Rewriter{store: store, backup: backup, logger: logger}
}

// Render fills a rule template with a profile's tokens.
func Render(template string, p config.Profile) string {
	r := strings.NewReplacer("{token}", p.Token, "{overlay}", p.Overlay)
	return r.Replace(template)
}

// Apply rewrites the file named by rule so that every occurrence of another
// profile's rendering becomes the target profile's rendering. It reports
// whether the file changed. A file that renders no known profile at all is
// an error: silently matching zero occurrences would leave the front-end
// pointing at the wrong system with exit code 0.
func (r *Rewriter) Apply(rule config.Rule, profiles []config.Profile, target config.Profile) (bool, error) {
	want := Render(rule.Template, target)
	if want == "" {
		return false, &domain.ConfigWriteError{
			Path: rule.Path,
			Err:  fmt.Errorf("template %q renders empty for profile %q", rule.Template, target.Name),
		}
	}

	data, err := r.store.ReadFile(rule.Path)
	if err != nil {
		return false, &domain.ConfigWriteError{Path: rule.Path, Err: err}
	}
	content := string(data)

	updated := content
	for _, p := range profiles {
		if p.Name == target.Name {
			continue
		}
		old := Render(rule.Template, p)
		if old == "" || old == want {
			continue
		}
		updated = strings.ReplaceAll(updated, old, want)
	}

	if updated == content {
		if !strings.Contains(content, want) {
			return false, &domain.ConfigWriteError{Path: rule.Path, Err: domain.ErrTokenNotFound}
		}
		r.logger.Debug("config already references target profile", "path", rule.Path, "profile", target.Name)
		return false, nil
	}

	if err := r.write(rule.Path, []byte(updated)); err != nil {
		return false, err
	}
	r.logger.Info("rewrote config tokens", "path", rule.Path, "profile", target.Name)
	return true, nil
}

// ApplyOverrides updates `key = value` lines in a RetroArch-style config.
// Keys already present are rewritten in place; missing keys are appended in
// sorted order. Lines without an assignment are left untouched.
func (r *Rewriter) ApplyOverrides(path string, overrides map[string]string) (bool, error) {
	if len(overrides) == 0 {
		return false, nil
	}

	data, err := r.store.ReadFile(path)
	if err != nil {
		return false, &domain.ConfigWriteError{Path: path, Err: err}
	}

	content := string(data)
	trailingNewline := strings.HasSuffix(content, "\n")
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")

	pending := make(map[string]string, len(overrides))
	for k, v := range overrides {
		pending[k] = v
	}

	for i, line := range lines {
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value, ok := pending[key]
		if !ok {
			continue
		}
		lines[i] = key + " = " + value
		delete(pending, key)
	}

	missing := make([]string, 0, len(pending))
	for k := range pending {
		missing = append(missing, k)
	}
	sort.Strings(missing)
	for _, k := range missing {
		lines = append(lines, k+" = "+pending[k])
	}

	updated := strings.Join(lines, "\n")
	if trailingNewline || len(missing) > 0 {
		updated += "\n"
	}
	if updated == content {
		return false, nil
	}

	if err := r.write(path, []byte(updated)); err != nil {
		return false, err
	}
	r.logger.Info("applied retroarch overrides", "path", path, "keys", len(overrides))
	return true, nil
}

var systemBlockPattern = regexp.MustCompile(`(?s)<system>.*?</system>`)

// PromoteSystem moves the <system> block whose <name> matches the profile
// to the front of the system list, so the front-end lists the active system
// first. Absent files, absent entries, and already-first entries are
// no-ops.
func (r *Rewriter) PromoteSystem(path, name string) (bool, error) {
	exists, err := r.store.Exists(path)
	if err != nil {
		return false, &domain.ConfigWriteError{Path: path, Err: err}
	}
	if !exists {
		r.logger.Debug("systems file absent, skipping promotion", "path", path)
		return false, nil
	}

	data, err := r.store.ReadFile(path)
	if err != nil {
		return false, &domain.ConfigWriteError{Path: path, Err: err}
	}
	content := string(data)

	namePattern, err := regexp.Compile(`<name>\s*` + regexp.QuoteMeta(name) + `\s*</name>`)
	if err != nil {
		return false, &domain.ConfigWriteError{Path: path, Err: err}
	}

	blocks := systemBlockPattern.FindAllStringIndex(content, -1)
	target := -1
	for i, b := range blocks {
		if namePattern.MatchString(content[b[0]:b[1]]) {
			target = i
			break
		}
	}
	if target <= 0 {
		// Not present, or already the first system.
		return false, nil
	}

	block := content[blocks[target][0]:blocks[target][1]]
	without := content[:blocks[target][0]] + content[blocks[target][1]:]
	insertAt := blocks[0][0]
	updated := without[:insertAt] + block + "\n\t" + without[insertAt:]

	if err := r.write(path, []byte(updated)); err != nil {
		return false, err
	}
	r.logger.Info("promoted system to front of list", "path", path, "system", name)
	return true, nil
}

func (r *Rewriter) write(path string, data []byte) error {
	if r.backup != nil {
		if err := r.backup(path); err != nil {
			return &domain.ConfigWriteError{Path: path, Err: fmt.Errorf("backup before rewrite: %w", err)}
		}
	}
	if err := r.store.WriteFileAtomic(path, data); err != nil {
		return &domain.ConfigWriteError{Path: path, Err: err}
	}
	return nil
}
