package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

type stubPrompter struct {
	selects  []selectResponse
	confirms []confirmResponse

	selectCalls  int
	confirmCalls int
}

type selectResponse struct {
	index int
	value string
	err   error
}

type confirmResponse struct {
	value bool
	err   error
}

var errStubNoMore = errors.New("stub prompter: no more responses")

func (s *stubPrompter) Select(label string, items []string, defaultValue string) (int, string, error) {
	if s.selectCalls >= len(s.selects) {
		return 0, "", errStubNoMore
	}
	resp := s.selects[s.selectCalls]
	s.selectCalls++
	return resp.index, resp.value, resp.err
}

func (s *stubPrompter) Confirm(label string, defaultYes bool) (bool, error) {
	if s.confirmCalls >= len(s.confirms) {
		return false, errStubNoMore
	}
	resp := s.confirms[s.confirmCalls]
	s.confirmCalls++
	return resp.value, resp.err
}

const testConfigYAML = `roms_dir: /roms
disabled_suffix: _disabled
state_dir: /state
systems_file: ""
retroarch_file: ""
rules:
  - path: /cfg/es_settings.cfg
    template: value="{token}"
  - path: /cfg/theme.xml
    template: "{overlay}"
profiles:
  - name: gb
    token: gb
    overlay: gb_overlay.png
  - name: nes
    token: nes
    overlay: nes_overlay.png
`

func newTestFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/nintardis.yaml", []byte(testConfigYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := fs.MkdirAll("/roms/gb", 0o755); err != nil {
		t.Fatalf("mkdir gb: %v", err)
	}
	if err := fs.MkdirAll("/roms/nes_disabled", 0o755); err != nil {
		t.Fatalf("mkdir nes_disabled: %v", err)
	}
	if err := afero.WriteFile(fs, "/cfg/es_settings.cfg", []byte(`<string name="StartupSystem" value="gb" />`), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	if err := afero.WriteFile(fs, "/cfg/theme.xml", []byte("<path>./art/gb_overlay.png</path>"), 0o644); err != nil {
		t.Fatalf("write theme: %v", err)
	}
	return fs
}

func runCommand(t *testing.T, fs afero.Fs, prompter Prompter, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand(fs, prompter, stdout, stderr)
	cmd.SetArgs(append(args, "--config", "/nintardis.yaml"))
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestActivateCommandWithArgument(t *testing.T) {
	fs := newTestFs(t)
	stdout, _, err := runCommand(t, fs, &stubPrompter{}, "activate", "nes")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !strings.Contains(stdout, "Activated profile: nes") {
		t.Fatalf("unexpected output: %s", stdout)
	}

	exists, err := afero.DirExists(fs, "/roms/nes")
	if err != nil || !exists {
		t.Fatalf("nes directory not enabled: exists=%v err=%v", exists, err)
	}
	data, err := afero.ReadFile(fs, "/cfg/es_settings.cfg")
	if err != nil {
		t.Fatalf("read settings: %v", err)
	}
	if !strings.Contains(string(data), `value="nes"`) {
		t.Fatalf("settings not rewritten: %s", data)
	}
}

func TestActivateCommandInteractiveSelect(t *testing.T) {
	fs := newTestFs(t)
	prompter := &stubPrompter{
		selects: []selectResponse{{index: 1, value: "nes"}},
	}
	stdout, _, err := runCommand(t, fs, prompter, "activate")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if prompter.selectCalls != 1 {
		t.Fatalf("expected one select prompt, got %d", prompter.selectCalls)
	}
	if !strings.Contains(stdout, "Activated profile: nes") {
		t.Fatalf("unexpected output: %s", stdout)
	}
}

func TestActivateCommandSelectCancelled(t *testing.T) {
	fs := newTestFs(t)
	prompter := &stubPrompter{
		selects: []selectResponse{{err: ErrPromptCancelled}},
	}
	_, _, err := runCommand(t, fs, prompter, "activate")
	if !errors.Is(err, ErrPromptCancelled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
}

func TestActivateCommandUnknownProfile(t *testing.T) {
	fs := newTestFs(t)
	_, _, err := runCommand(t, fs, &stubPrompter{}, "activate", "snes")
	if err == nil {
		t.Fatalf("expected error for unknown profile")
	}
}

func TestToggleCommand(t *testing.T) {
	fs := newTestFs(t)
	stdout, _, err := runCommand(t, fs, &stubPrompter{}, "toggle")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !strings.Contains(stdout, "Activated profile: nes") {
		t.Fatalf("unexpected output: %s", stdout)
	}

	stdout, _, err = runCommand(t, fs, &stubPrompter{}, "toggle")
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if !strings.Contains(stdout, "Activated profile: gb") {
		t.Fatalf("unexpected output: %s", stdout)
	}
}

func TestStatusCommand(t *testing.T) {
	fs := newTestFs(t)
	stdout, _, err := runCommand(t, fs, &stubPrompter{}, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(stdout, "* [gb] (active") {
		t.Fatalf("expected active gb line, got: %s", stdout)
	}
	if !strings.Contains(stdout, "[nes] (disabled") {
		t.Fatalf("expected disabled nes line, got: %s", stdout)
	}
}

func TestPruneCommandForce(t *testing.T) {
	fs := newTestFs(t)
	old := time.Now().Add(-90 * 24 * time.Hour)
	if err := afero.WriteFile(fs, "/state/backups/stale.cfg", []byte("x"), 0o644); err != nil {
		t.Fatalf("write backup: %v", err)
	}
	if err := fs.Chtimes("/state/backups/stale.cfg", old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	stdout, _, err := runCommand(t, fs, &stubPrompter{}, "prune-backups", "--older-than", "30d", "--force")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(stdout, "Deleted 1 backup(s).") {
		t.Fatalf("unexpected output: %s", stdout)
	}
}

func TestPruneCommandDeclined(t *testing.T) {
	fs := newTestFs(t)
	prompter := &stubPrompter{confirms: []confirmResponse{{value: false}}}
	stdout, _, err := runCommand(t, fs, prompter, "prune-backups")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(stdout, "Prune cancelled.") {
		t.Fatalf("unexpected output: %s", stdout)
	}
}

func TestParseHumanDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"12h", 12 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"45s", 45 * time.Second, false},
		{" 7D ", 7 * 24 * time.Hour, false},
		{"", 0, true},
		{"-1d", 0, true},
		{"5x", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseHumanDuration(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("parse %q: expected %v, got %v", tt.input, tt.want, got)
			}
		})
	}
}

func TestRootCommandListsSubcommands(t *testing.T) {
	cmd := NewRootCommand(afero.NewMemMapFs(), &stubPrompter{}, &bytes.Buffer{}, &bytes.Buffer{})
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"activate", "toggle", "status", "prune-backups"} {
		if !names[want] {
			t.Fatalf("missing subcommand %q", want)
		}
	}
}
