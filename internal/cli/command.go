package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/joshsucher/nintardis/internal/switcher"
	"github.com/joshsucher/nintardis/internal/switcher/config"
)

// App carries the dependencies and persistent flags shared by all
// commands.
type App struct {
	fs       afero.Fs
	prompter Prompter
	stdout   io.Writer
	stderr   io.Writer

	configPath string
	verbose    bool
}

// NewRootCommand constructs the root Cobra command for nintardis.
func NewRootCommand(fs afero.Fs, prompter Prompter, stdout, stderr io.Writer) *cobra.Command {
	app := &App{fs: fs, prompter: prompter, stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "nintardis",
		Short: "RetroPie system profile switcher",
		Long:  "nintardis toggles the console between its two emulated systems by swapping ROM directories and patching the front-end configuration.",
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().StringVar(&app.configPath, "config", "", "Path to the switcher config file")
	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(newActivateCommand(app))
	cmd.AddCommand(newToggleCommand(app))
	cmd.AddCommand(newStatusCommand(app))
	cmd.AddCommand(newPruneCommand(app))

	return cmd
}

func (a *App) newSwitcher() (*switcher.Switcher, error) {
	cfg, err := config.Load(a.fs, a.configPath)
	if err != nil {
		return nil, err
	}
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	return switcher.New(a.fs, cfg, logger), nil
}

func newActivateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "activate [profile]",
		Short: "Make the named profile the active system",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sw, err := app.newSwitcher()
			if err != nil {
				return err
			}

			var name string
			if len(args) == 1 {
				name = strings.TrimSpace(args[0])
			} else {
				names := sw.Config().Names()
				current := activeName(sw)
				_, selected, err := app.prompter.Select("Select profile to activate", names, current)
				if err != nil {
					return err
				}
				name = selected
			}

			if err := sw.Activate(name); err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Activated profile: %s\n", name)
			return nil
		},
	}
}

func newToggleCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Switch to whichever profile is not currently active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sw, err := app.newSwitcher()
			if err != nil {
				return err
			}
			name, err := sw.Toggle()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Activated profile: %s\n", name)
			return nil
		},
	}
}

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which profile is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sw, err := app.newSwitcher()
			if err != nil {
				return err
			}
			statuses, err := sw.Status()
			if err != nil {
				return err
			}
			for _, ps := range statuses {
				prefix := " "
				qualifiers := []string{string(ps.State)}
				switch ps.State {
				case switcher.StateEnabled:
					prefix = "*"
					qualifiers[0] = "active"
				case switcher.StateConflict, switcher.StateMissing:
					prefix = "!"
				}
				if len(ps.ConfigPath) > 0 {
					qualifiers = append(qualifiers, fmt.Sprintf("referenced by %d config file(s)", len(ps.ConfigPath)))
				}
				fmt.Fprintf(app.stdout, "%s [%s] (%s)\n", prefix, ps.Name, strings.Join(qualifiers, ", "))
			}
			return nil
		},
	}
}

func newPruneCommand(app *App) *cobra.Command {
	var olderThanStr string
	var force bool

	cmd := &cobra.Command{
		Use:   "prune-backups",
		Short: "Remove outdated config backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			sw, err := app.newSwitcher()
			if err != nil {
				return err
			}

			duration, err := parseHumanDuration(olderThanStr)
			if err != nil {
				return err
			}

			if !force {
				confirm, err := app.prompter.Confirm(fmt.Sprintf("Delete backups older than %s? (y/N)", olderThanStr), false)
				if err != nil {
					return err
				}
				if !confirm {
					fmt.Fprintln(app.stdout, "Prune cancelled.")
					return nil
				}
			}

			count, err := sw.Backups().Prune(duration)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Deleted %d backup(s).\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&olderThanStr, "older-than", "30d", "Delete backups older than the specified duration (e.g. 30d, 12h)")
	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")

	return cmd
}

// activeName returns the name of the currently enabled profile, or "" when
// none is unambiguously active. Used only to preselect the prompt cursor.
func activeName(sw *switcher.Switcher) string {
	statuses, err := sw.Status()
	if err != nil {
		return ""
	}
	for _, ps := range statuses {
		if ps.Active() {
			return ps.Name
		}
	}
	return ""
}

func parseHumanDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return 0, errors.New("duration cannot be empty")
	}
	if strings.HasSuffix(value, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(value, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day duration: %w", err)
		}
		if days < 0 {
			return 0, fmt.Errorf("invalid day duration: %d", days)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	if strings.HasSuffix(value, "h") || strings.HasSuffix(value, "m") || strings.HasSuffix(value, "s") {
		dur, err := time.ParseDuration(value)
		if err != nil {
			return 0, err
		}
		if dur < 0 {
			return 0, errors.New("duration cannot be negative")
		}
		return dur, nil
	}
	return 0, fmt.Errorf("unsupported duration format: %s", value)
}
