package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Profile describes one of the two switchable systems.
type Profile struct {
	// Name is the profile identifier and the canonical ROM directory name.
	Name string `mapstructure:"name"`
	// Token is the string embedded in config files for this profile.
	Token string `mapstructure:"token"`
	// Overlay is the theme overlay asset filename for this profile.
	Overlay string `mapstructure:"overlay"`
	// Retroarch holds optional retroarch.cfg settings applied when this
	// profile is activated.
	Retroarch map[string]string `mapstructure:"retroarch"`
}

// Rule names a config file and the token-parameterized substring rewritten
// on every switch. Templates may reference {token} and {overlay}.
type Rule struct {
	Path     string `mapstructure:"path"`
	Template string `mapstructure:"template"`
}

// Config is the full switcher configuration.
type Config struct {
	RomsDir        string    `mapstructure:"roms_dir"`
	DisabledSuffix string    `mapstructure:"disabled_suffix"`
	StateDir       string    `mapstructure:"state_dir"`
	SystemsFile    string    `mapstructure:"systems_file"`
	RetroarchFile  string    `mapstructure:"retroarch_file"`
	Profiles       []Profile `mapstructure:"profiles"`
	Rules          []Rule    `mapstructure:"rules"`
}

// Default returns the configuration matching the stock RetroPie layout the
// device ships with.
func Default() Config {
	return Config{
		RomsDir:        "/home/pi/RetroPie/roms",
		DisabledSuffix: "_disabled",
		StateDir:       "/home/pi/.nintardis",
		SystemsFile:    "/opt/retropie/configs/all/emulationstation/es_systems.cfg",
		RetroarchFile:  "/opt/retropie/configs/all/retroarch.cfg",
		Profiles: []Profile{
			{Name: "gb", Token: "gb", Overlay: "gb_overlay.png"},
			{Name: "nes", Token: "nes", Overlay: "nes_overlay.png"},
		},
		Rules: []Rule{
			{
				Path:     "/home/pi/.emulationstation/es_settings.cfg",
				Template: `value="{token}"`,
			},
			{
				Path:     "/etc/emulationstation/themes/es-theme-ssimple-ve/theme.xml",
				Template: "{overlay}",
			},
		},
	}
}

// Load reads the configuration from path, or from the default search paths
// when path is empty. A missing file in the search paths is not an error;
// the defaults apply.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nintardis")
		v.AddConfigPath("/etc/nintardis")
		v.AddConfigPath("$HOME/.config/nintardis")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the mutual-exclusion constraints of the profile set.
func (c Config) Validate() error {
	if c.RomsDir == "" {
		return errors.New("roms_dir cannot be empty")
	}
	if c.DisabledSuffix == "" {
		return errors.New("disabled_suffix cannot be empty")
	}
	if len(c.Profiles) != 2 {
		return fmt.Errorf("profile set must contain exactly two profiles, got %d", len(c.Profiles))
	}
	seen := map[string]struct{}{}
	tokens := map[string]struct{}{}
	for _, p := range c.Profiles {
		if p.Name == "" {
			return errors.New("profile name cannot be empty")
		}
		if p.Token == "" {
			return fmt.Errorf("profile %q has no token", p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("duplicate profile name %q", p.Name)
		}
		if _, dup := tokens[p.Token]; dup {
			return fmt.Errorf("duplicate profile token %q", p.Token)
		}
		seen[p.Name] = struct{}{}
		tokens[p.Token] = struct{}{}
	}
	for _, r := range c.Rules {
		if r.Path == "" || r.Template == "" {
			return errors.New("every rule needs a path and a template")
		}
	}
	return nil
}

// Find returns the profile with the given name.
func (c Config) Find(name string) (Profile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Other returns the profile that is not the named one.
func (c Config) Other(name string) Profile {
	for _, p := range c.Profiles {
		if p.Name != name {
			return p
		}
	}
	return Profile{}
}

// Names returns the profile names in configuration order.
func (c Config) Names() []string {
	names := make([]string, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		names = append(names, p.Name)
	}
	return names
}

// EnabledDir returns the canonical ROM directory for a profile.
func (c Config) EnabledDir(p Profile) string {
	return filepath.Join(c.RomsDir, p.Name)
}

// DisabledDir returns the disabled-suffix ROM directory for a profile.
func (c Config) DisabledDir(p Profile) string {
	return filepath.Join(c.RomsDir, p.Name+c.DisabledSuffix)
}

// BackupDir returns the directory where config backups are stored.
func (c Config) BackupDir() string {
	return filepath.Join(c.StateDir, "backups")
}

// LockPath returns the lock file guarding the switch sequence.
func (c Config) LockPath() string {
	return filepath.Join(c.StateDir, "switch.lock")
}
