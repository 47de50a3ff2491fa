// Package config loads dragboard settings from a YAML file, with
// DRAGBOARD_* environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/robby/dragboard/internal/drag"
	"github.com/robby/dragboard/internal/resolve"
)

// EnvPrefix prefixes every environment override, e.g. DRAGBOARD_LOG_LEVEL.
const EnvPrefix = "DRAGBOARD"

// Backend names.
const (
	BackendLocal  = "local"
	BackendGitHub = "github"
)

// StorageConfig locates the local SQLite database.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls the logrus logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// File receives log output while the TUI owns the terminal.
	File string `mapstructure:"file" yaml:"file"`
}

// DragConfig holds pointer gesture settings.
type DragConfig struct {
	// Threshold is the distance, in cells, a pressed pointer must travel
	// before a press becomes a drag.
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
}

// ResolverConfig holds drop target resolution settings.
type ResolverConfig struct {
	EdgeBand      float64       `mapstructure:"edge_band" yaml:"edge_band"`
	MaxScrollStep float64       `mapstructure:"max_scroll_step" yaml:"max_scroll_step"`
	StaleAfter    time.Duration `mapstructure:"stale_after" yaml:"stale_after"`
}

// ReorderConfig holds persistence settings.
type ReorderConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// GitHubConfig selects and reads a GitHub Projects v2 board.
type GitHubConfig struct {
	Owner      string `mapstructure:"owner" yaml:"owner"`
	Project    string `mapstructure:"project" yaml:"project"`
	GroupField string `mapstructure:"group_field" yaml:"group_field"`
	TokenEnv   string `mapstructure:"token_env" yaml:"token_env"`
}

// Config is the top-level application configuration.
type Config struct {
	Backend  string         `mapstructure:"backend" yaml:"backend"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Drag     DragConfig     `mapstructure:"drag" yaml:"drag"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Reorder  ReorderConfig  `mapstructure:"reorder" yaml:"reorder"`
	GitHub   GitHubConfig   `mapstructure:"github" yaml:"github"`
}

// DefaultConfigPath returns ~/.config/dragboard/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "dragboard", "config.yaml")
}

// DefaultDataPath returns ~/.local/share/dragboard/dragboard.db.
func DefaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "dragboard.db"
	}
	return filepath.Join(home, ".local", "share", "dragboard", "dragboard.db")
}

func setDefaults(v *viper.Viper) {
	d := drag.DefaultConfig()
	v.SetDefault("backend", BackendLocal)
	v.SetDefault("storage.path", DefaultDataPath())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("drag.threshold", d.Threshold)
	v.SetDefault("resolver.edge_band", d.Resolver.EdgeBand)
	v.SetDefault("resolver.max_scroll_step", d.Resolver.MaxScrollStep)
	v.SetDefault("resolver.stale_after", d.Resolver.StaleAfter)
	v.SetDefault("reorder.timeout", 10*time.Second)
	v.SetDefault("github.owner", "")
	v.SetDefault("github.project", "")
	v.SetDefault("github.group_field", "")
	v.SetDefault("github.token_env", "GITHUB_TOKEN")
}

// Load reads the YAML file at path. A missing file yields the defaults;
// environment overrides apply either way.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the engine cannot work with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal, BackendGitHub:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendLocal, BackendGitHub, c.Backend)
	}
	if c.Drag.Threshold < 0 {
		return fmt.Errorf("drag.threshold must not be negative")
	}
	if c.Resolver.EdgeBand < 0 || c.Resolver.MaxScrollStep < 0 {
		return fmt.Errorf("resolver.edge_band and resolver.max_scroll_step must not be negative")
	}
	if c.Reorder.Timeout <= 0 {
		return fmt.Errorf("reorder.timeout must be positive")
	}
	return nil
}

// DragSettings converts the drag and resolver sections for the controller.
func (c *Config) DragSettings() drag.Config {
	return drag.Config{
		Threshold: c.Drag.Threshold,
		Resolver: resolve.Config{
			EdgeBand:      c.Resolver.EdgeBand,
			MaxScrollStep: c.Resolver.MaxScrollStep,
			StaleAfter:    c.Resolver.StaleAfter,
		},
	}
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("backend", cfg.Backend)
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.file", cfg.Log.File)
	v.Set("drag.threshold", cfg.Drag.Threshold)
	v.Set("resolver.edge_band", cfg.Resolver.EdgeBand)
	v.Set("resolver.max_scroll_step", cfg.Resolver.MaxScrollStep)
	v.Set("resolver.stale_after", cfg.Resolver.StaleAfter.String())
	v.Set("reorder.timeout", cfg.Reorder.Timeout.String())
	v.Set("github.owner", cfg.GitHub.Owner)
	v.Set("github.project", cfg.GitHub.Project)
	v.Set("github.group_field", cfg.GitHub.GroupField)
	v.Set("github.token_env", cfg.GitHub.TokenEnv)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
