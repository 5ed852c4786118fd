package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultBranch          = "unpublished"
	DefaultPublishedBranch = "published"
	DefaultRemote          = "origin"
	DefaultPushDelay       = 15 * time.Second
	DefaultTickInterval    = 5 * time.Second
	DefaultPushAttempts    = 3
)

// Settings holds the process configuration read from the TOML settings file.
type Settings struct {
	RepoDir         string   `toml:"repo_dir"`
	Branch          string   `toml:"branch"`
	PublishedBranch string   `toml:"published_branch"`
	Remote          string   `toml:"remote"`
	CommitEnabled   bool     `toml:"commit_enabled"`
	SyncEnabled     bool     `toml:"sync_enabled"`
	PushDelay       Duration `toml:"push_delay"`
	TickInterval    Duration `toml:"tick_interval"`
	PushAttempts    int      `toml:"push_attempts"`
	Exclude         []string `toml:"exclude"`
	MetricsAddr     string   `toml:"metrics_addr"`
	Log             Log      `toml:"log"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// Duration lets durations be written as strings ("15s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the settings used when no settings file exists.
func Defaults() Settings {
	return Settings{
		RepoDir:         ".",
		Branch:          DefaultBranch,
		PublishedBranch: DefaultPublishedBranch,
		Remote:          DefaultRemote,
		CommitEnabled:   true,
		SyncEnabled:     true,
		PushDelay:       Duration{DefaultPushDelay},
		TickInterval:    Duration{DefaultTickInterval},
		PushAttempts:    DefaultPushAttempts,
		Log:             Log{Level: "info", Format: "console"},
	}
}

// Load reads the settings file at path over the defaults and applies environment
// overrides. A missing file is not an error.
func Load(path string) (Settings, error) {
	settings := Defaults()

	if path == "" {
		path = GetSettingsPath()
	}

	//nolint:gosec // G304: settings path is operator controlled
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &settings); err != nil {
			return Settings{}, fmt.Errorf("failed to parse settings %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Settings{}, fmt.Errorf("failed to read settings %s: %w", path, err)
	}

	if repo := os.Getenv("TEXTREPO_REPO_DIR"); repo != "" {
		settings.RepoDir = repo
	}
	if branch := os.Getenv("TEXTREPO_BRANCH"); branch != "" {
		settings.Branch = branch
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Validate checks that the settings are usable.
func (s Settings) Validate() error {
	if s.RepoDir == "" {
		return errors.New("repo_dir must not be empty")
	}
	if s.Branch == "" {
		return errors.New("branch must not be empty")
	}
	if s.PushDelay.Duration <= 0 {
		return fmt.Errorf("push_delay must be positive, got %v", s.PushDelay.Duration)
	}
	if s.TickInterval.Duration <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", s.TickInterval.Duration)
	}
	if s.PushAttempts <= 0 {
		return fmt.Errorf("push_attempts must be positive, got %d", s.PushAttempts)
	}
	for _, pattern := range s.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return nil
}
