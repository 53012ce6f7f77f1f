package config

import (
	"time"

	"github.com/draftware/stampkit/internal/constants"
	"github.com/draftware/stampkit/internal/utils/path"
)

// FeedSettings configures the release feed check.
type FeedSettings struct {
	URL             string        `koanf:"url"`
	AllowPrerelease bool          `koanf:"allow_prerelease"`
	Timeout         time.Duration `koanf:"timeout"`
}

// UpdateSettings holds the retry and wait tuning for the update flow. The
// defaults are the values the deployed plugin has been running with; they are
// configurable mostly for tests and for site-specific lock behavior.
type UpdateSettings struct {
	CopyAttempts    int           `koanf:"copy_attempts"`
	CopyRetryDelay  time.Duration `koanf:"copy_retry_delay"`
	HostExitTimeout time.Duration `koanf:"host_exit_timeout"`
	PollInterval    time.Duration `koanf:"poll_interval"`
	ExitGraceDelay  time.Duration `koanf:"exit_grace_delay"`
	ScratchDir      string        `koanf:"scratch_dir"`
}

// LogSettings configures the shared rotating log sink.
type LogSettings struct {
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

// TargetSettings is one entry of the host compatibility table: a versioned
// Vektra installation the plugin files are deployed into.
type TargetSettings struct {
	ID                   string   `koanf:"id"`
	RootPath             string   `koanf:"root_path"`
	CompatibilityTag     string   `koanf:"compatibility_tag"`
	RequiredFiles        []string `koanf:"required_files"`
	ManifestTemplatePath string   `koanf:"manifest_template_path"`
}

// Settings is the full launcher configuration.
type Settings struct {
	Feed    FeedSettings     `koanf:"feed"`
	Update  UpdateSettings   `koanf:"update"`
	Log     LogSettings      `koanf:"log"`
	Targets []TargetSettings `koanf:"targets"`
}

// DefaultSettings returns the built-in configuration, including the fixed
// compatibility table of supported Vektra releases.
func DefaultSettings() Settings {
	return Settings{
		Feed: FeedSettings{
			URL:     constants.DefaultFeedURL,
			Timeout: 30 * time.Second,
		},
		Update: UpdateSettings{
			CopyAttempts:    6,
			CopyRetryDelay:  5 * time.Second,
			HostExitTimeout: 60 * time.Second,
			PollInterval:    1 * time.Second,
			ExitGraceDelay:  3 * time.Second,
		},
		Log: LogSettings{
			File:       "~/.stampkit/logs/updater.log",
			MaxSizeMB:  5,
			MaxBackups: 3,
		},
		Targets: defaultTargets(),
	}
}

// defaultTargets is the static compatibility table. Order matters: targets
// are deployed in this order so results and logs stay reproducible.
func defaultTargets() []TargetSettings {
	table := []TargetSettings{}
	for _, year := range []string{"2023", "2024", "2025"} {
		table = append(table, TargetSettings{
			ID:                   "vektra-" + year,
			RootPath:             "~/Vektra CAD " + year + "/Addins",
			CompatibilityTag:     year,
			RequiredFiles:        []string{"stampkit.dll", "stampkit.deps.json"},
			ManifestTemplatePath: "stampkit.addin.tmpl",
		})
	}
	return table
}

// Resolve unmarshals the loaded koanf state over the defaults and expands
// any ~-prefixed paths. Call after LoadConfig.
func Resolve() (Settings, error) {
	s := DefaultSettings()
	if err := K.Unmarshal("", &s); err != nil {
		return s, err
	}

	expanded, err := path.ExpandPath(s.Log.File)
	if err == nil {
		s.Log.File = expanded
	}
	for i := range s.Targets {
		expanded, err := path.ExpandPath(s.Targets[i].RootPath)
		if err != nil {
			continue
		}
		s.Targets[i].RootPath = expanded
	}
	return s, nil
}
