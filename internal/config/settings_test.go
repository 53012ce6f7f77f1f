package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetKoanf(t *testing.T) {
	t.Helper()
	orig := K
	t.Cleanup(func() { K = orig })
	K = koanf.New(".")
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, 6, s.Update.CopyAttempts)
	assert.Equal(t, 5*time.Second, s.Update.CopyRetryDelay)
	assert.Equal(t, 60*time.Second, s.Update.HostExitTimeout)
	assert.Equal(t, time.Second, s.Update.PollInterval)
	assert.Equal(t, 3*time.Second, s.Update.ExitGraceDelay)
	assert.False(t, s.Feed.AllowPrerelease)

	// The compatibility table is ordered and stable.
	require.Len(t, s.Targets, 3)
	assert.Equal(t, "vektra-2023", s.Targets[0].ID)
	assert.Equal(t, "2023", s.Targets[0].CompatibilityTag)
	assert.Equal(t, "vektra-2025", s.Targets[2].ID)
}

func TestResolve_ConfigFileOverridesDefaults(t *testing.T) {
	resetKoanf(t)

	cfgPath := filepath.Join(t.TempDir(), "stampkit.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
feed:
  url: https://releases.example.com/latest
  allow_prerelease: true
update:
  copy_attempts: 2
`), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	LoadConfig(flags, cfgPath)

	s, err := Resolve()
	require.NoError(t, err)
	assert.Equal(t, "https://releases.example.com/latest", s.Feed.URL)
	assert.True(t, s.Feed.AllowPrerelease)
	assert.Equal(t, 2, s.Update.CopyAttempts)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5*time.Second, s.Update.CopyRetryDelay)
}

func TestResolve_EnvOverrides(t *testing.T) {
	resetKoanf(t)
	t.Setenv("STAMPKIT_FEED_URL", "https://env.example.com/latest")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	LoadConfig(flags, "")

	s, err := Resolve()
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/latest", s.Feed.URL)
}

func TestResolve_ExpandsTargetRoots(t *testing.T) {
	resetKoanf(t)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	LoadConfig(flags, "")

	s, err := Resolve()
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	for _, target := range s.Targets {
		assert.True(t, filepath.IsAbs(target.RootPath))
		assert.Contains(t, target.RootPath, home)
	}
}
