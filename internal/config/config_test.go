package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// chdir switches to dir for the duration of the test and restores the
// original working directory on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadAppliesDefaultsWithNoFileOrEnv(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "refs/heads/gitbutler/workspace", cfg.Workspace.Ref)
	require.Equal(t, "./.vbranch/stacks.db", cfg.Store.Path)
	require.Equal(t, 3, cfg.Diff.ContextLines)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadHonorsEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("VBRANCH_DIFF_CONTEXTLINES", "7")
	t.Setenv("VBRANCH_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Diff.ContextLines)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := &Config{
		Workspace: WorkspaceConfig{Ref: ""},
		Diff:      DiffConfig{ContextLines: -1},
		Logging:   LoggingConfig{Level: "verbose", Format: "xml"},
	}
	err := validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "workspace.ref")
	require.Contains(t, err.Error(), "diff.contextLines")
	require.Contains(t, err.Error(), "logging.level")
	require.Contains(t, err.Error(), "logging.format")
}

func TestValidateAcceptsDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.NoError(t, validate(&cfg))
}
