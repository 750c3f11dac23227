package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chmouel/lazybranch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockGitConfig(t *testing.T, global, local string) {
	t.Helper()
	prev := gitConfigMock
	gitConfigMock = func(args []string, _ string) (string, error) {
		for _, a := range args {
			if a == "--global" {
				return global, nil
			}
		}
		return local, nil
	}
	t.Cleanup(func() { gitConfigMock = prev })
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, []string{"main", "dev"}, cfg.ProtectedBranches)
	assert.Equal(t, "origin", cfg.Remote)
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeout())
	assert.Equal(t, 100*time.Millisecond, cfg.ConfirmPollInterval())
	assert.Equal(t, 50, cfg.SubjectMaxLength)
	assert.True(t, cfg.AutoRefresh)
	assert.True(t, cfg.ConfirmBatch)
	assert.Equal(t, models.FilterAll, cfg.DefaultFilter)
	assert.Equal(t, SortByName, cfg.SortMode)
	assert.Empty(t, cfg.DebugLog)
}

func TestNormalizeList(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected []string
	}{
		{name: "nil input", input: nil, expected: []string{}},
		{name: "empty string", input: "", expected: []string{}},
		{name: "comma separated", input: "main, develop,release", expected: []string{"main", "develop", "release"}},
		{name: "space separated", input: "main  trunk", expected: []string{"main", "trunk"}},
		{name: "list", input: []any{"main", "", nil, " dev "}, expected: []string{"main", "dev"}},
		{name: "unsupported type", input: 42, expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeList(tt.input))
		})
	}
}

func TestCoerceHelpers(t *testing.T) {
	assert.True(t, coerceBool("yes", false))
	assert.False(t, coerceBool("off", true))
	assert.True(t, coerceBool("maybe", true))
	assert.False(t, coerceBool(0, true))
	assert.Equal(t, 12, coerceInt("12", 1))
	assert.Equal(t, 1, coerceInt("twelve", 1))
	assert.Equal(t, 1, coerceInt(true, 1))
	assert.Equal(t, 7, coerceInt(7, 1))
}

func TestParseConfig(t *testing.T) {
	cfg := parseConfig(map[string]any{
		"protected_branches":       []any{"main", "release"},
		"remote":                   "upstream",
		"confirm_timeout":          10,
		"confirm_poll_interval_ms": "50",
		"subject_max_length":       "72",
		"auto_refresh":             false,
		"confirm_batch":            "no",
		"default_filter":           "Merged",
		"sort_mode":                "DATE",
		"theme":                    "nord",
		"debug_log":                " /tmp/lb.log ",
	})

	assert.Equal(t, []string{"main", "release"}, cfg.ProtectedBranches)
	assert.Equal(t, "upstream", cfg.Remote)
	assert.Equal(t, 10*time.Second, cfg.ConfirmTimeout())
	assert.Equal(t, 50*time.Millisecond, cfg.ConfirmPollInterval())
	assert.Equal(t, 72, cfg.SubjectMaxLength)
	assert.False(t, cfg.AutoRefresh)
	assert.False(t, cfg.ConfirmBatch)
	assert.Equal(t, models.FilterMerged, cfg.DefaultFilter)
	assert.Equal(t, SortByDate, cfg.SortMode)
	assert.Equal(t, "nord", cfg.Theme)
	assert.Equal(t, "/tmp/lb.log", cfg.DebugLog)
}

func TestParseConfigRejectsInvalidValues(t *testing.T) {
	cfg := parseConfig(map[string]any{
		"protected_branches": "",
		"remote":             "  ",
		"confirm_timeout":    -5,
		"subject_max_length": 0,
		"default_filter":     "everything",
		"sort_mode":          "random",
		"theme":              "unknown-theme",
	})

	def := DefaultConfig()
	assert.Equal(t, def.ProtectedBranches, cfg.ProtectedBranches)
	assert.Equal(t, def.Remote, cfg.Remote)
	assert.Equal(t, def.ConfirmTimeoutSeconds, cfg.ConfirmTimeoutSeconds)
	assert.Equal(t, def.SubjectMaxLength, cfg.SubjectMaxLength)
	assert.Equal(t, models.FilterAll, cfg.DefaultFilter)
	assert.Equal(t, SortByName, cfg.SortMode)
	assert.Empty(t, cfg.Theme)
}

func TestLoadConfigLayers(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	dir := filepath.Join(configHome, "lazybranch")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(
		"remote: fork\nsubject_max_length: 40\ntheme: dracula\nprotected_branches:\n  - main\n  - staging\n",
	), 0o600))

	mockGitConfig(t, "lb.subject_max_length 60\n", "lb.remote upstream\n")

	cfg, err := LoadConfig("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "staging"}, cfg.ProtectedBranches)
	assert.Equal(t, 60, cfg.SubjectMaxLength, "global git config overrides the file")
	assert.Equal(t, "upstream", cfg.Remote, "local git config overrides global")
	assert.Equal(t, "dracula", cfg.Theme)
}

func TestLoadConfigRejectsPathOutsideConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	mockGitConfig(t, "", "")

	outside := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(outside, []byte("remote: x\n"), 0o600))

	cfg, err := LoadConfig(outside, "")
	require.Error(t, err)
	assert.Equal(t, "origin", cfg.Remote)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	mockGitConfig(t, "", "")
	dir := filepath.Join(configHome, "lazybranch")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("remote: [unterminated\n"), 0o600))

	_, err := LoadConfig("", "")
	require.Error(t, err)
}

func TestApplyCLIOverrides(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyCLIOverrides([]string{
		"lb.protected_branches=main",
		"lb.protected_branches=trunk",
		"lb.confirm_timeout=5",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "trunk"}, cfg.ProtectedBranches)
	assert.Equal(t, 5*time.Second, cfg.ConfirmTimeout())

	require.Error(t, cfg.ApplyCLIOverrides([]string{"remote=origin"}))
	require.Error(t, cfg.ApplyCLIOverrides([]string{"lb.remote"}))
	require.Error(t, cfg.ApplyCLIOverrides([]string{"lb.=x"}))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("LB_TEST_DIR", "/var/tmp")

	got, err := ExpandPath("~/logs/lb.log")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs/lb.log"), got)

	got, err = ExpandPath("$LB_TEST_DIR/lb.log")
	require.NoError(t, err)
	assert.Equal(t, "/var/tmp/lb.log", got)
}

func TestIsPathWithin(t *testing.T) {
	assert.True(t, isPathWithin("/a/b", "/a/b/c.yaml"))
	assert.True(t, isPathWithin("/a/b", "/a/b"))
	assert.False(t, isPathWithin("/a/b", "/a/bc/c.yaml"))
	assert.False(t, isPathWithin("/a/b", "/a"))
}
