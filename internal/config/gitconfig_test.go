package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGitConfigOutput(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected map[string][]string
	}{
		{
			name: "single values",
			output: `lb.remote upstream
lb.auto_refresh false
lb.theme dracula`,
			expected: map[string][]string{
				"remote":       {"upstream"},
				"auto_refresh": {"false"},
				"theme":        {"dracula"},
			},
		},
		{
			name: "multi-value keys",
			output: `lb.protected_branches main
lb.protected_branches release
lb.remote origin`,
			expected: map[string][]string{
				"protected_branches": {"main", "release"},
				"remote":             {"origin"},
			},
		},
		{
			name:     "values with spaces",
			output:   `lb.debug_log /tmp/my logs/lb.log`,
			expected: map[string][]string{"debug_log": {"/tmp/my logs/lb.log"}},
		},
		{name: "empty output", output: "", expected: map[string][]string{}},
		{name: "whitespace only", output: "   \n\n  ", expected: map[string][]string{}},
		{
			name:     "line without value is ignored",
			output:   "lb.remote\nlb.theme nord\n",
			expected: map[string][]string{"theme": {"nord"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseGitConfigOutput(tt.output))
		})
	}
}

func TestConvertGitConfigToParseConfig(t *testing.T) {
	result := convertGitConfigToParseConfig(map[string][]string{
		"remote":             {"origin"},
		"protected_branches": {"main", "dev"},
		"empty":              {},
	})

	assert.Equal(t, "origin", result["remote"])
	assert.Equal(t, []any{"main", "dev"}, result["protected_branches"])
	assert.NotContains(t, result, "empty")
}

func TestLoadGitConfigScopes(t *testing.T) {
	var seen [][]string
	prev := gitConfigMock
	gitConfigMock = func(args []string, _ string) (string, error) {
		seen = append(seen, args)
		return "lb.remote fork\n", nil
	}
	t.Cleanup(func() { gitConfigMock = prev })

	data, err := loadGitConfig(true, "")
	require.NoError(t, err)
	assert.Equal(t, "fork", data["remote"])

	_, err = loadGitConfig(false, "/repo")
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Contains(t, seen[0], "--global")
	assert.Contains(t, seen[1], "--local")
}

func TestLoadGitConfigError(t *testing.T) {
	prev := gitConfigMock
	gitConfigMock = func([]string, string) (string, error) {
		return "", errors.New("boom")
	}
	t.Cleanup(func() { gitConfigMock = prev })

	_, err := loadGitConfig(true, "")
	require.Error(t, err)
}

func TestParseCLIConfigOverrides(t *testing.T) {
	result, err := parseCLIConfigOverrides([]string{
		"lb.remote=upstream",
		"lb.protected_branches=main",
		"lb.protected_branches=dev",
		"lb.protected_branches=release",
		"lb.debug_log=/tmp/a=b.log",
	})
	require.NoError(t, err)
	assert.Equal(t, "upstream", result["remote"])
	assert.Equal(t, []any{"main", "dev", "release"}, result["protected_branches"])
	assert.Equal(t, "/tmp/a=b.log", result["debug_log"])
}
