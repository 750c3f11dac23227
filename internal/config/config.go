// Package config loads application configuration from YAML, git config and
// command line overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/chmouel/lazybranch/internal/log"
	"github.com/chmouel/lazybranch/internal/models"
	"github.com/chmouel/lazybranch/internal/theme"
	"gopkg.in/yaml.v3"
)

// Sort modes for branch listings.
const (
	SortByName = "name"
	SortByDate = "date"
)

// AppConfig defines the global lazybranch configuration options.
type AppConfig struct {
	ProtectedBranches     []string // never deletable, also the merge targets
	Remote                string
	ConfirmTimeoutSeconds int
	ConfirmPollIntervalMS int
	SubjectMaxLength      int
	DebugLog              string
	Theme                 string
	AutoRefresh           bool
	DefaultFilter         models.FilterMode
	SortMode              string // "name" or "date" (newest first)
	ConfirmBatch          bool   // ask before starting a deletion batch
}

// DefaultConfig returns the default configuration values.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		ProtectedBranches:     []string{"main", "dev"},
		Remote:                "origin",
		ConfirmTimeoutSeconds: 30,
		ConfirmPollIntervalMS: 100,
		SubjectMaxLength:      50,
		AutoRefresh:           true,
		DefaultFilter:         models.FilterAll,
		SortMode:              SortByName,
		ConfirmBatch:          true,
	}
}

// ConfirmTimeout is the ceiling for an unanswered force-delete confirmation.
func (c *AppConfig) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSeconds) * time.Second
}

// ConfirmPollInterval is how often a pending confirmation checks for cancellation.
func (c *AppConfig) ConfirmPollInterval() time.Duration {
	return time.Duration(c.ConfirmPollIntervalMS) * time.Millisecond
}

// normalizeList converts a string or a YAML list into trimmed, non-empty items.
// A single string may hold several comma or space separated items.
func normalizeList(value any) []string {
	if value == nil {
		return []string{}
	}

	switch v := value.(type) {
	case string:
		fields := strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		items := []string{}
		for _, f := range fields {
			if f = strings.TrimSpace(f); f != "" {
				items = append(items, f)
			}
		}
		return items
	case []any:
		items := []string{}
		for _, item := range v {
			if item == nil {
				continue
			}
			text := strings.TrimSpace(fmt.Sprintf("%v", item))
			if text != "" {
				items = append(items, text)
			}
		}
		return items
	}
	return []string{}
}

func coerceBool(value any, defaultVal bool) bool {
	if value == nil {
		return defaultVal
	}

	switch v := value.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case string:
		text := strings.ToLower(strings.TrimSpace(v))
		switch text {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultVal
}

func coerceInt(value any, defaultVal int) int {
	if value == nil {
		return defaultVal
	}

	switch v := value.(type) {
	case bool:
		return defaultVal
	case int:
		return v
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return defaultVal
		}
		if i, err := strconv.Atoi(text); err == nil {
			return i
		}
	}
	return defaultVal
}

func parseConfig(data map[string]any) *AppConfig {
	cfg := DefaultConfig()
	applyConfigData(cfg, data)
	return cfg
}

// applyConfigData overlays the keys present in data onto cfg. Absent keys keep
// their current value so layers can be stacked.
func applyConfigData(cfg *AppConfig, data map[string]any) {
	if _, ok := data["protected_branches"]; ok {
		if branches := normalizeList(data["protected_branches"]); len(branches) > 0 {
			cfg.ProtectedBranches = branches
		}
	}

	if remote, ok := data["remote"].(string); ok {
		remote = strings.TrimSpace(remote)
		if remote != "" {
			cfg.Remote = remote
		}
	}

	cfg.ConfirmTimeoutSeconds = coerceInt(data["confirm_timeout"], cfg.ConfirmTimeoutSeconds)
	cfg.ConfirmPollIntervalMS = coerceInt(data["confirm_poll_interval_ms"], cfg.ConfirmPollIntervalMS)
	cfg.SubjectMaxLength = coerceInt(data["subject_max_length"], cfg.SubjectMaxLength)
	cfg.AutoRefresh = coerceBool(data["auto_refresh"], cfg.AutoRefresh)
	cfg.ConfirmBatch = coerceBool(data["confirm_batch"], cfg.ConfirmBatch)

	if debugLog, ok := data["debug_log"].(string); ok {
		debugLog = strings.TrimSpace(debugLog)
		if debugLog != "" {
			cfg.DebugLog = debugLog
		}
	}

	if themeName, ok := data["theme"].(string); ok {
		if normalized := NormalizeThemeName(themeName); normalized != "" {
			cfg.Theme = normalized
		}
	}

	if filter, ok := data["default_filter"].(string); ok {
		if mode, valid := models.ParseFilterMode(filter); valid {
			cfg.DefaultFilter = mode
		}
	}

	if sortMode, ok := data["sort_mode"].(string); ok {
		sortMode = strings.ToLower(strings.TrimSpace(sortMode))
		switch sortMode {
		case SortByName, SortByDate:
			cfg.SortMode = sortMode
		}
	}

	if cfg.ConfirmTimeoutSeconds <= 0 {
		cfg.ConfirmTimeoutSeconds = 30
	}
	if cfg.ConfirmPollIntervalMS <= 0 {
		cfg.ConfirmPollIntervalMS = 100
	}
	if cfg.SubjectMaxLength <= 0 {
		cfg.SubjectMaxLength = 50
	}
}

func getConfigDir() string {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

// LoadConfig reads the application configuration. The YAML file is applied
// first, then global `lb.*` git config, then the repository's local `lb.*`
// git config.
func LoadConfig(configPath, repoPath string) (*AppConfig, error) {
	configBase := filepath.Join(getConfigDir(), "lazybranch")
	configBase = filepath.Clean(configBase)

	var paths []string

	if configPath != "" {
		expanded, err := ExpandPath(configPath)
		if err != nil {
			return DefaultConfig(), err
		}
		absPath, err := filepath.Abs(expanded)
		if err != nil {
			return DefaultConfig(), err
		}
		if !isPathWithin(configBase, absPath) {
			return DefaultConfig(), fmt.Errorf("config path must reside inside %s", configBase)
		}
		paths = []string{absPath}
	} else {
		paths = []string{
			filepath.Join(configBase, "config.yaml"),
			filepath.Join(configBase, "config.yml"),
		}
	}

	cfg := DefaultConfig()

	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		// #nosec G304 -- path is constrained to the config directory after validation
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var yamlData map[string]any
		if err := yaml.Unmarshal(data, &yamlData); err != nil {
			return DefaultConfig(), fmt.Errorf("failed to parse %s: %w", path, err)
		}

		applyConfigData(cfg, yamlData)
		break
	}

	if globalData, err := loadGitConfig(true, ""); err == nil {
		applyConfigData(cfg, globalData)
	} else {
		log.Printf("config: global git config unavailable: %v", err)
	}
	if repoPath == "" {
		repoPath = determineRepoPath("")
	}
	if repoPath != "" {
		if localData, err := loadGitConfig(false, repoPath); err == nil {
			applyConfigData(cfg, localData)
		} else {
			log.Printf("config: local git config unavailable: %v", err)
		}
	}

	if cfg.Theme == "" {
		detected, err := theme.DetectBackground(500 * time.Millisecond)
		if err == nil {
			cfg.Theme = detected
		} else {
			cfg.Theme = theme.DefaultDark()
		}
	}

	return cfg, nil
}

// ApplyCLIOverrides applies --config=lb.key=value overrides, the highest
// precedence layer.
func (c *AppConfig) ApplyCLIOverrides(overrides []string) error {
	data, err := parseCLIConfigOverrides(overrides)
	if err != nil {
		return err
	}
	applyConfigData(c, data)
	return nil
}

// ExpandPath expands a leading ~ and environment variables.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return os.ExpandEnv(path), nil
}

func isPathWithin(base, target string) bool {
	base = filepath.Clean(base)
	target = filepath.Clean(target)

	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false
	}
	return true
}

// NormalizeThemeName returns the canonical theme name if it is supported.
func NormalizeThemeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, known := range theme.AvailableThemes() {
		if known == name {
			return name
		}
	}
	return ""
}
