package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	urfavecli "github.com/urfave/cli/v3"

	"github.com/chmouel/lazybranch/internal/app/services"
	"github.com/chmouel/lazybranch/internal/branches"
	"github.com/chmouel/lazybranch/internal/config"
	"github.com/chmouel/lazybranch/internal/deletion"
	"github.com/chmouel/lazybranch/internal/git"
	"github.com/chmouel/lazybranch/internal/log"
)

var findRepoRootFunc = git.FindRepoRoot

// backend is everything a command needs to talk to one repository.
type backend struct {
	cfg        *config.AppConfig
	root       string
	git        *git.Service
	classifier *branches.Classifier
}

// openBackend resolves the repository, loads its configuration and builds
// the git service and classifier for it.
func openBackend(ctx context.Context, cmd *urfavecli.Command) (*backend, error) {
	setupDebugLog(cmd.String("debug-log"))

	start := cmd.String("repo")
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		start = wd
	}
	root, err := findRepoRootFunc(ctx, start)
	if err != nil {
		return nil, err
	}

	cfg, err := loadCLIConfig(cmd.String("config-file"), root, cmd.StringSlice("config"))
	if err != nil {
		return nil, err
	}
	if cmd.String("debug-log") == "" {
		setupDebugLogFromConfig(cfg)
	}
	if err := applyThemeConfig(cfg, cmd.String("theme")); err != nil {
		return nil, err
	}

	gitSvc := newCLIGitService(root)
	return &backend{
		cfg:        cfg,
		root:       root,
		git:        gitSvc,
		classifier: branches.NewClassifier(gitSvc, classifierOptions(cfg)),
	}, nil
}

// loadCLIConfig loads and configures the application configuration for CLI mode.
func loadCLIConfig(configFileFlag, repoPath string, configOverrides []string) (*config.AppConfig, error) {
	cfg, err := config.LoadConfig(configFileFlag, repoPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	if len(configOverrides) > 0 {
		if err := cfg.ApplyCLIOverrides(configOverrides); err != nil {
			return nil, fmt.Errorf("error applying config overrides: %w", err)
		}
	}

	return cfg, nil
}

// applyThemeConfig applies theme configuration from command line flag.
func applyThemeConfig(cfg *config.AppConfig, themeName string) error {
	if themeName == "" {
		return nil
	}

	normalized := config.NormalizeThemeName(themeName)
	if normalized == "" {
		return fmt.Errorf("unknown theme %q", themeName)
	}
	cfg.Theme = normalized
	return nil
}

// setupDebugLog opens the debug log named on the command line. Without one,
// logs stay buffered until the configuration is known.
func setupDebugLog(path string) {
	if path == "" {
		return
	}
	if expanded, err := config.ExpandPath(path); err == nil {
		path = expanded
	}
	if err := log.SetFile(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error opening debug log file %q: %v\n", path, err)
	}
}

// setupDebugLogFromConfig opens the configured debug log, or discards the
// buffered logs when there is none.
func setupDebugLogFromConfig(cfg *config.AppConfig) {
	if cfg.DebugLog == "" {
		_ = log.SetFile("")
		return
	}
	path := cfg.DebugLog
	if expanded, err := config.ExpandPath(path); err == nil {
		path = expanded
	}
	if err := log.SetFile(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error opening debug log file from config %q: %v\n", path, err)
	}
}

// newCLIGitService creates a new git service configured for CLI mode.
func newCLIGitService(root string) *git.Service {
	return git.NewService(root, cliNotify)
}

// cliNotify is a notification callback for git operations in CLI mode.
func cliNotify(message, severity string) {
	if severity == "error" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		return
	}
	fmt.Fprintf(os.Stderr, "%s\n", message)
}

func classifierOptions(cfg *config.AppConfig) branches.Options {
	return branches.Options{
		Remote:           cfg.Remote,
		Protected:        cfg.ProtectedBranches,
		SubjectMaxLength: cfg.SubjectMaxLength,
	}
}

func engineOptions(cfg *config.AppConfig) deletion.Options {
	return deletion.Options{
		Remote:         cfg.Remote,
		ConfirmTimeout: cfg.ConfirmTimeout(),
		PollInterval:   cfg.ConfirmPollInterval(),
	}
}

// branchCacheFile returns where the TUI keeps its last classification for
// root, or "" when there is no user cache directory.
func branchCacheFile(root string) string {
	dir, err := os.UserCacheDir()
	if err != nil {
		log.Printf("bootstrap: no cache directory: %v", err)
		return ""
	}
	return services.BranchCachePath(filepath.Join(dir, "lazybranch"), root)
}
