package bootstrap

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	urfavecli "github.com/urfave/cli/v3"

	"github.com/chmouel/lazybranch/internal/app"
	"github.com/chmouel/lazybranch/internal/buildinfo"
	"github.com/chmouel/lazybranch/internal/log"
)

// runProgramFunc runs the TUI; tests replace it.
var runProgramFunc = func(model tea.Model) error {
	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

func init() {
	urfavecli.VersionPrinter = func(cmd *urfavecli.Command) {
		fmt.Fprint(cmd.Root().Writer, buildinfo.String())
	}
}

// NewCommand returns the lazybranch root command.
func NewCommand() *urfavecli.Command {
	return &urfavecli.Command{
		Name:                  "lazybranch",
		Usage:                 "A TUI tool to clean up git branches, locally and on the remote",
		Version:               buildinfo.Version(),
		EnableShellCompletion: true,
		Flags:                 globalFlags(),
		Commands: []*urfavecli.Command{
			listCommand(),
			deleteCommand(),
		},
		Action:        runTUI,
		ShellComplete: subcommandShellComplete,
	}
}

// Run parses args and runs the matching command.
func Run(ctx context.Context, args []string) error {
	return NewCommand().Run(ctx, args)
}

// runTUI is the default action that launches the TUI when no subcommand is given.
func runTUI(ctx context.Context, cmd *urfavecli.Command) error {
	defer func() {
		if err := log.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing debug log: %v\n", err)
		}
	}()

	b, err := openBackend(ctx, cmd)
	if err != nil {
		return err
	}

	model := app.NewModel(b.cfg, app.Deps{
		Classifier: b.classifier,
		Repository: b.git,
		Watcher:    b.git,
		CacheFile:  branchCacheFile(b.root),
	}, cmd.String("filter"))

	if err := runProgramFunc(model); err != nil {
		return fmt.Errorf("error running app: %w", err)
	}
	return nil
}
