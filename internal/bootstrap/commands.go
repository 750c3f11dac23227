package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"

	urfavecli "github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/chmouel/lazybranch/internal/cli"
	"github.com/chmouel/lazybranch/internal/completion"
	"github.com/chmouel/lazybranch/internal/config"
	"github.com/chmouel/lazybranch/internal/log"
	"github.com/chmouel/lazybranch/internal/models"
)

var interactiveFunc = cli.Interactive

func listCommand() *urfavecli.Command {
	return &urfavecli.Command{
		Name:          "list",
		Aliases:       []string{"ls"},
		Usage:         "List branches with their classification",
		Action:        handleListAction,
		ShellComplete: subcommandShellComplete,
		Flags:         listFlags(),
	}
}

func deleteCommand() *urfavecli.Command {
	return &urfavecli.Command{
		Name:          "delete",
		Aliases:       []string{"rm"},
		Usage:         "Delete branches locally, on the remote, or both",
		ArgsUsage:     "[branch...]",
		Action:        handleDeleteAction,
		ShellComplete: deleteShellComplete,
		Flags:         deleteFlags(),
	}
}

// handleListAction handles the list subcommand action.
func handleListAction(ctx context.Context, cmd *urfavecli.Command) error {
	defer func() {
		_ = log.Close()
	}()

	b, err := openBackend(ctx, cmd)
	if err != nil {
		return err
	}
	opts, err := listOptions(cmd, b.cfg)
	if err != nil {
		return err
	}
	return cli.List(ctx, b.classifier, cmd.Root().Writer, opts)
}

func listOptions(cmd *urfavecli.Command, cfg *config.AppConfig) (cli.ListOptions, error) {
	opts := cli.ListOptions{
		Filter: cfg.DefaultFilter,
		Query:  cmd.String("filter"),
		ByDate: cfg.SortMode == config.SortByDate,
		JSON:   cmd.Bool("json"),
	}
	if only := cmd.String("only"); only != "" {
		mode, ok := models.ParseFilterMode(only)
		if !ok {
			return opts, fmt.Errorf("unknown filter %q, expected one of all, local, remote, merged, unmerged", only)
		}
		opts.Filter = mode
	}
	switch sortMode := cmd.String("sort"); sortMode {
	case "":
	case config.SortByName:
		opts.ByDate = false
	case config.SortByDate:
		opts.ByDate = true
	default:
		return opts, fmt.Errorf("unknown sort %q, expected name or date", sortMode)
	}
	return opts, nil
}

// handleDeleteAction handles the delete subcommand action.
func handleDeleteAction(ctx context.Context, cmd *urfavecli.Command) error {
	defer func() {
		_ = log.Close()
	}()

	b, err := openBackend(ctx, cmd)
	if err != nil {
		return err
	}
	interactive := interactiveFunc()
	opts, err := deleteOptions(cmd, b.cfg, interactive)
	if err != nil {
		return err
	}

	env := cli.Env{
		Classifier: b.classifier,
		Repository: b.git,
		Out:        cmd.Root().Writer,
	}
	if interactive {
		env.Prompter = cli.HuhPrompter{}
	}
	_, err = cli.Delete(ctx, env, cmd.Args().Slice(), opts)
	return err
}

func deleteOptions(cmd *urfavecli.Command, cfg *config.AppConfig, interactive bool) (cli.DeleteOptions, error) {
	scope, err := models.ParseScope(cmd.String("scope"))
	if err != nil {
		return cli.DeleteOptions{}, err
	}
	if cmd.Bool("force-unmerged") && cmd.Bool("keep-unmerged") {
		return cli.DeleteOptions{}, fmt.Errorf("--force-unmerged and --keep-unmerged are mutually exclusive")
	}

	policy := cli.UnmergedAsk
	switch {
	case cmd.Bool("force-unmerged"):
		policy = cli.UnmergedForce
	case cmd.Bool("keep-unmerged"):
		policy = cli.UnmergedKeep
	}

	return cli.DeleteOptions{
		Scope:    scope,
		Merged:   cmd.Bool("merged"),
		Yes:      cmd.Bool("yes"),
		Fetch:    cmd.Bool("fetch"),
		Unmerged: policy,
		Engine:   engineOptions(cfg),
		// a bar redrawing under a confirmation form garbles both
		ProgressBar: stdoutIsTerminal() && (policy != cli.UnmergedAsk || !interactive),
	}, nil
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec
}

// completionArgs returns the word being completed and the one before it.
// urfave/cli appends --generate-shell-completion after the typed words.
func completionArgs(args []string) (current, previous string) {
	if n := len(args); n > 0 && args[n-1] == "--generate-shell-completion" {
		args = args[:n-1]
	}
	if n := len(args); n > 0 {
		current = args[n-1]
		if n > 1 {
			previous = args[n-2]
		}
	}
	return current, previous
}

// subcommandShellComplete completes flag names and enumerated flag values.
func subcommandShellComplete(_ context.Context, cmd *urfavecli.Command) {
	completeFlags(cmd, os.Args)
}

// completeFlags reports whether it printed anything.
func completeFlags(cmd *urfavecli.Command, args []string) bool {
	current, previous := completionArgs(args)
	if strings.HasPrefix(previous, "-") {
		if values := completion.ValuesFor(previous); values != nil {
			printMatching(cmd, values, current)
			return true
		}
	}
	if strings.HasPrefix(current, "-") {
		outputSubcommandFlagsFiltered(cmd, strings.TrimSuffix(current, "--"))
		return true
	}
	return false
}

// deleteShellComplete completes flags, then branch names that can be deleted.
func deleteShellComplete(ctx context.Context, cmd *urfavecli.Command) {
	if completeFlags(cmd, os.Args) {
		return
	}
	b, err := openBackend(ctx, cmd)
	if err != nil {
		return
	}
	records, err := b.classifier.Classify(ctx)
	if err != nil {
		return
	}
	current, _ := completionArgs(os.Args)
	for _, r := range records.Sorted(false) {
		if !r.Blocked() && strings.HasPrefix(r.Name, current) {
			fmt.Fprintln(cmd.Root().Writer, r.Name)
		}
	}
}

func printMatching(cmd *urfavecli.Command, values []string, prefix string) {
	if strings.HasPrefix(prefix, "-") {
		prefix = ""
	}
	for _, v := range values {
		if strings.HasPrefix(v, prefix) {
			fmt.Fprintln(cmd.Root().Writer, v)
		}
	}
}

// outputSubcommandFlagsFiltered prints flags matching the given prefix.
func outputSubcommandFlagsFiltered(cmd *urfavecli.Command, prefix string) {
	for _, flag := range cmd.Flags {
		if bf, ok := flag.(*urfavecli.BoolFlag); ok && bf.Hidden {
			continue
		}
		if sf, ok := flag.(*urfavecli.StringFlag); ok && sf.Hidden {
			continue
		}
		name := flag.Names()[0]
		usage := ""
		if df, ok := flag.(urfavecli.DocGenerationFlag); ok {
			usage = df.GetUsage()
		}
		flagPrefix := "--"
		if len(name) == 1 {
			flagPrefix = "-"
		}
		fullFlag := flagPrefix + name
		if !strings.HasPrefix(fullFlag, prefix) {
			continue
		}
		if usage != "" {
			fmt.Fprintf(cmd.Root().Writer, "%s:%s\n", fullFlag, usage)
		} else {
			fmt.Fprintf(cmd.Root().Writer, "%s\n", fullFlag)
		}
	}
}
