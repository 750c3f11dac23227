// Package bootstrap wires the lazybranch command line: global flags, the TUI
// default action and the list and delete subcommands.
package bootstrap

import (
	urfavecli "github.com/urfave/cli/v3"
)

// globalFlags returns all global flags for the application.
// Note: --version is provided automatically by urfave/cli via Command.Version
func globalFlags() []urfavecli.Flag {
	return []urfavecli.Flag{
		&urfavecli.StringFlag{
			Name:  "repo",
			Usage: "Repository to operate on (defaults to the current directory)",
		},
		&urfavecli.StringFlag{
			Name:  "debug-log",
			Usage: "Path to debug log file",
		},
		&urfavecli.StringFlag{
			Name:    "theme",
			Aliases: []string{"t"},
			Usage:   "Override the UI theme",
		},
		&urfavecli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "Only show branches whose name contains this text",
		},
		&urfavecli.StringFlag{
			Name:  "config-file",
			Usage: "Path to configuration file",
		},
		&urfavecli.StringSliceFlag{
			Name:    "config",
			Aliases: []string{"C"},
			Usage:   "Override config values (repeatable): --config=lb.key=value",
		},
	}
}

func listFlags() []urfavecli.Flag {
	return []urfavecli.Flag{
		&urfavecli.StringFlag{
			Name:  "only",
			Usage: "Only list branches matching a filter: all, local, remote, merged, unmerged",
		},
		&urfavecli.StringFlag{
			Name:  "sort",
			Usage: "Sort by name or date (newest first)",
		},
		&urfavecli.BoolFlag{
			Name:  "json",
			Usage: "Output as JSON",
		},
	}
}

func deleteFlags() []urfavecli.Flag {
	return []urfavecli.Flag{
		&urfavecli.StringFlag{
			Name:    "scope",
			Aliases: []string{"s"},
			Value:   "local",
			Usage:   "Side(s) to delete: local, remote or both",
		},
		&urfavecli.BoolFlag{
			Name:  "merged",
			Usage: "Also delete every merged branch that can be deleted",
		},
		&urfavecli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "Do not ask before starting the batch",
		},
		&urfavecli.BoolFlag{
			Name:  "force-unmerged",
			Usage: "Force delete local branches that are not fully merged without asking",
		},
		&urfavecli.BoolFlag{
			Name:  "keep-unmerged",
			Usage: "Keep local branches that are not fully merged without asking",
		},
		&urfavecli.BoolFlag{
			Name:  "fetch",
			Usage: "Run git fetch --all --prune before classifying",
		},
	}
}
