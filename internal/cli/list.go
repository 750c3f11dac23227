// Package cli implements the line-mode lazybranch commands: listing the
// classified branches and running a deletion batch without the TUI.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/chmouel/lazybranch/internal/models"
)

// Classifier produces the branch map.
type Classifier interface {
	Classify(ctx context.Context) (models.BranchMap, error)
}

// ListOptions narrows and formats List output.
type ListOptions struct {
	Filter models.FilterMode
	Query  string
	ByDate bool
	JSON   bool
}

// branchJSON is the JSON output format for a branch.
type branchJSON struct {
	Name       string   `json:"name"`
	Where      string   `json:"where"`
	Current    bool     `json:"current"`
	Worktree   bool     `json:"worktree"`
	Protected  bool     `json:"protected"`
	Merged     bool     `json:"merged"`
	Deletable  bool     `json:"deletable"`
	Status     []string `json:"status"`
	Author     string   `json:"author,omitempty"`
	Timestamp  int64    `json:"timestamp"`
	LastCommit string   `json:"last_commit"`
	Subject    string   `json:"subject"`
}

// List classifies the repository and prints the matching branches.
func List(ctx context.Context, classifier Classifier, w io.Writer, opts ListOptions) error {
	records, err := classifier.Classify(ctx)
	if err != nil {
		return err
	}
	if opts.Filter == "" {
		opts.Filter = models.FilterAll
	}
	rows := records.Visible(opts.Filter, opts.Query, opts.ByDate)

	if opts.JSON {
		return outputListJSON(w, rows)
	}
	return outputListTable(w, rows)
}

func outputListJSON(w io.Writer, rows []models.BranchRecord) error {
	output := make([]branchJSON, 0, len(rows))
	for _, r := range rows {
		status := r.StatusLabels()
		if status == nil {
			status = []string{}
		}
		output = append(output, branchJSON{
			Name:       r.Name,
			Where:      r.Presence.String(),
			Current:    r.IsCurrent,
			Worktree:   r.IsWorktreeBound,
			Protected:  r.IsProtected,
			Merged:     r.IsMerged,
			Deletable:  !r.Blocked(),
			Status:     status,
			Author:     r.LastCommit.Author,
			Timestamp:  r.LastCommit.Timestamp,
			LastCommit: r.LastCommit.Relative,
			Subject:    r.LastCommit.Subject,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// outputListTable prints an aligned table. The status column comes last so
// its colour codes do not upset tabwriter's alignment.
func outputListTable(w io.Writer, rows []models.BranchRecord) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No branches match.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BRANCH\tWHERE\tLAST COMMIT\tSUBJECT\tSTATUS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Name, r.Presence, r.LastCommit.Relative, r.LastCommit.Subject, statusString(r))
	}
	return tw.Flush()
}

func statusString(r models.BranchRecord) string {
	labels := r.StatusLabels()
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, labelColor(label).Sprint(label))
	}
	return strings.Join(parts, ", ")
}

func labelColor(label string) *color.Color {
	switch label {
	case "Current":
		return color.New(color.FgCyan, color.Bold)
	case "Worktree":
		return color.New(color.FgBlue)
	case "Merged":
		return color.New(color.FgGreen)
	case "Protected":
		return color.New(color.FgYellow)
	default:
		return color.New(color.Reset)
	}
}
