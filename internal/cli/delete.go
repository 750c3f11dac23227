package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/samber/lo"

	"github.com/chmouel/lazybranch/internal/branches"
	"github.com/chmouel/lazybranch/internal/deletion"
	log "github.com/chmouel/lazybranch/internal/log"
	"github.com/chmouel/lazybranch/internal/models"
)

// Delete errors.
var (
	ErrNoSelection          = errors.New("no branch given, pass branch names or --merged")
	ErrNothingToDelete      = errors.New("nothing to delete")
	ErrConfirmationRequired = errors.New("refusing to delete without a terminal to confirm on, pass --yes")
	ErrAborted              = errors.New("deletion aborted")
	ErrInterrupted          = errors.New("deletion interrupted")
	ErrDeletionFailed       = errors.New("some deletions failed")
)

// UnmergedPolicy decides how force-delete confirmations are answered.
type UnmergedPolicy int

// Unmerged policies.
const (
	UnmergedAsk UnmergedPolicy = iota
	UnmergedForce
	UnmergedKeep
)

// Repository runs the mutating git commands.
type Repository interface {
	deletion.Deleter
	Fetch(ctx context.Context) error
}

// Prompter asks a yes/no question.
type Prompter interface {
	Confirm(title, description string) (bool, error)
}

// Env holds the collaborators of Delete. Prompter is nil when there is no
// terminal to ask on.
type Env struct {
	Classifier Classifier
	Repository Repository
	Prompter   Prompter
	Out        io.Writer
}

// DeleteOptions configures one Delete run.
type DeleteOptions struct {
	Scope       models.Scope
	Merged      bool // add every deletable merged branch to the selection
	Yes         bool // skip the batch confirmation
	Fetch       bool
	Unmerged    UnmergedPolicy
	Engine      deletion.Options
	ProgressBar bool
}

var (
	warnColor    = color.New(color.FgYellow)
	dangerColor  = color.New(color.FgRed, color.Bold)
	failColor    = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
)

// Delete plans and runs a deletion batch for names, then prints the report.
// The returned error is non-nil when anything was refused, failed or
// interrupted.
func Delete(ctx context.Context, env Env, names []string, opts DeleteOptions) (deletion.Report, error) {
	out := env.Out
	if out == nil {
		out = io.Discard
	}

	if opts.Fetch {
		fmt.Fprintln(out, "Fetching all remotes...")
		if err := env.Repository.Fetch(ctx); err != nil {
			return deletion.Report{}, fmt.Errorf("fetch failed: %w", err)
		}
	}

	records, err := env.Classifier.Classify(ctx)
	if err != nil {
		return deletion.Report{}, err
	}

	selection := selectBranches(names, records, opts)
	if len(selection) == 0 {
		return deletion.Report{}, ErrNoSelection
	}

	plan := branches.PlanDeletion(selection, records, opts.Scope)
	printSkipped(out, plan, opts.Scope)
	if len(plan.Eligible) == 0 {
		return deletion.Report{}, ErrNothingToDelete
	}

	printBatch(out, plan, opts.Scope)
	if !opts.Yes {
		if env.Prompter == nil {
			return deletion.Report{}, ErrConfirmationRequired
		}
		ok, err := env.Prompter.Confirm(
			fmt.Sprintf("Delete %d branch(es) (%s)?", len(plan.Eligible), opts.Scope),
			fmt.Sprintf("Remote: %s", remoteName(opts.Engine)),
		)
		if err != nil {
			return deletion.Report{}, err
		}
		if !ok {
			return deletion.Report{}, ErrAborted
		}
	}

	report := runBatch(ctx, env, plan.Eligible, opts)
	printReport(out, report)
	return report, reportError(report)
}

// selectBranches merges the named branches with, when asked, every merged
// branch the scope can reach. Blocked merged branches are left out here so
// they do not show up as rejections the user never asked for.
func selectBranches(names []string, records models.BranchMap, opts DeleteOptions) []string {
	selection := append([]string(nil), names...)
	if opts.Merged {
		for _, r := range records.Sorted(false) {
			if r.IsMerged && !r.Blocked() && opts.Scope.Accepts(r.Presence) {
				selection = append(selection, r.Name)
			}
		}
	}
	return lo.Uniq(selection)
}

func printSkipped(out io.Writer, plan branches.Plan, scope models.Scope) {
	for _, r := range plan.Rejected {
		warnColor.Fprintf(out, "Skipping %s: %s\n", r.Name, r.Reason)
	}
	for _, name := range plan.Inapplicable {
		warnColor.Fprintf(out, "Skipping %s: %s\n", name, sideReason(scope))
	}
}

func sideReason(scope models.Scope) string {
	if scope == models.ScopeBoth {
		return "not present on both sides"
	}
	return fmt.Sprintf("no %s branch", scope)
}

func printBatch(out io.Writer, plan branches.Plan, scope models.Scope) {
	fmt.Fprintf(out, "Deleting %d branch(es) (%s):\n", len(plan.Eligible), scope)
	for _, name := range plan.Names() {
		fmt.Fprintf(out, "  %s\n", name)
	}
	if scope != models.ScopeLocal {
		dangerColor.Fprintln(out, "Remote deletions are PERMANENT!")
	}
}

func remoteName(opts deletion.Options) string {
	if opts.Remote == "" {
		return "origin"
	}
	return opts.Remote
}

// runBatch drives the engine from this goroutine: it answers confirmations
// and turns an interrupt into a cancellation.
func runBatch(ctx context.Context, env Env, ops []branches.DeletionOperation, opts DeleteOptions) deletion.Report {
	listener := deletion.NewChannelListener(len(ops))
	engine := deletion.NewEngine(env.Repository, listener, opts.Engine)
	defer engine.Close()

	if err := engine.Start(ctx, ops); err != nil {
		return deletion.Report{Err: err}
	}

	var progress progressReporter = newLineReporter(env.Out)
	if opts.ProgressBar {
		progress = newBarReporter(env.Out, len(ops))
	}

	interrupted := ctx.Done()
	events := listener.Events()
	for {
		select {
		case <-interrupted:
			interrupted = nil
			engine.Cancel()
			warnColor.Fprintln(env.Out, "Cancelling after the current branch...")

		case ev, ok := <-events:
			if !ok {
				progress.finish()
				return engine.Report()
			}
			switch e := ev.(type) {
			case deletion.Progress:
				progress.step(e)
			case deletion.ConfirmationRequest:
				accept := answerConfirmation(env, e, opts.Unmerged, engine.Cancel)
				if err := engine.Respond(e.ID, accept); err != nil {
					log.Printf("cli: confirmation for %s not delivered: %v", e.Branch, err)
					warnColor.Fprintf(env.Out, "Confirmation for %s expired\n", e.Branch)
				}
			case deletion.Completed:
				progress.finish()
				return e.Report
			}
		}
	}
}

func answerConfirmation(env Env, req deletion.ConfirmationRequest, policy UnmergedPolicy, cancel func()) bool {
	switch policy {
	case UnmergedForce:
		return true
	case UnmergedKeep:
		return false
	}
	if env.Prompter == nil {
		warnColor.Fprintf(env.Out, "Keeping %s: not fully merged and no terminal to confirm on\n", req.Branch)
		return false
	}
	ok, err := env.Prompter.Confirm(fmt.Sprintf("Force delete %s?", req.Branch), req.Reason)
	if err != nil {
		if errors.Is(err, ErrAborted) {
			cancel()
		} else {
			log.Printf("cli: prompt for %s failed: %v", req.Branch, err)
		}
		return false
	}
	return ok
}

func printReport(out io.Writer, report deletion.Report) {
	for _, o := range report.Outcomes {
		if o.State() == deletion.StateSucceeded {
			suffix := ""
			if o.Forced {
				suffix = " (forced)"
			}
			successColor.Fprintf(out, "✓ %s%s\n", o.Branch, suffix)
		}
	}
	for _, line := range report.Failures() {
		failColor.Fprintf(out, "✗ %s\n", line)
	}
	fmt.Fprintln(out, report.Summary())
}

func reportError(report deletion.Report) error {
	switch {
	case report.Err != nil:
		return fmt.Errorf("deletion stopped: %w", report.Err)
	case report.Cancelled:
		return ErrInterrupted
	case len(report.Failures()) > 0:
		return fmt.Errorf("%w: %d failure(s)", ErrDeletionFailed, len(report.Failures()))
	}
	return nil
}
