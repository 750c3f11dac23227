// Package git wraps the git commands lazybranch needs to classify and delete
// branches. git is treated as an opaque process: only its exit status and
// output streams are consulted.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	log "github.com/chmouel/lazybranch/internal/log"
	"github.com/chmouel/lazybranch/internal/models"
)

const (
	fieldSep = "\x1f"

	refFormat = "%(refname)%1f%(committerdate:unix)%1f%(committerdate:relative)%1f%(authorname)%1f%(subject)"

	localRefPrefix  = "refs/heads/"
	remoteRefPrefix = "refs/remotes/"

	notFullyMergedMarker = "not fully merged"
)

// NotifyFn receives user-facing notifications.
type NotifyFn func(message string, severity string)

// Result is the outcome of one git invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Err is set when the process could not be started or did not exit
	// normally.
	Err error
}

// OK reports whether the command exited with status 0.
func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Detail returns the trimmed stderr, or the process error when stderr is empty.
func (r Result) Detail() string {
	if detail := strings.TrimSpace(r.Stderr); detail != "" {
		return detail
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	if r.ExitCode != 0 {
		return fmt.Sprintf("exit status %d", r.ExitCode)
	}
	return ""
}

// IsNotFullyMerged reports whether stderr from `git branch -d` says the branch
// has unmerged commits and needs a force delete.
func IsNotFullyMerged(stderr string) bool {
	return strings.Contains(stderr, notFullyMergedMarker)
}

// Runner executes a git command in dir.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) Result
}

// ExecRunner runs the real git binary with a C locale so diagnostics are
// stable across user languages.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, dir string, args ...string) Result {
	cmd, err := prepareAllowedCommand(ctx, append([]string{"git"}, args...))
	if err != nil {
		return Result{ExitCode: -1, Err: err}
	}
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "LC_ALL=C", "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			res.Err = err
		}
	}
	return res
}

func prepareAllowedCommand(ctx context.Context, args []string) (*exec.Cmd, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no command provided")
	}

	switch args[0] {
	case "git":
		// #nosec G204 -- arguments for git command come from internal logic and are not shell interpolated
		return exec.CommandContext(ctx, "git", args[1:]...), nil
	default:
		return nil, fmt.Errorf("unsupported command %q", args[0])
	}
}

// RefEntry is one branch ref with its tip commit metadata.
type RefEntry struct {
	Name   string
	Commit models.CommitInfo
}

// Service runs git against one repository.
type Service struct {
	dir       string
	runner    Runner
	notify    NotifyFn
	semaphore chan struct{}
}

// NewService constructs a Service rooted at dir and sets up concurrency limits.
func NewService(dir string, notify NotifyFn) *Service {
	limit := runtime.NumCPU() * 2
	if limit < 4 {
		limit = 4
	}
	if limit > 32 {
		limit = 32
	}

	// acquire takes a token, release returns it.
	semaphore := make(chan struct{}, limit)
	for i := 0; i < limit; i++ {
		semaphore <- struct{}{}
	}

	if notify == nil {
		notify = func(string, string) {}
	}

	return &Service{
		dir:       dir,
		runner:    ExecRunner{},
		notify:    notify,
		semaphore: semaphore,
	}
}

// SetRunner replaces the process runner, used by tests.
func (s *Service) SetRunner(r Runner) {
	s.runner = r
}

// Dir returns the repository directory commands run in.
func (s *Service) Dir() string {
	return s.dir
}

func (s *Service) debugf(format string, args ...any) {
	log.Printf(format, args...)
}

func (s *Service) acquireSemaphore() {
	<-s.semaphore
}

func (s *Service) releaseSemaphore() {
	s.semaphore <- struct{}{}
}

// run executes a git command through the runner and logs the result.
func (s *Service) run(ctx context.Context, args ...string) Result {
	command := "git " + strings.Join(args, " ")
	s.debugf("run: %s (cwd=%s)", command, s.dir)

	s.acquireSemaphore()
	res := s.runner.Run(ctx, s.dir, args...)
	s.releaseSemaphore()

	if res.OK() {
		s.debugf("ok: %s", command)
	} else {
		s.debugf("error: %s: %s", command, res.Detail())
	}
	return res
}

// runChecked runs a read-only query and turns a failure into an error.
func (s *Service) runChecked(ctx context.Context, args ...string) (string, error) {
	res := s.run(ctx, args...)
	if !res.OK() {
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), res.Detail())
	}
	return res.Stdout, nil
}

// ListLocalBranches returns every local branch with its tip commit metadata.
func (s *Service) ListLocalBranches(ctx context.Context) ([]RefEntry, error) {
	out, err := s.runChecked(ctx, "for-each-ref", "--format="+refFormat, localRefPrefix)
	if err != nil {
		return nil, err
	}
	return parseRefs(out, localRefPrefix), nil
}

// ListRemoteBranches returns the branches of remote with the remote prefix
// stripped. The symbolic <remote>/HEAD entry is skipped.
func (s *Service) ListRemoteBranches(ctx context.Context, remote string) ([]RefEntry, error) {
	prefix := remoteRefPrefix + remote + "/"
	out, err := s.runChecked(ctx, "for-each-ref", "--format="+refFormat, prefix)
	if err != nil {
		return nil, err
	}
	return parseRefs(out, prefix), nil
}

func parseRefs(output, prefix string) []RefEntry {
	entries := []RefEntry{}
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, fieldSep, 5)
		if len(fields) < 5 {
			continue
		}
		name := strings.TrimPrefix(fields[0], prefix)
		if name == fields[0] || name == "" || name == "HEAD" {
			continue
		}
		ts, _ := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		entries = append(entries, RefEntry{
			Name: name,
			Commit: models.CommitInfo{
				Timestamp: ts,
				Relative:  fields[2],
				Author:    fields[3],
				Subject:   strings.TrimRight(fields[4], "\r"),
			},
		})
	}
	return entries
}

// CurrentBranch returns the checked out branch, or "" on a detached HEAD.
func (s *Service) CurrentBranch(ctx context.Context) (string, error) {
	out, err := s.runChecked(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// WorktreeBranches returns the branches checked out in any working copy of
// the repository, including the main one. Bare and detached entries have no
// branch and are skipped.
func (s *Service) WorktreeBranches(ctx context.Context) ([]string, error) {
	out, err := s.runChecked(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeBranches(out), nil
}

func parseWorktreeBranches(output string) []string {
	branches := []string{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		ref, ok := strings.CutPrefix(line, "branch ")
		if !ok {
			continue
		}
		if name := strings.TrimPrefix(ref, localRefPrefix); name != "" {
			branches = append(branches, name)
		}
	}
	return branches
}

// MergedBranches returns local branches that have been merged into base,
// excluding base itself. Full refnames keep a tag sharing a branch's name
// from turning the short name into heads/<name>.
func (s *Service) MergedBranches(ctx context.Context, base string) ([]string, error) {
	out, err := s.runChecked(ctx, "branch", "--merged", localRefPrefix+base, "--format=%(refname)")
	if err != nil {
		return nil, err
	}

	var merged []string
	for _, line := range strings.Split(out, "\n") {
		name, ok := strings.CutPrefix(strings.TrimSpace(line), localRefPrefix)
		if !ok || name == "" || name == base {
			continue
		}
		merged = append(merged, name)
	}
	return merged, nil
}

// DeleteLocalBranch runs `git branch -d`, or `-D` when force is set.
func (s *Service) DeleteLocalBranch(ctx context.Context, name string, force bool) Result {
	flag := "-d"
	if force {
		flag = "-D"
	}
	return s.run(ctx, "branch", flag, name)
}

// DeleteRemoteBranch runs `git push <remote> --delete <name>`.
func (s *Service) DeleteRemoteBranch(ctx context.Context, remote, name string) Result {
	return s.run(ctx, "push", remote, "--delete", name)
}

// Fetch updates every remote and prunes deleted remote branches.
func (s *Service) Fetch(ctx context.Context) error {
	res := s.run(ctx, "fetch", "--all", "--prune")
	if !res.OK() {
		s.notify(fmt.Sprintf("Fetch failed: %s", res.Detail()), "error")
		return fmt.Errorf("fetch failed: %s", res.Detail())
	}
	return nil
}

// GitCommonDir returns the absolute path of the git directory shared by all
// working copies of the repository.
func (s *Service) GitCommonDir(ctx context.Context) (string, error) {
	out, err := s.runChecked(ctx, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(out)
	if dir == "" {
		return "", fmt.Errorf("git rev-parse returned no common dir")
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(s.dir, dir)
	}
	return filepath.Clean(dir), nil
}

// FindRepoRoot returns the top-level directory of the working copy that
// contains start.
func FindRepoRoot(ctx context.Context, start string) (string, error) {
	repo, err := gogit.PlainOpenWithOptions(start, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err == nil {
		if wt, wtErr := repo.Worktree(); wtErr == nil {
			return wt.Filesystem.Root(), nil
		}
	}

	// go-git cannot open every layout (bare repos, some linked worktrees).
	res := ExecRunner{}.Run(ctx, start, "rev-parse", "--show-toplevel")
	if !res.OK() {
		return "", fmt.Errorf("not a git repository: %s", res.Detail())
	}
	return strings.TrimSpace(res.Stdout), nil
}
