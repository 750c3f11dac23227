// Package branches turns raw repository state into branch classifications
// and derives deletion plans from them.
package branches

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/muesli/reflow/truncate"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/chmouel/lazybranch/internal/git"
	log "github.com/chmouel/lazybranch/internal/log"
	"github.com/chmouel/lazybranch/internal/models"
)

// ErrClassificationFailed wraps any failure of the queries feeding Build.
var ErrClassificationFailed = errors.New("branch classification failed")

// RepositoryState is the raw input of Build.
type RepositoryState struct {
	Local            []git.RefEntry
	Remote           []git.RefEntry
	WorktreeBranches []string
	Current          string
	Protected        []string
	Merged           map[string][]string // protected branch -> local branches merged into it
	SubjectMaxLength int
}

// Build classifies every branch found locally or on the remote. It is pure:
// the same state always yields an equal map.
func Build(state RepositoryState) models.BranchMap {
	local := indexRefs(state.Local)
	remote := indexRefs(state.Remote)

	protected := toSet(state.Protected)
	worktrees := toSet(state.WorktreeBranches)
	merged := map[string]bool{}
	for _, names := range state.Merged {
		for _, name := range names {
			merged[name] = true
		}
	}

	result := make(models.BranchMap, len(local)+len(remote))
	add := func(name string, entry git.RefEntry, presence models.Presence) {
		commit := entry.Commit
		if state.SubjectMaxLength > 0 {
			commit.Subject = truncate.String(commit.Subject, uint(state.SubjectMaxLength)) //nolint:gosec
		}
		result[name] = models.BranchRecord{
			Name:            name,
			Presence:        presence,
			IsCurrent:       state.Current != "" && name == state.Current,
			IsWorktreeBound: worktrees[name] && name != state.Current,
			IsProtected:     protected[name],
			// remote-only branches have no local ref to evaluate
			IsMerged:   presence != models.PresenceRemoteOnly && merged[name],
			LastCommit: commit,
		}
	}

	for name, entry := range local {
		if _, ok := remote[name]; ok {
			add(name, entry, models.PresenceBoth)
			continue
		}
		add(name, entry, models.PresenceLocalOnly)
	}
	for name, entry := range remote {
		if _, ok := local[name]; ok {
			continue
		}
		add(name, entry, models.PresenceRemoteOnly)
	}

	return result
}

func indexRefs(entries []git.RefEntry) map[string]git.RefEntry {
	index := make(map[string]git.RefEntry, len(entries))
	for _, e := range entries {
		index[e.Name] = e
	}
	return index
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// Source is the subset of the git service the classifier queries.
type Source interface {
	ListLocalBranches(ctx context.Context) ([]git.RefEntry, error)
	ListRemoteBranches(ctx context.Context, remote string) ([]git.RefEntry, error)
	CurrentBranch(ctx context.Context) (string, error)
	WorktreeBranches(ctx context.Context) ([]string, error)
	MergedBranches(ctx context.Context, base string) ([]string, error)
}

// Options configures a Classifier.
type Options struct {
	Remote           string
	Protected        []string
	SubjectMaxLength int
}

// Classifier gathers repository state and builds the branch map.
type Classifier struct {
	source Source
	opts   Options
	group  singleflight.Group
}

// NewClassifier returns a Classifier reading from source.
func NewClassifier(source Source, opts Options) *Classifier {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	return &Classifier{source: source, opts: opts}
}

// Gather runs the listing queries concurrently, then the merge queries for
// the protected branches that exist locally.
func (c *Classifier) Gather(ctx context.Context) (RepositoryState, error) {
	state := RepositoryState{
		Protected:        append([]string(nil), c.opts.Protected...),
		SubjectMaxLength: c.opts.SubjectMaxLength,
		Merged:           map[string][]string{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entries, err := c.source.ListLocalBranches(gctx)
		state.Local = entries
		return err
	})
	g.Go(func() error {
		entries, err := c.source.ListRemoteBranches(gctx, c.opts.Remote)
		state.Remote = entries
		return err
	})
	g.Go(func() error {
		current, err := c.source.CurrentBranch(gctx)
		state.Current = current
		return err
	})
	g.Go(func() error {
		branches, err := c.source.WorktreeBranches(gctx)
		state.WorktreeBranches = branches
		return err
	})
	if err := g.Wait(); err != nil {
		return RepositoryState{}, fmt.Errorf("%w: %w", ErrClassificationFailed, err)
	}

	localNames := lo.Map(state.Local, func(e git.RefEntry, _ int) string { return e.Name })
	bases := lo.Filter(lo.Uniq(state.Protected), func(name string, _ int) bool {
		return lo.Contains(localNames, name)
	})

	var mu sync.Mutex
	mg, mctx := errgroup.WithContext(ctx)
	for _, base := range bases {
		mg.Go(func() error {
			names, err := c.source.MergedBranches(mctx, base)
			if err != nil {
				return err
			}
			mu.Lock()
			state.Merged[base] = names
			mu.Unlock()
			return nil
		})
	}
	if err := mg.Wait(); err != nil {
		return RepositoryState{}, fmt.Errorf("%w: %w", ErrClassificationFailed, err)
	}

	return state, nil
}

// Classify gathers state and builds a fresh branch map. Concurrent callers
// share one in-flight classification.
func (c *Classifier) Classify(ctx context.Context) (models.BranchMap, error) {
	v, err, shared := c.group.Do("classify", func() (any, error) {
		state, err := c.Gather(ctx)
		if err != nil {
			return nil, err
		}
		return Build(state), nil
	})
	if err != nil {
		log.Errorf("classify: %v", err)
		return nil, err
	}
	if shared {
		log.Printf("classify: joined in-flight refresh")
	}
	// each caller owns its map
	return maps.Clone(v.(models.BranchMap)), nil
}
