package branches

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmouel/lazybranch/internal/git"
	"github.com/chmouel/lazybranch/internal/models"
)

func ref(name string, ts int64, subject string) git.RefEntry {
	return git.RefEntry{Name: name, Commit: models.CommitInfo{
		Subject:   subject,
		Timestamp: ts,
		Relative:  "some time ago",
		Author:    "Dev",
	}}
}

func sampleState() RepositoryState {
	return RepositoryState{
		Local: []git.RefEntry{
			ref("main", 100, "root"),
			ref("dev", 110, "dev line"),
			ref("feature", 120, "local feature work"),
			ref("wt-branch", 130, "in a worktree"),
			ref("done", 90, "merged work"),
		},
		Remote: []git.RefEntry{
			ref("main", 100, "root"),
			ref("feature", 50, "stale remote subject"),
			ref("remote-only", 80, "someone else's"),
			ref("done", 90, "merged work"),
		},
		WorktreeBranches: []string{"feature", "wt-branch"},
		Current:          "feature",
		Protected:        []string{"main", "dev"},
		Merged: map[string][]string{
			"main": {"done"},
			"dev":  {"done", "remote-only"},
		},
		SubjectMaxLength: 50,
	}
}

func TestBuildClassifiesRecords(t *testing.T) {
	records := Build(sampleState())
	require.Len(t, records, 6)

	main := records["main"]
	assert.Equal(t, models.PresenceBoth, main.Presence)
	assert.True(t, main.IsProtected)
	assert.False(t, main.IsMerged)

	feature := records["feature"]
	assert.True(t, feature.IsCurrent)
	assert.False(t, feature.IsWorktreeBound, "the current branch is not worktree-bound")
	assert.Equal(t, "local feature work", feature.LastCommit.Subject, "local metadata wins for Both")
	assert.Equal(t, int64(120), feature.LastCommit.Timestamp)

	wt := records["wt-branch"]
	assert.Equal(t, models.PresenceLocalOnly, wt.Presence)
	assert.True(t, wt.IsWorktreeBound)

	remoteOnly := records["remote-only"]
	assert.Equal(t, models.PresenceRemoteOnly, remoteOnly.Presence)
	assert.False(t, remoteOnly.IsMerged, "remote-only branches are never merged")

	done := records["done"]
	assert.True(t, done.IsMerged)
	assert.False(t, done.Blocked())
}

func TestBuildIsIdempotent(t *testing.T) {
	state := sampleState()
	assert.Equal(t, Build(state), Build(state))
}

func TestBuildTruncatesSubject(t *testing.T) {
	state := RepositoryState{
		Local:            []git.RefEntry{ref("long", 1, strings.Repeat("x", 80))},
		SubjectMaxLength: 50,
	}
	assert.Len(t, Build(state)["long"].LastCommit.Subject, 50)

	state.SubjectMaxLength = 0
	assert.Len(t, Build(state)["long"].LastCommit.Subject, 80)
}

func TestBuildDetachedHead(t *testing.T) {
	state := RepositoryState{
		Local:            []git.RefEntry{ref("a", 1, "")},
		WorktreeBranches: []string{"a"},
	}
	rec := Build(state)["a"]
	assert.False(t, rec.IsCurrent)
	assert.True(t, rec.IsWorktreeBound)
}

type fakeSource struct {
	mu          sync.Mutex
	local       []git.RefEntry
	remote      []git.RefEntry
	current     string
	worktrees   []string
	merged      map[string][]string
	mergedCalls []string
	remoteArg   string
	failOn      string
	listCalls   atomic.Int32
	block       chan struct{}
}

func (f *fakeSource) fail(op string) error {
	if f.failOn == op {
		return errors.New(op + " failed")
	}
	return nil
}

func (f *fakeSource) ListLocalBranches(context.Context) ([]git.RefEntry, error) {
	f.listCalls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.local, f.fail("local")
}

func (f *fakeSource) ListRemoteBranches(_ context.Context, remote string) ([]git.RefEntry, error) {
	f.mu.Lock()
	f.remoteArg = remote
	f.mu.Unlock()
	return f.remote, f.fail("remote")
}

func (f *fakeSource) CurrentBranch(context.Context) (string, error) {
	return f.current, f.fail("current")
}

func (f *fakeSource) WorktreeBranches(context.Context) ([]string, error) {
	return f.worktrees, f.fail("worktrees")
}

func (f *fakeSource) MergedBranches(_ context.Context, base string) ([]string, error) {
	f.mu.Lock()
	f.mergedCalls = append(f.mergedCalls, base)
	f.mu.Unlock()
	return f.merged[base], f.fail("merged")
}

func newSource() *fakeSource {
	return &fakeSource{
		local:     []git.RefEntry{ref("main", 1, "root"), ref("topic", 2, "topic")},
		remote:    []git.RefEntry{ref("main", 1, "root"), ref("gone", 3, "remote")},
		current:   "main",
		worktrees: []string{"main"},
		merged:    map[string][]string{"main": {"topic"}},
	}
}

func TestClassifyQueriesOnlyExistingProtectedBranches(t *testing.T) {
	src := newSource()
	c := NewClassifier(src, Options{Remote: "upstream", Protected: []string{"main", "dev", "main"}, SubjectMaxLength: 50})

	records, err := c.Classify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"main"}, src.mergedCalls, "dev does not exist locally")
	assert.Equal(t, "upstream", src.remoteArg)
	assert.True(t, records["topic"].IsMerged)
	assert.True(t, records["main"].IsCurrent)
	assert.Equal(t, models.PresenceRemoteOnly, records["gone"].Presence)
}

func TestClassifyDefaultsRemote(t *testing.T) {
	src := newSource()
	_, err := NewClassifier(src, Options{}).Classify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "origin", src.remoteArg)
}

func TestClassifyFailureReturnsNoMap(t *testing.T) {
	for _, op := range []string{"local", "remote", "current", "worktrees", "merged"} {
		t.Run(op, func(t *testing.T) {
			src := newSource()
			src.failOn = op
			records, err := NewClassifier(src, Options{Protected: []string{"main"}}).Classify(context.Background())
			require.ErrorIs(t, err, ErrClassificationFailed)
			assert.Contains(t, err.Error(), op+" failed")
			assert.Nil(t, records)
		})
	}
}

func TestClassifyCollapsesConcurrentCalls(t *testing.T) {
	src := newSource()
	src.block = make(chan struct{})
	c := NewClassifier(src, Options{Protected: []string{"main"}})

	var wg sync.WaitGroup
	results := make([]models.BranchMap, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records, err := c.Classify(context.Background())
			assert.NoError(t, err)
			results[i] = records
		}()
	}

	// let the callers pile up on the in-flight classification
	time.Sleep(50 * time.Millisecond)
	close(src.block)
	wg.Wait()

	assert.Less(t, src.listCalls.Load(), int32(4))
	for _, r := range results {
		names := make([]string, 0, len(r))
		for name := range r {
			names = append(names, name)
		}
		sort.Strings(names)
		assert.Equal(t, []string{"gone", "main", "topic"}, names)
	}
}
