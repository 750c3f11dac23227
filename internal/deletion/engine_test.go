package deletion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmouel/lazybranch/internal/branches"
	"github.com/chmouel/lazybranch/internal/git"
	"github.com/chmouel/lazybranch/internal/models"
)

const unmergedStderr = "error: The branch 'x' is not fully merged.\nIf you are sure you want to delete it, run 'git branch -D x'."

func planOps(scope models.Scope, names ...string) []branches.DeletionOperation {
	records := models.BranchMap{}
	for _, n := range names {
		records[n] = models.BranchRecord{Name: n, Presence: models.PresenceBoth}
	}
	return branches.PlanDeletion(names, records, scope).Eligible
}

type call struct {
	kind string // "-d", "-D" or "push"
	name string
}

type fakeDeleter struct {
	mu     sync.Mutex
	local  map[string]git.Result
	force  map[string]git.Result
	remote map[string]git.Result
	calls  []call
	onCall func(n int, c call)
}

func newFakeDeleter() *fakeDeleter {
	return &fakeDeleter{
		local:  map[string]git.Result{},
		force:  map[string]git.Result{},
		remote: map[string]git.Result{},
	}
}

func (f *fakeDeleter) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	n := len(f.calls)
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(n, c)
	}
}

func (f *fakeDeleter) DeleteLocalBranch(_ context.Context, name string, force bool) git.Result {
	if force {
		f.record(call{"-D", name})
		return f.force[name]
	}
	f.record(call{"-d", name})
	return f.local[name]
}

func (f *fakeDeleter) DeleteRemoteBranch(_ context.Context, remote, name string) git.Result {
	f.record(call{"push", remote + "/" + name})
	return f.remote[name]
}

func (f *fakeDeleter) callsOf(kind string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, c := range f.calls {
		if c.kind == kind {
			names = append(names, c.name)
		}
	}
	return names
}

// recorder is a Listener that keeps every event and can answer
// confirmations synchronously.
type recorder struct {
	mu        sync.Mutex
	progress  []Progress
	requests  []ConfirmationRequest
	completed []Completed
	onConfirm func(ConfirmationRequest)
}

func (r *recorder) OnProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recorder) OnConfirmationNeeded(req ConfirmationRequest) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	hook := r.onConfirm
	r.mu.Unlock()
	if hook != nil {
		hook(req)
	}
}

func (r *recorder) OnCompleted(c Completed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, c)
}

func testOptions() Options {
	return Options{Remote: "origin", ConfirmTimeout: 2 * time.Second, PollInterval: 5 * time.Millisecond}
}

func runToCompletion(t *testing.T, e *Engine, ops []branches.DeletionOperation) Report {
	t.Helper()
	require.NoError(t, e.Start(context.Background(), ops))
	require.True(t, e.Wait(5*time.Second), "engine did not finish")
	return e.Report()
}

func TestEngineDeletesInOrder(t *testing.T) {
	del := newFakeDeleter()
	rec := &recorder{}
	e := NewEngine(del, rec, testOptions())

	report := runToCompletion(t, e, planOps(models.ScopeBoth, "a", "b", "c"))

	assert.False(t, report.Cancelled)
	require.NoError(t, report.Err)
	assert.Equal(t, 3, report.SucceededCount())
	assert.Empty(t, report.Failures())
	assert.Equal(t, []call{
		{"-d", "a"}, {"push", "origin/a"},
		{"-d", "b"}, {"push", "origin/b"},
		{"-d", "c"}, {"push", "origin/c"},
	}, del.calls)

	require.Len(t, rec.progress, 3)
	for i, p := range rec.progress {
		assert.Equal(t, i+1, p.Completed)
		assert.Equal(t, 3, p.Total)
	}
	require.Len(t, rec.completed, 1)
	assert.Equal(t, StateCompleted, e.State())
	assert.False(t, e.Running())
}

func TestEngineRefusesSecondStart(t *testing.T) {
	e := NewEngine(newFakeDeleter(), &recorder{}, testOptions())
	runToCompletion(t, e, planOps(models.ScopeLocal, "a"))
	require.ErrorIs(t, e.Start(context.Background(), planOps(models.ScopeLocal, "b")), ErrEngineUsed)
}

func TestEngineUnmergedDeclined(t *testing.T) {
	del := newFakeDeleter()
	del.local["x"] = git.Result{ExitCode: 1, Stderr: unmergedStderr}
	rec := &recorder{}
	e := NewEngine(del, rec, testOptions())
	rec.onConfirm = func(req ConfirmationRequest) {
		assert.Equal(t, "x", req.Branch)
		assert.Contains(t, req.Reason, "not fully merged")
		assert.NoError(t, e.Respond(req.ID, false))
	}

	report := runToCompletion(t, e, planOps(models.ScopeLocal, "x"))

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, failed(ReasonNotConfirmed), report.Outcomes[0].Local)
	assert.Equal(t, StateFailed, report.Outcomes[0].State())
	assert.Empty(t, del.callsOf("-D"))
	assert.Equal(t, []string{"x (local): not confirmed"}, report.Failures())
}

func TestEngineUnmergedAccepted(t *testing.T) {
	del := newFakeDeleter()
	del.local["x"] = git.Result{ExitCode: 1, Stderr: unmergedStderr}
	rec := &recorder{}
	e := NewEngine(del, rec, testOptions())
	rec.onConfirm = func(req ConfirmationRequest) {
		assert.NoError(t, e.Respond(req.ID, true))
	}

	report := runToCompletion(t, e, planOps(models.ScopeLocal, "x"))

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, []string{"x"}, del.callsOf("-D"))
	assert.True(t, report.Outcomes[0].Forced)
	assert.Equal(t, StateSucceeded, report.Outcomes[0].State())
}

func TestEngineForceDeleteFailure(t *testing.T) {
	del := newFakeDeleter()
	del.local["x"] = git.Result{ExitCode: 1, Stderr: unmergedStderr}
	del.force["x"] = git.Result{ExitCode: 1, Stderr: "error: cannot lock ref"}
	rec := &recorder{}
	e := NewEngine(del, rec, testOptions())
	rec.onConfirm = func(req ConfirmationRequest) { _ = e.Respond(req.ID, true) }

	report := runToCompletion(t, e, planOps(models.ScopeLocal, "x"))
	assert.Equal(t, failed("error: cannot lock ref"), report.Outcomes[0].Local)
	assert.False(t, report.Outcomes[0].Forced)
}

func TestEngineRemoteFailureDoesNotStopBatch(t *testing.T) {
	del := newFakeDeleter()
	del.remote["a"] = git.Result{ExitCode: 1, Stderr: "error: unable to delete 'a': remote ref does not exist\n"}
	e := NewEngine(del, &recorder{}, testOptions())

	report := runToCompletion(t, e, planOps(models.ScopeBoth, "a", "b"))

	require.Len(t, report.Outcomes, 2)
	a := report.Outcomes[0]
	assert.Equal(t, succeeded(), a.Local)
	assert.Equal(t, failed("error: unable to delete 'a': remote ref does not exist"), a.Remote)
	assert.Equal(t, StatePartiallyFailed, a.State())
	assert.Equal(t, StateSucceeded, report.Outcomes[1].State())
	assert.Equal(t, []string{"a (remote): error: unable to delete 'a': remote ref does not exist"}, report.Failures())
}

func TestEngineLocalFailureIsVerbatim(t *testing.T) {
	del := newFakeDeleter()
	del.local["gone"] = git.Result{ExitCode: 1, Stderr: "error: branch 'gone' not found."}
	e := NewEngine(del, &recorder{}, testOptions())

	report := runToCompletion(t, e, planOps(models.ScopeLocal, "gone"))
	assert.Equal(t, failed("error: branch 'gone' not found."), report.Outcomes[0].Local)
	assert.Equal(t, SideNotRequested, report.Outcomes[0].Remote.Status)
}

func TestEngineCancelAfterK(t *testing.T) {
	for k := 1; k <= 3; k++ {
		del := newFakeDeleter()
		rec := &recorder{}
		e := NewEngine(del, rec, testOptions())
		del.onCall = func(n int, _ call) {
			if n == k {
				e.Cancel()
			}
		}

		report := runToCompletion(t, e, planOps(models.ScopeLocal, "a", "b", "c", "d"))

		assert.Len(t, report.Outcomes, k, "k=%d", k)
		assert.True(t, report.Cancelled)
		assert.Equal(t, StateCancelled, e.State())
		assert.Len(t, rec.progress, k)
		assert.Len(t, rec.completed, 1)
	}
}

func TestEngineContextCancelStopsBeforeFirstOperation(t *testing.T) {
	del := newFakeDeleter()
	e := NewEngine(del, &recorder{}, testOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, e.Start(ctx, planOps(models.ScopeLocal, "a", "b")))
	require.True(t, e.Wait(time.Second))

	report := e.Report()
	assert.True(t, report.Cancelled)
	assert.Empty(t, report.Outcomes)
	assert.Empty(t, del.calls)
}

func TestEngineCancelDuringConfirmation(t *testing.T) {
	del := newFakeDeleter()
	del.local["x"] = git.Result{ExitCode: 1, Stderr: unmergedStderr}
	rec := &recorder{}
	e := NewEngine(del, rec, testOptions())
	rec.onConfirm = func(ConfirmationRequest) { e.Cancel() }

	report := runToCompletion(t, e, planOps(models.ScopeBoth, "x", "y"))

	require.Len(t, report.Outcomes, 1)
	x := report.Outcomes[0]
	assert.Equal(t, failed(ReasonNotConfirmed), x.Local)
	assert.Equal(t, skipped(ReasonCancelled), x.Remote)
	assert.True(t, report.Cancelled)
	assert.Empty(t, del.callsOf("push"))
	assert.Empty(t, del.callsOf("-D"))
}

func TestEngineCancelDuringLastConfirmation(t *testing.T) {
	del := newFakeDeleter()
	del.local["x"] = git.Result{ExitCode: 1, Stderr: unmergedStderr}
	rec := &recorder{}
	e := NewEngine(del, rec, testOptions())
	rec.onConfirm = func(ConfirmationRequest) { e.Cancel() }

	report := runToCompletion(t, e, planOps(models.ScopeLocal, "x"))

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, failed(ReasonNotConfirmed), report.Outcomes[0].Local)
	assert.True(t, report.Cancelled)
	assert.Equal(t, StateCancelled, e.State())
}

func TestEngineCancelDuringLastDeleteCompletes(t *testing.T) {
	del := newFakeDeleter()
	rec := &recorder{}
	e := NewEngine(del, rec, testOptions())
	del.onCall = func(n int, _ call) {
		if n == 2 {
			e.Cancel()
		}
	}

	report := runToCompletion(t, e, planOps(models.ScopeLocal, "a", "b"))

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, 2, report.SucceededCount())
	assert.False(t, report.Cancelled, "every operation ran to the end")
	assert.Equal(t, StateCompleted, e.State())
}

func TestEngineConfirmationTimeoutDeclines(t *testing.T) {
	del := newFakeDeleter()
	del.local["x"] = git.Result{ExitCode: 1, Stderr: unmergedStderr}
	rec := &recorder{}
	opts := testOptions()
	opts.ConfirmTimeout = 20 * time.Millisecond
	e := NewEngine(del, rec, opts)

	report := runToCompletion(t, e, planOps(models.ScopeBoth, "x"))

	x := report.Outcomes[0]
	assert.Equal(t, failed(ReasonNotConfirmed), x.Local)
	assert.Equal(t, succeeded(), x.Remote, "a timeout is a decline, the remote side still runs")
	assert.False(t, report.Cancelled)
	require.Len(t, rec.requests, 1)
	assert.ErrorIs(t, e.Respond(rec.requests[0].ID, true), ErrStaleConfirmation)
}

func TestEngineCloseDuringConfirmationAborts(t *testing.T) {
	del := newFakeDeleter()
	del.local["x"] = git.Result{ExitCode: 1, Stderr: unmergedStderr}
	rec := &recorder{}
	e := NewEngine(del, rec, testOptions())
	rec.onConfirm = func(ConfirmationRequest) { go e.Close() }

	report := runToCompletion(t, e, planOps(models.ScopeLocal, "x", "y"))

	require.ErrorIs(t, report.Err, ErrBrokerClosed)
	assert.Len(t, report.Outcomes, 1)
	assert.False(t, report.Cancelled)
	assert.Equal(t, []string{"x"}, del.callsOf("-d"))
}

func TestEngineWithChannelListener(t *testing.T) {
	del := newFakeDeleter()
	del.local["b"] = git.Result{ExitCode: 1, Stderr: unmergedStderr}
	ops := planOps(models.ScopeLocal, "a", "b")
	listener := NewChannelListener(len(ops))
	e := NewEngine(del, listener, testOptions())

	require.NoError(t, e.Start(context.Background(), ops))

	var progress int
	var report *Report
	for ev := range listener.Events() {
		switch ev := ev.(type) {
		case Progress:
			progress++
		case ConfirmationRequest:
			require.NoError(t, e.Respond(ev.ID, true))
		case Completed:
			r := ev.Report
			report = &r
		}
	}

	assert.Equal(t, 2, progress)
	require.NotNil(t, report)
	assert.Equal(t, 2, report.SucceededCount())
}

func TestWaitOnIdleEngine(t *testing.T) {
	e := NewEngine(newFakeDeleter(), &recorder{}, Options{})
	assert.True(t, e.Wait(time.Millisecond))
	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, "origin", e.remote)
}
