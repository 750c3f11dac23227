// Package deletion executes a batch of branch deletions in the background
// with progress events, confirmation of unmerged force deletes and
// cancellation.
package deletion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chmouel/lazybranch/internal/branches"
	"github.com/chmouel/lazybranch/internal/git"
	log "github.com/chmouel/lazybranch/internal/log"
)

// ErrEngineUsed is returned by Start on an engine that already ran a batch.
var ErrEngineUsed = errors.New("deletion engine already started")

// ReasonCancelled is recorded for a remote side skipped by cancellation.
const ReasonCancelled = "cancelled"

// Deleter runs the git deletions. *git.Service implements it.
type Deleter interface {
	DeleteLocalBranch(ctx context.Context, name string, force bool) git.Result
	DeleteRemoteBranch(ctx context.Context, remote, name string) git.Result
}

// State is the lifecycle of an engine.
type State int32

// Engine states.
const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// Options configures an Engine.
type Options struct {
	Remote         string
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Engine runs one batch of deletion operations on its own goroutine, one git
// call at a time.
type Engine struct {
	deleter  Deleter
	listener Listener
	broker   *Broker
	remote   string

	state     atomic.Int32
	cancelled atomic.Bool
	done      chan struct{}

	mu     sync.Mutex
	report Report
}

// NewEngine returns an idle engine.
func NewEngine(deleter Deleter, listener Listener, opts Options) *Engine {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	return &Engine{
		deleter:  deleter,
		listener: listener,
		broker:   NewBroker(opts.ConfirmTimeout, opts.PollInterval),
		remote:   opts.Remote,
		done:     make(chan struct{}),
	}
}

// Start launches the batch and returns immediately. An engine runs at most
// one batch.
func (e *Engine) Start(ctx context.Context, ops []branches.DeletionOperation) error {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrEngineUsed
	}
	queued := append([]branches.DeletionOperation(nil), ops...)
	log.Printf("engine: starting batch of %d operation(s)", len(queued))
	go e.run(ctx, queued)
	return nil
}

// Cancel asks the run to stop before its next operation, or to abandon a
// pending confirmation. A git call already running is left to finish.
func (e *Engine) Cancel() {
	if e.cancelled.CompareAndSwap(false, true) {
		log.Printf("engine: cancellation requested")
	}
}

// Respond answers a confirmation request.
func (e *Engine) Respond(id uint64, accept bool) error {
	return e.broker.Respond(id, accept)
}

// Close shuts the broker down: a pending confirmation fails and the run
// stops with ErrBrokerClosed.
func (e *Engine) Close() {
	e.broker.Close()
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Running reports whether a batch is in progress.
func (e *Engine) Running() bool {
	return e.State() == StateRunning
}

// Done is closed after the completion event has been delivered.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the run ends or timeout elapses and reports whether it
// ended.
func (e *Engine) Wait(timeout time.Duration) bool {
	if e.State() == StateIdle {
		return true
	}
	select {
	case <-e.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Report returns the final report once Done is closed.
func (e *Engine) Report() Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.report
}

func (e *Engine) isCancelled() bool {
	return e.cancelled.Load()
}

// run owns the batch. The context only requests cancellation: git calls run
// on a detached context so an interrupt never kills them halfway.
func (e *Engine) run(ctx context.Context, ops []branches.DeletionOperation) {
	execCtx := context.WithoutCancel(ctx)
	report := Report{Outcomes: make([]Outcome, 0, len(ops))}

	for i, op := range ops {
		if ctx.Err() != nil {
			e.Cancel()
		}
		if e.isCancelled() {
			report.Cancelled = true
			break
		}

		outcome, interrupted, err := e.execute(execCtx, op)
		report.Outcomes = append(report.Outcomes, outcome)
		log.Printf("engine: %s %s", op.Name(), outcome.State())
		e.listener.OnProgress(Progress{Completed: i + 1, Total: len(ops), Label: op.Name()})

		if err != nil {
			report.Err = err
			break
		}
		if interrupted {
			report.Cancelled = true
			break
		}
	}

	e.mu.Lock()
	e.report = report
	e.mu.Unlock()

	final := StateCompleted
	if report.Cancelled {
		final = StateCancelled
	}
	e.state.Store(int32(final))

	log.Printf("engine: %s", report.Summary())
	e.listener.OnCompleted(Completed{Report: report})
	close(e.done)
}

// execute runs both sides of op. interrupted reports a cancel observed while
// waiting for a force-delete answer.
func (e *Engine) execute(ctx context.Context, op branches.DeletionOperation) (outcome Outcome, interrupted bool, err error) {
	outcome = Outcome{Branch: op.Name()}

	if op.Local() {
		res := e.deleter.DeleteLocalBranch(ctx, op.Name(), false)
		switch {
		case res.OK():
			outcome.Local = succeeded()
		case git.IsNotFullyMerged(res.Stderr):
			accepted, askErr := e.broker.Ask(op.Name(), res.Detail(), e.listener.OnConfirmationNeeded, e.isCancelled)
			if askErr != nil {
				outcome.Local = failed(ReasonNotConfirmed)
				if op.Remote() {
					outcome.Remote = skipped(askErr.Error())
				}
				return outcome, false, askErr
			}
			if !accepted {
				outcome.Local = failed(ReasonNotConfirmed)
				if e.isCancelled() {
					if op.Remote() {
						outcome.Remote = skipped(ReasonCancelled)
					}
					return outcome, true, nil
				}
				break
			}
			forced := e.deleter.DeleteLocalBranch(ctx, op.Name(), true)
			if forced.OK() {
				outcome.Local = succeeded()
				outcome.Forced = true
			} else {
				outcome.Local = failed(forced.Detail())
			}
		default:
			outcome.Local = failed(res.Detail())
		}
	}

	if op.Remote() {
		res := e.deleter.DeleteRemoteBranch(ctx, e.remote, op.Name())
		if res.OK() {
			outcome.Remote = succeeded()
		} else {
			outcome.Remote = failed(res.Detail())
		}
	}

	return outcome, false, nil
}
