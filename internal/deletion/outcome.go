package deletion

import "fmt"

// SideStatus is the result of one side (local or remote) of an operation.
type SideStatus int

// Side statuses.
const (
	SideNotRequested SideStatus = iota
	SideSucceeded
	SideFailed
	SideSkipped
)

func (s SideStatus) String() string {
	switch s {
	case SideSucceeded:
		return "succeeded"
	case SideFailed:
		return "failed"
	case SideSkipped:
		return "skipped"
	default:
		return "not requested"
	}
}

// ReasonNotConfirmed is recorded when a force delete was declined, timed out
// or interrupted by cancellation.
const ReasonNotConfirmed = "not confirmed"

// SideResult is the status of one side with the git diagnostic when it failed.
type SideResult struct {
	Status SideStatus
	Reason string
}

func succeeded() SideResult            { return SideResult{Status: SideSucceeded} }
func failed(reason string) SideResult  { return SideResult{Status: SideFailed, Reason: reason} }
func skipped(reason string) SideResult { return SideResult{Status: SideSkipped, Reason: reason} }

// OperationState summarises an outcome.
type OperationState int

// Operation states.
const (
	StateSucceeded OperationState = iota
	StatePartiallyFailed
	StateFailed
)

func (s OperationState) String() string {
	switch s {
	case StateSucceeded:
		return "succeeded"
	case StatePartiallyFailed:
		return "partially failed"
	default:
		return "failed"
	}
}

// Outcome records what happened to one operation.
type Outcome struct {
	Branch string
	Local  SideResult
	Remote SideResult
	// Forced is set when the local side needed a confirmed force delete.
	Forced bool
}

// State is Succeeded when every requested side succeeded, PartiallyFailed
// when at least one did, Failed otherwise.
func (o Outcome) State() OperationState {
	requested, ok := 0, 0
	for _, side := range []SideResult{o.Local, o.Remote} {
		if side.Status == SideNotRequested {
			continue
		}
		requested++
		if side.Status == SideSucceeded {
			ok++
		}
	}
	switch {
	case requested > 0 && ok == requested:
		return StateSucceeded
	case ok > 0:
		return StatePartiallyFailed
	default:
		return StateFailed
	}
}

// Report is the terminal result of a run.
type Report struct {
	Outcomes  []Outcome
	Cancelled bool
	// Err is set only when the run stopped on an unrecoverable error.
	Err error
}

// Failures returns one line per failed side, in operation order, formatted
// as "branch (side): reason".
func (r Report) Failures() []string {
	var lines []string
	for _, o := range r.Outcomes {
		if o.Local.Status == SideFailed {
			lines = append(lines, fmt.Sprintf("%s (local): %s", o.Branch, o.Local.Reason))
		}
		if o.Remote.Status == SideFailed {
			lines = append(lines, fmt.Sprintf("%s (remote): %s", o.Branch, o.Remote.Reason))
		}
	}
	return lines
}

// SucceededCount returns the number of fully successful operations.
func (r Report) SucceededCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State() == StateSucceeded {
			n++
		}
	}
	return n
}

// Summary is the one-line status shown once a run ends.
func (r Report) Summary() string {
	failures := len(r.Failures())
	switch {
	case r.Err != nil:
		return fmt.Sprintf("Deletion aborted after %d operation(s): %v", len(r.Outcomes), r.Err)
	case r.Cancelled:
		return fmt.Sprintf("Deletion cancelled: %d succeeded, %d failure(s)", r.SucceededCount(), failures)
	case failures > 0:
		return fmt.Sprintf("Deleted %d branch(es), %d failure(s)", r.SucceededCount(), failures)
	default:
		return fmt.Sprintf("Deleted %d branch(es)", r.SucceededCount())
	}
}
