package deletion

import "fmt"

// Progress is emitted after every finished operation.
type Progress struct {
	Completed int
	Total     int
	Label     string
}

// Percent returns the completed fraction in [0, 1].
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Completed) / float64(p.Total)
}

func (p Progress) String() string {
	return fmt.Sprintf("Deleted %d/%d: %s", p.Completed, p.Total, p.Label)
}

// ConfirmationRequest asks the controller whether an unmerged branch may be
// force deleted. The answer goes back through Engine.Respond with the same ID.
type ConfirmationRequest struct {
	ID     uint64
	Branch string
	Reason string
}

// Completed carries the final report of a run. It is emitted exactly once.
type Completed struct {
	Report Report
}

// Listener receives engine events on the engine goroutine. Implementations
// must not block.
type Listener interface {
	OnProgress(Progress)
	OnConfirmationNeeded(ConfirmationRequest)
	OnCompleted(Completed)
}

// Event is one of Progress, ConfirmationRequest or Completed.
type Event interface {
	isEvent()
}

func (Progress) isEvent()            {}
func (ConfirmationRequest) isEvent() {}
func (Completed) isEvent()           {}

// ChannelListener forwards events to a buffered channel. The channel holds
// one progress and one confirmation per operation plus the completion, so
// the engine never waits on a slow reader. It is closed after Completed.
type ChannelListener struct {
	ch chan Event
}

// NewChannelListener sizes the channel for a batch of n operations.
func NewChannelListener(n int) *ChannelListener {
	return &ChannelListener{ch: make(chan Event, 2*n+1)}
}

// Events returns the receive side of the channel.
func (l *ChannelListener) Events() <-chan Event {
	return l.ch
}

// OnProgress implements Listener.
func (l *ChannelListener) OnProgress(p Progress) {
	l.ch <- p
}

// OnConfirmationNeeded implements Listener.
func (l *ChannelListener) OnConfirmationNeeded(r ConfirmationRequest) {
	l.ch <- r
}

// OnCompleted implements Listener.
func (l *ChannelListener) OnCompleted(c Completed) {
	l.ch <- c
	close(l.ch)
}
