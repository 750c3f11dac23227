package deletion

import (
	"errors"
	"sync"
	"time"

	log "github.com/chmouel/lazybranch/internal/log"
)

// Broker errors.
var (
	ErrBrokerClosed          = errors.New("confirmation broker closed")
	ErrStaleConfirmation     = errors.New("confirmation answer does not match the pending request")
	ErrNoPendingConfirmation = errors.New("no confirmation request was issued with this id")
)

// slot is a single-use answer box for one request.
type slot struct {
	id     uint64
	answer chan bool
}

// Broker is the rendezvous between the engine goroutine, which asks, and the
// controller, which answers. At most one request is pending at a time.
type Broker struct {
	timeout time.Duration
	poll    time.Duration

	mu      sync.Mutex
	nextID  uint64
	pending *slot
	closed  bool
	done    chan struct{}
}

// NewBroker returns a Broker. Unanswered requests are declined after timeout;
// cancellation is checked every poll.
func NewBroker(timeout, poll time.Duration) *Broker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &Broker{timeout: timeout, poll: poll, done: make(chan struct{})}
}

// Ask publishes a request and blocks until it is answered, times out, or
// cancelled reports true. Only a closed broker is an error; timeout and
// cancellation are a decline.
func (b *Broker) Ask(branch, reason string, publish func(ConfirmationRequest), cancelled func() bool) (bool, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false, ErrBrokerClosed
	}
	b.nextID++
	s := &slot{id: b.nextID, answer: make(chan bool, 1)}
	b.pending = s
	b.mu.Unlock()

	defer b.clear(s)

	if publish != nil {
		publish(ConfirmationRequest{ID: s.id, Branch: branch, Reason: reason})
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	for {
		select {
		case accepted := <-s.answer:
			log.Printf("confirm: %s request %d answered %t", branch, s.id, accepted)
			return accepted, nil
		case <-b.done:
			return false, ErrBrokerClosed
		case <-ticker.C:
			if cancelled != nil && cancelled() {
				log.Printf("confirm: %s request %d interrupted by cancellation", branch, s.id)
				return false, nil
			}
		case <-timer.C:
			log.Printf("confirm: %s request %d timed out after %s", branch, s.id, b.timeout)
			return false, nil
		}
	}
}

func (b *Broker) clear(s *slot) {
	b.mu.Lock()
	if b.pending == s {
		b.pending = nil
	}
	b.mu.Unlock()
}

// Respond answers the pending request with the given id. Answers for a
// request that already ended, or for another request, are rejected and
// never reach a later request.
func (b *Broker) Respond(id uint64, accept bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}
	if id == 0 || id > b.nextID {
		return ErrNoPendingConfirmation
	}
	if b.pending == nil || b.pending.id != id {
		return ErrStaleConfirmation
	}

	s := b.pending
	b.pending = nil
	s.answer <- accept
	return nil
}

// Close fails the pending request and every later one with ErrBrokerClosed.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
}
