package actor

import (
	"fmt"
	"sync"
	"time"

	"github.com/arvostack/actorcore/logger"
)

// ReplySink is the common contract for the "reply" leg of an Envelope: a
// place the receiver can deliver a response or a fault to. spec.md section 3
// describes the reply channel as one of {none, another reference, a
// pending-future sink}; nil models "none", *Reference models "another
// reference", and *Future models the pending-future sink.
type ReplySink interface {
	deliver(payload interface{})
	fault(err error)
}

// Envelope is an immutable message-in-flight: a destination reference, an
// opaque payload, and an optional reply sink. Nothing in this package
// mutates an Envelope after construction.
type Envelope struct {
	Receiver *Reference
	Payload  interface{}
	Reply    ReplySink
}

// deliver implements ReplySink for *Reference: replying to a reference is a
// fire-and-forget Tell back to it, with no reply channel of its own.
func (r *Reference) deliver(payload interface{}) {
	_ = r.Tell(payload, nil)
}

// fault implements ReplySink for *Reference. A plain reference has no way to
// observe a fault; it's logged and dropped, same as any other message a
// SHUTDOWN actor can no longer receive.
func (r *Reference) fault(err error) {
	logger.Log(fmt.Sprintf("actor %s: reply channel faulted: %v", r.DisplayID(), err))
}

// Future is the single-use reply sink returned by Ask. It completes with
// the first delivered payload, is faulted if the target's behavior panics
// while handling the request, or times out after its deadline.
// Once resolved (by whichever of those happens first), later deliveries are
// silently discarded.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value interface{}
	err   error
	timer *time.Timer
}

func newFuture(timeout time.Duration) *Future {
	f := &Future{done: make(chan struct{})}
	if timeout > 0 {
		f.timer = time.AfterFunc(timeout, func() {
			f.fault(ErrTimedOut)
		})
	}
	return f
}

// NewPendingFuture constructs a Future outside of Ask, for collaborators
// (remote) that bridge a foreign reply mechanism onto the same ReplySink
// contract used inside this package.
func NewPendingFuture(timeout time.Duration) *Future {
	return newFuture(timeout)
}

// Deliver resolves the Future with payload, matching the ReplySink
// contract's deliver for callers outside this package.
func (f *Future) Deliver(payload interface{}) { f.deliver(payload) }

// Fault resolves the Future with err, matching the ReplySink contract's
// fault for callers outside this package.
func (f *Future) Fault(err error) { f.fault(err) }

func (f *Future) resolve(value interface{}, err error) {
	f.once.Do(func() {
		f.value, f.err = value, err
		if f.timer != nil {
			f.timer.Stop()
		}
		close(f.done)
	})
}

func (f *Future) deliver(payload interface{}) { f.resolve(payload, nil) }
func (f *Future) fault(err error)             { f.resolve(nil, err) }

// Wait blocks until the Future resolves, returning the delivered payload or
// the fault (including ErrTimedOut or ErrActorStopped).
func (f *Future) Wait() (interface{}, error) {
	<-f.done
	return f.value, f.err
}

// Done returns a channel that closes once the Future resolves, for callers
// that want to select on it alongside other work.
func (f *Future) Done() <-chan struct{} {
	return f.done
}
