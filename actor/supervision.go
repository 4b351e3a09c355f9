package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/arvostack/actorcore/logger"
)

// LifecyclePolicy controls whether a reference is eligible for restart when
// its supervisor decides to retry it.
type LifecyclePolicy int

const (
	// Undefined is treated as Permanent.
	Undefined LifecyclePolicy = iota
	// Permanent actors restart on failure if the strategy allows it.
	Permanent
	// Temporary actors stop on failure and are never restarted.
	Temporary
)

func (p LifecyclePolicy) String() string {
	switch p {
	case Permanent:
		return "Permanent"
	case Temporary:
		return "Temporary"
	default:
		return "Undefined"
	}
}

// TrappedExceptions classifies which failures a strategy will restart
// rather than let stop the child outright. A nil predicate traps
// everything, matching spec.md's "AnyError" scenarios.
type TrappedExceptions func(reason error) bool

// TrapAny matches any failure reason.
func TrapAny(error) bool { return true }

// Strategy is the tagged variant spec.md section 3 describes: AllForOne,
// OneForOne, or NoStrategy.
type Strategy interface {
	isStrategy()
	traps(reason error) bool
}

type allForOne struct {
	trapped    TrappedExceptions
	maxRetries int
	window     time.Duration
}

func (allForOne) isStrategy() {}
func (s allForOne) traps(reason error) bool {
	if s.trapped == nil {
		return true
	}
	return s.trapped(reason)
}

// AllForOne restarts every linked child (including the one that failed)
// whenever a trapped failure occurs. maxRetries <= 0 together with
// window <= 0 makes the family immortal — always restarted, never
// escalated.
func AllForOne(trapped TrappedExceptions, maxRetries int, window time.Duration) Strategy {
	return allForOne{trapped: trapped, maxRetries: maxRetries, window: window}
}

type oneForOne struct {
	trapped    TrappedExceptions
	maxRetries int
	window     time.Duration
}

func (oneForOne) isStrategy() {}
func (s oneForOne) traps(reason error) bool {
	if s.trapped == nil {
		return true
	}
	return s.trapped(reason)
}

// OneForOne restarts only the failing child on a trapped failure.
func OneForOne(trapped TrappedExceptions, maxRetries int, window time.Duration) Strategy {
	return oneForOne{trapped: trapped, maxRetries: maxRetries, window: window}
}

type noStrategy struct{}

func (noStrategy) isStrategy()      {}
func (noStrategy) traps(error) bool { return false }

// NoStrategy never traps: any child failure just stops the child.
func NoStrategy() Strategy { return noStrategy{} }

// System messages. These travel through the same mailbox and FIFO ordering
// as user messages (spec.md section 5); only their type distinguishes them.

// ChildFailed is delivered to a supervisor when one of its children's
// behavior panicked.
type ChildFailed struct {
	Child  *Reference
	Reason error
}

// ChildStopped is delivered to a supervisor when one of its children
// stopped cleanly (not via a trapped failure).
type ChildStopped struct {
	Child *Reference
}

// MaxRestartsExceeded is delivered to a supervisor when a child's restart
// budget has been exhausted within its configured window.
type MaxRestartsExceeded struct {
	Child      *Reference
	MaxRetries int
	Window     time.Duration
	Reason     error
}

// ReceiveTimeout is delivered to a reference itself when its mailbox has
// sat empty for its configured receive-timeout.
type ReceiveTimeout struct{}

// receiveTimeoutTick is the internal system payload the timer schedules;
// invoke() translates it into the user-visible ReceiveTimeout before handing
// it to the behavior.
type receiveTimeoutTick struct{}

// handleChildFailed implements the supervisor side of spec.md section 4.4:
// consult the strategy, and either request a restart or stop the child (or,
// under AllForOne, every linked sibling).
func (r *Reference) handleChildFailed(msg ChildFailed) {
	r.mu.Lock()
	strategy := r.strategy
	r.mu.Unlock()

	switch s := strategy.(type) {
	case nil:
		msg.Child.stopUnsupervised(r)
	case noStrategy:
		msg.Child.stopUnsupervised(r)
	case oneForOne:
		if s.traps(msg.Reason) {
			msg.Child.requestRestart(msg.Reason, s.maxRetries, s.window, r)
		} else {
			msg.Child.stopUnsupervised(r)
		}
	case allForOne:
		if s.traps(msg.Reason) {
			for _, sibling := range r.linkedSnapshot() {
				sibling.requestRestart(msg.Reason, s.maxRetries, s.window, r)
			}
		} else {
			msg.Child.stopUnsupervised(r)
		}
	default:
		msg.Child.stopUnsupervised(r)
	}
}

// stopUnsupervised stops r after detaching it from parent first, so Stop's
// generic ChildStopped notification — which would cascade under the
// parent's AllForOne strategy — never fires for a stop the supervisor
// itself already decided on (an untrapped or escalated failure, not a
// clean voluntary stop).
func (r *Reference) stopUnsupervised(parent *Reference) {
	r.mu.Lock()
	r.supervisor = nil
	r.mu.Unlock()
	if parent != nil {
		parent.mu.Lock()
		delete(parent.linkedChildren, r.id)
		parent.mu.Unlock()
	}
	r.Stop()
}

// handleChildStopped implements spec.md section 4.4's "clean child stop"
// handling, including this repository's decision (SPEC_FULL.md section 13)
// that AllForOne stops every remaining sibling on a clean stop too.
func (r *Reference) handleChildStopped(msg ChildStopped) {
	r.mu.Lock()
	strategy := r.strategy
	delete(r.linkedChildren, msg.Child.id)
	r.mu.Unlock()

	if _, ok := strategy.(allForOne); ok {
		for _, sibling := range r.linkedSnapshot() {
			sibling.Stop()
		}
	}
}

func (r *Reference) linkedSnapshot() []*Reference {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Reference, 0, len(r.linkedChildren))
	for _, c := range r.linkedChildren {
		out = append(out, c)
	}
	return out
}

// requestRestart implements spec.md section 4.4's request_restart
// operation. sup is the supervisor driving the decision, used only to
// deliver MaxRestartsExceeded if the budget is exhausted.
func (r *Reference) requestRestart(reason error, maxRetries int, window time.Duration, sup *Reference) {
	r.mu.Lock()
	if r.status == StatusShutdown {
		r.mu.Unlock()
		return
	}

	now := time.Now()
	if window > 0 && !r.windowStart.IsZero() && now.Sub(r.windowStart) > window {
		r.retryCount = 0
		r.windowStart = now
	}
	if r.windowStart.IsZero() {
		r.windowStart = now
	}
	r.retryCount++

	immortal := window <= 0 && maxRetries <= 0
	exceeded := !immortal && maxRetries > 0 && r.retryCount > maxRetries

	policy := r.policy
	r.mu.Unlock()

	// Both branches below stop r while it is still attached to a failure
	// it caused, not a clean stop. r.supervisor is cleared first so Stop's
	// generic ChildStopped notification (which, under AllForOne, would
	// incorrectly cascade-stop r's siblings a second time) never fires;
	// the supervisor is notified explicitly with the message that actually
	// describes what happened instead.
	if exceeded {
		logger.Log(fmt.Sprintf("actor %s: restart budget exceeded (max=%d window=%s)", r.DisplayID(), maxRetries, window))
		r.stopUnsupervised(sup)
		if sup != nil {
			_ = sup.dispatcher.dispatch(&Envelope{
				Receiver: sup,
				Payload: MaxRestartsExceeded{
					Child: r, MaxRetries: maxRetries, Window: window,
					Reason: fmt.Errorf("%w: %v", ErrMaxRestartsExceeded, reason),
				},
			})
		}
		return
	}

	if policy == Temporary {
		r.stopUnsupervised(sup)
		return
	}

	r.restart(reason, 0)

	for _, grandchild := range r.linkedSnapshot() {
		grandchild.requestRestart(reason, maxRetries, window, r)
	}
}

// restart is the restart protocol from spec.md section 4.4. depth guards
// the "retry one recursion level" rule when the protocol itself fails.
func (r *Reference) restart(reason error, depth int) {
	r.mu.Lock()
	r.status = StatusBeingRestarted
	failed := r.instance
	lastMessage := interface{}(nil)
	if r.currentEnvelope != nil {
		lastMessage = r.currentEnvelope.Payload
	}
	r.mu.Unlock()

	err := r.runRestartProtocol(failed, reason, lastMessage)
	if err != nil {
		logger.Log(fmt.Sprintf("actor %s: restart protocol failed: %v", r.DisplayID(), err))
		if depth >= 1 {
			r.Stop()
			return
		}
		r.restart(reason, depth+1)
		return
	}

	r.mu.Lock()
	r.currentEnvelope = nil
	r.status = StatusRunning
	r.mu.Unlock()

	if r.dispatcher != nil {
		r.dispatcher.resume(r)
	}
}

func (r *Reference) runRestartProtocol(failed Instance, reason error, lastMessage interface{}) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during restart: %v", rec)
		}
	}()

	ctx := r.rootContext()

	if pr, ok := failed.(PreRestarter); ok {
		pr.PreRestart(ctx, reason, lastMessage)
	}

	fresh := r.nextInstance(failed)
	if fresh == nil {
		return errors.New("restart produced a nil instance")
	}

	r.mu.Lock()
	r.instance = fresh
	r.hotswap = []Behavior{fresh.Receive}
	r.mu.Unlock()

	if ps, ok := fresh.(PreStarter); ok {
		if startErr := ps.PreStart(ctx); startErr != nil {
			return startErr
		}
	}
	if pr, ok := fresh.(PostRestarter); ok {
		pr.PostRestart(ctx, reason)
	}
	return nil
}

func (r *Reference) nextInstance(failed Instance) Instance {
	if provider, ok := failed.(FreshInstanceProvider); ok {
		if fresh := provider.FreshInstance(); fresh != nil {
			return fresh
		}
	}
	inst, err := r.buildInstance()
	if err != nil {
		logger.Log(fmt.Sprintf("actor %s: factory failed during restart: %v", r.DisplayID(), err))
		return nil
	}
	return inst
}
