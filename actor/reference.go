package actor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arvostack/actorcore/logger"
	"github.com/google/uuid"
)

// LifecycleStatus is a Reference's position in the state machine spec.md
// section 3 describes: monotonic except that RUNNING and BEING_RESTARTED
// may alternate any number of times before a reference finally reaches
// SHUTDOWN.
type LifecycleStatus int32

const (
	StatusUnstarted LifecycleStatus = iota
	StatusRunning
	StatusBeingRestarted
	StatusShutdown
)

func (s LifecycleStatus) String() string {
	switch s {
	case StatusUnstarted:
		return "UNSTARTED"
	case StatusRunning:
		return "RUNNING"
	case StatusBeingRestarted:
		return "BEING_RESTARTED"
	case StatusShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// ReferenceOption configures a Reference at construction time, mirroring
// the DispatcherOption functional-options pattern.
type ReferenceOption func(*Reference)

// WithDisplayID sets a human-readable id distinct from the reference's
// uuid. Defaults to the uuid's string form.
func WithDisplayID(id string) ReferenceOption {
	return func(r *Reference) { r.displayID = id }
}

// WithFaultHandler sets the reference's supervision strategy for its
// children. Defaults to NoStrategy.
func WithFaultHandler(s Strategy) ReferenceOption {
	return func(r *Reference) { r.strategy = s }
}

// WithLifecyclePolicy sets whether this reference is eligible for restart
// when its own supervisor decides to retry it. Defaults to Undefined
// (treated as Permanent).
func WithLifecyclePolicy(p LifecyclePolicy) ReferenceOption {
	return func(r *Reference) { r.policy = p }
}

// WithReceiveTimeout configures a one-shot receive-timeout per spec.md
// section 4.5: once the mailbox goes empty after an invocation, a timer of
// this duration is armed; firing delivers ReceiveTimeout{} to the behavior.
func WithReceiveTimeout(d time.Duration) ReferenceOption {
	return func(r *Reference) { r.receiveTimeout = d }
}

// Reference is the public, serializable handle to an actor: the 40% of the
// implementation budget spec.md section 2 assigns it. It owns a mailbox and
// a mutable actor-instance cell, tracks lifecycle status, and embeds the
// supervision engine (strategy, retry counter, window accounting).
type Reference struct {
	id         uuid.UUID
	displayID  string
	mailbox    Mailbox
	dispatcher *Dispatcher
	factory    Factory

	// mu is "the reference lock": it protects status transitions,
	// linked_children mutation, retry accounting, and installation of a
	// fresh actor instance. It is distinct from mailboxLock, which the
	// dispatcher holds only while actually draining this reference.
	mu             sync.Mutex
	status         LifecycleStatus
	instance       Instance
	hotswap        []Behavior
	linkedChildren map[uuid.UUID]*Reference
	supervisor     *Reference // weak back-edge: never the owning direction

	strategy Strategy
	policy   LifecyclePolicy

	retryCount  int
	windowStart time.Time

	currentEnvelope *Envelope

	receiveTimeout time.Duration
	timeoutTimer   *time.Timer

	// mailboxLock is the dispatcher's single-writer guarantee for this
	// reference: exactly one worker may hold it at a time.
	mailboxLock sync.Mutex
	suspended   int32 // atomic bool
	scheduled   int32 // atomic bool, dispatcher scheduling dedup
}

// NewReference constructs an UNSTARTED reference bound to dispatcher. factory
// is called (once) to produce the actor instance when Start runs.
func NewReference(factory Factory, cfg MailboxConfig, dispatcher *Dispatcher, opts ...ReferenceOption) *Reference {
	r := &Reference{
		id:             uuid.New(),
		mailbox:        newQueueMailbox(cfg),
		dispatcher:     dispatcher,
		factory:        factory,
		status:         StatusUnstarted,
		linkedChildren: make(map[uuid.UUID]*Reference),
		strategy:       NoStrategy(),
		policy:         Undefined,
	}
	r.displayID = r.id.String()
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UUID returns the reference's immutable identity. Reference equality is
// uuid equality.
func (r *Reference) UUID() uuid.UUID { return r.id }

// DisplayID returns the human-readable id (defaults to the uuid string).
func (r *Reference) DisplayID() string { return r.displayID }

// Status returns the current lifecycle status.
func (r *Reference) Status() LifecycleStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// SetDispatcher rebinds the reference to a different dispatcher. Only valid
// before Start, per spec.md section 6.
func (r *Reference) SetDispatcher(d *Dispatcher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusUnstarted {
		return errors.New("actor: dispatcher can only be set before start")
	}
	r.dispatcher = d
	return nil
}

// MailboxSize reports the reference's current envelope count.
func (r *Reference) MailboxSize() int { return r.mailbox.Size() }

// MailboxIsEmpty reports whether the reference's mailbox is empty.
func (r *Reference) MailboxIsEmpty() bool { return r.mailbox.IsEmpty() }

func (r *Reference) isSuspended() bool { return atomic.LoadInt32(&r.suspended) == 1 }

// Start transitions the reference from UNSTARTED to RUNNING: it builds the
// actor instance, runs PreStart, registers with the dispatcher, and arms
// the receive-timeout if configured.
func (r *Reference) Start() error {
	r.mu.Lock()
	switch r.status {
	case StatusShutdown:
		r.mu.Unlock()
		return ErrAlreadyShutdown
	case StatusRunning, StatusBeingRestarted:
		r.mu.Unlock()
		return nil
	}
	if r.dispatcher == nil {
		r.mu.Unlock()
		return errors.New("actor: no dispatcher configured")
	}
	r.mu.Unlock()

	inst, err := r.buildInstance()
	if err != nil {
		r.mu.Lock()
		r.status = StatusShutdown
		r.mu.Unlock()
		logger.Log(fmt.Sprintf("actor %s: initialization failed: %v", r.displayID, err))
		return fmt.Errorf("%w: %v", ErrInitializationFailed, err)
	}

	if ps, ok := inst.(PreStarter); ok {
		if startErr := ps.PreStart(r.rootContext()); startErr != nil {
			r.mu.Lock()
			r.status = StatusShutdown
			r.mu.Unlock()
			logger.Log(fmt.Sprintf("actor %s: PreStart failed: %v", r.displayID, startErr))
			return fmt.Errorf("%w: %v", ErrInitializationFailed, startErr)
		}
	}

	r.mu.Lock()
	r.instance = inst
	r.hotswap = []Behavior{inst.Receive}
	r.status = StatusRunning
	r.mu.Unlock()

	r.dispatcher.attach(r)
	r.scheduleReceiveTimeout()
	return nil
}

// buildInstance calls the factory, converting a panic ("the factory
// threw", per spec.md section 7) into an error.
func (r *Reference) buildInstance() (inst Instance, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	inst = r.factory()
	if inst == nil {
		err = errors.New("factory returned a nil instance")
	}
	return inst, err
}

// rootContext is used for lifecycle hooks (PreStart/PostStop/PostRestart)
// that run outside the normal invoke() flow and so have no in-flight
// envelope of their own.
func (r *Reference) rootContext() Context {
	return &actorContext{ref: r, envelope: &Envelope{Receiver: r}}
}

// Tell sends payload fire-and-forget, with reply as the optional channel
// the destination can deliver a response to.
func (r *Reference) Tell(payload interface{}, reply ReplySink) error {
	if status := r.Status(); status != StatusRunning && status != StatusBeingRestarted {
		return ErrNotStarted
	}
	return r.dispatcher.dispatch(&Envelope{Receiver: r, Payload: payload, Reply: reply})
}

// Ask sends payload and returns a Future that completes with the first
// reply, faults if the behavior fails while handling it, or times out.
func (r *Reference) Ask(payload interface{}, timeout time.Duration) (*Future, error) {
	if status := r.Status(); status != StatusRunning && status != StatusBeingRestarted {
		return nil, ErrNotStarted
	}
	f := newFuture(timeout)
	if err := r.dispatcher.dispatch(&Envelope{Receiver: r, Payload: payload, Reply: f}); err != nil {
		return f, err
	}
	return f, nil
}

// Link installs r as child's supervisor. Fails with ErrAlreadySupervised if
// child already has one.
func (r *Reference) Link(child *Reference) error {
	first, second := lockPair(r, child)
	first.mu.Lock()
	defer first.mu.Unlock()
	if first != second {
		second.mu.Lock()
		defer second.mu.Unlock()
	}

	if child.supervisor != nil {
		return ErrAlreadySupervised
	}
	child.supervisor = r
	r.linkedChildren[child.id] = child
	return nil
}

// Unlink removes child from r's supervision. Fails with ErrNotLinked if
// child isn't currently linked to r.
func (r *Reference) Unlink(child *Reference) error {
	first, second := lockPair(r, child)
	first.mu.Lock()
	defer first.mu.Unlock()
	if first != second {
		second.mu.Lock()
		defer second.mu.Unlock()
	}

	if _, ok := r.linkedChildren[child.id]; !ok {
		return ErrNotLinked
	}
	delete(r.linkedChildren, child.id)
	child.supervisor = nil
	return nil
}

// StartLink atomically links then starts child, unlinking it again if Start
// fails.
func (r *Reference) StartLink(child *Reference) error {
	if err := r.Link(child); err != nil {
		return err
	}
	if err := child.Start(); err != nil {
		_ = r.Unlink(child)
		return err
	}
	return nil
}

// lockPair orders two references' locks consistently by uuid so concurrent
// Link/Unlink calls never deadlock regardless of call order (spec.md
// section 5's deadlock-avoidance requirement).
func lockPair(a, b *Reference) (first, second *Reference) {
	if a == b {
		return a, a
	}
	if a.id.String() < b.id.String() {
		return a, b
	}
	return b, a
}

// Stop is idempotent: it cascades to every linked child, cancels the
// receive-timeout, drains and faults the remaining mailbox, runs PostStop,
// detaches from the dispatcher, and — unless this stop is already the
// result of the supervisor's own decision (see stopUnsupervised) — notifies
// the supervisor with ChildStopped.
func (r *Reference) Stop() {
	r.mu.Lock()
	if r.status == StatusShutdown {
		r.mu.Unlock()
		return
	}
	r.status = StatusShutdown
	children := make([]*Reference, 0, len(r.linkedChildren))
	for _, c := range r.linkedChildren {
		children = append(children, c)
	}
	r.linkedChildren = make(map[uuid.UUID]*Reference)
	sup := r.supervisor
	r.supervisor = nil
	instance := r.instance
	r.mu.Unlock()

	r.cancelReceiveTimeout()
	r.drainMailboxOnStop()

	if ps, ok := instance.(PostStopper); ok {
		r.safePostStop(ps)
	}

	if r.dispatcher != nil {
		r.dispatcher.detach(r)
	}

	for _, c := range children {
		c.Stop()
	}

	if sup != nil {
		_ = sup.dispatcher.dispatch(&Envelope{Receiver: sup, Payload: ChildStopped{Child: r}})
	}
}

func (r *Reference) safePostStop(ps PostStopper) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Log(fmt.Sprintf("actor %s: PostStop panicked: %v", r.displayID, rec))
		}
	}()
	ps.PostStop(r.rootContext())
}

// drainMailboxOnStop discards every remaining envelope, faulting any ask
// reply channels with ErrActorStopped per spec.md section 5.
func (r *Reference) drainMailboxOnStop() {
	for {
		env, ok := r.mailbox.Dequeue()
		if !ok {
			return
		}
		if env.Reply != nil {
			env.Reply.fault(ErrActorStopped)
		}
	}
}

func (r *Reference) pushBehavior(b Behavior) {
	r.mu.Lock()
	r.hotswap = append(r.hotswap, b)
	r.mu.Unlock()
}

func (r *Reference) popBehavior() {
	r.mu.Lock()
	if len(r.hotswap) > 1 {
		r.hotswap = r.hotswap[:len(r.hotswap)-1]
	}
	r.mu.Unlock()
}

// invoke is called by the dispatcher, holding r.mailboxLock, for exactly
// one envelope. It implements spec.md section 4.3's invoke steps: status
// check, current-message tracking, receive-timeout cancellation, the
// behavior call itself, and the failure path (suspend, fault the reply,
// notify the supervisor or apply lifecycle policy).
func (r *Reference) invoke(env *Envelope) {
	if r.Status() == StatusShutdown {
		logger.Log(fmt.Sprintf("actor %s: dropping message for shutdown actor: %T", r.displayID, env.Payload))
		return
	}

	isTimeoutFire := false
	switch msg := env.Payload.(type) {
	case ChildFailed:
		r.handleChildFailed(msg)
		return
	case ChildStopped:
		r.handleChildStopped(msg)
		return
	case receiveTimeoutTick:
		isTimeoutFire = true
		env = &Envelope{Receiver: r, Payload: ReceiveTimeout{}}
	}

	r.mu.Lock()
	r.currentEnvelope = env
	r.mu.Unlock()
	r.cancelReceiveTimeout()

	ctx := &actorContext{ref: r, envelope: env}
	err := r.safeInvokeBehavior(ctx)

	if err == nil {
		r.mu.Lock()
		r.currentEnvelope = nil
		r.mu.Unlock()
		// A timeout firing is not itself a new empty-mailbox transition: it
		// only rearms once another real message is drained, per spec.md
		// section 4.5.
		if !isTimeoutFire && r.mailbox.IsEmpty() {
			r.scheduleReceiveTimeout()
		}
		return
	}

	logger.Log(fmt.Sprintf("actor %s: behavior failed: %v", r.displayID, err))
	r.dispatcher.suspend(r)
	if env.Reply != nil {
		env.Reply.fault(err)
	}

	r.mu.Lock()
	sup := r.supervisor
	policy := r.policy
	r.mu.Unlock()

	if sup != nil {
		_ = sup.dispatcher.dispatch(&Envelope{Receiver: sup, Payload: ChildFailed{Child: r, Reason: err}})
		return
	}

	if policy == Temporary {
		r.Stop()
		return
	}
	// Permanent/Undefined with no supervisor: the failure is logged above
	// and the actor simply continues with its next message.
	r.dispatcher.resume(r)
}

// safeInvokeBehavior calls the active (top-of-hotswap-stack) behavior,
// recovering a panic into an error so invoke() can drive the failure path.
func (r *Reference) safeInvokeBehavior(ctx Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	r.mu.Lock()
	top := r.hotswap[len(r.hotswap)-1]
	r.mu.Unlock()
	top(ctx)
	return nil
}

// scheduleReceiveTimeout arms a one-shot timer if a receive-timeout is
// configured. Called whenever the mailbox transitions to empty after an
// invocation, per spec.md section 4.5.
func (r *Reference) scheduleReceiveTimeout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.receiveTimeout <= 0 {
		return
	}
	if r.timeoutTimer != nil {
		r.timeoutTimer.Stop()
	}
	r.timeoutTimer = time.AfterFunc(r.receiveTimeout, func() {
		_ = r.dispatcher.dispatch(&Envelope{Receiver: r, Payload: receiveTimeoutTick{}})
	})
}

// cancelReceiveTimeout cancels any pending timer; every successful dequeue
// calls this before the behavior runs, per spec.md section 4.5.
func (r *Reference) cancelReceiveTimeout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timeoutTimer != nil {
		r.timeoutTimer.Stop()
		r.timeoutTimer = nil
	}
}
