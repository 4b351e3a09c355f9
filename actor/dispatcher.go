package actor

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/arvostack/actorcore/logger"
	"github.com/google/uuid"
)

// defaultThroughput bounds how many envelopes a single scheduling of a
// reference will drain before the worker yields and reschedules it, so one
// busy actor can't starve the rest of the pool.
const defaultThroughput = 30

// DispatcherOption configures a Dispatcher at construction time, the same
// functional-options shape the teacher's
// supervisor.NewSupervisorWithOptions already uses.
type DispatcherOption func(*dispatcherConfig)

type dispatcherConfig struct {
	workerCount int
	throughput  int
}

// WithWorkerCount sets the number of pool goroutines pulling ready
// references. Defaults to runtime.GOMAXPROCS(0).
func WithWorkerCount(n int) DispatcherOption {
	return func(c *dispatcherConfig) {
		if n > 0 {
			c.workerCount = n
		}
	}
}

// WithThroughput sets the per-scheduling envelope quota. Defaults to 30.
func WithThroughput(n int) DispatcherOption {
	return func(c *dispatcherConfig) {
		if n > 0 {
			c.throughput = n
		}
	}
}

// Dispatcher is the scheduler that owns a fixed worker-goroutine pool and
// pulls envelopes out of attached references' mailboxes, enforcing
// at-most-one concurrent invocation per reference. It generalizes the
// teacher's Supervisor.Run/runLoop — one goroutine per Supervisable — into N
// worker goroutines pulling ready references from a shared channel, which
// is what lets many actors share a bounded thread pool instead of consuming
// one goroutine each.
type Dispatcher struct {
	cfg dispatcherConfig

	mu       sync.RWMutex
	attached map[uuid.UUID]*Reference

	ready chan *Reference
	stop  chan struct{}
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// NewDispatcher starts a Dispatcher's worker pool and returns it ready to
// accept attach/dispatch calls.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	cfg := dispatcherConfig{
		workerCount: runtime.GOMAXPROCS(0),
		throughput:  defaultThroughput,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Dispatcher{
		cfg:      cfg,
		attached: make(map[uuid.UUID]*Reference),
		ready:    make(chan *Reference, cfg.workerCount*64),
		stop:     make(chan struct{}),
	}

	for i := 0; i < cfg.workerCount; i++ {
		d.wg.Add(1)
		go d.workerLoop()
	}
	return d
}

func (d *Dispatcher) workerLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		case ref := <-d.ready:
			d.runOnce(ref)
		}
	}
}

// runOnce acquires ref's mailbox lock (the single-writer guarantee spec.md
// section 4.1 requires) and drains up to the throughput quota.
func (d *Dispatcher) runOnce(ref *Reference) {
	ref.mailboxLock.Lock()
	defer ref.mailboxLock.Unlock()

	for i := 0; i < d.cfg.throughput; i++ {
		if ref.isSuspended() {
			break
		}
		env, ok := ref.mailbox.Dequeue()
		if !ok {
			break
		}
		ref.invoke(env)
	}

	atomic.StoreInt32(&ref.scheduled, 0)
	if !ref.mailbox.IsEmpty() && !ref.isSuspended() {
		d.scheduleRef(ref)
	}
}

// scheduleRef pushes ref onto the ready queue, deduplicating concurrent
// schedule requests so a reference is never queued twice at once.
func (d *Dispatcher) scheduleRef(ref *Reference) {
	if !atomic.CompareAndSwapInt32(&ref.scheduled, 0, 1) {
		return
	}
	select {
	case d.ready <- ref:
	default:
		// Pool's ready buffer is saturated; don't block the caller (which
		// may be a producer's goroutine), hand off asynchronously instead.
		go func() { d.ready <- ref }()
	}
}

// attach registers ref with the dispatcher and assigns it d as its
// dispatcher handle.
func (d *Dispatcher) attach(ref *Reference) {
	d.mu.Lock()
	d.attached[ref.id] = ref
	d.mu.Unlock()
}

// detach deregisters ref. Per spec.md section 4.2 this may shut the
// dispatcher down once its reference count reaches zero; actorcore leaves
// that to the caller via Close rather than doing it implicitly, since an
// implicit shutdown would surprise a dispatcher shared across a supervision
// tree that's merely between spawns.
func (d *Dispatcher) detach(ref *Reference) {
	d.mu.Lock()
	delete(d.attached, ref.id)
	d.mu.Unlock()
}

// dispatch enqueues env on its receiver's mailbox and ensures a worker is
// scheduled to drain it.
func (d *Dispatcher) dispatch(env *Envelope) error {
	if err := env.Receiver.mailbox.Enqueue(env); err != nil {
		logger.Log(fmt.Sprintf("actor %s: %v", env.Receiver.DisplayID(), err))
		if env.Reply != nil {
			env.Reply.fault(err)
		}
		return err
	}
	d.scheduleRef(env.Receiver)
	return nil
}

// suspend halts dequeuing for ref until resume is called. Already-running
// invocations finish their current envelope before the suspension takes
// effect.
func (d *Dispatcher) suspend(ref *Reference) {
	atomic.StoreInt32(&ref.suspended, 1)
}

// resume clears a suspension and reschedules ref if its mailbox has
// messages waiting.
func (d *Dispatcher) resume(ref *Reference) {
	atomic.StoreInt32(&ref.suspended, 0)
	if !ref.mailbox.IsEmpty() {
		d.scheduleRef(ref)
	}
}

// mailboxIsEmpty reports whether ref's mailbox currently has no envelopes.
func (d *Dispatcher) mailboxIsEmpty(ref *Reference) bool {
	return ref.mailbox.IsEmpty()
}

// mailboxSize reports ref's current envelope count.
func (d *Dispatcher) mailboxSize(ref *Reference) int {
	return ref.mailbox.Size()
}

// Close stops every worker goroutine. Attached references are left as-is;
// callers are expected to Stop() them first if a clean shutdown of the
// whole tree is wanted.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.stop)
	})
	d.wg.Wait()
}
