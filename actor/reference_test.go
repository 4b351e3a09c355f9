package actor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type echoInstance struct{}

func (echoInstance) Receive(ctx Context) {
	ctx.TryReply(ctx.Message())
}

// newTestDispatcher returns a dispatcher whose worker pool is closed, and
// only then checked for leaks, once the test finishes. A plain `defer
// goleak.VerifyNone` would run before this dispatcher's t.Cleanup(d.Close) —
// Go always runs a test's own deferred calls before its Cleanup callbacks —
// and would see the still-running worker goroutines as leaked. Registering
// the leak check itself as a Cleanup, before the dispatcher's own, fixes the
// order: t.Cleanup runs last-registered-first, so d.Close fires first.
func newTestDispatcher(t *testing.T) *Dispatcher {
	opt := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, opt) })
	d := NewDispatcher(WithWorkerCount(2))
	t.Cleanup(d.Close)
	return d
}

func TestReferenceAskReceivesReply(t *testing.T) {
	d := newTestDispatcher(t)
	ref := NewReference(func() Instance { return echoInstance{} }, MailboxConfig{}, d)
	require.NoError(t, ref.Start())
	defer ref.Stop()

	future, err := ref.Ask("ping", time.Second)
	require.NoError(t, err)

	value, err := future.Wait()
	require.NoError(t, err)
	require.Equal(t, "ping", value)
}

func TestReferenceTellBeforeStartFails(t *testing.T) {
	d := newTestDispatcher(t)
	ref := NewReference(func() Instance { return echoInstance{} }, MailboxConfig{}, d)

	err := ref.Tell("hi", nil)
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestReferenceStopIsIdempotentAndMonotonic(t *testing.T) {
	d := newTestDispatcher(t)
	ref := NewReference(func() Instance { return echoInstance{} }, MailboxConfig{}, d)
	require.NoError(t, ref.Start())

	ref.Stop()
	ref.Stop()
	require.Equal(t, StatusShutdown, ref.Status())

	err := ref.Tell("hi", nil)
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestReferenceStopFaultsPendingAsks(t *testing.T) {
	d := newTestDispatcher(t)

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})
	ref := NewReference(func() Instance { return &blockingInstance{block: block, started: started} }, MailboxConfig{}, d)
	require.NoError(t, ref.Start())

	// "first" parks the worker goroutine inside its single invocation of
	// invoke(), holding ref.mailboxLock, so "second" is guaranteed to still
	// be sitting in the mailbox (never dequeued) when Stop runs.
	_, err := ref.Ask("first", time.Second)
	require.NoError(t, err)
	<-started

	pending, err := ref.Ask("second", time.Second)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ref.MailboxSize() == 1 }, time.Second, 10*time.Millisecond)

	ref.Stop()

	_, err = pending.Wait()
	require.ErrorIs(t, err, ErrActorStopped)
}

type blockingInstance struct {
	block   chan struct{}
	started chan struct{}
	once    sync.Once
}

func (b *blockingInstance) Receive(ctx Context) {
	b.once.Do(func() { close(b.started) })
	<-b.block
	ctx.TryReply(ctx.Message())
}

func TestReferenceLinkAndUnlink(t *testing.T) {
	d := newTestDispatcher(t)
	parent := NewReference(func() Instance { return echoInstance{} }, MailboxConfig{}, d)
	require.NoError(t, parent.Start())
	defer parent.Stop()

	child := NewReference(func() Instance { return echoInstance{} }, MailboxConfig{}, d)
	require.NoError(t, parent.StartLink(child))
	require.Equal(t, parent, child.supervisor)

	err := parent.Link(child)
	require.ErrorIs(t, err, ErrAlreadySupervised)

	require.NoError(t, parent.Unlink(child))
	require.Nil(t, child.supervisor)

	err = parent.Unlink(child)
	require.ErrorIs(t, err, ErrNotLinked)
}

func TestReferenceUUIDStableAcrossStart(t *testing.T) {
	d := newTestDispatcher(t)
	ref := NewReference(func() Instance { return echoInstance{} }, MailboxConfig{}, d)
	before := ref.UUID()
	require.NoError(t, ref.Start())
	defer ref.Stop()
	require.Equal(t, before, ref.UUID())
}
