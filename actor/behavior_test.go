package actor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type switchable struct{}

func (switchable) Receive(ctx Context) {
	if ctx.Message() == "lock" {
		ctx.Become(lockedBehavior)
		return
	}
	ctx.TryReply("base")
}

func lockedBehavior(ctx Context) {
	if ctx.Message() == "unlock" {
		ctx.Unbecome()
		return
	}
	ctx.TryReply("locked")
}

func TestBecomeSwapsActiveBehavior(t *testing.T) {
	d := newTestDispatcher(t)
	ref := NewReference(func() Instance { return switchable{} }, MailboxConfig{}, d)
	require.NoError(t, ref.Start())
	defer ref.Stop()

	ask := func(payload interface{}) interface{} {
		future, err := ref.Ask(payload, time.Second)
		require.NoError(t, err)
		value, err := future.Wait()
		require.NoError(t, err)
		return value
	}

	require.Equal(t, "base", ask("ping"))
	require.NoError(t, ref.Tell("lock", nil))
	require.Eventually(t, func() bool { return ask("ping") == "locked" }, time.Second, 10*time.Millisecond)
}

func TestUnbecomeNeverPopsBaseBehavior(t *testing.T) {
	d := newTestDispatcher(t)
	ref := NewReference(func() Instance { return switchable{} }, MailboxConfig{}, d)
	require.NoError(t, ref.Start())
	defer ref.Stop()

	ref.popBehavior()
	ref.popBehavior()

	future, err := ref.Ask("ping", time.Second)
	require.NoError(t, err)
	value, err := future.Wait()
	require.NoError(t, err)
	require.Equal(t, "base", value)
}

type forwarder struct{}

func (forwarder) Receive(ctx Context) {
	dest := ctx.Message().(*Reference)
	_ = ctx.Forward(dest, "forwarded")
}

func TestForwardPreservesOriginalReplySink(t *testing.T) {
	d := newTestDispatcher(t)
	downstream := NewReference(func() Instance { return echoInstance{} }, MailboxConfig{}, d)
	require.NoError(t, downstream.Start())
	defer downstream.Stop()

	ref := NewReference(func() Instance { return forwarder{} }, MailboxConfig{}, d)
	require.NoError(t, ref.Start())
	defer ref.Stop()

	future, err := ref.Ask(downstream, time.Second)
	require.NoError(t, err)

	value, err := future.Wait()
	require.NoError(t, err)
	require.Equal(t, "forwarded", value)
}
