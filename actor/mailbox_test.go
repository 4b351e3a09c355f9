package actor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueMailboxFIFOOrder(t *testing.T) {
	m := newQueueMailbox(MailboxConfig{})

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Enqueue(&Envelope{Payload: i}))
	}
	require.Equal(t, 5, m.Size())

	for i := 0; i < 5; i++ {
		env, ok := m.Dequeue()
		require.True(t, ok)
		require.Equal(t, i, env.Payload)
	}

	_, ok := m.Dequeue()
	require.False(t, ok)
	require.True(t, m.IsEmpty())
}

func TestQueueMailboxBoundedFailsFastWithoutTimeout(t *testing.T) {
	m := newQueueMailbox(MailboxConfig{Capacity: 1})

	require.NoError(t, m.Enqueue(&Envelope{Payload: "first"}))
	err := m.Enqueue(&Envelope{Payload: "second"})
	require.ErrorIs(t, err, ErrMailboxAppendFailed)
}

func TestQueueMailboxBoundedUnblocksAfterDequeue(t *testing.T) {
	m := newQueueMailbox(MailboxConfig{Capacity: 1, PushTimeout: 200 * time.Millisecond})

	require.NoError(t, m.Enqueue(&Envelope{Payload: "first"}))

	unblocked := make(chan error, 1)
	go func() {
		unblocked <- m.Enqueue(&Envelope{Payload: "second"})
	}()

	time.Sleep(20 * time.Millisecond)
	_, ok := m.Dequeue()
	require.True(t, ok)

	select {
	case err := <-unblocked:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("enqueue never unblocked after a slot freed")
	}
}

func TestQueueMailboxBoundedTimesOutWhenFull(t *testing.T) {
	m := newQueueMailbox(MailboxConfig{Capacity: 1, PushTimeout: 30 * time.Millisecond})

	require.NoError(t, m.Enqueue(&Envelope{Payload: "first"}))
	err := m.Enqueue(&Envelope{Payload: "second"})
	require.ErrorIs(t, err, ErrMailboxAppendFailed)
}

func TestQueueMailboxUnboundedNeverBlocks(t *testing.T) {
	m := newQueueMailbox(MailboxConfig{})
	for i := 0; i < 1000; i++ {
		require.NoError(t, m.Enqueue(&Envelope{Payload: i}))
	}
	require.Equal(t, 1000, m.Size())
}
