package registry

import (
	"testing"

	"github.com/arvostack/actorcore/actor"
	"github.com/stretchr/testify/require"
)

type noop struct{}

func (noop) Receive(ctx actor.Context) {}

func newTestReference(t *testing.T) *actor.Reference {
	d := actor.NewDispatcher()
	t.Cleanup(d.Close)
	ref := actor.NewReference(func() actor.Instance { return noop{} }, actor.MailboxConfig{}, d)
	require.NoError(t, ref.Start())
	t.Cleanup(ref.Stop)
	return ref
}

func TestRegisterAndLookup(t *testing.T) {
	reg := New()
	ref := newTestReference(t)

	require.NoError(t, reg.Register("worker", ref))

	found, err := reg.Lookup("worker")
	require.NoError(t, err)
	require.Equal(t, ref.UUID(), found.UUID())

	found, err = reg.LookupByID(ref.UUID())
	require.NoError(t, err)
	require.Equal(t, ref.UUID(), found.UUID())
}

func TestRegisterRejectsNameCollisionWithDifferentReference(t *testing.T) {
	reg := New()
	a := newTestReference(t)
	b := newTestReference(t)

	require.NoError(t, reg.Register("worker", a))
	err := reg.Register("worker", b)
	require.ErrorIs(t, err, ErrNameTaken)
}

func TestRegisterSameNameSameReferenceIsIdempotent(t *testing.T) {
	reg := New()
	ref := newTestReference(t)

	require.NoError(t, reg.Register("worker", ref))
	require.NoError(t, reg.Register("worker", ref))
}

func TestUnregisterRemovesBothIndexes(t *testing.T) {
	reg := New()
	ref := newTestReference(t)
	require.NoError(t, reg.Register("worker", ref))

	reg.Unregister(ref.UUID())

	_, err := reg.Lookup("worker")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = reg.LookupByID(ref.UUID())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListReturnsEverythingTracked(t *testing.T) {
	reg := New()
	a := newTestReference(t)
	b := newTestReference(t)
	reg.Add(a)
	require.NoError(t, reg.Register("b", b))

	require.Len(t, reg.List(), 2)
	require.Equal(t, 2, reg.Len())
}

func TestNameOfReportsRegisteredName(t *testing.T) {
	reg := New()
	ref := newTestReference(t)

	_, ok := reg.NameOf(ref.UUID())
	require.False(t, ok)

	require.NoError(t, reg.Register("worker", ref))
	name, ok := reg.NameOf(ref.UUID())
	require.True(t, ok)
	require.Equal(t, "worker", name)
}
