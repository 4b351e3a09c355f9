package actor

import "errors"

// Error kinds surfaced across the reference lifecycle, send operations, and
// the supervision engine. Each is a sentinel value so callers can compare
// with errors.Is even after a call site has wrapped it with extra context.
var (
	// ErrNotStarted is returned when an operation requires the reference to
	// be RUNNING (or BEING_RESTARTED) but it is not.
	ErrNotStarted = errors.New("actor: not started")

	// ErrAlreadyShutdown is returned by Start on a reference that has
	// already transitioned to SHUTDOWN.
	ErrAlreadyShutdown = errors.New("actor: already shutdown")

	// ErrAlreadySupervised is returned by Link when the child already has a
	// supervisor.
	ErrAlreadySupervised = errors.New("actor: already supervised")

	// ErrNotLinked is returned by Unlink when the target is not a child of
	// the receiver.
	ErrNotLinked = errors.New("actor: not linked")

	// ErrTimedOut faults an ask Future whose deadline elapsed before a
	// reply arrived.
	ErrTimedOut = errors.New("actor: ask timed out")

	// ErrActorStopped faults any ask Future still pending when its target
	// actor stops.
	ErrActorStopped = errors.New("actor: actor stopped")

	// ErrMailboxAppendFailed is returned by a bounded mailbox's Enqueue when
	// the push-timeout elapses before a slot frees up.
	ErrMailboxAppendFailed = errors.New("actor: mailbox append failed")

	// ErrInitializationFailed wraps a panic or error raised by a factory or
	// PreStart hook.
	ErrInitializationFailed = errors.New("actor: initialization failed")

	// ErrMaxRestartsExceeded wraps the reason carried by a
	// MaxRestartsExceeded notification once a child's restart budget is
	// exhausted within its configured window.
	ErrMaxRestartsExceeded = errors.New("actor: max restarts exceeded")

	// ErrNotSupportedRemotely is returned by remote references for
	// operations spec.md reserves to local references: link, unlink,
	// spawn-family, and mailbox inspection.
	ErrNotSupportedRemotely = errors.New("actor: not supported remotely")
)
