package actor

// Factory produces a fresh Instance. Called once at Start, and again during
// a restart when the failed instance has no FreshInstanceProvider of its
// own.
type Factory func() Instance

// Instance is user-provided actor behavior: a function over payloads with
// access to self, sender, become, and unbecome via the Context it's given.
// Receive is the base behavior — the bottom of the hotswap stack — and is
// never popped by Unbecome.
type Instance interface {
	Receive(ctx Context)
}

// PreStarter lets an Instance run setup logic before it processes its first
// message, and again after every restart.
type PreStarter interface {
	PreStart(ctx Context) error
}

// PostStopper lets an Instance clean up once it has fully stopped.
type PostStopper interface {
	PostStop(ctx Context)
}

// PreRestarter is invoked on the failed instance before a fresh one is
// installed, with the failure reason and the message that was being
// processed (nil if none was in flight).
type PreRestarter interface {
	PreRestart(ctx Context, reason error, lastMessage interface{})
}

// PostRestarter is invoked on the fresh instance immediately after PreStart,
// with the reason the previous instance failed.
type PostRestarter interface {
	PostRestart(ctx Context, reason error)
}

// FreshInstanceProvider lets a failed instance hand the restart protocol a
// specific replacement instead of falling back to the original Factory.
type FreshInstanceProvider interface {
	FreshInstance() Instance
}

// Behavior is one entry in a reference's hotswap stack: a function that
// handles whatever message ctx.Message() currently holds.
type Behavior func(ctx Context)

// Context is what a Behavior sees when it runs: its own reference, the
// sender (if any), the in-flight message, reply helpers, hotswap, and the
// subset of link/unlink that spec.md section 6 exposes to user code.
type Context interface {
	// Self returns the reference currently processing the message.
	Self() *Reference
	// Sender returns the reference that sent the in-flight message, or nil
	// if it was sent with no reply channel or via Ask (whose reply channel
	// is a Future, not a reference).
	Sender() *Reference
	// Message returns the in-flight payload.
	Message() interface{}
	// Reply delivers payload to the in-flight message's reply sink, if any.
	Reply(payload interface{})
	// TryReply is like Reply but reports whether a reply sink was present.
	TryReply(payload interface{}) bool
	// Forward tells dest, preserving the in-flight message's original reply
	// sink, so dest's eventual reply reaches the original asker rather than
	// Self.
	Forward(dest *Reference, payload interface{}) error
	// Become pushes b onto Self's hotswap stack as the new active behavior.
	Become(b Behavior)
	// Unbecome pops the active behavior, unless only the base behavior
	// remains, in which case it is a no-op.
	Unbecome()
	// Link supervises child under Self.
	Link(child *Reference) error
	// Unlink removes child from Self's supervision.
	Unlink(child *Reference) error
}

// actorContext is the Context implementation handed to a Behavior during
// invoke. It is only valid for the duration of that single invocation.
type actorContext struct {
	ref      *Reference
	envelope *Envelope
}

func (c *actorContext) Self() *Reference { return c.ref }

func (c *actorContext) Sender() *Reference {
	if ref, ok := c.envelope.Reply.(*Reference); ok {
		return ref
	}
	return nil
}

func (c *actorContext) Message() interface{} { return c.envelope.Payload }

func (c *actorContext) Reply(payload interface{}) {
	c.TryReply(payload)
}

func (c *actorContext) TryReply(payload interface{}) bool {
	if c.envelope.Reply == nil {
		return false
	}
	c.envelope.Reply.deliver(payload)
	return true
}

func (c *actorContext) Forward(dest *Reference, payload interface{}) error {
	return dest.Tell(payload, c.envelope.Reply)
}

func (c *actorContext) Become(b Behavior) {
	c.ref.pushBehavior(b)
}

func (c *actorContext) Unbecome() {
	c.ref.popBehavior()
}

func (c *actorContext) Link(child *Reference) error {
	return c.ref.Link(child)
}

func (c *actorContext) Unlink(child *Reference) error {
	return c.ref.Unlink(child)
}
