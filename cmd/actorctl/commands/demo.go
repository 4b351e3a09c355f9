package commands

import (
	"fmt"
	"time"

	"github.com/arvostack/actorcore/actor"
	"github.com/arvostack/actorcore/registry"
)

// echoActor is a minimal Instance used only to give the demo tree something
// to run: it replies to any message with the same payload it received.
type echoActor struct {
	name string
}

func (e *echoActor) Receive(ctx actor.Context) {
	ctx.TryReply(ctx.Message())
}

// buildDemoTree spawns a supervisor actor and two OneForOne-supervised
// children, registers all three under display names, and returns the
// populated registry along with the dispatcher so callers can Close it.
func buildDemoTree() (*registry.Registry, *actor.Dispatcher, error) {
	reg := registry.New()
	dispatcher := actor.NewDispatcher()

	supervisor := actor.NewReference(
		func() actor.Instance { return &echoActor{name: "supervisor"} },
		actor.MailboxConfig{},
		dispatcher,
		actor.WithDisplayID("supervisor"),
		actor.WithFaultHandler(actor.OneForOne(actor.TrapAny, 3, time.Minute)),
	)
	if err := supervisor.Start(); err != nil {
		return nil, nil, fmt.Errorf("actorctl: start supervisor: %w", err)
	}
	_ = reg.Register("supervisor", supervisor)

	for i := 1; i <= 2; i++ {
		name := fmt.Sprintf("worker-%d", i)
		worker := actor.NewReference(
			func() actor.Instance { return &echoActor{name: name} },
			actor.MailboxConfig{},
			dispatcher,
			actor.WithDisplayID(name),
			actor.WithLifecyclePolicy(actor.Permanent),
		)
		if err := supervisor.StartLink(worker); err != nil {
			return nil, nil, fmt.Errorf("actorctl: start %s: %w", name, err)
		}
		_ = reg.Register(name, worker)
	}

	return reg, dispatcher, nil
}
