package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <uuid-or-name>",
	Short: "Show detail for one reference in the demo supervision tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	reg, dispatcher, err := buildDemoTree()
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	target := args[0]

	ref, lookupErr := reg.Lookup(target)
	if lookupErr != nil {
		id, parseErr := uuid.Parse(target)
		if parseErr != nil {
			return fmt.Errorf("actorctl: %q is neither a registered name nor a valid uuid", target)
		}
		ref, lookupErr = reg.LookupByID(id)
		if lookupErr != nil {
			return fmt.Errorf("actorctl: no reference registered for %q", target)
		}
	}

	name, _ := reg.NameOf(ref.UUID())
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "name:     %s\n", name)
	fmt.Fprintf(out, "uuid:     %s\n", ref.UUID())
	fmt.Fprintf(out, "status:   %s\n", ref.Status())
	fmt.Fprintf(out, "mailbox:  %d envelope(s), empty=%v\n", ref.MailboxSize(), ref.MailboxIsEmpty())
	return nil
}
