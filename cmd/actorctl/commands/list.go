package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every reference in the demo supervision tree",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	reg, dispatcher, err := buildDemoTree()
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	for _, ref := range reg.List() {
		name, _ := reg.NameOf(ref.UUID())
		fmt.Fprintf(
			cmd.OutOrStdout(), "%-12s %s  status=%s  mailbox=%d\n",
			name, ref.UUID(), ref.Status(), ref.MailboxSize(),
		)
	}
	return nil
}
