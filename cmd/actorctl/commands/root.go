// Package commands implements the actorctl command tree, grounded on
// Roasbeef-substrate's cmd/substrate/commands package layout: one
// package-level *cobra.Command per file, wired together by an init in
// root.go.
package commands

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "actorctl",
	Short: "Inspect an actorcore supervision tree",
	Long: `actorctl spawns a small demo supervision tree against an in-process
dispatcher and registry, then exposes diagnostic enumeration over it:
listing every registered reference and inspecting one by uuid or name.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(inspectCmd)
}
