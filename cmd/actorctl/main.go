// Command actorctl is a small diagnostic CLI over an actorcore supervision
// tree, grounded on Roasbeef-substrate's cmd/substrate/main.go (a thin
// wrapper that just calls commands.Execute()).
package main

import (
	"fmt"
	"os"

	"github.com/arvostack/actorcore/cmd/actorctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
