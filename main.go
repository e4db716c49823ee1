// Weakevents hosts weak event subscriptions: see `weakevents --help` and the
// demo and serve commands.
package main

import (
	"os"

	"github.com/BitPonyLLC/weakevents/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
