// Command botcore runs the bot and exposes operator commands for its state.
package main

import (
	"fmt"
	"os"

	"github.com/drblury/botcore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
