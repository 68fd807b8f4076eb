// cmd/clanker is the command-line entry point to ClankerOS's hosted kernel
// core, standing in for the real bootloader a freestanding build would have.
package main

import (
	"context"
	"os"

	"github.com/itisrazza/ClankerOS/internal/cli"
	"github.com/itisrazza/ClankerOS/internal/cli/cmd"
)

var commands = []cli.Command{
	cmd.Demo(),
	cmd.Boot(),
}

// Entry point.
func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(os.Args[1:])

	os.Exit(result)
}
