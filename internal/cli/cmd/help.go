package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/itisrazza/ClankerOS/internal/cli"
	"github.com/itisrazza/ClankerOS/internal/log"
)

type help struct {
	cmd []cli.Command
}

var _ cli.Command = (*help)(nil)

// Help creates the fallback command: invoked explicitly as `clanker help`,
// with an optional command name to document, or implicitly whenever the
// commander cannot match a command.
func Help(cmd []cli.Command) *help {
	return &help{
		cmd: cmd,
	}
}

func (help) Description() string {
	return "display help for commands"
}

func (h help) FlagSet() *cli.FlagSet {
	return flag.NewFlagSet("help", flag.ExitOnError)
}

func (h help) Run(_ context.Context, args []string, _ io.Writer, _ *log.Logger) int {
	out := flag.CommandLine.Output()

	if len(args) != 1 {
		if err := h.Usage(out); err != nil {
			return 1
		}

		return 0
	}

	for _, cmd := range h.cmd {
		if args[0] == cmd.FlagSet().Name() {
			h.printCommandHelp(out, cmd)
			return 0
		}
	}

	fmt.Fprintf(out, "help: no such command: %s\n", args[0])

	return 1
}

func (h *help) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `
clanker is a hosted i386 kernel core: interrupt dispatch, a periodic timer,
physical and virtual memory management, a kernel heap, a round-robin task
scheduler, and a panic/diagnostics path, driven from a command line since
there is no real bootloader handing it control here.

Usage:

        clanker <command> [option]... [arg]...

Commands:`)
	if err != nil {
		return err
	}

	for _, cmd := range h.cmd {
		fs := cmd.FlagSet()
		fmt.Fprintf(out, "  %-20s %s\n", fs.Name(), cmd.Description())
	}

	fmt.Fprintf(out, "  %-20s %s\n", h.FlagSet().Name(), h.Description())
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Use `clanker help <command>` to get help for a command.")

	return err
}

func (h *help) printCommandHelp(out io.Writer, cmd cli.Command) {
	_ = cmd.FlagSet().Parse(nil)

	fmt.Fprint(out, "Usage:\n\n        clanker ")

	if err := cmd.Usage(out); err != nil {
		return
	}

	fmt.Fprintln(out, "\nOptions:")
	cmd.FlagSet().PrintDefaults()
}
