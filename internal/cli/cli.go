// Package cli contains the command-line interface that stands in for the
// bootloader handing control to ClankerOS's hosted kernel core: each
// sub-command (boot, demo, help) drives internal/kernel the way a real
// Multiboot command line and entry stub would.
package cli

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/itisrazza/ClankerOS/internal/log"
)

// Command represents a sub-command in the CLI. Each sub-command can have their own flags, config
// and action to perform.
type Command interface {
	// FlagSet returns a set of command options the command accepts.
	FlagSet() *flag.FlagSet

	// Description returns a brief description of the command's function.
	Description() string

	// Usage prints detailed command documentation.
	Usage(out io.Writer) error

	// Run executes the command with arguments. Command output should be written to |out|. It
	// returns an exit code. TODO: Should be an enum, instead of an exit code.
	Run(ctx context.Context, args []string, out io.Writer, logger *log.Logger) int
}

// Commander is a CLI command-runner that handles the life cycle of a CLI command execution.
type Commander struct {
	ctx context.Context
	log *log.Logger

	help     Command
	commands []Command
}

// New creates a new |Commander| that can start sub-commands.
func New(ctx context.Context) *Commander {
	return &Commander{
		ctx: ctx,
	}
}

// Execute runs a command, if configured. Every dispatch - found or missing,
// successful or not - is logged with the same structured attrs internal/log
// gives the rest of ClankerOS's subsystems (log.String, log.Int), so a CLI
// invocation reads in the scrollback the same way a kernel boot does,
// rather than as loose key/value pairs bolted onto a log.Error call.
func (cli *Commander) Execute(args []string) int {
	// If the CLI is started with no argumens, use the default "help" command.
	if len(args) == 0 {
		flag.Parse()
		cli.help.Run(cli.ctx, nil, os.Stdout, cli.log)

		return 1
	}

	// Find a command with the same name as the word on the CLI arguments.
	name := args[0]
	found := cli.help // Default, if no match.
	matched := false

	for _, cmd := range cli.commands {
		if name == cmd.FlagSet().Name() {
			found, matched = cmd, true
		}
	}

	if !matched {
		cli.log.Warn("no such command, falling back to help", log.String("command", name))
	}

	// We found our command to run (or the help command). Now, we slice off the first argument, the
	// command name, and parse the command's flags.
	fs := found.FlagSet()
	args = args[1:]

	if err := fs.Parse(args); err != nil {
		cli.log.Error("parse error", log.String("command", name), log.Any("err", err))
		return 1
	}

	code := found.Run(cli.ctx, fs.Args(), os.Stdout, cli.log)

	cli.log.Debug("command finished", log.String("command", fs.Name()), log.Int("exit_code", code))

	return code
}

// WithCommands adds a list of commands as sub-commands.
func (cli *Commander) WithCommands(cmds []Command) *Commander {
	cli.commands = append([]Command(nil), cmds...)
	return cli
}

// WithHelp configures the help message a command.
func (cli *Commander) WithHelp(cmd Command) *Commander {
	cli.help = cmd
	return cli
}

// WithLogger configures the logger for the CLI. Logs are written to os.Stderr to leave os.Stdout
// for program output.
func (cli *Commander) WithLogger(out *os.File) *Commander {
	logger := log.NewFormattedLogger(os.Stderr)
	cli.log = logger

	log.SetDefault(logger)

	return cli
}

// Type aliases from std lib.
type (
	Flag    = flag.Flag
	FlagSet = flag.FlagSet
)
