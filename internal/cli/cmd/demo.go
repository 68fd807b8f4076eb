package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/itisrazza/ClankerOS/internal/boot"
	"github.com/itisrazza/ClankerOS/internal/cli"
	"github.com/itisrazza/ClankerOS/internal/console"
	"github.com/itisrazza/ClankerOS/internal/kernel"
	"github.com/itisrazza/ClankerOS/internal/log"
)

// Demo is a demonstration command.
func Demo() cli.Command {
	return new(demo)
}

type demo struct {
	debug bool
	quiet bool
	ticks int
}

func (demo) Description() string {
	return "run the three-task round-robin demo"
}

func (d demo) Usage(out io.Writer) error {
	var err error
	_, err = fmt.Fprintln(out, `
demo [ -debug | -quiet ] [ -ticks N ]

Boot the kernel core, spawn three tasks, and print the interleaved trace
the round-robin scheduler produces as simulated timer ticks fire.`)

	return err
}

func (d *demo) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)

	fs.BoolVar(&d.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&d.quiet, "quiet", false, "enable quiet output, trace only")
	fs.IntVar(&d.ticks, "ticks", 50, "maximum simulated timer ticks to run")

	return fs
}

func (d demo) Run(_ context.Context, _ []string, out io.Writer, _ *log.Logger) int {
	if d.quiet {
		log.LogLevel.Set(log.Error)
	}

	if d.debug {
		log.LogLevel.Set(log.Debug)
	}

	logger := log.NewFormattedLogger(os.Stdout)
	log.SetDefault(logger)
	log.DefaultLogger = func() *log.Logger {
		return logger
	}

	logger.Info("initializing kernel")

	k := kernel.New(kernel.NewHostedArch())

	info := &boot.Info{Flags: boot.FlagMemory, UpperMemKB: 64 * 1024}
	if err := k.Init(info, 0, 0, console.NullSink{}, console.NullSink{}); err != nil {
		logger.Error("kernel init failed", "err", err)
		return 2
	}

	k.Enable()

	const iterations = 5

	k.SpawnDemoTask("P1", iterations, 0x00100000)
	k.SpawnDemoTask("P2", iterations, 0x00100010)
	k.SpawnDemoTask("P3", iterations, 0x00100020)

	logger.Info("running round robin demo", log.Int("max_ticks", d.ticks))

	for _, tag := range k.RunDemo(d.ticks) {
		fmt.Fprintln(out, tag)
	}

	logger.Info("demo completed")

	return 0
}
