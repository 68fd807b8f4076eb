package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/itisrazza/ClankerOS/internal/boot"
	"github.com/itisrazza/ClankerOS/internal/cli"
	"github.com/itisrazza/ClankerOS/internal/console"
	"github.com/itisrazza/ClankerOS/internal/kernel"
	"github.com/itisrazza/ClankerOS/internal/log"
)

// Boot is the command that exercises the kernel's command-line surface:
// earlycon, boottest, testpanic, testpagefault, exactly as a real build
// would interpret the same tokens from the Multiboot command line.
func Boot() cli.Command {
	return new(bootCmd)
}

// bootCmd avoids colliding with the imported boot package name.
type bootCmd struct {
	earlycon      bool
	boottest      bool
	testpanic     bool
	testpagefault bool
}

func (bootCmd) Description() string {
	return "boot the kernel core with the given command-line tokens"
}

func (b bootCmd) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `
boot [ -earlycon ] [ -boottest ] [ -testpanic ] [ -testpagefault ]

Run the kernel's boot sequence with the given command-line tokens, mirroring
the tokens a real Multiboot command line would carry.`)

	return err
}

func (b *bootCmd) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("boot", flag.ExitOnError)

	fs.BoolVar(&b.earlycon, "earlycon", false, "send serial diagnostics to stdout during boot")
	fs.BoolVar(&b.boottest, "boottest", false, "run the boot-time self-tests")
	fs.BoolVar(&b.testpanic, "testpanic", false, "trigger the intentional test panic")
	fs.BoolVar(&b.testpagefault, "testpagefault", false, "trigger the intentional test page fault")

	return fs
}

func (b bootCmd) commandLine() string {
	var toks []string

	if b.earlycon {
		toks = append(toks, "earlycon")
	}

	if b.boottest {
		toks = append(toks, "boottest")
	}

	if b.testpanic {
		toks = append(toks, "testpanic")
	}

	if b.testpagefault {
		toks = append(toks, "testpagefault")
	}

	return strings.Join(toks, " ")
}

func (b bootCmd) Run(_ context.Context, _ []string, out io.Writer, _ *log.Logger) int {
	logger := log.DefaultLogger()

	serial := console.SinkFunc(func(c byte) { fmt.Fprintf(out, "%c", c) })

	k := kernel.New(kernel.NewHostedArch())

	info := &boot.Info{
		Flags:       boot.FlagMemory | boot.FlagCmdline,
		UpperMemKB:  64 * 1024,
		CommandLine: b.commandLine(),
	}

	if err := k.Init(info, 0, 0, console.NullSink{}, serial); err != nil {
		logger.Error("kernel init failed", "err", err)
		return 2
	}

	k.Enable()

	if b.boottest {
		failed := false

		for _, report := range k.BootSelfTests() {
			fmt.Fprintln(out, report.String())

			if !report.Pass {
				failed = true
			}
		}

		if failed {
			return 1
		}
	}

	if b.testpagefault {
		k.TestPageFault()
		return 0 // unreachable: TestPageFault halts forever.
	}

	if b.testpanic {
		k.TestPanic()
		return 0 // unreachable: TestPanic halts forever.
	}

	fmt.Fprintln(out, "boot complete")

	return 0
}
