// Command regtool is an interactive register shell for one STM32F2 GPIO
// port, over a simulated port or a /dev/mem window on a Linux host.
//
//	regtool -port B                    # simulated GPIOB
//	regtool -mem /dev/mem -port A      # real GPIOA
//	regtool -c 'write ODR 0x20; dump'  # one-shot
package main

import (
	"flag"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/platinasystems/log"
	"github.com/pkg/errors"

	"regmap-go/drivers/stm32f2gpio"
	"regmap-go/mmio"
	"regmap-go/regs"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, color.Output); err != nil {
		log.Print("user", "err", err)
		os.Exit(1)
	}
}

// openPort is replaced in tests.
var openPort = open

// run returns rather than exits so the port is closed on every path.
func run(args []string, stdin *os.File, out io.Writer) (err error) {
	fs := flag.NewFlagSet("regtool", flag.ContinueOnError)
	mem := fs.String("mem", "", "physical memory device (empty simulates the port)")
	port := fs.String("port", "A", "GPIO port letter A..I")
	cmds := fs.String("c", "", "run ';' separated commands and exit")
	trace := fs.Bool("trace", false, "record bus transactions (simulation only)")
	noColor := fs.Bool("no-color", false, "disable colour output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	interactive := isatty.IsTerminal(stdin.Fd()) || isatty.IsCygwinTerminal(stdin.Fd())
	if *noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	t, closer, err := openPort(*mem, *port)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close")
		}
	}()
	t.out = out
	if t.sim != nil {
		t.sim.SetTrace(*trace)
	}

	switch {
	case *cmds != "":
		return t.script(*cmds)
	case interactive:
		return t.shell()
	}
	return t.lines(stdin)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// open binds the port either to a simulated SimPort or to memPath.
func open(memPath, letter string) (*tool, io.Closer, error) {
	if len(letter) != 1 {
		return nil, nil, errors.Errorf("bad port %q", letter)
	}
	l := letter[0]
	base, ok := stm32f2gpio.PortBase(l)
	if !ok {
		return nil, nil, errors.Errorf("no GPIO port %q", letter)
	}

	if memPath == "" {
		sim := mmio.NewSim()
		sp, err := stm32f2gpio.AttachSim(sim, base)
		if err != nil {
			return nil, nil, errors.Wrap(err, "simulate port")
		}
		sp.ResetTo(l)
		p, err := stm32f2gpio.OpenPort(l, sim, regs.WithGuard(&regs.MutexGuard{}))
		if err != nil {
			return nil, nil, errors.Wrap(err, "bind port")
		}
		log.Printf("regtool: simulated %s at %s", p.Name(), mmio.Hex(uint64(base)))
		return newTool(p, sim, sp), nopCloser{}, nil
	}

	m, err := openMem(memPath, base, stm32f2gpio.PortStride)
	if err != nil {
		return nil, nil, err
	}
	p, err := stm32f2gpio.OpenPort(l, m, regs.WithGuard(&regs.MutexGuard{}))
	if err != nil {
		m.Close()
		return nil, nil, errors.Wrap(err, "bind port")
	}
	log.Printf("regtool: %s at %s via %s", p.Name(), mmio.Hex(uint64(base)), memPath)
	return newTool(p, nil, nil), m, nil
}
