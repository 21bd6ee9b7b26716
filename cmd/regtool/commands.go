package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"regmap-go/drivers/stm32f2gpio"
	"regmap-go/errcode"
	"regmap-go/mmio"
	"regmap-go/regs"
	"regmap-go/x/conv"
)

var errQuit = errors.New("quit")

var (
	faint   = color.New(color.Faint).SprintFunc()
	bold    = color.New(color.Bold).SprintFunc()
	valueOf = color.New(color.FgCyan).SprintFunc()
	warnOf  = color.New(color.FgYellow).SprintFunc()
	errOf   = color.New(color.FgRed).SprintFunc()
)

// tool holds one bound port. sim and sp are nil on real memory.
type tool struct {
	port *stm32f2gpio.Port
	blk  *regs.Block
	sim  *mmio.Sim
	sp   *stm32f2gpio.SimPort
	out  io.Writer
}

func newTool(p *stm32f2gpio.Port, sim *mmio.Sim, sp *stm32f2gpio.SimPort) *tool {
	return &tool{port: p, blk: p.Block(), sim: sim, sp: sp, out: io.Discard}
}

type command struct {
	usage string
	help  string
	run   func(t *tool, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"read":   {"read FIELD", "load one field", (*tool).read},
		"write":  {"write FIELD VALUE", "store one field", (*tool).write},
		"modify": {"modify FIELD SET [CLEAR]", "read, clear then set bits, write back", (*tool).modify},
		"dump":   {"dump [-e]", "read every readable field (-e includes reads with effects)", (*tool).dump},
		"layout": {"layout", "list the fields of the block", (*tool).layout},
		"pin":    {"pin N get|set|reset|toggle|config|mode MODE [PULL]", "operate on one pin", (*tool).pin},
		"lock":   {"lock MASK", "run the configuration lock sequence", (*tool).lock},
		"trace":  {"trace [on|off|clear]", "show recorded bus transactions", (*tool).trace},
		"drive":  {"drive N 0|1", "apply an external level to a simulated input", (*tool).drive},
		"help":   {"help", "list commands", (*tool).help},
		"quit":   {"quit", "leave the shell", func(*tool, []string) error { return errQuit }},
	}
}

// exec runs one split command line. Bus faults raised as panics by the
// simulated address space come back as errors.
func (t *tool) exec(args []string) (err error) {
	if len(args) == 0 {
		return nil
	}
	name := strings.ToLower(args[0])
	if name == "exit" {
		name = "quit"
	}
	c, ok := commands[name]
	if !ok {
		return errors.Errorf("unknown command %q (try help)", args[0])
	}
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*errcode.E)
			if !ok {
				panic(r)
			}
			err = e
		}
	}()
	return c.run(t, args[1:])
}

func (t *tool) printf(format string, args ...any) { fmt.Fprintf(t.out, format, args...) }

func (t *tool) field(name string) (regs.Field, error) {
	f, ok := t.blk.Field(strings.ToUpper(name))
	if !ok {
		return regs.Field{}, errcode.New(errcode.UnknownField, "lookup", t.blk.Name()+"."+name)
	}
	return f, nil
}

func parseValue(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "bad value %q", s)
	}
	return uint32(v), nil
}

func parsePin(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n >= stm32f2gpio.NumPins {
		return 0, errcode.New(errcode.UnknownPin, "pin", s)
	}
	return n, nil
}

func need(args []string, min, max int, usage string) error {
	if len(args) < min || len(args) > max {
		return errors.Errorf("usage: %s", usage)
	}
	return nil
}

func hexOf(v uint32, w mmio.Width) string {
	var buf [10]byte
	return string(conv.HexWidth(buf[:], v, int(w)))
}

func (t *tool) show(f regs.Field, v uint32) {
	t.printf("%-8s %s = %s\n", bold(f.Name), faint(mmio.Hex(uint64(t.blk.Addr(f)))), valueOf(hexOf(v, f.Width)))
}

func (t *tool) read(args []string) error {
	if err := need(args, 1, 1, commands["read"].usage); err != nil {
		return err
	}
	f, err := t.field(args[0])
	if err != nil {
		return err
	}
	if !f.Access.Readable() {
		return errcode.New(errcode.WriteOnly, "read", t.blk.Name()+"."+f.Name)
	}
	if f.ReadHasEffect() {
		t.printf("%s\n", warnOf("note: "+f.Effect))
	}
	t.show(f, t.blk.ReadField(f))
	return nil
}

func (t *tool) write(args []string) error {
	if err := need(args, 2, 2, commands["write"].usage); err != nil {
		return err
	}
	f, err := t.field(args[0])
	if err != nil {
		return err
	}
	v, err := parseValue(args[1])
	if err != nil {
		return err
	}
	return t.blk.WriteField(f, v)
}

func (t *tool) modify(args []string) error {
	if err := need(args, 2, 3, commands["modify"].usage); err != nil {
		return err
	}
	f, err := t.field(args[0])
	if err != nil {
		return err
	}
	set, err := parseValue(args[1])
	if err != nil {
		return err
	}
	var clr uint32
	if len(args) == 3 {
		if clr, err = parseValue(args[2]); err != nil {
			return err
		}
	}
	if err := t.blk.ModifyField(f, func(v uint32) uint32 { return v&^clr | set }); err != nil {
		return err
	}
	t.show(f, t.blk.ReadField(f))
	return nil
}

func (t *tool) dump(args []string) error {
	if err := need(args, 0, 1, commands["dump"].usage); err != nil {
		return err
	}
	effects := len(args) == 1 && args[0] == "-e"
	if len(args) == 1 && !effects {
		return errors.Errorf("usage: %s", commands["dump"].usage)
	}
	t.printf("%s @ %s\n", bold(t.blk.Name()), mmio.Hex(uint64(t.blk.Base())))
	for _, v := range t.blk.Snapshot(effects) {
		t.show(v.Field, v.Value)
	}
	return nil
}

func (t *tool) layout(args []string) error {
	if err := need(args, 0, 0, commands["layout"].usage); err != nil {
		return err
	}
	l := t.blk.Layout()
	t.printf("%s size %s align %d\n", bold(l.Name()), mmio.Hex(uint64(l.Size())), l.Align())
	for _, f := range l.Fields() {
		t.printf("  %-8s +%-5s %-4s %s", f.Name, mmio.Hex(uint64(f.Offset)), f.Width, f.Access)
		if f.ReadHasEffect() {
			t.printf("  %s", warnOf(f.Effect))
		}
		t.printf("\n")
	}
	return nil
}

func (t *tool) pin(args []string) error {
	usage := commands["pin"].usage
	if err := need(args, 2, 4, usage); err != nil {
		return err
	}
	n, err := parsePin(args[0])
	if err != nil {
		return err
	}
	p := t.port
	switch op := strings.ToLower(args[1]); op {
	case "get":
		level, err := p.Get(n)
		if err != nil {
			return err
		}
		t.printf("%s = %s\n", p.Pin(n).Name(), valueOf(boolDigit(level)))
	case "set", "reset":
		return p.Write(n, op == "set")
	case "toggle":
		return p.Toggle(n)
	case "config":
		cfg, err := p.Config(n)
		if err != nil {
			return err
		}
		t.printf("%s mode=%s otype=%s speed=%s pull=%s af=%d\n",
			p.Pin(n).Name(), cfg.Mode, cfg.OutputType, cfg.Speed, cfg.Pull, cfg.AltFunc)
	case "mode":
		if len(args) < 3 {
			return errors.Errorf("usage: %s", usage)
		}
		cfg, err := p.Config(n)
		if err != nil {
			return err
		}
		var ok bool
		if cfg.Mode, ok = stm32f2gpio.ParseMode(args[2]); !ok {
			return errcode.New(errcode.InvalidParams, "pin mode", args[2])
		}
		if len(args) == 4 {
			if cfg.Pull, ok = stm32f2gpio.ParsePull(args[3]); !ok {
				return errcode.New(errcode.InvalidParams, "pin pull", args[3])
			}
		}
		return p.Configure(n, cfg)
	default:
		return errors.Errorf("usage: %s", usage)
	}
	return nil
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (t *tool) lock(args []string) error {
	if err := need(args, 1, 1, commands["lock"].usage); err != nil {
		return err
	}
	mask, err := parseValue(args[0])
	if err != nil {
		return err
	}
	if mask > 0xFFFF {
		return errcode.New(errcode.OutOfRange, "lock", args[0])
	}
	if err := t.port.Lock(uint16(mask)); err != nil {
		return err
	}
	t.printf("%s locked %s\n", t.port.Name(), valueOf(hexOf(mask, mmio.Width16)))
	return nil
}

func (t *tool) trace(args []string) error {
	if err := need(args, 0, 1, commands["trace"].usage); err != nil {
		return err
	}
	if t.sim == nil {
		return errcode.New(errcode.Unsupported, "trace", "needs the simulated port")
	}
	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "on":
			t.sim.SetTrace(true)
		case "off":
			t.sim.SetTrace(false)
		case "clear":
			t.sim.ResetTrace()
		default:
			return errors.Errorf("usage: %s", commands["trace"].usage)
		}
		return nil
	}
	for _, a := range t.sim.Trace() {
		t.printf("%s\n", a)
	}
	return nil
}

func (t *tool) drive(args []string) error {
	if err := need(args, 2, 2, commands["drive"].usage); err != nil {
		return err
	}
	if t.sp == nil {
		return errcode.New(errcode.Unsupported, "drive", "needs the simulated port")
	}
	n, err := parsePin(args[0])
	if err != nil {
		return err
	}
	switch args[1] {
	case "0", "1":
		t.sp.Drive(n, args[1] == "1")
		return nil
	}
	return errors.Errorf("usage: %s", commands["drive"].usage)
}

func (t *tool) help([]string) error {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		t.printf("  %-52s %s\n", commands[n].usage, faint(commands[n].help))
	}
	return nil
}

// report prints err in red with its error code when it has one.
func (t *tool) report(err error) {
	if c := errcode.Of(err); c != errcode.Error {
		t.printf("%s %s\n", errOf(string(c)), err)
		return
	}
	t.printf("%s %s\n", errOf("error"), err)
}
