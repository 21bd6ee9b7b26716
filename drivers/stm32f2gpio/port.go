package stm32f2gpio

import (
	"strconv"
	"strings"

	"regmap-go/errcode"
	"regmap-go/mmio"
	"regmap-go/regs"
	"regmap-go/x/bitsx"
)

// Port drives one GPIO port. Configuration changes are read-modify-write
// sequences on MODER/OTYPER/OSPEEDR/PUPDR/AFR and share the block's Guard;
// output changes go through BSRR and need none.
type Port struct {
	name string
	blk  *regs.Block

	moder, otyper, ospeedr, pupdr regs.Reg[uint32]
	odr, lckr                     regs.Reg[uint32]
	idr                           regs.ROReg[uint32]
	bsrrl, bsrrh                  regs.WOReg[uint16]
	afr                           [2]regs.Reg[uint32]
}

// NewPort binds a port block at base.
func NewPort(name string, mem mmio.Memory, base uintptr, opts ...regs.Option) (*Port, error) {
	blk, err := regs.NewBlock(name, mem, base, Layout, opts...)
	if err != nil {
		return nil, err
	}
	p := &Port{name: name, blk: blk}

	var first error
	keep := func(err error) {
		if first == nil {
			first = err
		}
	}
	rw := func(n string) regs.Reg[uint32] {
		r, err := regs.NewReg[uint32](blk, n)
		keep(err)
		return r
	}
	p.moder = rw("MODER")
	p.otyper = rw("OTYPER")
	p.ospeedr = rw("OSPEEDR")
	p.pupdr = rw("PUPDR")
	p.odr = rw("ODR")
	p.lckr = rw("LCKR")
	p.afr[0] = rw("AFR[0]")
	p.afr[1] = rw("AFR[1]")
	p.idr, err = regs.NewROReg[uint32](blk, "IDR")
	keep(err)
	p.bsrrl, err = regs.NewWOReg[uint16](blk, "BSRRL")
	keep(err)
	p.bsrrh, err = regs.NewWOReg[uint16](blk, "BSRRH")
	keep(err)
	if first != nil {
		return nil, first
	}
	return p, nil
}

// OpenPort binds port letter 'A'..'I' at its memory-map address.
func OpenPort(letter byte, mem mmio.Memory, opts ...regs.Option) (*Port, error) {
	base, ok := PortBase(letter)
	if !ok {
		return nil, errcode.New(errcode.UnknownPort, "open port", string(letter))
	}
	return NewPort("GPIO"+string(letter&^0x20), mem, base, opts...)
}

func (p *Port) Name() string       { return p.name }
func (p *Port) Block() *regs.Block { return p.blk }

func (p *Port) checkPin(op string, pin int) error {
	if pin < 0 || pin >= NumPins {
		return errcode.New(errcode.UnknownPin, op, p.name+" pin "+strconv.Itoa(pin))
	}
	return nil
}

// Configure applies cfg to pin. Speed, type, pull and alternate function are
// written before MODER so the pin never drives with a stale setup.
func (p *Port) Configure(pin int, cfg PinConfig) error {
	const op = "configure"
	if err := p.checkPin(op, pin); err != nil {
		return err
	}
	if cfg.Mode > ModeAnalog || cfg.OutputType > OpenDrain || cfg.Speed > SpeedHigh ||
		cfg.Pull > PullDown || cfg.AltFunc >= NumAF {
		return errcode.New(errcode.OutOfRange, op, p.name+" pin "+strconv.Itoa(pin))
	}
	n := uint(pin)
	p.blk.Guarded(func() {
		if cfg.Mode == ModeAltFunc {
			r := p.afr[n/8]
			r.Set(bitsx.Insert(r.Get(), (n%8)*4, 4, uint32(cfg.AltFunc)))
		}
		p.ospeedr.Set(bitsx.Insert(p.ospeedr.Get(), n*2, 2, uint32(cfg.Speed)))
		p.otyper.Set(bitsx.Insert(p.otyper.Get(), n, 1, uint32(cfg.OutputType)))
		p.pupdr.Set(bitsx.Insert(p.pupdr.Get(), n*2, 2, uint32(cfg.Pull)))
		p.moder.Set(bitsx.Insert(p.moder.Get(), n*2, 2, uint32(cfg.Mode)))
	})
	return nil
}

// Config reads back the configuration of pin.
func (p *Port) Config(pin int) (PinConfig, error) {
	if err := p.checkPin("config", pin); err != nil {
		return PinConfig{}, err
	}
	n := uint(pin)
	return PinConfig{
		Mode:       Mode(bitsx.Extract(p.moder.Get(), n*2, 2)),
		OutputType: OutputType(bitsx.Extract(p.otyper.Get(), n, 1)),
		Speed:      Speed(bitsx.Extract(p.ospeedr.Get(), n*2, 2)),
		Pull:       Pull(bitsx.Extract(p.pupdr.Get(), n*2, 2)),
		AltFunc:    uint8(bitsx.Extract(p.afr[n/8].Get(), (n%8)*4, 4)),
	}, nil
}

// Mode reads the MODER slot of pin.
func (p *Port) Mode(pin int) (Mode, error) {
	if err := p.checkPin("mode", pin); err != nil {
		return 0, err
	}
	return Mode(bitsx.Extract(p.moder.Get(), uint(pin)*2, 2)), nil
}

// Set drives the pins in mask high with one store to BSRRL.
func (p *Port) Set(mask uint16) { p.bsrrl.Set(mask) }

// Reset drives the pins in mask low with one store to BSRRH.
func (p *Port) Reset(mask uint16) { p.bsrrh.Set(mask) }

// Write drives one pin.
func (p *Port) Write(pin int, level bool) error {
	if err := p.checkPin("write", pin); err != nil {
		return err
	}
	if level {
		p.Set(1 << pin)
	} else {
		p.Reset(1 << pin)
	}
	return nil
}

// Toggle inverts one output: one ODR load, then one BSRR half store.
func (p *Port) Toggle(pin int) error {
	if err := p.checkPin("toggle", pin); err != nil {
		return err
	}
	if p.odr.Get()&(1<<pin) != 0 {
		p.Reset(1 << pin)
	} else {
		p.Set(1 << pin)
	}
	return nil
}

// Get reads the input level of pin from IDR.
func (p *Port) Get(pin int) (bool, error) {
	if err := p.checkPin("get", pin); err != nil {
		return false, err
	}
	return p.idr.Get()&(1<<pin) != 0, nil
}

// Input reads IDR.
func (p *Port) Input() uint16 { return uint16(p.idr.Get()) }

// Output reads ODR.
func (p *Port) Output() uint16 { return uint16(p.odr.Get()) }

// WriteOutput replaces the whole output latch with one ODR store.
func (p *Port) WriteOutput(v uint16) { p.odr.Set(uint32(v)) }

// Lock freezes the configuration of the pins in mask until the next reset,
// using the LCKR key sequence. The sequence runs inside the block's Guard
// since any interleaved LCKR access aborts it.
func (p *Port) Lock(mask uint16) error {
	key := lckrLCKK | uint32(mask)
	var locked bool
	p.blk.Guarded(func() {
		p.lckr.Set(key)
		p.lckr.Set(uint32(mask))
		p.lckr.Set(key)
		// Step 4 of the key sequence: the first read completes the lock.
		_ = p.lckr.Get()
		locked = p.lckr.Get()&lckrLCKK != 0
	})
	if !locked {
		return errcode.New(errcode.LockFailed, "lock", p.name)
	}
	return nil
}

// Locked reports whether the port's configuration lock is active. The LCKR
// read is itself a step of the key sequence on hardware.
func (p *Port) Locked() bool { return p.lckr.Get()&lckrLCKK != 0 }

// Pin is a handle on one pin of a port. Out of range pins fail on use with
// errcode.UnknownPin.
type Pin struct {
	port *Port
	n    int
}

func (p *Port) Pin(n int) Pin { return Pin{port: p, n: n} }

func (p Pin) Number() int                   { return p.n }
func (p Pin) Port() *Port                   { return p.port }
func (p Pin) Configure(cfg PinConfig) error { return p.port.Configure(p.n, cfg) }
func (p Pin) Config() (PinConfig, error)    { return p.port.Config(p.n) }
func (p Pin) Set(level bool) error          { return p.port.Write(p.n, level) }
func (p Pin) Get() (bool, error)            { return p.port.Get(p.n) }
func (p Pin) Toggle() error                 { return p.port.Toggle(p.n) }
func (p Pin) High() error                   { return p.port.Write(p.n, true) }
func (p Pin) Low() error                    { return p.port.Write(p.n, false) }

// Name is the board name of the pin: "PA5" for pin 5 of GPIOA.
func (p Pin) Name() string {
	return "P" + strings.TrimPrefix(p.port.name, "GPIO") + strconv.Itoa(p.n)
}
