// Package pca9555 drives the PCA9555 16-bit I²C GPIO expander through the
// same register view as on-chip peripherals: its register file is mapped
// with an mmio.I2CWindow and described by a RegisterMap.
//
// Pins 0..7 are port 0, pins 8..15 port 1.
package pca9555

import (
	"strconv"

	"tinygo.org/x/drivers"

	"regmap-go/errcode"
	"regmap-go/mmio"
	"regmap-go/regs"
)

// Address is the chip address with A2..A0 tied low.
const Address = 0x20

const NumPins = 16

// RegisterMap is the chip's register file. Config bits are 1 for input.
type RegisterMap struct {
	Input    [2]regs.U8 `reg:"ro"`
	Output   [2]regs.U8
	Polarity [2]regs.U8
	Config   [2]regs.U8
}

var Layout = regs.MustLayoutOf("PCA9555", RegisterMap{})

// Power-on values.
const (
	resetOutput   = 0xFF
	resetPolarity = 0x00
	resetConfig   = 0xFF
)

// Device is one expander. Every method runs as one I2CWindow transaction and
// reports the bus failures that happened during it, so a Device may be shared
// between goroutines. A read-modify-write whose read fails writes nothing.
type Device struct {
	win *mmio.I2CWindow
	blk *regs.Block

	input                    [2]regs.ROReg[uint8]
	output, polarity, config [2]regs.Reg[uint8]
}

// New maps the chip at addr. It does not touch the bus.
func New(bus drivers.I2C, addr uint16, opts ...regs.Option) (*Device, error) {
	if bus == nil {
		return nil, errcode.New(errcode.InvalidParams, "pca9555", "nil bus")
	}
	if addr == 0 {
		addr = Address
	}
	win := mmio.NewI2CWindow(bus, addr, 0, Layout.Size())
	blk, err := regs.NewBlock("PCA9555@"+strconv.FormatUint(uint64(addr), 16), win, 0, Layout, opts...)
	if err != nil {
		return nil, err
	}
	d := &Device{win: win, blk: blk}
	for i := 0; i < 2; i++ {
		n := "[" + strconv.Itoa(i) + "]"
		if d.input[i], err = regs.NewROReg[uint8](blk, "Input"+n); err != nil {
			return nil, err
		}
		if d.output[i], err = regs.NewReg[uint8](blk, "Output"+n); err != nil {
			return nil, err
		}
		if d.polarity[i], err = regs.NewReg[uint8](blk, "Polarity"+n); err != nil {
			return nil, err
		}
		if d.config[i], err = regs.NewReg[uint8](blk, "Config"+n); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Device) Block() *regs.Block { return d.blk }

// Err returns a pending bus failure left by direct Block access.
func (d *Device) Err() error { return d.win.Err() }

func (d *Device) do(op string, pin int, fn func(port int, bit uint8)) error {
	if pin < 0 || pin >= NumPins {
		return errcode.New(errcode.UnknownPin, op, d.blk.Name()+" pin "+strconv.Itoa(pin))
	}
	return d.win.Txn(func() { fn(pin/8, 1<<(pin%8)) })
}

func setBit(v, bit uint8, on bool) uint8 {
	if on {
		return v | bit
	}
	return v &^ bit
}

// Reset restores the power-on register values.
func (d *Device) Reset() error {
	return d.win.Txn(func() {
		for i := 0; i < 2; i++ {
			d.output[i].Set(resetOutput)
			d.polarity[i].Set(resetPolarity)
			d.config[i].Set(resetConfig)
		}
	})
}

func (d *Device) ConfigureInput(pin int) error {
	return d.do("configure_input", pin, func(p int, bit uint8) {
		d.config[p].Modify(func(v uint8) uint8 { return v | bit })
	})
}

// ConfigureOutput makes pin an output driving its current Output bit.
func (d *Device) ConfigureOutput(pin int) error {
	return d.do("configure_output", pin, func(p int, bit uint8) {
		d.config[p].Modify(func(v uint8) uint8 { return v &^ bit })
	})
}

func (d *Device) Set(pin int, level bool) error {
	return d.do("set", pin, func(p int, bit uint8) {
		d.output[p].Modify(func(v uint8) uint8 { return setBit(v, bit, level) })
	})
}

func (d *Device) Toggle(pin int) error {
	return d.do("toggle", pin, func(p int, bit uint8) {
		d.output[p].Modify(func(v uint8) uint8 { return v ^ bit })
	})
}

// Invert sets input polarity inversion for pin.
func (d *Device) Invert(pin int, on bool) error {
	return d.do("invert", pin, func(p int, bit uint8) {
		d.polarity[p].Modify(func(v uint8) uint8 { return setBit(v, bit, on) })
	})
}

// Get reads the input level of pin, after polarity inversion.
func (d *Device) Get(pin int) (bool, error) {
	var level bool
	err := d.do("get", pin, func(p int, bit uint8) {
		level = d.input[p].Get()&bit != 0
	})
	return level, err
}

// Input reads both input ports, port 1 in the high byte.
func (d *Device) Input() (uint16, error) {
	var v uint16
	err := d.win.Txn(func() {
		v = uint16(d.input[0].Get()) | uint16(d.input[1].Get())<<8
	})
	return v, err
}

// IsOutput reports whether pin is configured as an output.
func (d *Device) IsOutput(pin int) (bool, error) {
	var out bool
	err := d.do("config", pin, func(p int, bit uint8) {
		out = d.config[p].Get()&bit == 0
	})
	return out, err
}

// Pin is one expander pin.
type Pin struct {
	d *Device
	n int
}

// Pin returns pin n. Out of range pins fail on use.
func (d *Device) Pin(n int) Pin { return Pin{d: d, n: n} }

func (p Pin) Number() int            { return p.n }
func (p Pin) Device() *Device        { return p.d }
func (p Pin) ConfigureInput() error  { return p.d.ConfigureInput(p.n) }
func (p Pin) ConfigureOutput() error { return p.d.ConfigureOutput(p.n) }
func (p Pin) Set(level bool) error   { return p.d.Set(p.n, level) }
func (p Pin) Get() (bool, error)     { return p.d.Get(p.n) }
func (p Pin) Toggle() error          { return p.d.Toggle(p.n) }
func (p Pin) Invert(on bool) error   { return p.d.Invert(p.n, on) }
