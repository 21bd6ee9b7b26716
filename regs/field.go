// Package regs describes memory-mapped register blocks and gives typed,
// offset-correct access to them.
//
// A Layout is the fixed shape of one peripheral: ordered fields at fixed byte
// offsets with fixed widths. A Block binds a Layout to an mmio.Memory and a
// base address. Every accessor performs exactly one bus transaction per
// register it touches, in program order; nothing is cached.
package regs

import (
	"regmap-go/mmio"
)

// Fixed-width register storage types. Register map structs are declared with
// these so their Go field offsets match the hardware offsets.
type (
	U8  = uint8
	U16 = uint16
	U32 = uint32
)

// Access is the access class of a field.
type Access uint8

const (
	RW Access = iota
	RO
	WO
)

func (a Access) Readable() bool { return a != WO }
func (a Access) Writable() bool { return a != RO }

func (a Access) String() string {
	switch a {
	case RO:
		return "ro"
	case WO:
		return "wo"
	default:
		return "rw"
	}
}

// ParseAccess accepts "rw", "ro" and "wo".
func ParseAccess(s string) (Access, bool) {
	switch s {
	case "", "rw":
		return RW, true
	case "ro":
		return RO, true
	case "wo":
		return WO, true
	}
	return RW, false
}

// Field is one named register within a block.
type Field struct {
	Name   string
	Offset uintptr
	Width  mmio.Width
	Access Access
	// Effect describes what a read does to the hardware besides returning a
	// value. Empty when reads are pure.
	Effect string
}

func (f Field) Mask() uint32        { return f.Width.Mask() }
func (f Field) Fits(v uint32) bool  { return v&^f.Width.Mask() == 0 }
func (f Field) ReadHasEffect() bool { return f.Effect != "" }
func (f Field) end() uintptr        { return f.Offset + f.Width.Bytes() }
func (f Field) String() string {
	return f.Name + "@" + mmio.Hex(uint64(f.Offset)) + " " + f.Width.String() + " " + f.Access.String()
}

// Bits is a sub-word field: Width bits at Shift inside Field.
type Bits struct {
	Field Field
	Shift uint8
	Width uint8
}

// Mask is the unshifted mask of the bit field.
func (b Bits) Mask() uint32 {
	if b.Width >= 32 {
		return 0xFFFF_FFFF
	}
	return 1<<b.Width - 1
}

func (b Bits) valid() bool {
	return b.Width > 0 && uint(b.Shift)+uint(b.Width) <= uint(b.Field.Width)
}

// PinBits selects the per-pin slot of a field that packs width bits per pin.
func PinBits(f Field, pin, width int) Bits {
	return Bits{Field: f, Shift: uint8(pin * width), Width: uint8(width)}
}
