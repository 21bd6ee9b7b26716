// Package mmio provides the volatile load/store primitives register blocks are
// built on, and the memory backings a block can be bound to.
//
// Every method on a Memory is one bus transaction. Implementations must not
// cache, merge, reorder or drop accesses.
package mmio

import "strconv"

// Width is a register width in bits.
type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
)

// Valid reports whether w is one of the supported register widths.
func (w Width) Valid() bool { return w == Width8 || w == Width16 || w == Width32 }

// Bytes is the access size in bytes.
func (w Width) Bytes() uintptr { return uintptr(w) / 8 }

// Mask has the low w bits set.
func (w Width) Mask() uint32 {
	if w >= Width32 {
		return 0xFFFF_FFFF
	}
	return 1<<w - 1
}

func (w Width) String() string { return "u" + strconv.Itoa(int(w)) }

// Memory is a physical (or simulated) address space.
type Memory interface {
	Load8(addr uintptr) uint8
	Load16(addr uintptr) uint16
	Load32(addr uintptr) uint32
	Store8(addr uintptr, v uint8)
	Store16(addr uintptr, v uint16)
	Store32(addr uintptr, v uint32)
}

// Faulter is implemented by backings that record transfer failures instead
// of faulting. Err returns the pending failure, if any.
type Faulter interface {
	Err() error
}

// Transactor is a Faulter whose accesses can be grouped so that a failure is
// reported to the group that caused it.
type Transactor interface {
	Faulter
	Txn(fn func()) error
}

// Mapper is implemented by backings that know which addresses are backed.
type Mapper interface {
	Mapped(addr, size uintptr) bool
}

// Load performs one access of width w. It panics on an unsupported width.
func Load(m Memory, addr uintptr, w Width) uint32 {
	switch w {
	case Width8:
		return uint32(m.Load8(addr))
	case Width16:
		return uint32(m.Load16(addr))
	case Width32:
		return m.Load32(addr)
	}
	panic("mmio: unsupported width " + w.String())
}

// Store performs one access of width w; v is truncated to w.
func Store(m Memory, addr uintptr, w Width, v uint32) {
	switch w {
	case Width8:
		m.Store8(addr, uint8(v))
	case Width16:
		m.Store16(addr, uint16(v))
	case Width32:
		m.Store32(addr, v)
	default:
		panic("mmio: unsupported width " + w.String())
	}
}

// Hex formats an address or value the way register dumps print them.
func Hex(v uint64) string { return "0x" + strconv.FormatUint(v, 16) }
