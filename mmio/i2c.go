package mmio

import (
	"sync"

	"tinygo.org/x/drivers"

	"regmap-go/errcode"
)

// DefaultI2CRetries is the number of extra attempts for a failed transfer.
const DefaultI2CRetries = 3

// I2CWindow exposes the register file of an I²C chip as a Memory. The
// register sub-address is addr-base; multi-byte accesses cover consecutive
// registers, low byte first.
//
// Transfers that still fail after Retries extra attempts are dropped: loads
// return 0 and the first such error is kept until ClearErr. Callers sharing a
// window between goroutines group their accesses with Txn so each group sees
// only its own failures.
type I2CWindow struct {
	Retries int

	txMu sync.Mutex
	mu   sync.Mutex
	bus  drivers.I2C
	addr uint16
	base uintptr
	size uintptr
	err  error

	// Fixed buffers to avoid per-call heap allocations.
	w [5]byte
	r [4]byte
}

// NewI2CWindow maps size registers (at most 256) of the chip at addr to
// [base, base+size).
func NewI2CWindow(bus drivers.I2C, addr uint16, base, size uintptr) *I2CWindow {
	if size > 256 {
		size = 256
	}
	return &I2CWindow{Retries: DefaultI2CRetries, bus: bus, addr: addr, base: base, size: size}
}

// Err returns the first transfer error since the last ClearErr.
func (i *I2CWindow) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

func (i *I2CWindow) ClearErr() {
	i.mu.Lock()
	i.err = nil
	i.mu.Unlock()
}

// Txn runs fn with exclusive use of the window and returns the first transfer
// failure during it. Accesses that bypass Txn are not excluded. Txn must not
// be nested.
func (i *I2CWindow) Txn(fn func()) error {
	i.txMu.Lock()
	defer i.txMu.Unlock()
	i.ClearErr()
	fn()
	return i.Err()
}

func (i *I2CWindow) Mapped(addr, size uintptr) bool {
	return addr >= i.base && addr+size <= i.base+i.size
}

func (i *I2CWindow) reg(op string, addr uintptr, w Width) byte {
	if !i.Mapped(addr, w.Bytes()) {
		panic(errcode.New(errcode.Unmapped, op, Hex(uint64(addr))))
	}
	return byte(addr - i.base)
}

func (i *I2CWindow) tx(op string, w, r []byte) error {
	for attempt := 0; ; attempt++ {
		err := i.bus.Tx(i.addr, w, r)
		if err == nil {
			return nil
		}
		if attempt >= i.Retries {
			if i.err == nil {
				i.err = errcode.Wrap(errcode.BusFault, op, err)
			}
			return err
		}
	}
}

func (i *I2CWindow) load(addr uintptr, w Width) uint32 {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := w.Bytes()
	i.w[0] = i.reg("i2c load", addr, w)
	if err := i.tx("i2c load", i.w[:1], i.r[:n]); err != nil {
		return 0
	}
	var v uint32
	for k := uintptr(0); k < n; k++ {
		v |= uint32(i.r[k]) << (8 * k)
	}
	return v
}

func (i *I2CWindow) store(addr uintptr, w Width, v uint32) {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := w.Bytes()
	i.w[0] = i.reg("i2c store", addr, w)
	for k := uintptr(0); k < n; k++ {
		i.w[1+k] = byte(v >> (8 * k))
	}
	_ = i.tx("i2c store", i.w[:1+n], nil)
}

func (i *I2CWindow) Load8(addr uintptr) uint8   { return uint8(i.load(addr, Width8)) }
func (i *I2CWindow) Load16(addr uintptr) uint16 { return uint16(i.load(addr, Width16)) }
func (i *I2CWindow) Load32(addr uintptr) uint32 { return i.load(addr, Width32) }

func (i *I2CWindow) Store8(addr uintptr, v uint8)   { i.store(addr, Width8, uint32(v)) }
func (i *I2CWindow) Store16(addr uintptr, v uint16) { i.store(addr, Width16, uint32(v)) }
func (i *I2CWindow) Store32(addr uintptr, v uint32) { i.store(addr, Width32, v) }
