//go:build linux && !tinygo

package mmio

import (
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"regmap-go/errcode"
)

// DevMem maps a window of physical memory through /dev/mem (or a uio/gpiomem
// node) so register blocks can be driven from a Linux host.
type DevMem struct {
	f       *os.File
	mem     []byte
	base    uintptr
	size    uintptr
	pageOff uintptr
}

// OpenDevMem maps [base, base+size) from path.
func OpenDevMem(path string, base, size uintptr) (*DevMem, error) {
	if size == 0 {
		return nil, errcode.New(errcode.InvalidParams, "devmem open", "zero size")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	page := uintptr(unix.Getpagesize())
	start := base &^ (page - 1)
	pageOff := base - start
	length := (pageOff + size + page - 1) &^ (page - 1)
	mem, err := unix.Mmap(int(f.Fd()), int64(start), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mmap %s at %s", path, Hex(uint64(start)))
	}
	return &DevMem{f: f, mem: mem, base: base, size: size, pageOff: pageOff}, nil
}

// Close unmaps the window. The DevMem must not be used afterwards.
func (d *DevMem) Close() error {
	err := unix.Munmap(d.mem)
	d.mem = nil
	if cerr := d.f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	return errors.Wrap(err, "close devmem")
}

func (d *DevMem) Mapped(addr, size uintptr) bool {
	return addr >= d.base && addr+size <= d.base+d.size
}

func (d *DevMem) ptr(addr uintptr, w Width) unsafe.Pointer {
	if addr%w.Bytes() != 0 {
		panic(errcode.New(errcode.Misaligned, "devmem", Hex(uint64(addr))))
	}
	if !d.Mapped(addr, w.Bytes()) {
		panic(errcode.New(errcode.Unmapped, "devmem", Hex(uint64(addr))))
	}
	return unsafe.Pointer(&d.mem[addr-d.base+d.pageOff])
}

func (d *DevMem) Load8(addr uintptr) uint8   { return load8((*uint8)(d.ptr(addr, Width8))) }
func (d *DevMem) Load16(addr uintptr) uint16 { return load16((*uint16)(d.ptr(addr, Width16))) }
func (d *DevMem) Load32(addr uintptr) uint32 {
	return atomic.LoadUint32((*uint32)(d.ptr(addr, Width32)))
}

func (d *DevMem) Store8(addr uintptr, v uint8)   { store8((*uint8)(d.ptr(addr, Width8)), v) }
func (d *DevMem) Store16(addr uintptr, v uint16) { store16((*uint16)(d.ptr(addr, Width16)), v) }
func (d *DevMem) Store32(addr uintptr, v uint32) {
	atomic.StoreUint32((*uint32)(d.ptr(addr, Width32)), v)
}

// The sub-word accessors stay out of line so the compiler cannot fold or
// drop them at the call site.

//go:noinline
func load8(p *uint8) uint8 { return *p }

//go:noinline
func load16(p *uint16) uint16 { return *p }

//go:noinline
func store8(p *uint8, v uint8) { *p = v }

//go:noinline
func store16(p *uint16, v uint16) { *p = v }
