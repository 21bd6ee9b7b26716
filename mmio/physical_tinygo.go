//go:build tinygo

package mmio

import (
	"runtime/volatile"
	"unsafe"
)

// Physical issues real bus transactions at absolute addresses. It is only
// meaningful on the target, where peripheral addresses are identity mapped.
type Physical struct{}

func (Physical) Load8(addr uintptr) uint8 {
	return volatile.LoadUint8((*uint8)(unsafe.Pointer(addr)))
}
func (Physical) Load16(addr uintptr) uint16 {
	return volatile.LoadUint16((*uint16)(unsafe.Pointer(addr)))
}
func (Physical) Load32(addr uintptr) uint32 {
	return volatile.LoadUint32((*uint32)(unsafe.Pointer(addr)))
}
func (Physical) Store8(addr uintptr, v uint8) {
	volatile.StoreUint8((*uint8)(unsafe.Pointer(addr)), v)
}
func (Physical) Store16(addr uintptr, v uint16) {
	volatile.StoreUint16((*uint16)(unsafe.Pointer(addr)), v)
}
func (Physical) Store32(addr uintptr, v uint32) {
	volatile.StoreUint32((*uint32)(unsafe.Pointer(addr)), v)
}

// Mapped trusts the platform memory map; only the null page is rejected.
func (Physical) Mapped(addr, size uintptr) bool { return addr != 0 }
