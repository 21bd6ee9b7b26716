package mmio

// Device is a simulated peripheral mapped into a Sim. Offsets are relative
// to the region base and are aligned to w.
type Device interface {
	Load(off uintptr, w Width) uint32
	Store(off uintptr, w Width, v uint32)
}

// RAM is plain little-endian storage with no side effects.
type RAM struct {
	b []byte
}

func NewRAM(size uintptr) *RAM { return &RAM{b: make([]byte, size)} }

func (r *RAM) Size() uintptr { return uintptr(len(r.b)) }

// Bytes exposes the backing store; callers own synchronisation.
func (r *RAM) Bytes() []byte { return r.b }

func (r *RAM) Load(off uintptr, w Width) uint32 {
	var v uint32
	for i := uintptr(0); i < w.Bytes(); i++ {
		v |= uint32(r.b[off+i]) << (8 * i)
	}
	return v
}

func (r *RAM) Store(off uintptr, w Width, v uint32) {
	for i := uintptr(0); i < w.Bytes(); i++ {
		r.b[off+i] = byte(v >> (8 * i))
	}
}
