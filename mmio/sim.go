package mmio

import (
	"sort"
	"sync"

	"regmap-go/errcode"
)

// Op is the direction of a recorded bus transaction.
type Op uint8

const (
	OpLoad Op = iota
	OpStore
)

func (o Op) String() string {
	if o == OpStore {
		return "store"
	}
	return "load"
}

// Access is one recorded transaction.
type Access struct {
	Op    Op
	Addr  uintptr
	Width Width
	Value uint32
}

func (a Access) String() string {
	return a.Op.String() + a.Width.String()[1:] + " " + Hex(uint64(a.Addr)) + " = " + Hex(uint64(a.Value))
}

type region struct {
	base, size uintptr
	dev        Device
}

// Sim is a simulated address space used to exercise register blocks off
// device. Unmapped or misaligned accesses panic with an *errcode.E, the way
// a bus fault would stop real hardware.
type Sim struct {
	mu      sync.Mutex
	regions []region
	tracing bool
	trace   []Access
}

func NewSim() *Sim { return &Sim{} }

// Map backs [base, base+size) with zeroed RAM.
func (s *Sim) Map(base, size uintptr) (*RAM, error) {
	ram := NewRAM(size)
	if err := s.Attach(base, size, ram); err != nil {
		return nil, err
	}
	return ram, nil
}

// Attach maps dev at [base, base+size).
func (s *Sim) Attach(base, size uintptr, dev Device) error {
	if size == 0 || dev == nil {
		return errcode.New(errcode.InvalidParams, "sim attach", "empty region")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.regions {
		if base < r.base+r.size && r.base < base+size {
			return errcode.New(errcode.Overlap, "sim attach", Hex(uint64(base))+" overlaps "+Hex(uint64(r.base)))
		}
	}
	s.regions = append(s.regions, region{base: base, size: size, dev: dev})
	sort.Slice(s.regions, func(i, j int) bool { return s.regions[i].base < s.regions[j].base })
	return nil
}

// Mapped reports whether [addr, addr+size) lies inside one region.
func (s *Sim) Mapped(addr, size uintptr) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookup(addr, size)
	return ok
}

// SetTrace turns transaction recording on or off.
func (s *Sim) SetTrace(on bool) {
	s.mu.Lock()
	s.tracing = on
	s.mu.Unlock()
}

// Trace returns the recorded transactions in issue order.
func (s *Sim) Trace() []Access {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Access(nil), s.trace...)
}

func (s *Sim) ResetTrace() {
	s.mu.Lock()
	s.trace = s.trace[:0]
	s.mu.Unlock()
}

func (s *Sim) lookup(addr, size uintptr) (region, bool) {
	i := sort.Search(len(s.regions), func(i int) bool {
		r := s.regions[i]
		return r.base+r.size > addr
	})
	if i == len(s.regions) {
		return region{}, false
	}
	r := s.regions[i]
	if addr < r.base || addr+size > r.base+r.size {
		return region{}, false
	}
	return r, true
}

func (s *Sim) resolve(op string, addr uintptr, w Width) region {
	if addr%w.Bytes() != 0 {
		panic(errcode.New(errcode.Misaligned, op, Hex(uint64(addr))))
	}
	r, ok := s.lookup(addr, w.Bytes())
	if !ok {
		panic(errcode.New(errcode.Unmapped, op, Hex(uint64(addr))))
	}
	return r
}

func (s *Sim) load(addr uintptr, w Width) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.resolve("sim load", addr, w)
	v := r.dev.Load(addr-r.base, w) & w.Mask()
	if s.tracing {
		s.trace = append(s.trace, Access{Op: OpLoad, Addr: addr, Width: w, Value: v})
	}
	return v
}

func (s *Sim) store(addr uintptr, w Width, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.resolve("sim store", addr, w)
	v &= w.Mask()
	if s.tracing {
		s.trace = append(s.trace, Access{Op: OpStore, Addr: addr, Width: w, Value: v})
	}
	r.dev.Store(addr-r.base, w, v)
}

func (s *Sim) Load8(addr uintptr) uint8   { return uint8(s.load(addr, Width8)) }
func (s *Sim) Load16(addr uintptr) uint16 { return uint16(s.load(addr, Width16)) }
func (s *Sim) Load32(addr uintptr) uint32 { return s.load(addr, Width32) }

func (s *Sim) Store8(addr uintptr, v uint8)   { s.store(addr, Width8, uint32(v)) }
func (s *Sim) Store16(addr uintptr, v uint16) { s.store(addr, Width16, uint32(v)) }
func (s *Sim) Store32(addr uintptr, v uint32) { s.store(addr, Width32, v) }
