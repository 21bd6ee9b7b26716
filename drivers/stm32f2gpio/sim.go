package stm32f2gpio

import (
	"sync"

	"regmap-go/mmio"
	"regmap-go/x/bitsx"
)

// SimPort is an mmio.Device modelling the behaviour of a GPIO port that plain
// memory lacks:
//
//   - BSRRL/BSRRH stores set/reset ODR bits and read back as zero; when one
//     32-bit store hits both halves, set wins.
//   - IDR is read-only: output pins read their ODR bit, all other pins the
//     level applied with Drive.
//   - The LCKR key sequence freezes the configuration bits of the locked pins.
type SimPort struct {
	mu  sync.Mutex
	ram *mmio.RAM

	inputs     uint16
	lockStep   int
	lockMask   uint16
	lockedPins uint16
	locked     bool
}

func NewSimPort() *SimPort { return &SimPort{ram: mmio.NewRAM(Layout.Size())} }

// AttachSim maps a new SimPort at base in sim.
func AttachSim(sim *mmio.Sim, base uintptr) (*SimPort, error) {
	sp := NewSimPort()
	if err := sim.Attach(base, Layout.Size(), sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// ResetTo loads the reset values of port letter and clears the lock.
func (s *SimPort) ResetTo(letter byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ram.Bytes() {
		s.ram.Bytes()[i] = 0
	}
	rv := portResets[letter&^0x20]
	s.ram.Store(OffMODER, mmio.Width32, rv.moder)
	s.ram.Store(OffOSPEEDR, mmio.Width32, rv.ospeedr)
	s.ram.Store(OffPUPDR, mmio.Width32, rv.pupdr)
	s.lockStep, s.lockMask, s.lockedPins, s.locked = 0, 0, 0, false
}

// Drive applies an external level to pin.
func (s *SimPort) Drive(pin int, level bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if level {
		s.inputs |= 1 << pin
	} else {
		s.inputs &^= 1 << pin
	}
}

// ODR peeks at the output latch without a bus transaction.
func (s *SimPort) ODR() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint16(s.ram.Load(OffODR, mmio.Width32))
}

// LockedPins reports the pins frozen by a completed lock sequence.
func (s *SimPort) LockedPins() (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockedPins, s.locked
}

func (s *SimPort) word(reg uintptr) uint32 {
	switch reg {
	case OffIDR:
		moder := s.ram.Load(OffMODER, mmio.Width32)
		var out uint16
		for n := uint(0); n < NumPins; n++ {
			if Mode(bitsx.Extract(moder, n*2, 2)) == ModeOutput {
				out |= 1 << n
			}
		}
		odr := uint16(s.ram.Load(OffODR, mmio.Width32))
		return uint32(odr&out | s.inputs&^out)
	case OffBSRRL:
		return 0
	}
	return s.ram.Load(reg, mmio.Width32)
}

func (s *SimPort) Load(off uintptr, w mmio.Width) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, shift := off&^3, 8*(off&3)
	return (s.word(reg) >> shift) & w.Mask()
}

func (s *SimPort) Store(off uintptr, w mmio.Width, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, shift := off&^3, 8*(off&3)
	mask := w.Mask() << shift
	val := (v << shift) & mask

	switch reg {
	case OffIDR:
		return
	case OffBSRRL:
		set, reset := val&0xFFFF, val>>16
		odr := s.ram.Load(OffODR, mmio.Width32)
		s.ram.Store(OffODR, mmio.Width32, odr&^reset|set)
		return
	case OffLCKR:
		s.lockSequence(val&mask | s.ram.Load(OffLCKR, mmio.Width32)&^mask)
		return
	}

	old := s.ram.Load(reg, mmio.Width32)
	next := old&^mask | val
	if frozen := s.frozen(reg); frozen != 0 {
		next = old&frozen | next&^frozen
	}
	s.ram.Store(reg, mmio.Width32, next)
}

func (s *SimPort) lockSequence(v uint32) {
	if s.locked {
		return
	}
	key, mask := v&lckrLCKK != 0, uint16(v)
	switch {
	case s.lockStep == 0 && key:
		s.lockStep, s.lockMask = 1, mask
	case s.lockStep == 1 && !key && mask == s.lockMask:
		s.lockStep = 2
	case s.lockStep == 2 && key && mask == s.lockMask:
		s.locked, s.lockedPins, s.lockStep = true, mask, 0
		s.ram.Store(OffLCKR, mmio.Width32, lckrLCKK|uint32(mask))
		return
	case key:
		s.lockStep, s.lockMask = 1, mask
	default:
		s.lockStep = 0
	}
	s.ram.Store(OffLCKR, mmio.Width32, uint32(mask))
}

func (s *SimPort) frozen(reg uintptr) uint32 {
	if !s.locked {
		return 0
	}
	switch reg {
	case OffMODER, OffOSPEEDR, OffPUPDR:
		return bitsx.Spread[uint32](s.lockedPins, 2)
	case OffOTYPER:
		return uint32(s.lockedPins)
	case OffAFRL:
		return bitsx.Spread[uint32](s.lockedPins&0xFF, 4)
	case OffAFRH:
		return bitsx.Spread[uint32](s.lockedPins>>8, 4)
	}
	return 0
}
