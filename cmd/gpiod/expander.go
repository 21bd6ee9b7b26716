package main

import (
	"errors"
	"sync"

	"tinygo.org/x/drivers"

	"regmap-go/drivers/pca9555"
)

var _ drivers.I2C = (*simExpander)(nil)

var errNack = errors.New("pca9555 sim: nack")

// simExpander answers PCA9555 register transfers. Input pins float high
// through the chip's internal pull-ups; outputs read back their latch.
type simExpander struct {
	mu   sync.Mutex
	regs [8]byte
}

func newSimExpander() *simExpander {
	s := &simExpander{}
	s.regs[2], s.regs[3] = 0xFF, 0xFF // Output
	s.regs[6], s.regs[7] = 0xFF, 0xFF // Config
	return s
}

func (s *simExpander) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr != pca9555.Address || len(w) == 0 {
		return errNack
	}
	reg := int(w[0])
	for i, v := range w[1:] {
		if k := (reg + i) & 7; k >= 2 {
			s.regs[k] = v
		}
	}
	for i := range r {
		k := (reg + i) & 7
		if k < 2 {
			out := ^s.regs[6+k]
			r[i] = (0xFF&^out | s.regs[2+k]&out) ^ s.regs[4+k]
			continue
		}
		r[i] = s.regs[k]
	}
	return nil
}
