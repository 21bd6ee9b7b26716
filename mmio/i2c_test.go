package mmio

import (
	"errors"
	"sync"
	"testing"

	"tinygo.org/x/drivers"

	"regmap-go/errcode"
)

var _ drivers.I2C = (*fakeChip)(nil)

// fakeChip is an auto-incrementing 8-bit register file.
type fakeChip struct {
	mu      sync.Mutex
	addr    uint16
	regs    [16]byte
	failN   int // fail the next failN transfers
	txCount int
}

func (f *fakeChip) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCount++
	if addr != f.addr {
		return errors.New("nack")
	}
	if f.failN > 0 {
		f.failN--
		return errors.New("arbitration lost")
	}
	if len(w) == 0 {
		return errors.New("no register")
	}
	reg := int(w[0])
	for i, b := range w[1:] {
		f.regs[reg+i] = b
	}
	for i := range r {
		r[i] = f.regs[reg+i]
	}
	return nil
}

func TestI2CWindow_RegistersAreLittleEndianPairs(t *testing.T) {
	chip := &fakeChip{addr: 0x20}
	win := NewI2CWindow(chip, 0x20, 0, 8)

	win.Store16(2, 0xBEEF)
	if chip.regs[2] != 0xEF || chip.regs[3] != 0xBE {
		t.Fatalf("register file = % x", chip.regs[:4])
	}
	if got := win.Load8(3); got != 0xBE {
		t.Fatalf("Load8(3) = %#x", got)
	}
	if got := win.Load16(2); got != 0xBEEF {
		t.Fatalf("Load16(2) = %#x", got)
	}
	if win.Err() != nil {
		t.Fatalf("unexpected sticky error %v", win.Err())
	}
}

func TestI2CWindow_RetriesThenKeepsError(t *testing.T) {
	chip := &fakeChip{addr: 0x20, failN: 2}
	chip.regs[0] = 0x5A
	win := NewI2CWindow(chip, 0x20, 0, 8)

	if got := win.Load8(0); got != 0x5A {
		t.Fatalf("retried load = %#x", got)
	}
	if chip.txCount != 3 {
		t.Fatalf("tx count = %d, want 3", chip.txCount)
	}

	chip.failN = DefaultI2CRetries + 1
	if got := win.Load8(0); got != 0 {
		t.Fatalf("failed load should read 0, got %#x", got)
	}
	if !errors.Is(win.Err(), errcode.BusFault) {
		t.Fatalf("expected bus fault, got %v", win.Err())
	}
	win.ClearErr()
	if win.Err() != nil {
		t.Fatal("ClearErr did not reset the error")
	}
}

func TestI2CWindow_OutsideWindowFaults(t *testing.T) {
	win := NewI2CWindow(&fakeChip{addr: 0x20}, 0x20, 0, 8)
	if win.Mapped(6, 4) {
		t.Fatal("range past the window reported mapped")
	}
	expectFault(t, errcode.Unmapped, func() { win.Load8(8) })
}

func TestI2CWindow_TxnReportsOwnFailures(t *testing.T) {
	chip := &fakeChip{addr: 0x20}
	win := NewI2CWindow(chip, 0x20, 0, 8)
	var _ Transactor = win

	chip.failN = DefaultI2CRetries + 1
	win.Load8(0)
	if win.Err() == nil {
		t.Fatal("expected a pending error")
	}
	if err := win.Txn(func() { win.Store8(1, 0x11) }); err != nil {
		t.Fatalf("stale failure leaked into Txn: %v", err)
	}
	if chip.regs[1] != 0x11 {
		t.Fatalf("reg 1 = %#x", chip.regs[1])
	}

	chip.mu.Lock()
	chip.failN = DefaultI2CRetries + 1
	chip.mu.Unlock()
	err := win.Txn(func() { win.Load8(0) })
	if !errors.Is(err, errcode.BusFault) {
		t.Fatalf("Txn = %v, want bus_fault", err)
	}
}
