package regs

import (
	"errors"
	"testing"

	"regmap-go/errcode"
	"regmap-go/mmio"
)

const testBase = 0x4001_0000

var testLayout = MustLayoutOf("TIM", timerRegs{})

func newTestBlock(t *testing.T, opts ...Option) (*Block, *mmio.Sim) {
	t.Helper()
	sim := mmio.NewSim()
	if _, err := sim.Map(testBase, 0x400); err != nil {
		t.Fatal(err)
	}
	b, err := NewBlock("TIM1", sim, testBase, testLayout, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return b, sim
}

func TestNewBlock_BaseChecks(t *testing.T) {
	sim := mmio.NewSim()
	if _, err := sim.Map(testBase, 0x400); err != nil {
		t.Fatal(err)
	}
	if _, err := NewBlock("X", sim, testBase+2, testLayout); !errors.Is(err, errcode.Misaligned) {
		t.Fatalf("misaligned base: %v", err)
	}
	if _, err := NewBlock("X", sim, 0x2000_0000, testLayout); !errors.Is(err, errcode.Unmapped) {
		t.Fatalf("unmapped base: %v", err)
	}
	if _, err := NewBlock("X", sim, testBase+0x400-4, testLayout); !errors.Is(err, errcode.Unmapped) {
		t.Fatalf("block running off the region: %v", err)
	}
	if _, err := NewBlock("X", nil, testBase, testLayout); !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("nil memory: %v", err)
	}
}

func TestNewBlock_NullBaseWithoutMapper(t *testing.T) {
	// Hide the Sim's Mapper; only the null base can be rejected then.
	var m mmio.Memory = struct{ mmio.Memory }{mmio.NewSim()}
	if _, err := NewBlock("X", m, 0, testLayout); !errors.Is(err, errcode.Unmapped) {
		t.Fatalf("null base: %v", err)
	}
}

func TestBlock_WritePolicy(t *testing.T) {
	b, sim := newTestBlock(t)
	cr := testLayout.MustField("CR")
	cnt := testLayout.MustField("CNT")

	if err := b.WriteField(cr, 0x1_0000); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("too wide: %v", err)
	}
	if got := sim.Load16(testBase); got != 0 {
		t.Fatalf("rejected write reached the bus: %#x", got)
	}
	if err := b.WriteField(cnt, 1); !errors.Is(err, errcode.ReadOnly) {
		t.Fatalf("read-only: %v", err)
	}
	foreign := Field{Name: "CR", Offset: 0x40, Width: mmio.Width16}
	if err := b.WriteField(foreign, 1); !errors.Is(err, errcode.UnknownField) {
		t.Fatalf("foreign field: %v", err)
	}
	if err := b.WriteField(cr, 0xFFFF); err != nil {
		t.Fatal(err)
	}
	if got := b.ReadField(cr); got != 0xFFFF {
		t.Fatalf("CR = %#x", got)
	}
}

func TestBlock_ReadFieldIsFreshEveryTime(t *testing.T) {
	b, sim := newTestBlock(t)
	cnt := testLayout.MustField("CNT")
	sim.Store32(testBase+4, 7)
	if got := b.ReadField(cnt); got != 7 {
		t.Fatalf("CNT = %d", got)
	}
	sim.Store32(testBase+4, 8) // hardware moved on
	if got := b.ReadField(cnt); got != 8 {
		t.Fatalf("CNT = %d after change", got)
	}
}

func TestBlock_ModifyIsOneLoadThenOneStore(t *testing.T) {
	b, sim := newTestBlock(t)
	ccr := testLayout.MustField("CCR[1]")
	if err := b.WriteField(ccr, 0xF0); err != nil {
		t.Fatal(err)
	}
	sim.SetTrace(true)
	if err := b.ModifyField(ccr, func(v uint32) uint32 { return v | 0x0F }); err != nil {
		t.Fatal(err)
	}
	tr := sim.Trace()
	if len(tr) != 2 || tr[0].Op != mmio.OpLoad || tr[1].Op != mmio.OpStore {
		t.Fatalf("trace = %v", tr)
	}
	if tr[1].Addr != testBase+0x14 || tr[1].Value != 0xFF {
		t.Fatalf("store = %v", tr[1])
	}
}

func TestBlock_ModifyRejects(t *testing.T) {
	b, sim := newTestBlock(t)
	if err := b.Modify("CNT", func(v uint32) uint32 { return v }); !errors.Is(err, errcode.ReadOnly) {
		t.Fatalf("modify RO: %v", err)
	}
	if err := b.Modify("TRIG", func(v uint32) uint32 { return v }); !errors.Is(err, errcode.WriteOnly) {
		t.Fatalf("modify WO: %v", err)
	}
	sim.SetTrace(true)
	if err := b.Modify("CR", func(v uint32) uint32 { return 0x1_0000 }); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("modify too wide: %v", err)
	}
	for _, a := range sim.Trace() {
		if a.Op == mmio.OpStore {
			t.Fatalf("rejected modify stored: %v", a)
		}
	}
	if err := b.Modify("NOPE", func(v uint32) uint32 { return v }); !errors.Is(err, errcode.UnknownField) {
		t.Fatalf("modify unknown: %v", err)
	}
}

func TestBlock_Bits(t *testing.T) {
	b, _ := newTestBlock(t)
	ccr := testLayout.MustField("CCR[0]")
	if err := b.WriteField(ccr, 0xFFFF_FFFF); err != nil {
		t.Fatal(err)
	}
	slot := PinBits(ccr, 5, 2) // bits 11:10
	if err := b.WriteBits(slot, 0b01); err != nil {
		t.Fatal(err)
	}
	if got := b.ReadField(ccr); got != 0xFFFF_F7FF {
		t.Fatalf("CCR0 = %#x", got)
	}
	if got, err := b.ReadBits(slot); err != nil || got != 0b01 {
		t.Fatalf("ReadBits = %#b, %v", got, err)
	}
	if err := b.WriteBits(slot, 0b100); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("oversized bits: %v", err)
	}
	if err := b.WriteBits(PinBits(ccr, 16, 2), 1); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("bits past the field: %v", err)
	}
}

type countingGuard struct {
	entered, released int
}

func (g *countingGuard) Enter() func() {
	g.entered++
	return func() { g.released++ }
}

func TestBlock_GuardWrapsReadModifyWrite(t *testing.T) {
	g := &countingGuard{}
	b, _ := newTestBlock(t, WithGuard(g))
	if err := b.Modify("CR", func(v uint32) uint32 { return v + 1 }); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteBits(PinBits(testLayout.MustField("CR"), 1, 1), 1); err != nil {
		t.Fatal(err)
	}
	if err := b.Write("CR", 0); err != nil {
		t.Fatal(err)
	}
	if g.entered != 2 || g.released != 2 {
		t.Fatalf("guard entered=%d released=%d", g.entered, g.released)
	}
}

func TestBlock_SnapshotSkipsEffectsAndWriteOnly(t *testing.T) {
	b, _ := newTestBlock(t)
	names := func(vs []Value) []string {
		var out []string
		for _, v := range vs {
			out = append(out, v.Field.Name)
		}
		return out
	}
	got := names(b.Snapshot(false))
	want := []string{"CR", "CNT", "CCR[0]", "CCR[1]"}
	if len(got) != len(want) {
		t.Fatalf("snapshot = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot = %v", got)
		}
	}
	if n := len(b.Snapshot(true)); n != 5 {
		t.Fatalf("snapshot with effects has %d fields", n)
	}
}

// lossyMem is a Sim that can drop loads the way an I²C window does: the load
// returns 0 and the failure is kept for Err.
type lossyMem struct {
	*mmio.Sim
	dropLoads bool
	err       error
}

func (m *lossyMem) Err() error { return m.err }

func (m *lossyMem) Load16(addr uintptr) uint16 {
	if m.dropLoads {
		m.err = errcode.New(errcode.BusFault, "load", "dropped")
		return 0
	}
	return m.Sim.Load16(addr)
}

func TestBlock_ModifySkipsStoreAfterFailedLoad(t *testing.T) {
	sim := mmio.NewSim()
	if _, err := sim.Map(testBase, 0x400); err != nil {
		t.Fatal(err)
	}
	mem := &lossyMem{Sim: sim}
	b, err := NewBlock("TIM1", mem, testBase, testLayout)
	if err != nil {
		t.Fatal(err)
	}
	cr := testLayout.MustField("CR")
	if err := b.WriteField(cr, 0x00F0); err != nil {
		t.Fatal(err)
	}

	mem.dropLoads = true
	sim.SetTrace(true)
	err = b.ModifyField(cr, func(v uint32) uint32 { return v | 0x1 })
	if !errors.Is(err, errcode.BusFault) {
		t.Fatalf("ModifyField = %v, want bus_fault", err)
	}
	h, err := NewReg[uint16](b, "CR")
	if err != nil {
		t.Fatal(err)
	}
	h.Modify(func(v uint16) uint16 { return v | 0x1 })
	for _, a := range sim.Trace() {
		if a.Op == mmio.OpStore {
			t.Fatalf("store issued after a failed load: %v", a)
		}
	}
	if got := sim.Load16(testBase); got != 0x00F0 {
		t.Fatalf("CR = %#x, want 0xf0 untouched", got)
	}
}
