package stm32f2gpio

import (
	"errors"
	"testing"

	"regmap-go/errcode"
	"regmap-go/mmio"
	"regmap-go/regs"
)

func newSimPort(t *testing.T, letter byte) (*Port, *SimPort, *mmio.Sim) {
	t.Helper()
	sim := mmio.NewSim()
	base, _ := PortBase(letter)
	sp, err := AttachSim(sim, base)
	if err != nil {
		t.Fatal(err)
	}
	sp.ResetTo(letter)
	p, err := OpenPort(letter, sim, regs.WithGuard(&regs.MutexGuard{}))
	if err != nil {
		t.Fatal(err)
	}
	return p, sp, sim
}

func TestOpenPort(t *testing.T) {
	p, _, _ := newSimPort(t, 'c')
	if p.Name() != "GPIOC" || p.Block().Base() != 0x4002_0800 {
		t.Fatalf("got %s at %#x", p.Name(), p.Block().Base())
	}
	if _, err := OpenPort('Z', mmio.NewSim()); !errors.Is(err, errcode.UnknownPort) {
		t.Fatalf("port Z: %v", err)
	}
}

func TestResetValues(t *testing.T) {
	p, _, _ := newSimPort(t, 'A')
	moder, _ := p.Block().Read("MODER")
	pupdr, _ := p.Block().Read("PUPDR")
	if moder != 0xA800_0000 || pupdr != 0x6400_0000 {
		t.Fatalf("GPIOA reset MODER=%#x PUPDR=%#x", moder, pupdr)
	}
	m, _ := p.Mode(15)
	if m != ModeAltFunc {
		t.Fatalf("PA15 mode = %s", m)
	}
}

func TestConfigureRoundTrip(t *testing.T) {
	p, _, _ := newSimPort(t, 'D')
	cfgs := map[int]PinConfig{
		0:  {Mode: ModeOutput, OutputType: OpenDrain, Speed: SpeedFast, Pull: PullUp},
		7:  {Mode: ModeAltFunc, Speed: SpeedHigh, AltFunc: 7},
		9:  {Mode: ModeAltFunc, AltFunc: 12, Pull: PullDown},
		15: {Mode: ModeAnalog},
	}
	for pin, cfg := range cfgs {
		if err := p.Configure(pin, cfg); err != nil {
			t.Fatalf("pin %d: %v", pin, err)
		}
	}
	for pin, want := range cfgs {
		got, err := p.Config(pin)
		if err != nil || got != want {
			t.Fatalf("pin %d: got %+v (%v), want %+v", pin, got, err, want)
		}
	}
	afrh, _ := p.Block().Read("AFR[1]")
	if afrh != 12<<4 {
		t.Fatalf("AFR[1] = %#x", afrh)
	}
	if got, _ := p.Config(1); got != (PinConfig{}) {
		t.Fatalf("untouched pin 1 = %+v", got)
	}
}

func TestConfigureRejects(t *testing.T) {
	p, _, sim := newSimPort(t, 'D')
	sim.SetTrace(true)
	if err := p.Configure(16, PinConfig{}); !errors.Is(err, errcode.UnknownPin) {
		t.Fatalf("pin 16: %v", err)
	}
	if err := p.Configure(-1, PinConfig{}); !errors.Is(err, errcode.UnknownPin) {
		t.Fatalf("pin -1: %v", err)
	}
	if err := p.Configure(3, PinConfig{Mode: ModeAltFunc, AltFunc: 16}); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("AF16: %v", err)
	}
	if err := p.Configure(3, PinConfig{Mode: 4}); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("mode 4: %v", err)
	}
	if n := len(sim.Trace()); n != 0 {
		t.Fatalf("rejected configure touched the bus %d times", n)
	}
	if _, err := p.Get(16); !errors.Is(err, errcode.UnknownPin) {
		t.Fatalf("get 16: %v", err)
	}
	if err := p.Toggle(99); !errors.Is(err, errcode.UnknownPin) {
		t.Fatalf("toggle 99: %v", err)
	}
}

func TestSetResetUseOneStore(t *testing.T) {
	p, sp, sim := newSimPort(t, 'B')
	sim.SetTrace(true)

	p.Set(0x00F0)
	p.Reset(0x0030)
	if got := sp.ODR(); got != 0x00C0 {
		t.Fatalf("ODR = %#x", got)
	}
	tr := sim.Trace()
	if len(tr) != 2 {
		t.Fatalf("trace = %v", tr)
	}
	base := p.Block().Base()
	want := []mmio.Access{
		{Op: mmio.OpStore, Addr: base + OffBSRRL, Width: mmio.Width16, Value: 0x00F0},
		{Op: mmio.OpStore, Addr: base + OffBSRRH, Width: mmio.Width16, Value: 0x0030},
	}
	for i := range want {
		if tr[i] != want[i] {
			t.Fatalf("access %d = %s, want %s", i, tr[i], want[i])
		}
	}
	if v, _ := p.Block().Read("BSRRL"); v != 0 {
		t.Fatalf("BSRRL reads %#x", v)
	}
}

func TestBSRRWordStoreSetWins(t *testing.T) {
	p, sp, sim := newSimPort(t, 'B')
	p.WriteOutput(0x0F00)
	sim.Store32(p.Block().Base()+OffBSRRL, 0x0F01_0003)
	if got := sp.ODR(); got != 0x0003 {
		t.Fatalf("ODR = %#x", got)
	}
	sim.Store32(p.Block().Base()+OffBSRRL, 0x0001_0001)
	if got := sp.ODR(); got&1 == 0 {
		t.Fatalf("set lost against reset: ODR = %#x", got)
	}
}

func TestToggle(t *testing.T) {
	p, sp, sim := newSimPort(t, 'E')
	sim.SetTrace(true)
	if err := p.Toggle(4); err != nil {
		t.Fatal(err)
	}
	if sp.ODR() != 1<<4 {
		t.Fatalf("ODR = %#x", sp.ODR())
	}
	if err := p.Toggle(4); err != nil {
		t.Fatal(err)
	}
	if sp.ODR() != 0 {
		t.Fatalf("ODR = %#x", sp.ODR())
	}
	tr := sim.Trace()
	if len(tr) != 4 || tr[0].Op != mmio.OpLoad || tr[1].Op != mmio.OpStore ||
		tr[1].Addr != p.Block().Base()+OffBSRRL || tr[3].Addr != p.Block().Base()+OffBSRRH {
		t.Fatalf("trace = %v", tr)
	}
}

func TestInputReflectsModeAndDrive(t *testing.T) {
	p, sp, _ := newSimPort(t, 'C')
	if err := p.Configure(2, PinConfig{Mode: ModeOutput}); err != nil {
		t.Fatal(err)
	}
	sp.Drive(5, true)
	sp.Drive(2, false)
	if err := p.Write(2, true); err != nil {
		t.Fatal(err)
	}
	for pin, want := range map[int]bool{2: true, 5: true, 6: false} {
		got, err := p.Get(pin)
		if err != nil || got != want {
			t.Fatalf("pin %d = %v (%v)", pin, got, err)
		}
	}
	if p.Input() != 1<<2|1<<5 || p.Output() != 1<<2 {
		t.Fatalf("IDR %#x ODR %#x", p.Input(), p.Output())
	}
	sp.Drive(5, false)
	if v, _ := p.Get(5); v {
		t.Fatal("pin 5 still high after release")
	}

	// IDR ignores stores.
	mmio.Store(p.Block().Memory(), p.Block().Base()+OffIDR, mmio.Width32, 0xFFFF)
	if p.Input() != 1<<2 {
		t.Fatalf("IDR %#x after store", p.Input())
	}
}

func TestLockFreezesConfiguration(t *testing.T) {
	p, sp, _ := newSimPort(t, 'G')
	if p.Locked() {
		t.Fatal("locked after reset")
	}
	if err := p.Configure(0, PinConfig{Mode: ModeOutput}); err != nil {
		t.Fatal(err)
	}
	if err := p.Lock(0x0001); err != nil {
		t.Fatal(err)
	}
	if pins, ok := sp.LockedPins(); !ok || pins != 0x0001 {
		t.Fatalf("locked pins %#x %v", pins, ok)
	}
	if !p.Locked() {
		t.Fatal("LCKK not set")
	}

	if err := p.Configure(0, PinConfig{Mode: ModeAnalog, Pull: PullUp}); err != nil {
		t.Fatal(err)
	}
	if err := p.Configure(1, PinConfig{Mode: ModeAnalog, Pull: PullUp}); err != nil {
		t.Fatal(err)
	}
	if got, _ := p.Config(0); got != (PinConfig{Mode: ModeOutput}) {
		t.Fatalf("locked pin changed: %+v", got)
	}
	if got, _ := p.Config(1); got != (PinConfig{Mode: ModeAnalog, Pull: PullUp}) {
		t.Fatalf("unlocked pin: %+v", got)
	}

	// Output data stays writable on a locked pin.
	if err := p.Write(0, true); err != nil || sp.ODR() != 1 {
		t.Fatalf("ODR = %#x (%v)", sp.ODR(), err)
	}

	sp.ResetTo('G')
	if _, ok := sp.LockedPins(); ok || p.Locked() {
		t.Fatal("reset kept the lock")
	}
}

func TestLockSequenceAbort(t *testing.T) {
	p, sp, _ := newSimPort(t, 'H')
	lckr := Layout.MustField("LCKR")
	b := p.Block()
	// Mask changes between steps.
	for _, v := range []uint32{lckrLCKK | 3, 1, lckrLCKK | 3} {
		if err := b.WriteField(lckr, v); err != nil {
			t.Fatal(err)
		}
	}
	if _, ok := sp.LockedPins(); ok {
		t.Fatal("aborted sequence locked the port")
	}
	if err := p.Lock(0x0003); err != nil {
		t.Fatalf("clean sequence after abort: %v", err)
	}
}

func TestPinHandle(t *testing.T) {
	p, sp, _ := newSimPort(t, 'B')
	led := p.Pin(7)
	if led.Name() != "PB7" || led.Number() != 7 || led.Port() != p {
		t.Fatalf("handle = %s/%d", led.Name(), led.Number())
	}
	if err := led.Configure(PinConfig{Mode: ModeOutput, Speed: SpeedFast}); err != nil {
		t.Fatal(err)
	}
	if err := led.High(); err != nil {
		t.Fatal(err)
	}
	if sp.ODR() != 1<<7 {
		t.Fatalf("ODR = %#x after High", sp.ODR())
	}
	if err := led.Toggle(); err != nil {
		t.Fatal(err)
	}
	if on, _ := led.Get(); on {
		t.Fatal("pin still high after Toggle")
	}
	cfg, err := led.Config()
	if err != nil || cfg.Mode != ModeOutput || cfg.Speed != SpeedFast {
		t.Fatalf("Config = %+v, %v", cfg, err)
	}
	if err := p.Pin(16).Low(); !errors.Is(err, errcode.UnknownPin) {
		t.Fatalf("pin 16: %v", err)
	}
}
