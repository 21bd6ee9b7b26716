package bitsx

import "testing"

func TestMask(t *testing.T) {
	if got := Mask[uint32](2); got != 0b11 {
		t.Fatalf("Mask(2) = %#b", got)
	}
	if got := Mask[uint16](16); got != 0xFFFF {
		t.Fatalf("Mask[uint16](16) = %#x", got)
	}
	if got := Mask[uint8](40); got != 0xFF {
		t.Fatalf("Mask[uint8](40) = %#x", got)
	}
}

func TestFits(t *testing.T) {
	cases := []struct {
		v     uint32
		width uint
		want  bool
	}{
		{0xFFFF, 16, true},
		{0x1_0000, 16, false},
		{0b11, 2, true},
		{0b100, 2, false},
		{0xFFFF_FFFF, 32, true},
	}
	for _, c := range cases {
		if got := Fits(c.v, c.width); got != c.want {
			t.Fatalf("Fits(%#x, %d) = %v", c.v, c.width, got)
		}
	}
}

func TestExtractInsert(t *testing.T) {
	var moder uint32 = 0xA800_0000 // reset value of GPIOA MODER
	if got := Extract(moder, 30, 2); got != 0b10 {
		t.Fatalf("pin 15 mode = %#b", got)
	}
	moder = Insert(moder, 10, 2, uint32(0b01))
	if got := Extract(moder, 10, 2); got != 0b01 {
		t.Fatalf("pin 5 mode = %#b", got)
	}
	if moder&^(0b11<<10) != 0xA800_0000 {
		t.Fatalf("other pins disturbed: %#x", moder)
	}
	// Oversized values are masked to the field.
	if got := Insert(uint32(0), 0, 2, 0b111); got != 0b11 {
		t.Fatalf("Insert masked = %#b", got)
	}
}

func TestSpread(t *testing.T) {
	if got := Spread[uint32](0b101, 2); got != 0b11_00_11 {
		t.Fatalf("Spread(0b101, 2) = %#b", got)
	}
	if got := Spread[uint32](1<<15, 2); got != 0b11<<30 {
		t.Fatalf("Spread(pin15, 2) = %#x", got)
	}
	// Pins beyond the word are dropped.
	if got := Spread[uint32](1<<9, 4); got != 0 {
		t.Fatalf("Spread(pin9, 4) = %#x", got)
	}
	if got := Spread[uint32](1<<7, 4); got != 0xF000_0000 {
		t.Fatalf("Spread(pin7, 4) = %#x", got)
	}
}
