// Package bitsx holds mask and bit-field helpers shared by register code.
package bitsx

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

func bitsOf[T constraints.Unsigned]() uint {
	var z T
	return uint(unsafe.Sizeof(z)) * 8
}

// Mask returns a value with the low width bits set.
func Mask[T constraints.Unsigned](width uint) T {
	if width >= bitsOf[T]() {
		return ^T(0)
	}
	return T(1)<<width - 1
}

// Fits reports whether v is representable in width bits.
func Fits[T constraints.Unsigned](v T, width uint) bool {
	return v&^Mask[T](width) == 0
}

// Extract returns the width-bit field at shift.
func Extract[T constraints.Unsigned](word T, shift, width uint) T {
	return (word >> shift) & Mask[T](width)
}

// Insert replaces the width-bit field at shift with v (v is masked).
func Insert[T constraints.Unsigned](word T, shift, width uint, v T) T {
	m := Mask[T](width) << shift
	return word&^m | (v<<shift)&m
}

// Spread widens a one-bit-per-pin mask to width bits per pin, so pin n maps
// to bits [n*width, n*width+width).
func Spread[T constraints.Unsigned](pins uint16, width uint) T {
	var out T
	for n := uint(0); n < 16; n++ {
		if pins&(1<<n) == 0 || n*width >= bitsOf[T]() {
			continue
		}
		out |= Mask[T](width) << (n * width)
	}
	return out
}
