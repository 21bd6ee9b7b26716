// Package stm32f2gpio drives the GPIO ports of STM32F2 microcontrollers
// through a register block view.
package stm32f2gpio

const (
	// Peripheral memory map.
	PeriphBase     = 0x4000_0000
	AHB1PeriphBase = PeriphBase + 0x0002_0000
	PortStride     = 0x400

	NumPins = 16
	NumAF   = 16

	// Register offsets.
	OffMODER   = 0x00
	OffOTYPER  = 0x04
	OffOSPEEDR = 0x08
	OffPUPDR   = 0x0C
	OffIDR     = 0x10
	OffODR     = 0x14
	OffBSRRL   = 0x18 // set half of BSRR
	OffBSRRH   = 0x1A // reset half of BSRR
	OffLCKR    = 0x1C
	OffAFRL    = 0x24 // AFR[0], pins 0..7
	OffAFRH    = 0x28 // AFR[1], pins 8..15

	// LCKR
	lckrLCKK = 1 << 16
)

// PortBase returns the base address of port letter 'A'..'I'.
func PortBase(letter byte) (uintptr, bool) {
	if letter >= 'a' && letter <= 'i' {
		letter -= 'a' - 'A'
	}
	if letter < 'A' || letter > 'I' {
		return 0, false
	}
	return AHB1PeriphBase + uintptr(letter-'A')*PortStride, true
}

// Reset values that differ from zero (debug pins on ports A and B).
type resetValues struct {
	moder, ospeedr, pupdr uint32
}

var portResets = map[byte]resetValues{
	'A': {moder: 0xA800_0000, pupdr: 0x6400_0000},
	'B': {moder: 0x0000_0280, ospeedr: 0x0000_00C0, pupdr: 0x0000_0100},
}
