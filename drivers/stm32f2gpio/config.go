package stm32f2gpio

import "strings"

// Mode is the MODER setting of a pin.
type Mode uint8

const (
	ModeInput Mode = iota
	ModeOutput
	ModeAltFunc
	ModeAnalog
)

// OutputType is the OTYPER setting of a pin.
type OutputType uint8

const (
	PushPull OutputType = iota
	OpenDrain
)

// Speed is the OSPEEDR setting of a pin.
type Speed uint8

const (
	SpeedLow    Speed = iota // 2 MHz
	SpeedMedium              // 25 MHz
	SpeedFast                // 50 MHz
	SpeedHigh                // 100 MHz
)

// Pull is the PUPDR setting of a pin.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// PinConfig is the full configuration of one pin. AltFunc is only applied
// in ModeAltFunc.
type PinConfig struct {
	Mode       Mode
	OutputType OutputType
	Speed      Speed
	Pull       Pull
	AltFunc    uint8
}

var (
	modeNames  = [...]string{"input", "output", "af", "analog"}
	otypeNames = [...]string{"push_pull", "open_drain"}
	speedNames = [...]string{"low", "medium", "fast", "high"}
	pullNames  = [...]string{"none", "up", "down"}
)

func (m Mode) String() string       { return name(modeNames[:], int(m)) }
func (o OutputType) String() string { return name(otypeNames[:], int(o)) }
func (s Speed) String() string      { return name(speedNames[:], int(s)) }
func (p Pull) String() string       { return name(pullNames[:], int(p)) }

func name(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return "invalid"
}

func lookup(names []string, s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return i, true
		}
	}
	return 0, false
}

// ParseMode accepts "input", "output", "af" (or "alt") and "analog".
func ParseMode(s string) (Mode, bool) {
	if strings.EqualFold(strings.TrimSpace(s), "alt") {
		return ModeAltFunc, true
	}
	i, ok := lookup(modeNames[:], s)
	return Mode(i), ok
}

func ParseOutputType(s string) (OutputType, bool) {
	i, ok := lookup(otypeNames[:], s)
	return OutputType(i), ok
}

func ParseSpeed(s string) (Speed, bool) {
	i, ok := lookup(speedNames[:], s)
	return Speed(i), ok
}

// ParsePull accepts "none", "up" and "down"; empty means none.
func ParsePull(s string) (Pull, bool) {
	if strings.TrimSpace(s) == "" {
		return PullNone, true
	}
	i, ok := lookup(pullNames[:], s)
	return Pull(i), ok
}
