// services/gpio/types.go
package gpio

import "time"

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Edge selection for input events.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// Pin is one digital pin, whatever register block backs it. Levels are
// electrical; inversion is applied by the service.
type Pin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool) error
	Get() (bool, error)
	Toggle() error
	Name() string
}

// PinFactory supplies pins by board name ("PA5", "EXP3").
type PinFactory interface {
	ByName(name string) (Pin, bool)
}

// Options tunes the service. Zero values pick defaults.
type Options struct {
	// PollInterval is the input sampling period for edge detection.
	PollInterval time.Duration
	// EventQueue bounds undelivered edge events.
	EventQueue int
}

const (
	defaultPoll       = 5 * time.Millisecond
	defaultEventQueue = 32
	minPoll           = time.Millisecond
)
