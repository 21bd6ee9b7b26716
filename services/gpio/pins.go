// services/gpio/pins.go
package gpio

import (
	"strconv"
	"strings"

	"regmap-go/drivers/pca9555"
	"regmap-go/drivers/stm32f2gpio"
	"regmap-go/errcode"
)

// PortPin is one pin of an STM32F2 GPIO port.
type PortPin struct {
	pin stm32f2gpio.Pin
}

func NewPortPin(port *stm32f2gpio.Port, n int) PortPin { return PortPin{pin: port.Pin(n)} }

func (p PortPin) Name() string { return p.pin.Name() }

func (p PortPin) ConfigureInput(pull Pull) error {
	return p.pin.Configure(stm32f2gpio.PinConfig{
		Mode: stm32f2gpio.ModeInput,
		Pull: portPull(pull),
	})
}

// ConfigureOutput latches initial before switching the pin to output.
func (p PortPin) ConfigureOutput(initial bool) error {
	if err := p.pin.Set(initial); err != nil {
		return err
	}
	return p.pin.Configure(stm32f2gpio.PinConfig{Mode: stm32f2gpio.ModeOutput})
}

func (p PortPin) Set(level bool) error { return p.pin.Set(level) }
func (p PortPin) Get() (bool, error)   { return p.pin.Get() }
func (p PortPin) Toggle() error        { return p.pin.Toggle() }

func portPull(p Pull) stm32f2gpio.Pull {
	switch p {
	case PullUp:
		return stm32f2gpio.PullUp
	case PullDown:
		return stm32f2gpio.PullDown
	}
	return stm32f2gpio.PullNone
}

// ExpanderPin is one PCA9555 pin. The chip has fixed pull-ups only.
type ExpanderPin struct {
	pin  pca9555.Pin
	name string
}

func NewExpanderPin(pin pca9555.Pin, prefix string) ExpanderPin {
	return ExpanderPin{pin: pin, name: prefix + strconv.Itoa(pin.Number())}
}

func (p ExpanderPin) Name() string { return p.name }

func (p ExpanderPin) ConfigureInput(pull Pull) error {
	if pull == PullDown {
		return errcode.New(errcode.Unsupported, "configure_input", p.name+": pull down")
	}
	return p.pin.ConfigureInput()
}

func (p ExpanderPin) ConfigureOutput(initial bool) error {
	if err := p.pin.Set(initial); err != nil {
		return err
	}
	return p.pin.ConfigureOutput()
}

func (p ExpanderPin) Set(level bool) error { return p.pin.Set(level) }
func (p ExpanderPin) Get() (bool, error)   { return p.pin.Get() }
func (p ExpanderPin) Toggle() error        { return p.pin.Toggle() }

// Pins is a PinFactory over a fixed set of named pins.
type Pins map[string]Pin

func (m Pins) ByName(name string) (Pin, bool) {
	p, ok := m[strings.ToUpper(strings.TrimSpace(name))]
	return p, ok
}

// AddPort registers all pins of port.
func (m Pins) AddPort(port *stm32f2gpio.Port) Pins {
	for n := 0; n < stm32f2gpio.NumPins; n++ {
		p := NewPortPin(port, n)
		m[p.Name()] = p
	}
	return m
}

// AddExpander registers all pins of dev as prefix0..prefix15.
func (m Pins) AddExpander(dev *pca9555.Device, prefix string) Pins {
	prefix = strings.ToUpper(prefix)
	for n := 0; n < pca9555.NumPins; n++ {
		p := NewExpanderPin(dev.Pin(n), prefix)
		m[p.Name()] = p
	}
	return m
}
