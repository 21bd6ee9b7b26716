//go:build tinygo

// Command firmware runs the gpio, regsvc, config and heartbeat services on
// the STM32F2 reference board over real MMIO. GPIO port clocks are expected
// to be enabled by the runtime before main.
package main

import (
	"context"
	"machine"
	"time"

	"regmap-go/bus"
	"regmap-go/drivers/pca9555"
	"regmap-go/drivers/stm32f2gpio"
	"regmap-go/mmio"
	"regmap-go/regs"
	"regmap-go/services/config"
	"regmap-go/services/gpio"
	"regmap-go/services/heartbeat"
	"regmap-go/services/regsvc"
	"regmap-go/x/conv"
)

const device = "stm32f2"

func main() {
	// Allow the console to come up before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot", device)

	ctx := config.WithDevice(context.Background(), device)
	b := bus.NewBus(16)

	pins := gpio.Pins{}
	var blocks []*regs.Block
	for _, l := range []byte("ABC") {
		port, err := stm32f2gpio.OpenPort(l, mmio.Physical{}, regs.WithGuard(regs.InterruptGuard{}))
		if err != nil {
			println("Error:", err.Error())
			continue
		}
		pins.AddPort(port)
		blocks = append(blocks, port.Block())
	}

	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{Frequency: 400 * machine.KHz}); err != nil {
		println("Error:", "i2c:", err.Error())
	} else if exp, err := pca9555.New(i2c, pca9555.Address, regs.WithGuard(regs.InterruptGuard{})); err != nil {
		println("Error:", "pca9555:", err.Error())
	} else if err := exp.Reset(); err != nil {
		println("Error:", "pca9555 not responding:", err.Error())
	} else {
		pins.AddExpander(exp, "EXP")
		blocks = append(blocks, exp.Block())
	}

	for _, blk := range blocks {
		dump(blk)
	}

	println("[main] starting services …")
	go gpio.Run(ctx, b.NewConnection("gpio"), pins, gpio.Options{})
	go regsvc.Run(ctx, b.NewConnection("regsvc"), blocks...)
	(&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat"))
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	// The user button toggles the green LED.
	ui := b.NewConnection("ui")
	presses := ui.Subscribe(bus.T("gpio", "button", "event"))
	toggle := bus.T("gpio", "led_green", "control", "toggle")
	for range presses.Channel() {
		rctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		if _, err := ui.RequestWait(rctx, ui.NewMessage(toggle, nil, false)); err != nil {
			println("[main] toggle error:", err.Error())
		}
		cancel()
	}
}

// dump prints every side-effect free register of blk.
func dump(blk *regs.Block) {
	var buf [10]byte
	println("[regs]", blk.Name(), "@", string(conv.Hex(buf[:], uint32(blk.Base()), 8)))
	for _, v := range blk.Snapshot(false) {
		println("  ", v.Field.Name, "=", string(conv.HexWidth(buf[:], v.Value, int(v.Field.Width))))
	}
}
