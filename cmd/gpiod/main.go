// Command gpiod runs the gpio, regsvc, config and heartbeat services over
// simulated GPIO ports and an optional simulated I²C expander, logging every
// bus message. It is the host harness for the services.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/platinasystems/log"

	"regmap-go/bus"
	"regmap-go/drivers/pca9555"
	"regmap-go/drivers/stm32f2gpio"
	"regmap-go/mmio"
	"regmap-go/regs"
	"regmap-go/services/config"
	"regmap-go/services/gpio"
	"regmap-go/services/heartbeat"
	"regmap-go/services/regsvc"
)

func main() {
	device := flag.String("device", "sim", "embedded board config ("+strings.Join(config.Devices(), ", ")+")")
	ports := flag.String("ports", "ABC", "simulated GPIO port letters")
	expander := flag.Bool("expander", true, "simulate a PCA9555 on I2C")
	press := flag.String("press", "PC13", "pin to pulse as a button press")
	every := flag.Duration("every", 2*time.Second, "button press period (0 disables)")
	monitor := flag.String("monitor", "#", "topic filter to log, '/' separated (empty disables)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = config.WithDevice(ctx, *device)

	sim := mmio.NewSim()
	pins := gpio.Pins{}
	sims := map[string]*stm32f2gpio.SimPort{}
	var blocks []*regs.Block
	for _, l := range []byte(strings.ToUpper(*ports)) {
		base, ok := stm32f2gpio.PortBase(l)
		if !ok {
			log.Print("daemon", "err", "no GPIO port ", string(l))
			os.Exit(2)
		}
		sp, err := stm32f2gpio.AttachSim(sim, base)
		if err != nil {
			log.Print("daemon", "err", err)
			os.Exit(1)
		}
		sp.ResetTo(l)
		port, err := stm32f2gpio.OpenPort(l, sim, regs.WithGuard(&regs.MutexGuard{}))
		if err != nil {
			log.Print("daemon", "err", err)
			os.Exit(1)
		}
		sims[string(l)] = sp
		pins.AddPort(port)
		blocks = append(blocks, port.Block())
	}
	if *expander {
		exp, err := pca9555.New(newSimExpander(), pca9555.Address, regs.WithGuard(&regs.MutexGuard{}))
		if err != nil {
			log.Print("daemon", "err", err)
			os.Exit(1)
		}
		pins.AddExpander(exp, "EXP")
		blocks = append(blocks, exp.Block())
	}

	b := bus.NewBus(64)
	if *monitor != "" {
		go logTopics(b.NewConnection("monitor"), topicOf(*monitor))
	}
	go gpio.Run(ctx, b.NewConnection("gpio"), pins, gpio.Options{})
	go regsvc.Run(ctx, b.NewConnection("regsvc"), blocks...)
	(&heartbeat.Service{Quiet: true}).Start(ctx, b.NewConnection("heartbeat"))
	config.NewConfigService().Start(ctx, b.NewConnection("config"))
	log.Print("daemon", "info", "gpiod: ", len(blocks), " blocks, device ", *device)

	if *every > 0 && *press != "" {
		go pulse(ctx, sims, strings.ToUpper(*press), *every)
	}
	<-ctx.Done()
	// Let the services publish their stopped state.
	time.Sleep(50 * time.Millisecond)
	log.Print("daemon", "info", "done")
}

// topicOf turns "gpio/+/event" into a Topic.
func topicOf(s string) bus.Topic {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	t := make(bus.Topic, len(parts))
	for i, p := range parts {
		t[i] = p
	}
	return t
}

func logTopics(conn *bus.Connection, filter bus.Topic) {
	sub := conn.Subscribe(filter)
	for m := range sub.Channel() {
		payload, err := json.Marshal(m.Payload)
		if err != nil {
			payload = []byte("?")
		}
		if len(m.ReplyTo) > 0 {
			log.Printf("%s %s (reply to %s)", m.Topic, payload, m.ReplyTo)
			continue
		}
		log.Printf("%s %s", m.Topic, payload)
	}
}

// pulse drives pin ("PC13") low for 100ms, then high again, every period.
func pulse(ctx context.Context, sims map[string]*stm32f2gpio.SimPort, pin string, period time.Duration) {
	var n int
	if len(pin) < 3 || pin[0] != 'P' {
		log.Print("daemon", "err", "bad press pin ", pin)
		return
	}
	sp, ok := sims[pin[1:2]]
	if !ok {
		log.Print("daemon", "err", "press pin on unsimulated port ", pin)
		return
	}
	for _, c := range pin[2:] {
		if c < '0' || c > '9' {
			log.Print("daemon", "err", "bad press pin ", pin)
			return
		}
		n = n*10 + int(c-'0')
	}
	if n >= stm32f2gpio.NumPins {
		log.Print("daemon", "err", "bad press pin ", pin)
		return
	}
	sp.Drive(n, true)
	tick := time.NewTicker(period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			sp.Drive(n, false)
			time.Sleep(100 * time.Millisecond)
			sp.Drive(n, true)
		}
	}
}
