package heartbeat

import (
	"context"
	"time"

	"regmap-go/bus"
	"regmap-go/x/mathx"
	"regmap-go/x/timex"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicHeartbeat       = bus.T("heartbeat", "state")
)

const (
	defaultInterval = time.Second
	minInterval     = time.Millisecond
	maxInterval     = time.Hour
)

// Beat is published retained on heartbeat/state.
type Beat struct {
	Count    uint32 `json:"count"`
	UptimeMS int64  `json:"uptime_ms"`
	TS       int64  `json:"ts_ms"`
}

type Service struct {
	// Quiet suppresses the console line on each beat.
	Quiet bool
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	start := time.Now()
	var count uint32
	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			println("Info:", "heartbeat service stopping")
			conn.Publish(conn.NewMessage(topicHeartbeat, nil, true))
			return
		case t := <-tick.C:
			count++
			conn.Publish(conn.NewMessage(topicHeartbeat, Beat{
				Count:    count,
				UptimeMS: t.Sub(start).Milliseconds(),
				TS:       t.UnixMilli(),
			}, true))
			if !s.Quiet {
				println("Info:", t.Format("15:04:05"), "Heartbeat")
			}
		case msg := <-cfgSub.Channel():
			if d, ok := intervalOf(msg.Payload); ok {
				tick.Reset(d)
				println("Info:", "Heartbeat interval set to", d.String())
			}
		}
	}
}

// intervalOf reads {"interval": seconds} or {"interval_ms": ms}, clamped
// to [1ms, 1h].
func intervalOf(p any) (time.Duration, bool) {
	m, ok := p.(map[string]any)
	if !ok {
		return 0, false
	}
	if v, ok := m["interval_ms"].(float64); ok && v >= 1 {
		return mathx.Clamp(timex.Ms(v), minInterval, maxInterval), true
	}
	if v, ok := m["interval"].(float64); ok && v > 0 {
		return mathx.Clamp(timex.Ms(v*1000), minInterval, maxInterval), true
	}
	return 0, false
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
