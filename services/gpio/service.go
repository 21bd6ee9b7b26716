// services/gpio/service.go
package gpio

import (
	"context"
	"strings"

	"regmap-go/bus"
	"regmap-go/errcode"
	"regmap-go/types"
	"regmap-go/x/timex"
)

const (
	tokGPIO    = "gpio"
	tokControl = "control"
	tokInfo    = "info"
	tokState   = "state"
	tokEvent   = "event"
)

// -----------------------------------------------------------------------------
// Entry point
// -----------------------------------------------------------------------------

// Run serves gpio/<id>/... for the pins named in config/gpio until ctx ends.
func Run(ctx context.Context, conn *bus.Connection, pins PinFactory, opts Options) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPoll
	}
	s := &service{
		conn:    conn,
		pins:    pins,
		opts:    opts,
		entries: map[string]*entry{},
		edges:   newEdgeWorker(opts.PollInterval, opts.EventQueue),
	}
	s.edges.Start(ctx)
	s.loop(ctx)
}

type entry struct {
	params types.GPIOParams
	pin    Pin
	pull   Pull
	edge   Edge
	output bool
	cancel func()
}

type service struct {
	conn    *bus.Connection
	pins    PinFactory
	opts    Options
	entries map[string]*entry // id -> entry
	edges   *edgeWorker
}

// -----------------------------------------------------------------------------
// Main loop
// -----------------------------------------------------------------------------

func (s *service) loop(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.T("config", tokGPIO))
	ctrlSub := s.conn.Subscribe(bus.T(tokGPIO, bus.SingleLevel, tokControl, bus.SingleLevel))
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg := <-cfgSub.Channel():
			var cfg types.GPIOConfig
			if err := decodeJSON(msg.Payload, &cfg); err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			if err := s.applyConfig(cfg); err != nil {
				println("Error:", "gpio:", err.Error())
				s.publishState("error", "apply_config_failed", err)
				continue
			}
			s.publishState("ready", "configured", nil)

		case msg := <-ctrlSub.Channel():
			// gpio/<id>/control/<method>
			if len(msg.Topic) != 4 {
				continue
			}
			id, _ := msg.Topic[1].(string)
			method, _ := msg.Topic[3].(string)
			e, ok := s.entries[id]
			if !ok {
				s.replyErr(msg, errcode.New(errcode.UnknownPin, method, id))
				continue
			}
			res, err := s.control(id, e, method, msg.Payload)
			if err != nil {
				s.replyErr(msg, err)
				continue
			}
			s.replyOK(msg, res)

		case ev := <-s.edges.Events():
			s.handleEvent(ev)
		}
	}
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// applyConfig brings the pin set in line with cfg. Pins that fail are
// skipped and the first failure is returned after the rest are applied.
func (s *service) applyConfig(cfg types.GPIOConfig) error {
	var first error
	fail := func(err error) {
		if first == nil {
			first = err
		}
	}
	if cfg.PollMS > 0 {
		s.edges.SetInterval(timex.Ms(cfg.PollMS))
	}

	seen := map[string]struct{}{}
	used := map[string]string{} // pin name -> id
	for _, p := range cfg.Pins {
		const op = "config"
		if p.ID == "" || strings.ContainsAny(p.ID, "/+#") {
			fail(errcode.New(errcode.InvalidParams, op, "bad pin id "+p.ID))
			continue
		}
		if _, dup := seen[p.ID]; dup {
			fail(errcode.New(errcode.InvalidParams, op, "duplicate pin id "+p.ID))
			continue
		}
		seen[p.ID] = struct{}{}
		pinName := strings.ToUpper(p.Pin)
		if other, taken := used[pinName]; taken {
			fail(errcode.New(errcode.PinInUse, op, p.Pin+" by "+other))
			continue
		}
		used[pinName] = p.ID

		if cur, ok := s.entries[p.ID]; ok {
			if sameParams(cur.params, p) {
				continue
			}
			s.remove(p.ID, false)
		}
		if err := s.add(p); err != nil {
			fail(err)
			s.pubRet(bus.T(tokGPIO, p.ID, tokInfo), nil)
			s.pubRet(bus.T(tokGPIO, p.ID, tokState), nil)
		}
	}

	// Tidy-up: remove pins not in config
	for id := range s.entries {
		if _, ok := seen[id]; !ok {
			s.remove(id, true)
		}
	}
	return first
}

func (s *service) add(p types.GPIOParams) error {
	const op = "config"
	pin, ok := s.pins.ByName(p.Pin)
	if !ok {
		return errcode.New(errcode.UnknownPin, op, p.ID+": "+p.Pin)
	}
	e := &entry{params: p, pin: pin, pull: parsePull(p.Pull)}

	mode := strings.ToLower(p.Mode)
	if mode == "" {
		mode = "output"
	}
	switch mode {
	case "input":
		edge, ok := ParseEdge(p.Edge)
		if !ok {
			return errcode.New(errcode.InvalidParams, op, p.ID+": edge "+p.Edge)
		}
		if err := pin.ConfigureInput(e.pull); err != nil {
			return err
		}
		e.edge = edge
	case "output":
		init := p.Initial != nil && *p.Initial
		if err := pin.ConfigureOutput(init != p.Invert); err != nil {
			return err
		}
		e.output = true
	default:
		return errcode.New(errcode.InvalidParams, op, p.ID+": mode "+p.Mode)
	}

	if e.edge != EdgeNone {
		cancel, err := s.edges.RegisterInput(p.ID, pin, e.edge, p.DebounceMS, p.Invert)
		if err != nil {
			return err
		}
		e.cancel = cancel
	}
	s.entries[p.ID] = e
	s.publishInfo(p.ID, e)
	s.publishPinState(p.ID, e)
	return nil
}

// remove stops watching id. With clear set its retained topics are wiped.
func (s *service) remove(id string, clear bool) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
	delete(s.entries, id)
	if clear {
		s.pubRet(bus.T(tokGPIO, id, tokInfo), nil)
		s.pubRet(bus.T(tokGPIO, id, tokState), nil)
	}
}

func sameParams(a, b types.GPIOParams) bool {
	ai, bi := a.Initial, b.Initial
	a.Initial, b.Initial = nil, nil
	if a != b {
		return false
	}
	return (ai == nil && bi == nil) || (ai != nil && bi != nil && *ai == *bi)
}

// -----------------------------------------------------------------------------
// Control
// -----------------------------------------------------------------------------

func (s *service) control(id string, e *entry, method string, payload any) (map[string]any, error) {
	switch method {
	case "set":
		if !e.output {
			return nil, errcode.New(errcode.Unsupported, method, id+" is an input")
		}
		if err := e.pin.Set(wantBool(payload, "level") != e.params.Invert); err != nil {
			return nil, err
		}
		s.publishPinState(id, e)
		return nil, nil
	case "get":
		lvl, err := e.pin.Get()
		if err != nil {
			return nil, err
		}
		return map[string]any{"level": boolToInt(lvl != e.params.Invert)}, nil
	case "toggle":
		if !e.output {
			return nil, errcode.New(errcode.Unsupported, method, id+" is an input")
		}
		if err := e.pin.Toggle(); err != nil {
			return nil, err
		}
		s.publishPinState(id, e)
		return nil, nil
	case "configure_input":
		pull := parsePull(mapFromAny(payload)["pull"])
		if err := e.pin.ConfigureInput(pull); err != nil {
			return nil, err
		}
		e.output, e.pull = false, pull
		e.params.Mode, e.params.Pull = "input", pullString(pull)
		s.publishInfo(id, e)
		return map[string]any{"mode": "input", "pull": e.params.Pull}, nil
	case "configure_output":
		init := wantBool(payload, "initial")
		if err := e.pin.ConfigureOutput(init != e.params.Invert); err != nil {
			return nil, err
		}
		if e.cancel != nil {
			e.cancel()
			e.cancel, e.edge = nil, EdgeNone
		}
		e.output = true
		e.params.Mode, e.params.Initial = "output", &init
		s.publishInfo(id, e)
		s.publishPinState(id, e)
		return map[string]any{"mode": "output"}, nil
	}
	return nil, errcode.New(errcode.Unsupported, method, id)
}

// -----------------------------------------------------------------------------
// Events and helpers
// -----------------------------------------------------------------------------

func (s *service) handleEvent(ev Event) {
	if _, ok := s.entries[ev.ID]; !ok {
		return
	}
	ts := ev.TS.UnixMilli()

	// Event (non-retained)
	s.conn.Publish(s.conn.NewMessage(
		bus.T(tokGPIO, ev.ID, tokEvent),
		types.GPIOEvent{Edge: edgeString(ev.Edge), Level: ev.Level, TS: ts},
		false,
	))
	// State (retained)
	lvl := ev.Level
	s.pubRet(bus.T(tokGPIO, ev.ID, tokState), types.GPIOState{Link: types.LinkUp, Level: &lvl, TS: ts})
}

func (s *service) publishInfo(id string, e *entry) {
	mode := "input"
	if e.output {
		mode = "output"
	}
	info := types.GPIOInfo{
		Pin:           e.pin.Name(),
		Mode:          mode,
		Pull:          pullString(e.pull),
		Invert:        e.params.Invert,
		SchemaVersion: 1,
	}
	if e.edge != EdgeNone {
		info.Edge = edgeString(e.edge)
	}
	s.pubRet(bus.T(tokGPIO, id, tokInfo), info)
}

func (s *service) publishPinState(id string, e *entry) {
	st := types.GPIOState{Link: types.LinkUp, TS: timex.NowMs()}
	if lvl, err := e.pin.Get(); err != nil {
		st.Link, st.Error = types.LinkDegraded, string(errcode.Of(err))
	} else {
		v := boolToInt(lvl != e.params.Invert)
		st.Level = &v
	}
	s.pubRet(bus.T(tokGPIO, id, tokState), st)
}

func (s *service) publishState(level, status string, err error) {
	st := types.ServiceState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.pubRet(bus.T(tokGPIO, tokState), st)
}

func (s *service) replyOK(req *bus.Message, extra map[string]any) {
	if len(req.ReplyTo) == 0 {
		return
	}
	m := map[string]any{"ok": true}
	for k, v := range extra {
		m[k] = v
	}
	s.conn.Reply(req, m, false)
}

func (s *service) replyErr(req *bus.Message, err error) {
	if len(req.ReplyTo) == 0 {
		return
	}
	s.conn.Reply(req, map[string]any{"ok": false, "error": string(errcode.Of(err))}, false)
}

func (s *service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}
