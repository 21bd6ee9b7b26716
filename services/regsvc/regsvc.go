// Package regsvc exposes register blocks on the bus for diagnostics:
//
//	reg/<block>/info                          retained layout (types.RegDump)
//	reg/<block>/<field>/control/read          -> types.RegValue
//	reg/<block>/<field>/control/write         {"value":N} -> types.RegValue
//	reg/<block>/<field>/control/modify        {"set":N,"clear":N} -> types.RegValue
//	reg/<block>/control/dump                  {"effects":bool} -> types.RegDump
//
// Reads go through the register view, so reading a field with a side effect
// has that effect.
package regsvc

import (
	"context"
	"encoding/json"

	"regmap-go/bus"
	"regmap-go/errcode"
	"regmap-go/mmio"
	"regmap-go/regs"
	"regmap-go/types"
	"regmap-go/x/timex"
)

const (
	tokReg     = "reg"
	tokControl = "control"
	tokInfo    = "info"
	tokState   = "state"
)

type service struct {
	conn   *bus.Connection
	blocks map[string]*regs.Block
}

// Run serves blocks until ctx ends. Blocks are addressed by name; later
// duplicates are ignored.
func Run(ctx context.Context, conn *bus.Connection, blocks ...*regs.Block) {
	s := &service{conn: conn, blocks: map[string]*regs.Block{}}
	for _, b := range blocks {
		if b == nil {
			continue
		}
		if _, dup := s.blocks[b.Name()]; dup {
			println("Error:", "regsvc: duplicate block", b.Name())
			continue
		}
		s.blocks[b.Name()] = b
	}
	s.loop(ctx)
}

func (s *service) loop(ctx context.Context) {
	fieldSub := s.conn.Subscribe(bus.T(tokReg, bus.SingleLevel, bus.SingleLevel, tokControl, bus.SingleLevel))
	blockSub := s.conn.Subscribe(bus.T(tokReg, bus.SingleLevel, tokControl, bus.SingleLevel))
	defer s.conn.Unsubscribe(fieldSub)
	defer s.conn.Unsubscribe(blockSub)

	for name, b := range s.blocks {
		s.pubRet(bus.T(tokReg, name, tokInfo), describe(b))
	}
	s.publishState("ready", "serving", nil)
	println("Info:", "regsvc: serving", len(s.blocks), "blocks")

	for {
		select {
		case <-ctx.Done():
			for name := range s.blocks {
				s.pubRet(bus.T(tokReg, name, tokInfo), nil)
			}
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg := <-fieldSub.Channel():
			// reg/<block>/<field>/control/<method>
			name, _ := msg.Topic[1].(string)
			field, _ := msg.Topic[2].(string)
			method, _ := msg.Topic[4].(string)
			res, err := s.fieldOp(name, field, method, msg.Payload)
			s.reply(msg, res, err)

		case msg := <-blockSub.Channel():
			// reg/<block>/control/<method>
			name, _ := msg.Topic[1].(string)
			method, _ := msg.Topic[3].(string)
			res, err := s.blockOp(name, method, msg.Payload)
			s.reply(msg, res, err)
		}
	}
}

func (s *service) fieldOp(name, field, method string, payload any) (any, error) {
	b, ok := s.blocks[name]
	if !ok {
		return nil, errcode.New(errcode.UnknownBlock, method, name)
	}
	f, ok := b.Field(field)
	if !ok {
		return nil, errcode.New(errcode.UnknownField, method, name+"."+field)
	}
	return run(b, method, func() (any, error) {
		switch method {
		case "read":
			if !f.Access.Readable() {
				return nil, errcode.New(errcode.WriteOnly, method, f.String())
			}
			return value(b, f, b.ReadField(f)), nil

		case "write":
			var p types.RegWrite
			if err := decodeStrict(payload, &p); err != nil {
				return nil, err
			}
			if err := b.WriteField(f, p.Value); err != nil {
				return nil, err
			}
			return value(b, f, p.Value), nil

		case "modify":
			var p types.RegModify
			if err := decodeStrict(payload, &p); err != nil {
				return nil, err
			}
			var next uint32
			err := b.ModifyField(f, func(v uint32) uint32 {
				next = v&^p.Clear | p.Set
				return next
			})
			if err != nil {
				return nil, err
			}
			return value(b, f, next), nil
		}
		return nil, errcode.New(errcode.Unsupported, method, name+"."+field)
	})
}

func (s *service) blockOp(name, method string, payload any) (any, error) {
	b, ok := s.blocks[name]
	if !ok {
		return nil, errcode.New(errcode.UnknownBlock, method, name)
	}
	if method != "dump" {
		return nil, errcode.New(errcode.Unsupported, method, name)
	}
	var p struct {
		Effects bool `json:"effects"`
	}
	if payload != nil {
		if err := decodeJSON(payload, &p); err != nil {
			return nil, errcode.Wrap(errcode.InvalidPayload, method, err)
		}
	}
	return run(b, method, func() (any, error) {
		d := describe(b)
		for _, v := range b.Snapshot(p.Effects) {
			d.Values = append(d.Values, value(b, v.Field, v.Value))
		}
		return d, nil
	})
}

// run executes op against b. On backings that record transfer failures it
// runs as one transaction, so failures from other users of the backing are
// not reported here. A bus fault panic comes back as an error.
func run(b *regs.Block, method string, op func() (any, error)) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*errcode.E)
			if !ok {
				panic(r)
			}
			res, err = nil, e
		}
	}()
	t, ok := b.Memory().(mmio.Transactor)
	if !ok {
		return op()
	}
	terr := t.Txn(func() { res, err = op() })
	if terr != nil && err == nil {
		return nil, errcode.Wrap(errcode.BusFault, method, terr)
	}
	return res, err
}

func describe(b *regs.Block) types.RegDump {
	l := b.Layout()
	d := types.RegDump{Block: b.Name(), Base: uint64(b.Base()), Size: uint32(l.Size())}
	for _, f := range l.Fields() {
		d.Fields = append(d.Fields, types.RegField{
			Name:   f.Name,
			Offset: uint32(f.Offset),
			Width:  int(f.Width),
			Access: f.Access.String(),
			Effect: f.Effect,
		})
	}
	return d
}

func value(b *regs.Block, f regs.Field, v uint32) types.RegValue {
	return types.RegValue{Block: b.Name(), Field: f.Name, Addr: uint64(b.Addr(f)), Value: v}
}

func (s *service) reply(req *bus.Message, res any, err error) {
	if len(req.ReplyTo) == 0 {
		return
	}
	if err != nil {
		s.conn.Reply(req, map[string]any{"ok": false, "error": string(errcode.Of(err))}, false)
		return
	}
	s.conn.Reply(req, map[string]any{"ok": true, "result": res}, false)
}

func (s *service) publishState(level, status string, err error) {
	st := types.ServiceState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.pubRet(bus.T(tokReg, tokState), st)
}

func (s *service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}

// decodeStrict decodes a required payload.
func decodeStrict[T any](src any, dst *T) error {
	if src == nil {
		return errcode.New(errcode.InvalidPayload, "decode", "missing payload")
	}
	if err := decodeJSON(src, dst); err != nil {
		return errcode.Wrap(errcode.InvalidPayload, "decode", err)
	}
	return nil
}

func decodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
