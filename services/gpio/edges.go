// services/gpio/edges.go
package gpio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"regmap-go/x/timex"
)

// Event is delivered from the edge worker to the service loop.
type Event struct {
	ID    string
	Level int // 0/1 after inversion applied
	Edge  Edge
	TS    time.Time
}

// edgeWorker samples registered inputs periodically. Register views have no
// interrupt path, so edges are found by comparing successive samples.
type edgeWorker struct {
	outQ    chan Event
	stopped chan struct{}
	ticker  *time.Ticker

	mu       sync.Mutex
	inputs   map[string]*watch // id -> watch
	interval time.Duration

	drops uint32 // events dropped on a full queue
}

type watch struct {
	id        string
	pin       Pin
	edge      Edge
	debounce  time.Duration
	invert    bool
	lastLevel bool
	lastEvent time.Time
}

func newEdgeWorker(interval time.Duration, outBuf int) *edgeWorker {
	if interval < minPoll {
		interval = defaultPoll
	}
	if outBuf <= 0 {
		outBuf = defaultEventQueue
	}
	return &edgeWorker{
		outQ:     make(chan Event, outBuf),
		stopped:  make(chan struct{}),
		ticker:   time.NewTicker(interval),
		inputs:   map[string]*watch{},
		interval: interval,
	}
}

func (w *edgeWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.stopped)
		defer w.ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-w.ticker.C:
				w.poll(now)
			}
		}
	}()
}

func (w *edgeWorker) Events() <-chan Event { return w.outQ }

// SetInterval changes the sampling period; values below 1ms are ignored.
func (w *edgeWorker) SetInterval(d time.Duration) {
	if d < minPoll {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if d != w.interval {
		w.interval = d
		w.ticker.Reset(d)
	}
}

// RegisterInput starts watching pin. The returned function stops it.
func (w *edgeWorker) RegisterInput(id string, pin Pin, edge Edge, debounceMS int, invert bool) (func(), error) {
	if edge == EdgeNone {
		return func() {}, nil
	}
	level, err := pin.Get()
	if err != nil {
		return nil, err
	}
	wh := &watch{
		id:        id,
		pin:       pin,
		edge:      edge,
		debounce:  timex.Ms(debounceMS),
		invert:    invert,
		lastLevel: level != invert,
	}

	w.mu.Lock()
	w.inputs[id] = wh
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		if w.inputs[id] == wh {
			delete(w.inputs, id)
		}
		w.mu.Unlock()
	}, nil
}

func (w *edgeWorker) poll(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, wh := range w.inputs {
		level, err := wh.pin.Get()
		if err != nil {
			continue
		}
		w.sample(wh, level, now)
	}
}

func (w *edgeWorker) sample(wh *watch, raw bool, now time.Time) {
	if wh.invert {
		raw = !raw
	}

	// Debounce
	if !wh.lastEvent.IsZero() && now.Sub(wh.lastEvent) < wh.debounce {
		return
	}

	// Edge detection
	var e Edge
	switch {
	case !wh.lastLevel && raw:
		e = EdgeRising
	case wh.lastLevel && !raw:
		e = EdgeFalling
	default:
		return
	}

	if wh.edge == EdgeBoth || wh.edge == e {
		select {
		case w.outQ <- Event{ID: wh.id, Level: boolToInt(raw), Edge: e, TS: now}:
		default:
			atomic.AddUint32(&w.drops, 1)
		}
	}

	wh.lastLevel = raw
	wh.lastEvent = now
}

func (w *edgeWorker) Drops() uint32 { return atomic.LoadUint32(&w.drops) }
