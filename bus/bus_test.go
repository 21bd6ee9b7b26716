// bus/bus_test.go
package bus

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"regmap-go/errcode"
)

// topicOf splits "a/b/c" into a Topic of string tokens.
func topicOf(s string) Topic {
	parts := strings.Split(s, "/")
	out := make(Topic, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

func TestWildcardMatching(t *testing.T) {
	cases := []struct {
		pattern string
		topic   Topic
		match   bool
	}{
		{"gpio/+/event", topicOf("gpio/button/event"), true},
		{"gpio/+/event", T("gpio", 5, "event"), true},
		{"gpio/+/event", topicOf("gpio/button/state"), false},
		{"gpio/+/event", topicOf("gpio/event"), false},
		{"gpio/#", topicOf("gpio"), true},
		{"gpio/#", topicOf("gpio/led/control/set"), true},
		{"reg/+/+/control/+", topicOf("reg/GPIOA/ODR/control/read"), true},
		{"reg/+/control/+", topicOf("reg/GPIOA/ODR/control/read"), false},
		{"reg/+/control/dump", topicOf("reg/GPIOB/control/dump"), true},
		{"reg/GPIOA/#", topicOf("reg/GPIOB/info"), false},
		{"#", topicOf("heartbeat/state"), true},
	}
	for _, c := range cases {
		b := NewBus(4)
		conn := b.NewConnection("test")
		sub := conn.Subscribe(topicOf(c.pattern))
		conn.Publish(conn.NewMessage(c.topic, "x", false))
		select {
		case <-sub.Channel():
			if !c.match {
				t.Errorf("%s matched %s", c.pattern, c.topic)
			}
		case <-time.After(20 * time.Millisecond):
			if c.match {
				t.Errorf("%s did not match %s", c.pattern, c.topic)
			}
		}
	}
}

func TestRetainedBlockInfo(t *testing.T) {
	b := NewBus(8)
	svc := b.NewConnection("regsvc")
	svc.Publish(svc.NewMessage(T("reg", "GPIOA", "info"), "gpioa", true))
	svc.Publish(svc.NewMessage(T("reg", "PCA9555@20", "info"), "pca", true))
	svc.Publish(svc.NewMessage(T("reg", "state"), "ready", true))

	tool := b.NewConnection("tool")
	all := tool.Subscribe(T("reg", SingleLevel, "info"))
	assertUnorderedEqual(t, drainPayloads(t, all, 2), []string{"gpioa", "pca"})
	expectNoMessage(t, all)

	// A newer retained value replaces the old one.
	svc.Publish(svc.NewMessage(T("reg", "GPIOA", "info"), "gpioa v2", true))
	expectOneOf(t, all, "gpioa v2")
	late := tool.Subscribe(T("reg", "GPIOA", "info"))
	expectOneOf(t, late, "gpioa v2")

	// A nil retained payload clears the topic for later subscribers.
	svc.Publish(svc.NewMessage(T("reg", "GPIOA", "info"), nil, true))
	after := tool.Subscribe(T("reg", MultiLevel))
	assertUnorderedEqual(t, drainPayloads(t, after, 2), []string{"pca", "ready"})
}

func TestReplayIsRetainedOnly(t *testing.T) {
	b := NewBus(8)
	gpio := b.NewConnection("gpio")
	gpio.Publish(gpio.NewMessage(T("gpio", "button", "state"), "level 1", true))
	gpio.Publish(gpio.NewMessage(T("gpio", "button", "event"), "rising", false))

	mon := b.NewConnection("monitor")
	events := mon.Subscribe(T("gpio", SingleLevel, "event"))
	all := mon.Subscribe(T("gpio", MultiLevel))
	expectNoMessage(t, events)
	expectOneOf(t, all, "level 1")

	gpio.Publish(gpio.NewMessage(T("gpio", "button", "event"), "falling", false))
	expectOneOf(t, events, "falling")
	got := <-all.Channel()
	if !sameTopic(got.Topic, T("gpio", "button", "event")) || got.Retained {
		t.Fatalf("got %v retained=%v", got.Topic, got.Retained)
	}
}

func TestRegisterReadRequest(t *testing.T) {
	b := NewBus(8)
	svc := b.NewConnection("regsvc")
	reqs := svc.Subscribe(T("reg", SingleLevel, SingleLevel, "control", SingleLevel))
	go func() {
		for m := range reqs.Channel() {
			svc.Reply(m, map[string]any{"field": m.Topic[2], "method": m.Topic[4]}, false)
		}
	}()
	defer svc.Disconnect()

	tool := b.NewConnection("tool")
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var replyTo []Topic
	for _, field := range []string{"ODR", "IDR"} {
		req := tool.NewMessage(T("reg", "GPIOA", field, "control", "read"), nil, false)
		reply, err := tool.RequestWait(ctx, req)
		if err != nil {
			t.Fatalf("%s: %v", field, err)
		}
		m, ok := reply.Payload.(map[string]any)
		if !ok || m["field"] != field || m["method"] != "read" {
			t.Fatalf("%s: reply %#v", field, reply.Payload)
		}
		if !sameTopic(reply.Topic, req.ReplyTo) || req.ReplyTo[0] != "_reply" || req.ReplyTo[1] != "tool" {
			t.Fatalf("%s: reply on %v, ReplyTo %v", field, reply.Topic, req.ReplyTo)
		}
		replyTo = append(replyTo, req.ReplyTo)
	}
	if sameTopic(replyTo[0], replyTo[1]) {
		t.Fatalf("requests share reply topic %v", replyTo[0])
	}
}

func TestRequestWaitTimeout(t *testing.T) {
	b := NewBus(4)
	tool := b.NewConnection("tool")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := tool.RequestWait(ctx, tool.NewMessage(T("reg", "GPIOZ", "control", "dump"), nil, false))
	if !errors.Is(err, errcode.Timeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestReplyWithoutReplyToIsDropped(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("gpio")
	all := c.Subscribe(T(MultiLevel))
	c.Reply(c.NewMessage(T("gpio", "led", "control", "set"), nil, false), "ignored", false)
	c.Reply(nil, "ignored", false)
	expectNoMessage(t, all)
}

func TestInvalidTokenPanics(t *testing.T) {
	defer func() {
		r := recover()
		e, ok := r.(*errcode.E)
		if !ok || e.Code() != errcode.InvalidTopic {
			t.Fatalf("recovered %v, want invalid_topic", r)
		}
	}()
	_ = T("gpio", []byte("led"))
}

func TestQueueDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(T("gpio", "+", "event"))

	for _, p := range []string{"e1", "e2", "e3"} {
		c.Publish(c.NewMessage(T("gpio", 3, "event"), p, false))
	}
	got := drainPayloads(t, s, 2)
	if got[0] != "e2" || got[1] != "e3" {
		t.Fatalf("got %v, want [e2 e3]", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")
	s := c.Subscribe(T("reg", "#"))
	c.Unsubscribe(s)
	if _, ok := <-s.Channel(); ok {
		t.Fatal("channel still open")
	}
	c.Publish(c.NewMessage(T("reg", "GPIOA"), "x", false))
	c.Unsubscribe(s) // second call is a no-op

	if len(b.root.children) != 0 {
		t.Fatalf("trie not pruned: %v", b.root.children)
	}
}

func TestDisconnectClosesEverySubscription(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("gpio")
	subs := []*Subscription{
		c.Subscribe(T("config", "gpio")),
		c.Subscribe(T("gpio", SingleLevel, "control", SingleLevel)),
	}
	c.Disconnect()
	for _, s := range subs {
		if _, ok := <-s.Channel(); ok {
			t.Fatalf("%v still open", s.Topic())
		}
	}
	if len(b.root.children) != 0 {
		t.Fatalf("trie not pruned: %v", b.root.children)
	}
}

func TestTopicString(t *testing.T) {
	if got := T("gpio", 12, "control", "set").String(); got != "gpio/12/control/set" {
		t.Fatalf("got %q", got)
	}
	base := T("reg", "GPIOA")
	ext := base.Append("ODR")
	if len(base) != 2 || ext.String() != "reg/GPIOA/ODR" {
		t.Fatalf("append: %v %v", base, ext)
	}
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func sameTopic(a, b Topic) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func expectOneOf(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		s, ok := got.Payload.(string)
		if !ok || s != want {
			t.Fatalf("unexpected payload: %v (want %q)", got.Payload, want)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func expectNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message on %v: %#v", got.Topic, got.Payload)
	case <-time.After(30 * time.Millisecond):
	}
}

func drainPayloads(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	var out []string
	deadline := time.After(300 * time.Millisecond)
	for len(out) < n {
		select {
		case m := <-sub.Channel():
			s, ok := m.Payload.(string)
			if !ok {
				t.Fatalf("non-string payload: %#v", m.Payload)
			}
			out = append(out, s)
		case <-deadline:
			t.Fatalf("expected %d messages, got %d (%v)", n, len(out), out)
		}
	}
	return out
}

func assertUnorderedEqual(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(got)
	sort.Strings(want)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}
}
