package events

import (
	"sync"
	"testing"
	"time"
)

// collector gathers delivered events behind a lock, since the bus
// invokes subscribers on their own goroutines.
type collector struct {
	mu      sync.Mutex
	events  []Event
	done    chan struct{}
	collect Subscriber
}

func newCollector(expect int) *collector {
	c := &collector{done: make(chan struct{})}
	if expect == 0 {
		close(c.done)
	}
	var once sync.Once
	c.collect = func(e Event) {
		c.mu.Lock()
		c.events = append(c.events, e)
		n := len(c.events)
		c.mu.Unlock()
		if n >= expect {
			once.Do(func() { close(c.done) })
		}
	}
	return c
}

func (c *collector) wait(t *testing.T) []Event {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Subscriber should receive the published events")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func TestSubscribeReceivesOnlyItsType(t *testing.T) {
	bus := NewEventBus()

	opened := newCollector(1)
	bus.Subscribe(EventTradeOpened, opened.collect)

	bus.PublishBalanceUpdate(500)
	bus.PublishTradeOpened("t1", "EURUSD_otc", "CALL", 25, 120)

	got := opened.wait(t)
	if len(got) != 1 || got[0].Type != EventTradeOpened {
		t.Fatalf("Typed subscriber should see only its type, got %+v", got)
	}
	if got[0].Data["trade_id"] != "t1" || got[0].Data["asset"] != "EURUSD_otc" {
		t.Errorf("Event should carry the trade fields, got %v", got[0].Data)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("Publish should stamp events with a timestamp")
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus()

	all := newCollector(3)
	bus.SubscribeAll(all.collect)

	bus.PublishSignal("EURUSD_otc", "PUT", 0.8, "test")
	bus.PublishTradeResolved("t1", "EURUSD_otc", "win", 21.25, 1021.25)
	bus.PublishError("bot", "something failed", nil)

	got := all.wait(t)
	seen := make(map[EventType]bool, len(got))
	for _, e := range got {
		seen[e.Type] = true
	}
	if !seen[EventSignalGenerated] || !seen[EventTradeResolved] || !seen[EventError] {
		t.Errorf("All-subscriber should see every published type, got %v", seen)
	}
}
