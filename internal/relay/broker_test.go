package relay

import (
	"testing"
)

func TestBrokerFansOut(t *testing.T) {
	b := NewBroker()
	id1, ch1 := b.Subscribe()
	id2, ch2 := b.Subscribe()
	defer b.Unsubscribe(id1)
	defer b.Unsubscribe(id2)

	if got := b.ClientCount(); got != 2 {
		t.Fatalf("ClientCount() = %d, want 2", got)
	}

	b.Publish("vehicle", map[string]string{"vehicle": "TRUCK-1"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		evt := <-ch
		if evt.Feed != "vehicle" {
			t.Fatalf("Feed = %q, want vehicle", evt.Feed)
		}
		if want := `{"vehicle":"TRUCK-1"}`; evt.Payload != want {
			t.Fatalf("Payload = %q, want %q", evt.Payload, want)
		}
	}
}

func TestBrokerDropsWhenClientFallsBehind(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	for i := 0; i < subscriberBufSize+10; i++ {
		b.Publish("run", i)
	}
	if got := len(ch); got != subscriberBufSize {
		t.Fatalf("buffered = %d, want %d", got, subscriberBufSize)
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	b.Unsubscribe(id)
	b.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after Unsubscribe")
	}
	if got := b.ClientCount(); got != 0 {
		t.Fatalf("ClientCount() = %d, want 0", got)
	}
}

func TestBrokerSkipsUnencodablePayload(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	b.Publish("run", make(chan int))
	if got := len(ch); got != 0 {
		t.Fatalf("buffered = %d, want 0", got)
	}
}
