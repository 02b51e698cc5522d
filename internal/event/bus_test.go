package event

import (
	"testing"
)

func TestBusPublish(t *testing.T) {
	bus := NewBus()

	var first, second []Event
	bus.Subscribe(ObserverFunc(func(e Event) { first = append(first, e) }))
	unsubscribe := bus.Subscribe(ObserverFunc(func(e Event) { second = append(second, e) }))

	bus.Publish(Event{Kind: KindNotice, Status: "info", Info: "started"})
	unsubscribe()
	bus.Publish(Event{Kind: KindDevAuth, DevID: "412321751"})

	if len(first) != 2 {
		t.Fatalf("first observer got %d events, want 2", len(first))
	}
	if len(second) != 1 {
		t.Fatalf("second observer got %d events, want 1", len(second))
	}
	if first[0].ID == "" || first[0].Time.IsZero() {
		t.Errorf("event not stamped: %+v", first[0])
	}
	if first[1].Kind != KindDevAuth || first[1].DevID != "412321751" {
		t.Errorf("unexpected event %+v", first[1])
	}
}

func TestBusKeepsExplicitID(t *testing.T) {
	bus := NewBus()
	var got Event
	bus.Subscribe(ObserverFunc(func(e Event) { got = e }))
	bus.Publish(Event{ID: "job-1", Kind: KindQueue, Status: "PUSHED"})
	if got.ID != "job-1" {
		t.Errorf("ID = %q, want job-1", got.ID)
	}
}
