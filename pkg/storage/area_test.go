package storage

import (
	"context"
	"testing"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"", Persistent, false},
		{"persistent", Persistent, false},
		{"Local", Persistent, false},
		{" session ", Session, false},
		{"cookie", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseScope(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseScope(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseScope(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if Persistent.String() != "persistent" || Session.String() != "session" {
		t.Error("unexpected scope names")
	}
}

func TestOrigin(t *testing.T) {
	if got := OriginFrom(context.Background()); got != "" {
		t.Errorf("OriginFrom(empty) = %q", got)
	}
	ctx := WithOrigin(context.Background(), "host-a")
	if got := OriginFrom(ctx); got != "host-a" {
		t.Errorf("OriginFrom = %q, want host-a", got)
	}
}

func TestLocalBus(t *testing.T) {
	bus := NewLocalBus()

	var order []string
	unsubA := bus.Subscribe(func(ev Event) { order = append(order, "a:"+ev.Key) })
	bus.Subscribe(func(ev Event) { order = append(order, "b:"+ev.Key) })

	bus.Publish(Event{Key: "count"})
	if len(order) != 2 || order[0] != "a:count" || order[1] != "b:count" {
		t.Fatalf("delivery order: %v", order)
	}

	unsubA()
	unsubA()
	bus.Publish(Event{Synthetic: true})
	if len(order) != 3 || order[2] != "b:" {
		t.Errorf("after unsubscribe: %v", order)
	}
	if bus.Len() != 1 {
		t.Errorf("Len: got %d, want 1", bus.Len())
	}
}

func TestLocalBus_SubscribeDuringPublish(t *testing.T) {
	bus := NewLocalBus()
	calls := 0
	bus.Subscribe(func(Event) {
		calls++
		bus.Subscribe(func(Event) { calls++ })
	})

	bus.Publish(Event{})
	if calls != 1 {
		t.Errorf("subscriber added during publish should not receive that event, calls = %d", calls)
	}
}
