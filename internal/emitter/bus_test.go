package emitter

import (
	"testing"

	"github.com/sergeknystautas/tmuxgate/internal/mirror"
)

func TestBusEmitterFanOut(t *testing.T) {
	bus := NewBusEmitter()
	id1, ch1 := bus.Subscribe()
	id2, ch2 := bus.Subscribe()
	_ = id1
	_ = id2

	bus.EmitUpdate(StateUpdate{Full: true})

	msg1 := <-ch1
	msg2 := <-ch2
	if !msg1.Update.Full || !msg2.Update.Full {
		t.Fatalf("expected both subscribers to receive the full update")
	}
}

func TestBusEmitterOverflowForcesFullSnapshot(t *testing.T) {
	bus := NewBusEmitter()
	id, ch := bus.Subscribe()
	snap := &mirror.StateSnapshot{Seq: 99, SessionName: "main"}

	for i := 0; i < subscriberCapacity+1; i++ {
		bus.EmitUpdate(StateUpdate{Full: false, Snapshot: snap, Delta: &mirror.StateDelta{Seq: uint64(i)}})
	}
	if !bus.NeedsFullSnapshot(id) {
		t.Fatalf("expected overflowed subscriber to be flagged for a full snapshot")
	}

	// Drain the buffered deltas the subscriber already has pending.
	for i := 0; i < subscriberCapacity; i++ {
		<-ch
	}

	// The subscriber's next delivered update must be upgraded to a full
	// snapshot even though the caller only offered a delta.
	bus.EmitUpdate(StateUpdate{Full: false, Snapshot: snap, Delta: &mirror.StateDelta{Seq: 1000}})
	msg := <-ch
	if !msg.Update.Full {
		t.Fatalf("expected the post-overflow delivery to be upgraded to a full update")
	}
	if msg.Update.Snapshot != snap {
		t.Fatalf("expected the upgraded delivery to carry the current full snapshot")
	}
	if bus.NeedsFullSnapshot(id) {
		t.Fatalf("expected the flag to clear once a full update was actually delivered")
	}
}

func TestBusEmitterUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBusEmitter()
	id, ch := bus.Subscribe()
	bus.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed after Unsubscribe")
	}
}

func TestPointToPointEmitterOverflow(t *testing.T) {
	p := NewPointToPointEmitter()
	for i := 0; i < pointToPointCapacity+1; i++ {
		p.EmitUpdate(StateUpdate{Full: false})
	}
	if !p.NeedsFullSnapshot() {
		t.Fatalf("expected overflow to flag needsFullSnapshot")
	}
}
