// Package emitter fans out state updates from one Monitor to its
// subscribed northbound clients.
package emitter

import "github.com/sergeknystautas/tmuxgate/internal/mirror"

// StateUpdate is what a Monitor pushes to its Emitter after each flush.
// Snapshot is always set; when Full is false Delta is set as well, so the
// delta state_update wire shape can be sent and a BusEmitter can still
// upgrade it to the full shape for a subscriber that missed updates.
type StateUpdate struct {
	Full     bool
	Snapshot *mirror.StateSnapshot
	Delta    *mirror.StateDelta
}

// Emitter is the fan-out boundary a Monitor writes through. It never
// blocks the Monitor's select loop: implementations either buffer with a
// bounded channel (BusEmitter) or degrade a single slow subscriber
// (PointToPointEmitter).
type Emitter interface {
	EmitUpdate(StateUpdate)
	EmitError(message string)
}
