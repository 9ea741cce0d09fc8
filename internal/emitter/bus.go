package emitter

import "sync"

// subscriberCapacity matches spec.md §5's bounded-channel backpressure
// policy for the bus: a subscriber that falls capacity-100 updates behind
// gets a forced full snapshot instead of being disconnected.
const subscriberCapacity = 100

// Message is what a BusEmitter subscriber receives: a StateUpdate, an
// out-of-band error string, or a targeted one-shot ScrollbackResult.
type Message struct {
	Update     StateUpdate
	Error      string
	Scrollback *ScrollbackResult
}

// ScrollbackResult is the reply to a fetch_scrollback_cells command,
// delivered only to the requesting subscriber via SendTo rather than
// fanned out to the whole session.
type ScrollbackResult struct {
	PaneID string
	Lines  []string
	Err    string
}

// BusEmitter fans one Monitor's updates out to any number of subscribers.
// Grounded on dashboard/server.go's sessionsConns map[*wsConn]bool registry
// and controlmode/client.go's non-blocking select{default:} send idiom.
type BusEmitter struct {
	mu          sync.RWMutex
	subscribers map[uint64]*subscriber
	nextID      uint64
}

type subscriber struct {
	ch                chan Message
	needsFullSnapshot bool
}

// NewBusEmitter creates an empty bus.
func NewBusEmitter() *BusEmitter {
	return &BusEmitter{subscribers: make(map[uint64]*subscriber)}
}

// Subscribe registers a new subscriber and returns its id (for Unsubscribe)
// and the channel to receive Messages on.
func (b *BusEmitter) Subscribe() (id uint64, ch <-chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &subscriber{ch: make(chan Message, subscriberCapacity)}
	b.subscribers[b.nextID] = sub
	return b.nextID, sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *BusEmitter) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

// EmitUpdate delivers update to every subscriber. A subscriber whose buffer
// is full is flagged needsFullSnapshot rather than dropped; its next
// delivery is forced to a full snapshot regardless of what update carries,
// per spec.md §5's overflow policy.
func (b *BusEmitter) EmitUpdate(update StateUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		deliver := update
		if sub.needsFullSnapshot && !update.Full {
			// The Monitor carries its latest full snapshot alongside every
			// delta update (see monitor.go's flushAndEmit), so a
			// subscriber that missed updates can be upgraded to a full
			// state_update in place rather than being sent the delta it
			// can't apply.
			if update.Snapshot == nil {
				continue
			}
			deliver = StateUpdate{Full: true, Snapshot: update.Snapshot}
		}
		select {
		case sub.ch <- Message{Update: deliver}:
			if deliver.Full {
				sub.needsFullSnapshot = false
			}
		default:
			sub.needsFullSnapshot = true
		}
	}
}

// SendTo delivers msg to exactly one subscriber, for one-shot replies
// (get_initial_state, fetch_scrollback_cells) that must not fan out to
// every client sharing the session's bus. Non-blocking like EmitUpdate: a
// full buffer drops the reply rather than stalling the caller.
func (b *BusEmitter) SendTo(id uint64, msg Message) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sub, ok := b.subscribers[id]
	if !ok {
		return false
	}
	select {
	case sub.ch <- msg:
		return true
	default:
		return false
	}
}

// EmitError delivers an out-of-band error message to every subscriber,
// best-effort (dropped on a full buffer, same as updates).
func (b *BusEmitter) EmitError(message string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		select {
		case sub.ch <- Message{Error: message}:
		default:
		}
	}
}

// NeedsFullSnapshot reports whether subscriber id missed an update and
// will be resynced with a full snapshot on its next send. EmitUpdate
// performs that upgrade itself; the gateway does not consult this flag.
func (b *BusEmitter) NeedsFullSnapshot(id uint64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sub, ok := b.subscribers[id]
	if !ok {
		return false
	}
	return sub.needsFullSnapshot
}

// Count returns the number of active subscribers.
func (b *BusEmitter) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
