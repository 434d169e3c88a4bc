package watch

import (
	"context"
	"sync"
)

// Mailbox is the single-slot handoff between a poll loop and its consumer.
// Publish overwrites whatever is in the slot (last write wins); a taken
// outcome empties the slot, so no outcome is ever handed out twice. The
// mailbox supports one consumer per poller; concurrent takers race for the
// slot and only one of them gets any given outcome.
type Mailbox struct {
	mu     sync.Mutex
	slot   Outcome
	full   bool
	notify chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		notify: make(chan struct{}, 1),
	}
}

// Publish places an outcome in the slot, replacing any undrained one. It
// reports whether an undrained outcome was lost to the overwrite.
func (m *Mailbox) Publish(o Outcome) (overwrote bool) {
	m.mu.Lock()
	overwrote = m.full
	m.slot = o
	m.full = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return overwrote
}

// TryTake removes and returns the slot's outcome without blocking. The second
// return is false when nothing new has arrived since the last take.
func (m *Mailbox) TryTake() (Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return Outcome{}, false
	}
	o := m.slot
	m.slot = Outcome{}
	m.full = false
	return o, true
}

// WaitTake suspends the caller until an outcome is available or the context
// is cancelled.
func (m *Mailbox) WaitTake(ctx context.Context) (Outcome, error) {
	for {
		if o, ok := m.TryTake(); ok {
			return o, nil
		}
		select {
		case <-m.notify:
			// Slot may already be drained by a racing taker; loop and recheck.
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}
}
