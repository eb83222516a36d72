package events

import "rewardchain/core/types"

// Event represents a structured state change emitted by a native module.
type Event interface {
	EventType() string
}

// Renderable events know how to flatten themselves into a types.Event for
// receipts and subscribers.
type Renderable interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Collector buffers rendered events. The processor uses one per transaction and
// only publishes the buffer once the state changes are committed.
type Collector struct {
	events []types.Event
}

// Emit implements the Emitter interface. Events that cannot render themselves
// are recorded with their type only.
func (c *Collector) Emit(e Event) {
	if c == nil || e == nil {
		return
	}
	if r, ok := e.(Renderable); ok {
		if rendered := r.Event(); rendered != nil {
			c.events = append(c.events, rendered.Clone())
			return
		}
	}
	c.events = append(c.events, types.Event{Type: e.EventType(), Attributes: map[string]string{}})
}

// Events returns a copy of the buffered events.
func (c *Collector) Events() []types.Event {
	if c == nil {
		return nil
	}
	out := make([]types.Event, len(c.events))
	for i, evt := range c.events {
		out[i] = evt.Clone()
	}
	return out
}

// Reset drops all buffered events.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.events = c.events[:0]
}
