package events

// Event represents a structured state change emitted by a program.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wired into engines that have not been given a real sink.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder buffers emitted events in order. The node stages one per atomic
// group so that a rejected group publishes nothing.
type Recorder struct {
	events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.events = append(r.events, evt)
}

// Events returns the buffered events in emission order.
func (r *Recorder) Events() []Event {
	if r == nil {
		return nil
	}
	return r.events
}

// Reset discards the buffered events.
func (r *Recorder) Reset() {
	if r != nil {
		r.events = r.events[:0]
	}
}

// Drain forwards every buffered event to the sink and clears the buffer.
func (r *Recorder) Drain(sink Emitter) {
	if r == nil {
		return
	}
	if sink != nil {
		for _, evt := range r.events {
			sink.Emit(evt)
		}
	}
	r.events = r.events[:0]
}
