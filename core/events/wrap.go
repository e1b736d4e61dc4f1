package events

import "niftmarket/core/types"

type envelope struct {
	evt *types.Event
}

func (e envelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e envelope) Event() *types.Event { return e.evt }

// Wrap converts a raw event payload into the emitter-friendly envelope.
func Wrap(evt *types.Event) Event { return envelope{evt: evt} }

// Payload extracts the raw event from a wrapped envelope, if it is one.
func Payload(evt Event) (*types.Event, bool) {
	env, ok := evt.(envelope)
	if !ok {
		return nil, false
	}
	return env.evt, true
}
