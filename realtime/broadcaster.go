package realtime

import "sync"

// Broadcaster delivers an event to every client currently in room. Delivery
// is best effort: an error means some or all recipients may have missed it.
type Broadcaster interface {
	EmitToRoom(room, event string, payload interface{}) error
}

type Emitted struct {
	Room    string
	Event   string
	Payload interface{}
}

// Recorder is an in-memory Broadcaster that keeps every emit. Err, when set,
// is returned from each EmitToRoom after recording.
type Recorder struct {
	mu     sync.Mutex
	events []Emitted
	Err    error
}

func (r *Recorder) EmitToRoom(room, event string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Emitted{Room: room, Event: event, Payload: payload})
	return r.Err
}

func (r *Recorder) Events() []Emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Emitted, len(r.events))
	copy(out, r.events)
	return out
}

// Find returns the emits matching room and event, in order.
func (r *Recorder) Find(room, event string) []Emitted {
	var out []Emitted
	for _, e := range r.Events() {
		if e.Room == room && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
