package isocarto

import "sync"

type EventKind int

const (
	EventNewPOI EventKind = iota + 1
	EventRemovePOI
)

// Event is a message from a render job to the orchestrator. NewPOI carries
// POI, RemovePOI carries Chunk.
type Event struct {
	Kind  EventKind
	POI   POI
	Chunk ChunkPos
}

func NewPOIEvent(poi POI) Event {
	return Event{Kind: EventNewPOI, POI: poi}
}

func RemovePOIEvent(chunk ChunkPos) Event {
	return Event{Kind: EventRemovePOI, Chunk: chunk}
}

// EventSink is the only way render jobs report POI changes.
type EventSink interface {
	Emit(Event)
}

// EventQueue is an unbounded FIFO with many writers and one reader. Writers
// never block on the reader.
type EventQueue struct {
	mu      sync.Mutex
	pending []Event
}

func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

func (q *EventQueue) Emit(ev Event) {
	q.mu.Lock()
	q.pending = append(q.pending, ev)
	q.mu.Unlock()
}

// poll takes everything queued so far without waiting.
func (q *EventQueue) poll() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	evs := q.pending
	q.pending = nil
	return evs
}

// Aggregator owns the State for the duration of a run. Only the goroutine
// driving the run may call Drain.
type Aggregator struct {
	queue *EventQueue
	state *State
}

func NewAggregator(state *State) *Aggregator {
	return &Aggregator{
		queue: NewEventQueue(),
		state: state,
	}
}

func (a *Aggregator) Sink() EventSink {
	return a.queue
}

func (a *Aggregator) State() *State {
	return a.state
}

// Drain applies every pending event in arrival order and returns how many
// were applied.
func (a *Aggregator) Drain() int {
	evs := a.queue.poll()
	for _, ev := range evs {
		a.state.Apply(ev)
	}
	return len(evs)
}
