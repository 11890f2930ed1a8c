package engine

import (
	"fmt"
	"sync"
)

// subscriberBufferSize is the channel buffer for each progress subscriber.
// Events are dropped if a subscriber falls this far behind. It is also the
// number of past events replayed to a subscriber that joins mid-request.
const subscriberBufferSize = 64

// Progress event kinds.
const (
	EventLayerSkipped   = "layer_skipped"
	EventLayerScheduled = "layer_scheduled"
	EventLayerFinished  = "layer_finished"
	EventUnestimated    = "unestimated"
	EventFailed         = "failed"
)

// Event reports a step of a request's trip through its layers. Counts are
// taken from the ledger at the time of the event.
type Event struct {
	Seq          int    `json:"seq"`
	Kind         string `json:"kind"`
	Layer        string `json:"layer,omitempty"`
	Estimated    int    `json:"estimated"`
	Unsuccessful int    `json:"unsuccessful"`
	Queued       int    `json:"queued"`
	Message      string `json:"message,omitempty"`
}

func (e Event) String() string {
	switch e.Kind {
	case EventLayerSkipped:
		return fmt.Sprintf("layer %s: skipped, not registered", e.Layer)
	case EventLayerScheduled:
		return fmt.Sprintf("layer %s: scheduled %d properties", e.Layer, e.Queued)
	case EventLayerFinished:
		return fmt.Sprintf("layer %s: finished, %d estimated, %d unsuccessful, %d still queued",
			e.Layer, e.Estimated, e.Unsuccessful, e.Queued)
	case EventUnestimated:
		return fmt.Sprintf("%d properties could not be estimated by any layer", e.Unsuccessful)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// ProgressBroker fans out per-request progress events to subscribers.
// It is safe for concurrent use.
//
// Each request's events are numbered from 1. A subscriber joining while the
// request runs first receives the most recent events it missed. Closed
// topics keep no history, only a marker so that a late subscriber gets a
// closed channel instead of blocking forever.
type ProgressBroker struct {
	mu     sync.Mutex
	topics map[string]*progressTopic
}

type progressTopic struct {
	subs    map[int]chan Event
	nextID  int
	seq     int
	history []Event
	closed  bool
}

// NewProgressBroker creates a new progress broker.
func NewProgressBroker() *ProgressBroker {
	return &ProgressBroker{
		topics: make(map[string]*progressTopic),
	}
}

func (b *ProgressBroker) topic(requestID string) *progressTopic {
	t, ok := b.topics[requestID]
	if !ok {
		t = &progressTopic{subs: make(map[int]chan Event)}
		b.topics[requestID] = t
	}
	return t
}

// Subscribe returns a channel that receives progress events for the given
// request and an unsubscribe function. If the request has already finished,
// the returned channel is closed.
func (b *ProgressBroker) Subscribe(requestID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topic(requestID)
	ch := make(chan Event, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}
	for _, e := range t.history {
		ch <- e
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish numbers e and sends it to every subscriber of the request.
// Subscribers with a full buffer miss the event. Events published after
// Close are dropped.
func (b *ProgressBroker) Publish(requestID string, e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topic(requestID)
	if t.closed {
		return
	}

	t.seq++
	e.Seq = t.seq
	if len(t.history) == subscriberBufferSize {
		t.history = t.history[1:]
	}
	t.history = append(t.history, e)

	for _, ch := range t.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close ends the request's stream. Subscriber channels are closed, history
// is released and later Subscribe calls get a closed channel.
func (b *ProgressBroker) Close(requestID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topic(requestID)
	t.closed = true
	t.history = nil
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
