// internal/events/bus.go
package events

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Type string

const (
	TypeScanRecorded Type = "scan.recorded"
	TypeScanRejected Type = "scan.rejected"
	TypeFraudFlagged Type = "fraud.flagged"
	TypeTrustUpdated Type = "trust.updated"
	TypeChainSealed  Type = "chain.sealed"
)

type Event struct {
	Type      Type                   `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	EmittedAt time.Time              `json:"emitted_at"`
}

// Bus is an in-process publish/subscribe channel the pipeline writes typed
// events to. Delivery is best-effort: a subscriber whose buffer is full loses
// the event rather than blocking a verification request.
type Bus struct {
	mu        sync.RWMutex
	subs      map[int]chan Event
	nextSubID int
	recent    []Event
	recentMax int
}

func NewBus() *Bus {
	return &Bus{
		subs:      make(map[int]chan Event),
		recentMax: 100,
	}
}

func (b *Bus) Publish(t Type, payload map[string]interface{}) {
	evt := Event{
		Type:      t,
		Payload:   payload,
		EmittedAt: time.Now().UTC(),
	}

	b.mu.Lock()
	b.recent = append(b.recent, evt)
	if len(b.recent) > b.recentMax {
		b.recent = b.recent[len(b.recent)-b.recentMax:]
	}
	b.mu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			logrus.WithFields(logrus.Fields{
				"subscriber": id,
				"event_type": t,
			}).Warn("Event dropped: subscriber buffer full")
		}
	}
}

// Subscribe registers a listener with the given channel buffer. The returned
// function unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}

	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}

	return ch, unsubscribe
}

// Recent returns up to limit of the most recently published events, newest
// first.
func (b *Bus) Recent(limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 || limit > len(b.recent) {
		limit = len(b.recent)
	}

	out := make([]Event, limit)
	for i := 0; i < limit; i++ {
		out[i] = b.recent[len(b.recent)-1-i]
	}
	return out
}
