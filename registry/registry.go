// Package registry implements the Topic Registry: the broker's subscription
// table, its global sequence counter, and the publish fan-out path.
//
// A single mutex guards the subscription map and the sequence counter; the
// expensive part of a publish, copying the frame out to each subscriber's
// queue, happens outside the critical section so one slow subscriber can
// never stall the lock for the rest.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neuropipe/broker/protocol"
)

// SessionID is a stable identifier for a Session, distinct from the
// peer address the session's socket happens to have. Subscription sets are
// keyed by SessionID, so a session subscribing twice occupies one entry and
// removal needs only the ID; each entry holds the Subscriber itself, which
// Publish delivers to directly.
type SessionID uuid.UUID

// NewSessionID returns a fresh, randomly generated SessionID.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

// Subscriber is the capability the registry needs from a Session: a stable
// identity to key the subscription table with, and a non-blocking sink for
// fan-out frames. Session implements this; the registry never depends on
// the broker or session packages, which keeps subscribe/publish decoupled
// from connection lifecycle.
type Subscriber interface {
	ID() SessionID
	Deliver(frame []byte)
}

// Message is the internal record of one publish: the wire only ever carries
// topic and payload, but the sequence number and timestamp are recorded
// here for observability and testing, per spec.md's data model.
type Message struct {
	Topic     string
	Payload   []byte
	Sequence  uint64
	Timestamp time.Time
}

// Stats is a point-in-time snapshot of the subscription table's shape,
// used by the admin HTTP surface and by tests. It never aliases registry-
// owned storage.
type Stats struct {
	TopicCount         int
	SubscribersByTopic map[string]int
}

// Registry owns the subscription table and the global sequence counter.
// The zero value is not usable; construct one with New.
type Registry struct {
	mu       sync.Mutex
	topics   map[string]map[SessionID]Subscriber
	sequence uint64
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		topics: make(map[string]map[SessionID]Subscriber),
	}
}

// Subscribe adds sub to topic's subscriber set, creating the entry if this
// is the topic's first subscriber. Subscribing the same session to the same
// topic twice is idempotent.
func (r *Registry) Subscribe(topic string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.topics[topic]
	if !ok {
		set = make(map[SessionID]Subscriber)
		r.topics[topic] = set
	}

	set[sub.ID()] = sub
}

// Unsubscribe removes sub from topic's subscriber set. If the set becomes
// empty the topic entry is removed entirely so no empty bucket persists. A
// no-op if the topic or subscriber is absent.
func (r *Registry) Unsubscribe(topic string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unsubscribeLocked(topic, sub.ID())
}

// UnsubscribeAll removes sub from every topic it is currently subscribed
// to, collapsing any topic whose subscriber set becomes empty. This is used
// exclusively by the session disconnect path and is idempotent.
func (r *Registry) UnsubscribeAll(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := sub.ID()
	for topic, set := range r.topics {
		if _, ok := set[id]; ok {
			r.unsubscribeLocked(topic, id)
		}
	}
}

func (r *Registry) unsubscribeLocked(topic string, id SessionID) {
	set, ok := r.topics[topic]
	if !ok {
		return
	}

	delete(set, id)
	if len(set) == 0 {
		delete(r.topics, topic)
	}
}

// Publish assigns the next sequence number, snapshots topic's current
// subscriber set atomically with that assignment, and delivers a formatted
// MESSAGE frame to each subscriber in the snapshot. The snapshot is taken
// under the registry's lock; delivery happens after the lock is released,
// so a slow or disconnecting subscriber never blocks the registry or other
// publishers. A subscriber that unsubscribes during delivery still receives
// this one message, since it was present at the moment of sequencing.
//
// Publishing to a topic with no subscribers is not an error: the caller
// still gets back a Message with a freshly assigned sequence number, and no
// topic entry is created.
func (r *Registry) Publish(topic string, payload []byte) Message {
	r.mu.Lock()
	r.sequence++
	seq := r.sequence
	subs := r.snapshotLocked(topic)
	r.mu.Unlock()

	msg := Message{
		Topic:     topic,
		Payload:   payload,
		Sequence:  seq,
		Timestamp: time.Now(),
	}

	if len(subs) == 0 {
		return msg
	}

	frame := protocol.FormatMessage([]byte(topic), payload)
	for _, sub := range subs {
		sub.Deliver(frame)
	}

	return msg
}

func (r *Registry) snapshotLocked(topic string) []Subscriber {
	set, ok := r.topics[topic]
	if !ok || len(set) == 0 {
		return nil
	}

	subs := make([]Subscriber, 0, len(set))
	for _, sub := range set {
		subs = append(subs, sub)
	}

	return subs
}

// Stats returns a snapshot of the subscription table's shape: the number of
// topics currently tracked and, per topic, how many subscribers it has.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int, len(r.topics))
	for topic, set := range r.topics {
		counts[topic] = len(set)
	}

	return Stats{
		TopicCount:         len(r.topics),
		SubscribersByTopic: counts,
	}
}
