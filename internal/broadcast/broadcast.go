// Package broadcast fans out live run output to subscribed observers.
package broadcast

import (
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer bounds how far a consumer may lag before it is
// dropped.
const subscriberBuffer = 64

const (
	EventOutput   = "output"
	EventFinished = "finished"
)

// Event is one message on a run's live stream.
type Event struct {
	Type     string `json:"type"`
	Data     string `json:"data,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// Broadcaster delivers run events to any number of subscribers.
// Delivery never blocks the publisher: a subscriber whose buffer is
// full is dropped without affecting the others.
type Broadcaster struct {
	mu     sync.Mutex
	topics map[int64]map[string]chan Event
}

func New() *Broadcaster {
	return &Broadcaster{
		topics: make(map[int64]map[string]chan Event),
	}
}

// Subscribe registers an observer for a run's events. The returned
// token identifies the subscription for Unsubscribe. The channel is
// closed when the subscriber is dropped, unsubscribes, or the run
// finishes.
func (b *Broadcaster) Subscribe(runID int64) (string, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[runID]
	if !ok {
		subs = make(map[string]chan Event)
		b.topics[runID] = subs
	}

	token := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	subs[token] = ch
	return token, ch
}

// Unsubscribe removes one observer. Safe to call after the run
// finished or the subscriber was dropped.
func (b *Broadcaster) Unsubscribe(runID int64, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[runID]
	if !ok {
		return
	}
	if ch, ok := subs[token]; ok {
		delete(subs, token)
		close(ch)
	}
	if len(subs) == 0 {
		delete(b.topics, runID)
	}
}

// Publish delivers an event to every subscriber of the run, dropping
// any subscriber that cannot keep up.
func (b *Broadcaster) Publish(runID int64, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishLocked(runID, ev)
}

func (b *Broadcaster) publishLocked(runID int64, ev Event) {
	subs, ok := b.topics[runID]
	if !ok {
		return
	}
	for token, ch := range subs {
		select {
		case ch <- ev:
		default:
			// Lagging consumer; cut it loose so the run keeps flowing.
			delete(subs, token)
			close(ch)
		}
	}
	if len(subs) == 0 {
		delete(b.topics, runID)
	}
}

// Finish publishes the terminal event and closes the run's topic. New
// subscriptions after Finish see an immediately closed channel only
// when they subscribe to a run id that never publishes again.
func (b *Broadcaster) Finish(runID int64, exitCode int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.publishLocked(runID, Event{Type: EventFinished, ExitCode: &exitCode})

	for token, ch := range b.topics[runID] {
		delete(b.topics[runID], token)
		close(ch)
	}
	delete(b.topics, runID)
}

// SubscriberCount reports the current number of observers for a run.
func (b *Broadcaster) SubscriberCount(runID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[runID])
}
