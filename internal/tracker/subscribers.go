package tracker

import (
	"sync"

	"github.com/google/uuid"

	"pump-vision/internal/domain"
)

// UpdateKind identifies what changed about a token.
type UpdateKind string

const (
	UpdateTokenCreated UpdateKind = "token_created"
	UpdateTrade        UpdateKind = "trade"
	UpdateQuote        UpdateKind = "quote"
)

// Update is pushed to subscribers after each committed change. Token is a
// deep copy owned by the receiver.
type Update struct {
	Kind  UpdateKind
	Token *domain.Token
}

const subscriberBuffer = 64

// subscriberSet is an explicit observer registry. Sends are non-blocking:
// a subscriber that falls behind misses updates instead of stalling
// ingestion.
type subscriberSet struct {
	mu   sync.RWMutex
	subs map[string]chan Update
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[string]chan Update)}
}

func (s *subscriberSet) add() (string, <-chan Update) {
	id := uuid.NewString()
	ch := make(chan Update, subscriberBuffer)

	s.mu.Lock()
	s.subs[id] = ch
	s.mu.Unlock()

	return id, ch
}

func (s *subscriberSet) remove(id string) {
	s.mu.Lock()
	ch, ok := s.subs[id]
	if ok {
		delete(s.subs, id)
	}
	s.mu.Unlock()

	if ok {
		close(ch)
	}
}

func (s *subscriberSet) publish(u Update) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
			// Slow consumer; drop rather than block ingestion.
		}
	}
}

// Subscribe registers an observer and returns its id and update channel.
func (tr *Tracker) Subscribe() (string, <-chan Update) {
	return tr.subs.add()
}

// Unsubscribe removes an observer and closes its channel.
func (tr *Tracker) Unsubscribe(id string) {
	tr.subs.remove(id)
}
