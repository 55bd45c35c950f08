package channel

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrBrokerClosed is returned by Subscribe once the broker has been closed.
var ErrBrokerClosed = errors.New("broker closed")

// DefaultSubscriberBuffer is the number of records a subscriber may fall behind
// before it is dropped.
const DefaultSubscriberBuffer = 16

// Broker fans match clock records out to in-process subscribers keyed by match.
// Publish never blocks: a subscriber whose buffer is full is dropped and has to
// resync with a fresh fetch.
type Broker struct {
	mu         sync.Mutex
	topics     map[uuid.UUID]map[*Subscription]struct{}
	bufferSize int
	closed     bool

	published uint64
	dropped   uint64
	stale     uint64
}

// Subscription is one subscriber's view of a match topic. Updates is closed
// when the subscription is closed or dropped.
type Subscription struct {
	matchID     uuid.UUID
	ch          chan models.MatchClock
	broker      *Broker
	lastVersion int64
}

// BrokerStats is a point-in-time snapshot of broker activity.
type BrokerStats struct {
	Topics      int            `json:"topics"`
	Subscribers int            `json:"subscribers"`
	PerMatch    map[string]int `json:"perMatch"`
	Published   uint64         `json:"published"`
	Dropped     uint64         `json:"dropped"`
	Stale       uint64         `json:"stale"`
}

func NewBroker(bufferSize int) *Broker {
	if bufferSize <= 0 {
		bufferSize = DefaultSubscriberBuffer
	}
	return &Broker{
		topics:     make(map[uuid.UUID]map[*Subscription]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe joins the topic for matchID. Records committed before the call are
// not replayed.
func (b *Broker) Subscribe(matchID uuid.UUID) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	sub := &Subscription{
		matchID: matchID,
		ch:      make(chan models.MatchClock, b.bufferSize),
		broker:  b,
	}
	subs, ok := b.topics[matchID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[matchID] = subs
	}
	subs[sub] = struct{}{}

	log.Debug().
		Str("match_id", matchID.String()).
		Int("subscribers", len(subs)).
		Msg("subscriber joined")

	return sub, nil
}

// Publish delivers clock to every subscriber of its match. Delivery happens
// under the broker lock so all subscribers see records in publish order, and a
// record older than one a subscriber already received is skipped.
func (b *Broker) Publish(ctx context.Context, clock models.MatchClock) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}
	b.published++

	for sub := range b.topics[clock.MatchID] {
		if clock.Version <= sub.lastVersion {
			b.stale++
			continue
		}
		select {
		case sub.ch <- clock:
			sub.lastVersion = clock.Version
		default:
			b.dropped++
			log.Warn().
				Str("match_id", clock.MatchID.String()).
				Int64("version", clock.Version).
				Msg("subscriber buffer full, dropping subscriber")
			b.removeLocked(sub)
		}
	}
	return nil
}

// SubscriberCount returns the number of live subscribers for a match.
func (b *Broker) SubscriberCount(matchID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[matchID])
}

func (b *Broker) Stats() BrokerStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := BrokerStats{
		Topics:    len(b.topics),
		PerMatch:  make(map[string]int, len(b.topics)),
		Published: b.published,
		Dropped:   b.dropped,
		Stale:     b.stale,
	}
	for matchID, subs := range b.topics {
		stats.Subscribers += len(subs)
		stats.PerMatch[matchID.String()] = len(subs)
	}
	return stats
}

// Close drops every subscriber and rejects further subscriptions.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.topics {
		for sub := range subs {
			b.removeLocked(sub)
		}
	}
	return nil
}

func (b *Broker) removeLocked(sub *Subscription) {
	subs, ok := b.topics[sub.matchID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(b.topics, sub.matchID)
	}
}

func (s *Subscription) MatchID() uuid.UUID {
	return s.matchID
}

// Updates yields records in commit order. It is closed when the subscription
// ends for any reason.
func (s *Subscription) Updates() <-chan models.MatchClock {
	return s.ch
}

// Close leaves the topic. Calling it more than once is a no-op.
func (s *Subscription) Close() error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	s.broker.removeLocked(s)
	return nil
}
