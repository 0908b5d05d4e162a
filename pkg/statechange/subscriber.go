package statechange

import (
	"context"
	"sync"

	"github.com/coremail/engine/pkg/ids"
)

// EventSubscriber is a single GET /jmap/eventsource/ client: a bounded
// queue of coalesced StateChange windows, drained by the HTTP handler's
// goroutine. Overflow drops the oldest unsent window rather than the
// newest, so a slow client always sees progress toward the current
// state rather than getting stuck behind a stale one.
type EventSubscriber struct {
	id      uint64
	account ids.AccountId
	types   ids.TypeStateBitmap

	mu     sync.Mutex
	queue  []StateChange
	maxLen int
	notify chan struct{}
	closed bool
}

func newEventSubscriber(id uint64, account ids.AccountId, types ids.TypeStateBitmap, maxLen int) *EventSubscriber {
	return &EventSubscriber{
		id:      id,
		account: account,
		types:   types,
		maxLen:  maxLen,
		notify:  make(chan struct{}, 1),
	}
}

func (s *EventSubscriber) push(sc StateChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if len(s.queue) >= s.maxLen {
		s.queue = s.queue[1:]
	}
	s.queue = append(s.queue, sc)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *EventSubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a coalesced StateChange is available, ctx is
// cancelled, or the subscriber is unsubscribed. The second return value
// is false once the subscriber has been closed and drained.
func (s *EventSubscriber) Next(ctx context.Context) (StateChange, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			sc := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return sc, true
		}
		if s.closed {
			s.mu.Unlock()
			return nil, false
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// ID returns the subscriber's broker-assigned identifier.
func (s *EventSubscriber) ID() uint64 { return s.id }
