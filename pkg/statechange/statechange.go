package statechange

import (
	"sync"
	"time"

	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/log"
	"github.com/coremail/engine/pkg/metrics"
)

// Change is a single observed change: a document in account's collection
// advanced to change_id, affecting the TypeState its collection maps to.
type Change struct {
	Account  ids.AccountId
	Type     ids.TypeState
	ChangeID ids.ChangeId
}

// StateChange is the coalesced payload flushed at the end of a throttle
// window: the latest change id observed per TypeState, for every account
// touched during the window.
type StateChange map[ids.AccountId]map[ids.TypeState]ids.ChangeId

func (sc StateChange) merge(c Change) {
	types, ok := sc[c.Account]
	if !ok {
		types = make(map[ids.TypeState]ids.ChangeId)
		sc[c.Account] = types
	}
	if existing, ok := types[c.Type]; !ok || c.ChangeID > existing {
		types[c.Type] = c.ChangeID
	}
}

// filter returns the subset of sc visible to a subscriber watching
// account with the given type mask and shared-account set, or nil if
// nothing in sc is visible.
func (sc StateChange) filter(account ids.AccountId, types ids.TypeStateBitmap, shared map[ids.AccountId]bool) StateChange {
	var out StateChange
	for acct, byType := range sc {
		if acct != account && !shared[acct] {
			continue
		}
		var kept map[ids.TypeState]ids.ChangeId
		for t, cid := range byType {
			if !types.Has(t) {
				continue
			}
			if kept == nil {
				kept = make(map[ids.TypeState]ids.ChangeId)
			}
			kept[t] = cid
		}
		if kept == nil {
			continue
		}
		if out == nil {
			out = make(StateChange)
		}
		out[acct] = kept
	}
	return out
}

// DefaultThrottleWindow is the production coalescing window.
const DefaultThrottleWindow = 1000 * time.Millisecond

// TestThrottleWindow is the shortened window used by package tests.
const TestThrottleWindow = 500 * time.Millisecond

// DefaultQueueLen bounds the per-subscriber event-source backlog.
const DefaultQueueLen = 32

// Broker is the single process-wide task that owns the subscription
// registry and multiplexes state changes to event-source and push
// subscribers: a windowed, per-account coalescing fan-out rather than
// an unthrottled one-event-at-a-time broadcast.
type Broker struct {
	throttle time.Duration
	queueLen int

	mu      sync.Mutex
	pending StateChange
	shared  map[ids.AccountId]map[ids.AccountId]bool

	subMu     sync.Mutex
	nextID    uint64
	eventSubs map[uint64]*EventSubscriber
	pushSubs  map[uint64]*PushSubscriber
	pusher    Pusher

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewBroker creates a broker that coalesces within throttle and delivers
// push notifications through pusher.
func NewBroker(throttle time.Duration, pusher Pusher) *Broker {
	if throttle <= 0 {
		throttle = DefaultThrottleWindow
	}
	return &Broker{
		throttle:  throttle,
		queueLen:  DefaultQueueLen,
		pending:   make(StateChange),
		shared:    make(map[ids.AccountId]map[ids.AccountId]bool),
		eventSubs: make(map[uint64]*EventSubscriber),
		pushSubs:  make(map[uint64]*PushSubscriber),
		pusher:    pusher,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the broker's flush loop.
func (b *Broker) Start() {
	b.wg.Add(1)
	go b.run()
}

// Stop halts the flush loop and closes every event-source subscriber's
// queue.
func (b *Broker) Stop() {
	close(b.stopCh)
	b.wg.Wait()

	b.subMu.Lock()
	defer b.subMu.Unlock()
	for id, sub := range b.eventSubs {
		sub.close()
		delete(b.eventSubs, id)
	}
}

func (b *Broker) run() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.throttle)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.flush()
		case <-b.stopCh:
			return
		}
	}
}

// Publish merges a change into the current window's coalescing map. The
// highest change_id per (account, TypeState) wins; earlier ones in the
// same window are never observed by a subscriber.
func (b *Broker) Publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending.merge(c)
}

func (b *Broker) flush() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	sc := b.pending
	b.pending = make(StateChange)
	b.mu.Unlock()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StateChangeDeliveryDuration)

	b.subMu.Lock()
	eventSubs := make([]*EventSubscriber, 0, len(b.eventSubs))
	for _, sub := range b.eventSubs {
		eventSubs = append(eventSubs, sub)
	}
	pushSubs := make([]*PushSubscriber, 0, len(b.pushSubs))
	for _, sub := range b.pushSubs {
		pushSubs = append(pushSubs, sub)
	}
	b.subMu.Unlock()

	for _, sub := range eventSubs {
		if filtered := sc.filter(sub.account, sub.types, b.sharedFor(sub.account)); filtered != nil {
			sub.push(filtered)
		}
	}
	for _, sub := range pushSubs {
		if !sub.verified() {
			continue
		}
		if filtered := sc.filter(sub.account, sub.types, b.sharedFor(sub.account)); filtered != nil {
			b.deliverPush(sub, filtered)
		}
	}
}

func (b *Broker) sharedFor(account ids.AccountId) map[ids.AccountId]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shared[account]
}

// SetSharedAccounts replaces the set of additional accounts whose
// changes account may observe (the JMAP session's shared_account_ids).
func (b *Broker) SetSharedAccounts(account ids.AccountId, sharedIDs []ids.AccountId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := make(map[ids.AccountId]bool, len(sharedIDs))
	for _, id := range sharedIDs {
		set[id] = true
	}
	b.shared[account] = set
}

// Subscribe registers a new event-source subscriber watching account for
// any TypeState in types.
func (b *Broker) Subscribe(account ids.AccountId, types ids.TypeStateBitmap) *EventSubscriber {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.nextID++
	sub := newEventSubscriber(b.nextID, account, types, b.queueLen)
	b.eventSubs[sub.id] = sub
	metrics.StateChangeSubscribersTotal.Set(float64(len(b.eventSubs)))
	return sub
}

// Unsubscribe removes an event-source subscriber.
func (b *Broker) Unsubscribe(sub *EventSubscriber) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	if _, ok := b.eventSubs[sub.id]; !ok {
		return
	}
	delete(b.eventSubs, sub.id)
	metrics.StateChangeSubscribersTotal.Set(float64(len(b.eventSubs)))
	sub.close()
}

// RegisterPush installs a push subscription and immediately POSTs its
// verification code to the endpoint. StateChanges are delivered only
// once the client echoes the code back (see PushSubscriber.Verify).
func (b *Broker) RegisterPush(account ids.AccountId, types ids.TypeStateBitmap, url string, expires time.Time) *PushSubscriber {
	b.subMu.Lock()
	b.nextID++
	sub := newPushSubscriber(b.nextID, account, types, url, expires)
	b.pushSubs[sub.id] = sub
	b.subMu.Unlock()

	log.Logger.Info().Uint64("subscription_id", sub.id).Uint32("account", uint32(account)).Msg("push subscription registered, awaiting verification")
	b.deliverVerification(sub)
	return sub
}

// UnregisterPush removes a push subscription.
func (b *Broker) UnregisterPush(id uint64) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	delete(b.pushSubs, id)
}

// UpdatePushSubscription replaces the watched types or expiry of an
// existing push subscription in place.
func (b *Broker) UpdatePushSubscription(id uint64, types ids.TypeStateBitmap, expires time.Time) bool {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	sub, ok := b.pushSubs[id]
	if !ok {
		return false
	}
	sub.mu.Lock()
	sub.types = types
	sub.expires = expires
	sub.mu.Unlock()
	return true
}
