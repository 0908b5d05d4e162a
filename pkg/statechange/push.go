package statechange

import (
	"context"
	"sync"
	"time"

	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/log"
	"github.com/coremail/engine/pkg/metrics"
	"github.com/google/uuid"
)

// Pusher delivers broker payloads to a push subscription's target URL:
// coalesced StateChanges once verified, and the out-of-band
// verification handshake at registration. The broker never speaks HTTP
// directly so that its flush loop stays free of transport concerns and
// is easy to exercise with a fake in tests.
type Pusher interface {
	Push(ctx context.Context, url string, sc StateChange) error
	PushVerification(ctx context.Context, url string, v Verification) error
}

// Verification is the payload POSTed to a freshly registered push
// endpoint. The client proves it controls the endpoint by echoing Code
// back through PushSubscriber.Verify; until then the subscription
// receives no StateChange deliveries.
type Verification struct {
	SubscriptionID uint64
	Code           string
}

// PushSubscriber is a WebPush-style push subscription:
// unverified subscriptions receive nothing until the client PATCHes back
// the verification code delivered out of band, and a subscription whose
// delivery is still failing when its expiry passes reverts to
// unverified and must re-handshake.
type PushSubscriber struct {
	id      uint64
	account ids.AccountId
	url     string

	mu               sync.Mutex
	types            ids.TypeStateBitmap
	expires          time.Time
	verificationCode string
	isVerified       bool
}

func newPushSubscriber(id uint64, account ids.AccountId, types ids.TypeStateBitmap, url string, expires time.Time) *PushSubscriber {
	return &PushSubscriber{
		id:               id,
		account:          account,
		url:              url,
		types:            types,
		expires:          expires,
		verificationCode: generateVerificationCode(),
	}
}

func generateVerificationCode() string {
	return uuid.New().String()
}

// ID returns the subscription's broker-assigned identifier.
func (s *PushSubscriber) ID() uint64 { return s.id }

// VerificationCode returns the code the server sent out of band, which
// the client must echo back via Verify to start receiving deliveries.
func (s *PushSubscriber) VerificationCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verificationCode
}

// Verify marks the subscription verified if code matches the one issued
// at registration.
func (s *PushSubscriber) Verify(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code == "" || code != s.verificationCode {
		return false
	}
	s.isVerified = true
	return true
}

func (s *PushSubscriber) verified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isVerified
}

func (s *PushSubscriber) unverify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isVerified = false
	s.verificationCode = generateVerificationCode()
}

const (
	pushRetryBaseDelay = 250 * time.Millisecond
	pushRetryMaxDelay  = 30 * time.Second
)

// deliverVerification POSTs the subscription's verification code to
// its endpoint, retrying with the same backoff deliverPush uses. The
// subscription stays unverified until the client echoes the code back,
// so a delivery that never lands simply leaves it inert.
func (b *Broker) deliverVerification(sub *PushSubscriber) {
	if b.pusher == nil {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		delay := pushRetryBaseDelay
		for {
			sub.mu.Lock()
			expires := sub.expires
			v := Verification{SubscriptionID: sub.id, Code: sub.verificationCode}
			sub.mu.Unlock()
			if !expires.IsZero() && time.Now().After(expires) {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := b.pusher.PushVerification(ctx, sub.url, v)
			cancel()
			if err == nil {
				return
			}

			log.Logger.Warn().Uint64("subscription_id", sub.id).Err(err).Msg("verification delivery failed, retrying")

			select {
			case <-time.After(delay):
			case <-b.stopCh:
				return
			}
			delay *= 2
			if delay > pushRetryMaxDelay {
				delay = pushRetryMaxDelay
			}
		}
	}()
}

// deliverPush retries a push delivery with exponential backoff, capped
// by the subscription's expiry, in its own goroutine so a slow or dead
// endpoint never stalls the broker's flush loop. Retries continue until
// the expiry passes; a subscription whose delivery is still failing at
// that point is marked unverified rather than dropped, so the client
// must re-handshake.
func (b *Broker) deliverPush(sub *PushSubscriber, sc StateChange) {
	if b.pusher == nil {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		delay := pushRetryBaseDelay
		for {
			sub.mu.Lock()
			expires := sub.expires
			sub.mu.Unlock()
			if !expires.IsZero() && time.Now().After(expires) {
				sub.unverify()
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := b.pusher.Push(ctx, sub.url, sc)
			cancel()
			if err == nil {
				return
			}
			metrics.PushDeliveryFailuresTotal.Inc()

			log.Logger.Warn().Uint64("subscription_id", sub.id).Err(err).Msg("push delivery failed, retrying")

			select {
			case <-time.After(delay):
			case <-b.stopCh:
				return
			}
			delay *= 2
			if delay > pushRetryMaxDelay {
				delay = pushRetryMaxDelay
			}
		}
	}()
}
