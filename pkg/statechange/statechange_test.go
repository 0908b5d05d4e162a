package statechange

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coremail/engine/pkg/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishCoalescesWithinWindow(t *testing.T) {
	b := NewBroker(TestThrottleWindow, nil)
	b.Start()
	defer b.Stop()

	sub := b.Subscribe(1, (ids.TypeStateBitmap(0)).Set(ids.TypeStateEmail))
	defer b.Unsubscribe(sub)

	b.Publish(Change{Account: 1, Type: ids.TypeStateEmail, ChangeID: 1})
	b.Publish(Change{Account: 1, Type: ids.TypeStateEmail, ChangeID: 2})
	b.Publish(Change{Account: 1, Type: ids.TypeStateEmail, ChangeID: 3})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sc, ok := sub.Next(ctx)
	require.True(t, ok)
	require.Equal(t, ids.ChangeId(3), sc[1][ids.TypeStateEmail])

	// No second window should be pending after a single publish burst.
	ctx2, cancel2 := context.WithTimeout(context.Background(), TestThrottleWindow)
	defer cancel2()
	_, ok = sub.Next(ctx2)
	assert.False(t, ok)
}

func TestSubscribeFiltersByTypeAndAccount(t *testing.T) {
	b := NewBroker(TestThrottleWindow, nil)
	b.Start()
	defer b.Stop()

	mailOnly := b.Subscribe(1, (ids.TypeStateBitmap(0)).Set(ids.TypeStateEmail))
	defer b.Unsubscribe(mailOnly)
	otherAccount := b.Subscribe(2, (ids.TypeStateBitmap(0)).Set(ids.TypeStateEmail))
	defer b.Unsubscribe(otherAccount)

	b.Publish(Change{Account: 1, Type: ids.TypeStateMailbox, ChangeID: 1})

	ctx, cancel := context.WithTimeout(context.Background(), TestThrottleWindow+200*time.Millisecond)
	defer cancel()
	_, ok := mailOnly.Next(ctx)
	assert.False(t, ok, "mailbox change should not reach an Email-only subscriber")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	_, ok = otherAccount.Next(ctx2)
	assert.False(t, ok, "account 2 should not see account 1's changes")
}

func TestSharedAccountsExtendVisibility(t *testing.T) {
	b := NewBroker(TestThrottleWindow, nil)
	b.Start()
	defer b.Stop()

	b.SetSharedAccounts(2, []ids.AccountId{1})
	sub := b.Subscribe(2, (ids.TypeStateBitmap(0)).Set(ids.TypeStateEmail))
	defer b.Unsubscribe(sub)

	b.Publish(Change{Account: 1, Type: ids.TypeStateEmail, ChangeID: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sc, ok := sub.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, ids.ChangeId(5), sc[1][ids.TypeStateEmail])
}

func TestEventSubscriberDropsOldestOnOverflow(t *testing.T) {
	sub := newEventSubscriber(1, 1, (ids.TypeStateBitmap(0)).Set(ids.TypeStateEmail), 2)

	sub.push(StateChange{1: {ids.TypeStateEmail: 1}})
	sub.push(StateChange{1: {ids.TypeStateEmail: 2}})
	sub.push(StateChange{1: {ids.TypeStateEmail: 3}})

	ctx := context.Background()
	first, ok := sub.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, ids.ChangeId(2), first[1][ids.TypeStateEmail], "oldest window should have been dropped")

	second, ok := sub.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, ids.ChangeId(3), second[1][ids.TypeStateEmail])
}

func TestUnsubscribeClosesSubscriber(t *testing.T) {
	b := NewBroker(TestThrottleWindow, nil)
	b.Start()
	defer b.Stop()

	sub := b.Subscribe(1, (ids.TypeStateBitmap(0)).Set(ids.TypeStateEmail))
	b.Unsubscribe(sub)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, ok := sub.Next(ctx)
	assert.False(t, ok)
}

type fakePusher struct {
	mu            sync.Mutex
	fails         int
	calls         []StateChange
	verifications []Verification
}

func (f *fakePusher) Push(ctx context.Context, url string, sc StateChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return assert.AnError
	}
	f.calls = append(f.calls, sc)
	return nil
}

func (f *fakePusher) PushVerification(ctx context.Context, url string, v Verification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifications = append(f.verifications, v)
	return nil
}

func TestPushSubscriptionRequiresVerification(t *testing.T) {
	pusher := &fakePusher{}
	b := NewBroker(TestThrottleWindow, pusher)
	b.Start()
	defer b.Stop()

	sub := b.RegisterPush(1, (ids.TypeStateBitmap(0)).Set(ids.TypeStateEmail), "http://push.example/", time.Now().Add(time.Hour))

	// the verification code is POSTed to the endpoint right away
	require.Eventually(t, func() bool {
		pusher.mu.Lock()
		defer pusher.mu.Unlock()
		return len(pusher.verifications) == 1
	}, time.Second, 10*time.Millisecond)
	pusher.mu.Lock()
	require.Equal(t, sub.VerificationCode(), pusher.verifications[0].Code)
	pusher.mu.Unlock()

	b.Publish(Change{Account: 1, Type: ids.TypeStateEmail, ChangeID: 1})
	time.Sleep(TestThrottleWindow + 200*time.Millisecond)

	pusher.mu.Lock()
	n := len(pusher.calls)
	pusher.mu.Unlock()
	assert.Equal(t, 0, n, "unverified push subscription must not receive deliveries")

	require.True(t, sub.Verify(sub.VerificationCode()))
	b.Publish(Change{Account: 1, Type: ids.TypeStateEmail, ChangeID: 2})
	time.Sleep(TestThrottleWindow + 200*time.Millisecond)

	pusher.mu.Lock()
	defer pusher.mu.Unlock()
	require.Len(t, pusher.calls, 1)
	assert.Equal(t, ids.ChangeId(2), pusher.calls[0][1][ids.TypeStateEmail])
}

func TestPushSubscriptionRetriesOnFailure(t *testing.T) {
	pusher := &fakePusher{fails: 2}
	b := NewBroker(TestThrottleWindow, pusher)
	b.Start()
	defer b.Stop()

	sub := b.RegisterPush(1, (ids.TypeStateBitmap(0)).Set(ids.TypeStateEmail), "http://push.example/", time.Now().Add(time.Hour))
	require.True(t, sub.Verify(sub.VerificationCode()))

	b.Publish(Change{Account: 1, Type: ids.TypeStateEmail, ChangeID: 1})

	require.Eventually(t, func() bool {
		pusher.mu.Lock()
		defer pusher.mu.Unlock()
		return len(pusher.calls) == 1
	}, 3*time.Second, 50*time.Millisecond)
}
