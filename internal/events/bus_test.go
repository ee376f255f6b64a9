package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Value int
}

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[testEvent](b, 1)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), testEvent{Value: 123}))

	select {
	case got := <-ch:
		require.Equal(t, 123, got.Value)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_PublishBackpressure(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[testEvent](b, 0) // unbuffered; no receiver => blocks
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, testEvent{Value: 1})
	require.Error(t, err, "publish must fail once the context expires")
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[testEvent](b, 1)
	require.Equal(t, 1, SubscriberCount[testEvent](b))

	unsubscribe()
	require.Equal(t, 0, SubscriberCount[testEvent](b))

	// publishing into the void succeeds
	require.NoError(t, b.Publish(context.Background(), testEvent{Value: 9}))

	// double-unsubscribe is safe
	unsubscribe()
}

func TestBus_CloseClosesChannels(t *testing.T) {
	b := NewBus()

	ch, _ := Subscribe[testEvent](b, 1)
	b.Close()

	_, open := <-ch
	require.False(t, open, "subscription channel must be closed after bus Close")

	require.Error(t, b.Publish(context.Background(), testEvent{Value: 1}))

	// subscribing after close returns a closed channel
	ch2, _ := Subscribe[testEvent](b, 1)
	_, open = <-ch2
	require.False(t, open)
}

func TestBus_TypedRouting(t *testing.T) {
	b := NewBus()
	defer b.Close()

	phaseCh, unsub1 := Subscribe[PhaseChanged](b, 1)
	defer unsub1()
	lostCh, unsub2 := Subscribe[LockLost](b, 1)
	defer unsub2()

	require.NoError(t, b.Publish(context.Background(), LockLost{BreakID: "b1", Reason: "locker exited"}))

	select {
	case got := <-lostCh:
		require.Equal(t, "b1", got.BreakID)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for LockLost")
	}

	select {
	case <-phaseCh:
		t.Fatal("PhaseChanged subscriber must not receive LockLost events")
	default:
	}
}
