package chat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mindease/internal/app/chat"
)

func TestHubPublishIsReceiverScoped(t *testing.T) {
	req := require.New(t)

	hub := chat.NewHub()
	subStudent := hub.Subscribe(student.ID)
	subCarol := hub.Subscribe(carol.ID)

	m := msg("m1", carol.ID, student.ID, "hi", time.Now())
	hub.Publish(m)

	select {
	case got := <-subStudent.Events():
		req.Equal(m, got)
	case <-time.After(time.Second):
		t.Fatal("expected event on receiver's subscription")
	}

	select {
	case got := <-subCarol.Events():
		t.Fatalf("sender subscription must not receive the event, got %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubPublishWithoutSubscriberIsDropped(t *testing.T) {
	hub := chat.NewHub()

	// No panic, no block.
	hub.Publish(msg("m1", carol.ID, student.ID, "hi", time.Now()))
}

func TestHubResubscribeReplacesAndClosesOldSubscription(t *testing.T) {
	req := require.New(t)

	hub := chat.NewHub()
	oldSub := hub.Subscribe(student.ID)
	newSub := hub.Subscribe(student.ID)

	// The replaced channel closes so its consumer can terminate.
	select {
	case _, open := <-oldSub.Events():
		req.False(open)
	case <-time.After(time.Second):
		t.Fatal("expected old subscription channel to close")
	}

	m := msg("m1", carol.ID, student.ID, "hi", time.Now())
	hub.Publish(m)

	select {
	case got := <-newSub.Events():
		req.Equal(m, got)
	case <-time.After(time.Second):
		t.Fatal("expected event on replacing subscription")
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	req := require.New(t)

	hub := chat.NewHub()
	sub := hub.Subscribe(student.ID)
	hub.Unsubscribe(sub)

	_, open := <-sub.Events()
	req.False(open)

	// Publishing afterwards is a no-op.
	hub.Publish(msg("m1", carol.ID, student.ID, "hi", time.Now()))
}

func TestHubStaleUnsubscribeKeepsLiveSubscription(t *testing.T) {
	req := require.New(t)

	hub := chat.NewHub()
	oldSub := hub.Subscribe(student.ID)
	newSub := hub.Subscribe(student.ID)

	// Tearing down the stale subscription must not disturb the live one.
	hub.Unsubscribe(oldSub)

	m := msg("m1", carol.ID, student.ID, "hi", time.Now())
	hub.Publish(m)

	select {
	case got := <-newSub.Events():
		req.Equal(m, got)
	case <-time.After(time.Second):
		t.Fatal("expected event on live subscription after stale unsubscribe")
	}
}

func TestHubShutdownClosesAllAndRefusesNew(t *testing.T) {
	req := require.New(t)

	hub := chat.NewHub()
	sub := hub.Subscribe(student.ID)

	hub.Shutdown()

	_, open := <-sub.Events()
	req.False(open)

	late := hub.Subscribe(carol.ID)
	_, open = <-late.Events()
	req.False(open)
}
