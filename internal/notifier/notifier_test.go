package notifier

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuisNabil29/billSplitter/internal/domain"
)

func snapshotWithRevision(sessionID uuid.UUID, revision uint64) *domain.Snapshot {
	return &domain.Snapshot{Session: &domain.Session{ID: sessionID, Revision: revision}}
}

func receiveSnapshot(t *testing.T, sub *Subscription) *domain.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		require.True(t, ok, "subscription channel closed unexpectedly")
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func assertNoSnapshot(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case snap := <-sub.Updates():
		t.Fatalf("unexpected snapshot with revision %d", snap.Session.Revision)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcast_DeliversToAllSubscribers(t *testing.T) {
	hub := NewHub(0, nil, nil)
	defer hub.Stop()
	sessionID := uuid.New()

	sub1, err := hub.Subscribe(sessionID)
	require.NoError(t, err)
	sub2, err := hub.Subscribe(sessionID)
	require.NoError(t, err)

	hub.Broadcast(snapshotWithRevision(sessionID, 1))

	assert.Equal(t, uint64(1), receiveSnapshot(t, sub1).Session.Revision)
	assert.Equal(t, uint64(1), receiveSnapshot(t, sub2).Session.Revision)
}

func TestBroadcast_OnlyReachesOwnSession(t *testing.T) {
	hub := NewHub(0, nil, nil)
	defer hub.Stop()

	sub, err := hub.Subscribe(uuid.New())
	require.NoError(t, err)

	hub.Broadcast(snapshotWithRevision(uuid.New(), 1))
	assertNoSnapshot(t, sub)
}

func TestBroadcast_DropsStaleRevisions(t *testing.T) {
	hub := NewHub(0, nil, nil)
	defer hub.Stop()
	sessionID := uuid.New()

	sub, err := hub.Subscribe(sessionID)
	require.NoError(t, err)

	hub.Broadcast(snapshotWithRevision(sessionID, 5))
	hub.Broadcast(snapshotWithRevision(sessionID, 3)) // late arrival from the relay
	hub.Broadcast(snapshotWithRevision(sessionID, 5)) // duplicate
	hub.Broadcast(snapshotWithRevision(sessionID, 6))

	assert.Equal(t, uint64(5), receiveSnapshot(t, sub).Session.Revision)
	assert.Equal(t, uint64(6), receiveSnapshot(t, sub).Session.Revision)
	assertNoSnapshot(t, sub)
}

func TestBroadcast_DropsSlowSubscriber(t *testing.T) {
	hub := NewHub(0, nil, nil)
	defer hub.Stop()
	sessionID := uuid.New()

	slow, err := hub.Subscribe(sessionID)
	require.NoError(t, err)

	// Fill the buffer without draining, then overflow it.
	for rev := uint64(1); rev <= snapshotBufferSize+1; rev++ {
		hub.Broadcast(snapshotWithRevision(sessionID, rev))
	}

	// The overflowing broadcast closes the channel.
	assert.Eventually(t, func() bool {
		return hub.SubscriberCount(sessionID) == 0
	}, time.Second, 10*time.Millisecond)

	// Drain: buffered snapshots, then closed.
	received := 0
	for range slow.Updates() {
		received++
	}
	assert.Equal(t, snapshotBufferSize, received)
}

func TestSubscribe_MaxPerSession(t *testing.T) {
	hub := NewHub(2, nil, nil)
	defer hub.Stop()
	sessionID := uuid.New()

	_, err := hub.Subscribe(sessionID)
	require.NoError(t, err)
	_, err = hub.Subscribe(sessionID)
	require.NoError(t, err)

	_, err = hub.Subscribe(sessionID)
	assert.ErrorIs(t, err, ErrSessionFull)

	// Other sessions are unaffected.
	_, err = hub.Subscribe(uuid.New())
	assert.NoError(t, err)
}

func TestUnsubscribe_ClosesChannelAndIsIdempotent(t *testing.T) {
	hub := NewHub(0, nil, nil)
	defer hub.Stop()
	sessionID := uuid.New()

	sub, err := hub.Subscribe(sessionID)
	require.NoError(t, err)

	hub.Unsubscribe(sub)
	_, ok := <-sub.Updates()
	assert.False(t, ok)

	// Second unsubscribe must not panic on the closed channel.
	hub.Unsubscribe(sub)
	assert.Equal(t, 0, hub.SubscriberCount(sessionID))
}

func TestFirstAndLastSubscriberCallbacks(t *testing.T) {
	var mu sync.Mutex
	var events []string
	record := func(kind string) func(uuid.UUID) {
		return func(uuid.UUID) {
			mu.Lock()
			events = append(events, kind)
			mu.Unlock()
		}
	}

	hub := NewHub(0, record("first"), record("last"))
	defer hub.Stop()
	sessionID := uuid.New()

	sub1, err := hub.Subscribe(sessionID)
	require.NoError(t, err)
	sub2, err := hub.Subscribe(sessionID)
	require.NoError(t, err)

	// Only the first subscriber fires onFirst.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1 && events[0] == "first"
	}, time.Second, 10*time.Millisecond)

	hub.Unsubscribe(sub1)
	hub.Unsubscribe(sub2)

	// Only the last departure fires onLast.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2 && events[1] == "last"
	}, time.Second, 10*time.Millisecond)
}

func TestStop_ClosesAllSubscriptions(t *testing.T) {
	hub := NewHub(0, nil, nil)

	sub1, err := hub.Subscribe(uuid.New())
	require.NoError(t, err)
	sub2, err := hub.Subscribe(uuid.New())
	require.NoError(t, err)

	hub.Stop()

	_, ok := <-sub1.Updates()
	assert.False(t, ok)
	_, ok = <-sub2.Updates()
	assert.False(t, ok)
}

func TestBroadcast_AfterResubscribeSessionStateIsFresh(t *testing.T) {
	hub := NewHub(0, nil, nil)
	defer hub.Stop()
	sessionID := uuid.New()

	sub, err := hub.Subscribe(sessionID)
	require.NoError(t, err)
	hub.Broadcast(snapshotWithRevision(sessionID, 7))
	receiveSnapshot(t, sub)
	hub.Unsubscribe(sub)

	// Revision tracking resets once the session has no subscribers, so a
	// relay replaying an older revision to a fresh watcher still delivers.
	sub2, err := hub.Subscribe(sessionID)
	require.NoError(t, err)
	hub.Broadcast(snapshotWithRevision(sessionID, 3))
	assert.Equal(t, uint64(3), receiveSnapshot(t, sub2).Session.Revision)
}
