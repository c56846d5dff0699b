// Package notifier implements the change notifier: a per-session set of
// subscribers that receive the full session snapshot after every mutation.
//
// The hub runs as a single goroutine processing commands from a channel, so
// the subscriber sets are never iterated and mutated concurrently. Delivery
// is at-most-once and best-effort per subscriber: a subscriber whose buffer
// is full is dropped rather than stalling the broadcast to the others.
package notifier

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/LuisNabil29/billSplitter/internal/domain"
	"github.com/LuisNabil29/billSplitter/internal/metrics"
)

const snapshotBufferSize = 16

// ErrSessionFull is returned by Subscribe when a session already has the
// maximum number of subscribers.
var ErrSessionFull = errors.New("maximum subscribers per session reached")

// Subscription is one subscriber's handle. Snapshots arrive on Updates();
// the channel is closed when the subscription is torn down, either by
// Unsubscribe or because the subscriber was too slow.
type Subscription struct {
	sessionID uuid.UUID
	ch        chan *domain.Snapshot
}

// SessionID returns the session this subscription watches.
func (s *Subscription) SessionID() uuid.UUID { return s.sessionID }

// Updates returns the snapshot stream.
func (s *Subscription) Updates() <-chan *domain.Snapshot { return s.ch }

// --- Commands ---

type hubCmd interface{ hubCmd() }

type cmdSubscribe struct {
	sessionID uuid.UUID
	replyCh   chan subscribeReply
}

type subscribeReply struct {
	sub *Subscription
	err error
}

func (cmdSubscribe) hubCmd() {}

type cmdUnsubscribe struct {
	sub *Subscription
}

func (cmdUnsubscribe) hubCmd() {}

type cmdBroadcast struct {
	snapshot *domain.Snapshot
}

func (cmdBroadcast) hubCmd() {}

type cmdCount struct {
	sessionID uuid.UUID
	replyCh   chan int
}

func (cmdCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Hub ---

// Hub fans session snapshots out to subscribers, keyed by session id.
//
// onFirst fires when a session gains its first subscriber and onLast when it
// loses its last one; both run outside the hub goroutine and may be nil. They
// exist so a cross-instance relay can subscribe to a session's updates only
// while someone on this instance is watching.
type Hub struct {
	cmdCh         chan hubCmd
	subscribers   map[uuid.UUID]map[*Subscription]struct{}
	lastRevision  map[uuid.UUID]uint64
	maxPerSession int
	onFirst       func(uuid.UUID)
	onLast        func(uuid.UUID)
	done          chan struct{}
}

// NewHub creates and starts a hub. maxPerSession bounds the subscriber set of
// one session; zero means unlimited.
func NewHub(maxPerSession int, onFirst, onLast func(uuid.UUID)) *Hub {
	h := &Hub{
		cmdCh:         make(chan hubCmd, 256),
		subscribers:   make(map[uuid.UUID]map[*Subscription]struct{}),
		lastRevision:  make(map[uuid.UUID]uint64),
		maxPerSession: maxPerSession,
		onFirst:       onFirst,
		onLast:        onLast,
		done:          make(chan struct{}),
	}
	go h.run()
	return h
}

// Subscribe registers a new subscriber for the session. The caller receives
// no snapshot until the next broadcast; gateways send the current snapshot
// themselves immediately after subscribing.
func (h *Hub) Subscribe(sessionID uuid.UUID) (*Subscription, error) {
	replyCh := make(chan subscribeReply, 1)
	h.cmdCh <- cmdSubscribe{sessionID: sessionID, replyCh: replyCh}
	reply := <-replyCh
	return reply.sub, reply.err
}

// Unsubscribe removes the subscriber and closes its channel. Unsubscribing a
// subscription that was already dropped is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.cmdCh <- cmdUnsubscribe{sub: sub}
}

// Broadcast delivers the snapshot to every subscriber of its session.
// Snapshots older than the last one delivered for that session are dropped,
// so a subscriber never observes a stale state after a fresh one.
func (h *Hub) Broadcast(snapshot *domain.Snapshot) {
	h.cmdCh <- cmdBroadcast{snapshot: snapshot}
}

// SubscriberCount returns the number of subscribers for a session.
func (h *Hub) SubscriberCount(sessionID uuid.UUID) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdCount{sessionID: sessionID, replyCh: replyCh}
	return <-replyCh
}

// Stop tears down all subscriptions and terminates the hub goroutine.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdSubscribe:
			h.handleSubscribe(c)
		case cmdUnsubscribe:
			h.handleUnsubscribe(c.sub)
		case cmdBroadcast:
			h.handleBroadcast(c.snapshot)
		case cmdCount:
			c.replyCh <- len(h.subscribers[c.sessionID])
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleSubscribe(c cmdSubscribe) {
	subs, exists := h.subscribers[c.sessionID]
	if !exists {
		subs = make(map[*Subscription]struct{})
		h.subscribers[c.sessionID] = subs
	}

	if h.maxPerSession > 0 && len(subs) >= h.maxPerSession {
		if !exists {
			delete(h.subscribers, c.sessionID)
		}
		c.replyCh <- subscribeReply{err: ErrSessionFull}
		return
	}

	sub := &Subscription{
		sessionID: c.sessionID,
		ch:        make(chan *domain.Snapshot, snapshotBufferSize),
	}
	subs[sub] = struct{}{}
	metrics.SubscribersCurrent.Inc()

	if !exists && h.onFirst != nil {
		go h.onFirst(c.sessionID)
	}

	slog.Debug("Subscriber added", "session_id", c.sessionID.String(), "subscribers", len(subs))
	c.replyCh <- subscribeReply{sub: sub}
}

func (h *Hub) handleUnsubscribe(sub *Subscription) {
	subs, exists := h.subscribers[sub.sessionID]
	if !exists {
		return
	}
	if _, member := subs[sub]; !member {
		return
	}

	delete(subs, sub)
	close(sub.ch)
	metrics.SubscribersCurrent.Dec()

	if len(subs) == 0 {
		delete(h.subscribers, sub.sessionID)
		delete(h.lastRevision, sub.sessionID)
		if h.onLast != nil {
			go h.onLast(sub.sessionID)
		}
		slog.Debug("Last subscriber left", "session_id", sub.sessionID.String())
	}
}

func (h *Hub) handleBroadcast(snapshot *domain.Snapshot) {
	sessionID := snapshot.Session.ID
	subs, exists := h.subscribers[sessionID]
	if !exists {
		return
	}

	if last, seen := h.lastRevision[sessionID]; seen && snapshot.Session.Revision <= last {
		metrics.BroadcastsDroppedStale.Inc()
		return
	}
	h.lastRevision[sessionID] = snapshot.Session.Revision

	var slow []*Subscription
	for sub := range subs {
		select {
		case sub.ch <- snapshot:
		default:
			slow = append(slow, sub)
		}
	}
	metrics.BroadcastsTotal.Inc()

	for _, sub := range slow {
		slog.Warn("Dropping slow subscriber", "session_id", sessionID.String())
		metrics.SubscribersDroppedTotal.Inc()
		h.handleUnsubscribe(sub)
	}
}

func (h *Hub) handleStop() {
	for sessionID, subs := range h.subscribers {
		for sub := range subs {
			close(sub.ch)
			metrics.SubscribersCurrent.Dec()
		}
		delete(h.subscribers, sessionID)
		delete(h.lastRevision, sessionID)
	}
}
