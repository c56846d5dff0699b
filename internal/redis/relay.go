package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/LuisNabil29/billSplitter/internal/domain"
	"github.com/LuisNabil29/billSplitter/internal/metrics"
)

func updateChannel(sessionID uuid.UUID) string {
	return "session.updated:" + sessionID.String()
}

// envelope is the wire form of a relayed snapshot. Origin identifies the
// publishing instance so it can discard its own messages.
type envelope struct {
	Origin   uuid.UUID        `json:"origin"`
	Snapshot *domain.Snapshot `json:"snapshot"`
}

// Relay fans session snapshots out across instances via Redis pub/sub.
// Each mutating instance publishes the post-mutation snapshot; other
// instances subscribe per session while they have local stream subscribers
// and feed received snapshots into their local notifier. Stale revisions are
// filtered by the notifier, not here.
type Relay struct {
	rdb        *goredis.Client
	instanceID uuid.UUID
	deliver    func(*domain.Snapshot)

	mu   sync.Mutex
	subs map[uuid.UUID]*goredis.PubSub
}

// NewRelay creates a relay. deliver is invoked for every snapshot received
// from another instance; it must not block.
func NewRelay(rdb *goredis.Client, deliver func(*domain.Snapshot)) *Relay {
	return &Relay{
		rdb:        rdb,
		instanceID: uuid.New(),
		deliver:    deliver,
		subs:       make(map[uuid.UUID]*goredis.PubSub),
	}
}

// Publish sends a snapshot to the session's update channel.
func (r *Relay) Publish(ctx context.Context, snapshot *domain.Snapshot) error {
	data, err := json.Marshal(envelope{Origin: r.instanceID, Snapshot: snapshot})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot envelope: %w", err)
	}
	if err := r.rdb.Publish(ctx, updateChannel(snapshot.Session.ID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	metrics.RelayMessagesTotal.WithLabelValues("published").Inc()
	return nil
}

// StartSession subscribes to a session's update channel and forwards
// snapshots from other instances to deliver. Idempotent per session.
func (r *Relay) StartSession(sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[sessionID]; exists {
		return
	}

	sub := r.rdb.Subscribe(context.Background(), updateChannel(sessionID))
	r.subs[sessionID] = sub

	go func() {
		for msg := range sub.Channel() {
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				slog.Warn("Relay: failed to unmarshal message", "channel", msg.Channel, "error", err)
				metrics.RelayMessagesTotal.WithLabelValues("decode_error").Inc()
				continue
			}
			if env.Origin == r.instanceID || env.Snapshot == nil || env.Snapshot.Session == nil {
				metrics.RelayMessagesTotal.WithLabelValues("dropped_self").Inc()
				continue
			}
			metrics.RelayMessagesTotal.WithLabelValues("received").Inc()
			r.deliver(env.Snapshot)
		}
	}()
}

// StopSession unsubscribes from a session's update channel.
func (r *Relay) StopSession(sessionID uuid.UUID) {
	r.mu.Lock()
	sub, exists := r.subs[sessionID]
	if exists {
		delete(r.subs, sessionID)
	}
	r.mu.Unlock()

	if exists {
		// Closing the PubSub also closes its Channel(), ending the goroutine.
		_ = sub.Close()
	}
}

// Close unsubscribes from all channels.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sub := range r.subs {
		_ = sub.Close()
		delete(r.subs, id)
	}
}
