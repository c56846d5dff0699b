package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/LuisNabil29/billSplitter/internal/domain"
	"github.com/LuisNabil29/billSplitter/internal/metrics"
	"github.com/LuisNabil29/billSplitter/internal/notifier"
)

const (
	sseHeartbeatInterval = 15 * time.Second

	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// acquireStream claims a stream slot and a hub subscription, returning the
// release function. A nil error means both are held.
func (s *Server) acquireStream(c echo.Context, transport string, sessionID uuid.UUID) (sub *notifier.Subscription, release func(), err error) {
	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.StreamConnectionsTotal.WithLabelValues(transport, "rejected").Inc()
		slog.Warn("Stream connection rejected",
			"transport", transport,
			"ip", ip,
			"reason", string(reason),
		)
		return nil, nil, echo.NewHTTPError(http.StatusTooManyRequests, "too many connections")
	}

	sub, subErr := s.hub.Subscribe(sessionID)
	if subErr != nil {
		s.limits.Release(ip)
		metrics.StreamConnectionsTotal.WithLabelValues(transport, "rejected").Inc()
		return nil, nil, echo.NewHTTPError(http.StatusTooManyRequests, "session has too many watchers")
	}

	metrics.StreamConnectionsTotal.WithLabelValues(transport, "success").Inc()
	return sub, func() {
		s.hub.Unsubscribe(sub)
		s.limits.Release(ip)
	}, nil
}

// handleSSE streams session snapshots as server-sent events. The current
// snapshot is sent immediately, then one event per mutation, with comment
// heartbeats keeping proxies from closing the idle connection.
func (s *Server) handleSSE(c echo.Context) error {
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}

	// Resolve the session before holding a stream slot.
	snapshot, err := s.app.GetSnapshot(c.Request().Context(), sessionID)
	if err != nil {
		return mapError(err)
	}

	sub, release, err := s.acquireStream(c, "sse", sessionID)
	if err != nil {
		return err
	}
	defer release()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)

	if err := writeSSEEvent(resp, snapshot); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-sub.Updates():
			if !ok {
				// Dropped by the hub for falling behind.
				return nil
			}
			if err := writeSSEEvent(resp, snap); err != nil {
				return nil
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(resp, ": heartbeat\n\n"); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}

func writeSSEEvent(resp *echo.Response, snapshot *domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(resp, "event: snapshot\ndata: %s\n\n", data); err != nil {
		return err
	}
	resp.Flush()
	return nil
}

// handleWebSocket streams session snapshots over a WebSocket. Messages are
// JSON snapshots; the read side only services pongs and close frames.
func (s *Server) handleWebSocket(c echo.Context) error {
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}

	snapshot, err := s.app.GetSnapshot(c.Request().Context(), sessionID)
	if err != nil {
		return mapError(err)
	}

	sub, release, err := s.acquireStream(c, "websocket", sessionID)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		release()
		metrics.StreamConnectionsTotal.WithLabelValues("websocket", "error").Inc()
		slog.Warn("WebSocket upgrade failed", "error", err)
		return nil
	}

	done := make(chan struct{})
	go s.writePump(conn, sub, snapshot, done)

	// Read pump: service pongs and detect disconnect.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(done)
	release()
	conn.Close()
	return nil
}

func (s *Server) writePump(conn *websocket.Conn, sub *notifier.Subscription, initial *domain.Snapshot, done chan struct{}) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	if err := writeWSSnapshot(conn, initial); err != nil {
		conn.Close()
		return
	}

	for {
		select {
		case <-done:
			return
		case snap, ok := <-sub.Updates():
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"))
				conn.Close()
				return
			}
			if err := writeWSSnapshot(conn, snap); err != nil {
				conn.Close()
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func writeWSSnapshot(conn *websocket.Conn, snapshot *domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
