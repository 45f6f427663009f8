// Package ws exposes the comparison workflow over a WebSocket gateway.
// Each connection is one subscriber; joining a session topic streams that
// session's events to the socket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/davidbz/modelarena/internal/domain"
	"github.com/davidbz/modelarena/internal/events"
	"github.com/davidbz/modelarena/internal/observability"
)

// Gateway-side event names. Workflow events come from the orchestrator.
const (
	eventConnected      = "connected"
	eventSessionCreated = "session_created"
	eventJoinedSession  = "joined_session"
)

const (
	writeTimeout = 10 * time.Second
	// sendBuffer bounds per-client queued events; a client that cannot
	// drain this many is considered dead and dropped.
	sendBuffer = 256

	maxMessageSize = 1 << 20
)

// clientMessage is one inbound frame from the socket.
type clientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Gateway upgrades HTTP connections and bridges them onto the event hub.
type Gateway struct {
	hub      *events.Hub
	service  *domain.ComparisonService
	upgrader websocket.Upgrader
}

// NewGateway creates the WebSocket gateway (DI constructor).
func NewGateway(hub *events.Hub, service *domain.ComparisonService) *Gateway {
	return &Gateway{
		hub:     hub,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser origins are filtered by the CORS layer in front.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.FromContext(r.Context()).Warn("websocket upgrade failed",
			observability.Error(err))
		return
	}

	ctx := observability.WithTraceID(context.Background(), observability.GenerateTraceID())
	c := newClient(conn)

	go c.writePump(ctx)

	_ = c.Notify(events.Event{
		Name:      eventConnected,
		Payload:   map[string]any{"clientId": c.ID()},
		Timestamp: time.Now().UTC(),
	})

	g.readLoop(ctx, c)
}

// readLoop consumes inbound frames until the connection drops, then detaches
// the client from every joined session.
func (g *Gateway) readLoop(ctx context.Context, c *client) {
	logger := observability.FromContext(ctx).With(observability.String("client_id", c.ID()))

	defer func() {
		for _, sessionID := range c.joinedSessions() {
			g.hub.Leave(sessionID, c.ID())
		}
		c.close()
		logger.Debug("client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", observability.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Debug("discarding malformed frame", observability.Error(err))
			continue
		}

		g.handleMessage(ctx, c, msg)
	}
}

func (g *Gateway) handleMessage(ctx context.Context, c *client, msg clientMessage) {
	switch msg.Event {
	case "create_session":
		g.createSession(ctx, c)
	case "join_session":
		g.joinSession(ctx, c, msg.Data)
	case "submit_prompt":
		g.submitPrompt(ctx, c, msg.Data)
	default:
		observability.FromContext(ctx).Debug("unknown client event",
			observability.String("event", msg.Event))
	}
}

// createSession mints a session id and auto-joins the client to it.
func (g *Gateway) createSession(ctx context.Context, c *client) {
	sessionID := uuid.New().String()
	g.hub.Join(sessionID, c)
	c.trackSession(sessionID)

	_ = c.Notify(events.Event{
		Name:      eventSessionCreated,
		SessionID: sessionID,
		Payload:   map[string]any{"sessionId": sessionID},
		Timestamp: time.Now().UTC(),
	})

	observability.FromContext(ctx).Info("session created",
		observability.String("session_id", sessionID),
		observability.String("client_id", c.ID()),
	)
}

func (g *Gateway) joinSession(ctx context.Context, c *client, data json.RawMessage) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.SessionID == "" {
		g.sendError(c, "", "sessionId is required to join a session")
		return
	}

	g.hub.Join(req.SessionID, c)
	c.trackSession(req.SessionID)

	_ = c.Notify(events.Event{
		Name:      eventJoinedSession,
		SessionID: req.SessionID,
		Payload:   map[string]any{"sessionId": req.SessionID},
		Timestamp: time.Now().UTC(),
	})

	observability.FromContext(ctx).Debug("client joined session",
		observability.String("session_id", req.SessionID),
		observability.String("client_id", c.ID()),
	)
}

// submitPrompt launches the comparison asynchronously; the socket gets its
// feedback through the session topic, starting with prompt_received.
func (g *Gateway) submitPrompt(ctx context.Context, c *client, data json.RawMessage) {
	var req domain.SubmitRequest
	if err := json.Unmarshal(data, &req); err != nil {
		g.sendError(c, "", "malformed submit_prompt payload")
		return
	}
	if req.SessionID == "" {
		g.sendError(c, "", "sessionId is required")
		return
	}
	if req.Prompt == "" {
		g.sendError(c, req.SessionID, "prompt cannot be empty")
		return
	}

	// Joining before submitting guarantees the client sees its own events.
	g.hub.Join(req.SessionID, c)
	c.trackSession(req.SessionID)

	go func() {
		submitCtx := observability.WithTraceID(context.Background(), observability.GenerateTraceID())
		if _, err := g.service.Submit(submitCtx, req); err != nil {
			observability.FromContext(submitCtx).Error("prompt submission failed",
				observability.String("session_id", req.SessionID),
				observability.Error(err),
			)
			g.hub.Publish(submitCtx, req.SessionID, domain.EventPromptError, map[string]any{
				"error": err.Error(),
			})
		}
	}()
}

func (g *Gateway) sendError(c *client, sessionID, message string) {
	_ = c.Notify(events.Event{
		Name:      domain.EventPromptError,
		SessionID: sessionID,
		Payload:   map[string]any{"error": message},
		Timestamp: time.Now().UTC(),
	})
}

// client is one WebSocket connection acting as an events.Subscriber.
// All writes go through the send channel so the socket has one writer.
type client struct {
	id   string
	conn *websocket.Conn
	send chan events.Event

	mu       sync.Mutex
	closed   bool
	sessions map[string]struct{}
}

var _ events.Subscriber = (*client)(nil)

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:       uuid.New().String(),
		conn:     conn,
		send:     make(chan events.Event, sendBuffer),
		sessions: make(map[string]struct{}),
	}
}

// ID identifies this connection within session topics.
func (c *client) ID() string {
	return c.id
}

// Notify queues an event for delivery. It never blocks the publisher: a full
// queue or a closed connection returns an error so the hub drops the client.
// The enqueue happens under the mutex so close cannot race the send.
func (c *client) Notify(event events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- event:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// writePump is the connection's single writer goroutine.
func (c *client) writePump(ctx context.Context) {
	logger := observability.FromContext(ctx)
	for event := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(event); err != nil {
			logger.Debug("websocket write failed",
				observability.String("client_id", c.id),
				observability.Error(err),
			)
			return
		}
	}
}

func (c *client) trackSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = struct{}{}
}

func (c *client) joinedSessions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}
